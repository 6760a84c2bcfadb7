// Package store defines the storage abstraction behind the API and its
// three interchangeable backends: postgres (relational), redis (key-value
// table service), and file (locked JSON documents).
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a user or video does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional insert loses to an
	// existing row, e.g. a duplicate username.
	ErrConflict = errors.New("conflict")
)

type User struct {
	ID           string
	Username     string
	PasswordHash string
	Courses      []string
	CreatedAt    time.Time
}

type Comment struct {
	ID   string    `json:"id"`
	User string    `json:"user"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Video carries the full stored record including the like-witness set.
// Handlers must project it before serializing; Likes never leaves the
// process.
type Video struct {
	ID           int64
	Src          string
	Username     string
	Caption      string
	Music        string
	LikeCount    int64
	CommentCount int64
	Likes        []string
	Comments     []Comment
}

type UserStore interface {
	GetUser(ctx context.Context, username string) (User, error)
	// CreateUser inserts only if the username is absent and returns
	// ErrConflict otherwise. Implementations must not read-then-write.
	CreateUser(ctx context.Context, user User) error
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	ListCourses(ctx context.Context, username string) ([]string, error)
	AddCourse(ctx context.Context, username, name string) ([]string, error)
	RemoveCourse(ctx context.Context, username, name string) ([]string, error)
}

type VideoStore interface {
	ListVideos(ctx context.Context) ([]Video, error)
	GetVideo(ctx context.Context, id int64) (Video, error)
	CountVideos(ctx context.Context) (int, error)
	SeedVideos(ctx context.Context, videos []Video) error
	// Like records userID in the witness set of the video and increments
	// the counter, both in one atomic operation against the backend. A
	// repeat like is a no-op that returns the unchanged count.
	Like(ctx context.Context, videoID int64, userID string) (int64, error)
	// AddComment appends the comment and bumps the denormalized counter
	// in the same atomic operation (or derives the counter from the list
	// length, backend's choice).
	AddComment(ctx context.Context, videoID int64, comment Comment) (Comment, error)
}

type Store interface {
	UserStore
	VideoStore
	Ping(ctx context.Context) error
	Close() error
}
