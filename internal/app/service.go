package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"clipstream/api/internal/authpw"
	"clipstream/api/internal/media"
	"clipstream/api/internal/search"
	"clipstream/api/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxCommentLength = 300

// dataStore is the slice of the storage surface the service needs.
type dataStore interface {
	GetUser(ctx context.Context, username string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	ListCourses(ctx context.Context, username string) ([]string, error)
	AddCourse(ctx context.Context, username, name string) ([]string, error)
	RemoveCourse(ctx context.Context, username, name string) ([]string, error)
	ListVideos(ctx context.Context) ([]store.Video, error)
	GetVideo(ctx context.Context, id int64) (store.Video, error)
	CountVideos(ctx context.Context) (int, error)
	SeedVideos(ctx context.Context, videos []store.Video) error
	Like(ctx context.Context, videoID int64, userID string) (int64, error)
	AddComment(ctx context.Context, videoID int64, comment store.Comment) (store.Comment, error)
	Ping(ctx context.Context) error
}

// VideoView is the public projection of a video: the like-witness set
// stays internal, the comment count is included.
type VideoView struct {
	ID           int64  `json:"id"`
	Src          string `json:"src"`
	Username     string `json:"username"`
	Caption      string `json:"caption"`
	Music        string `json:"music"`
	LikeCount    int64  `json:"likeCount"`
	CommentCount int64  `json:"commentCount"`
}

type Service struct {
	store  dataStore
	auth   *authpw.Service
	search *search.Service
	media  *media.Resolver
}

// New wires the service. search and resolver may be nil-backed facades;
// feed and search behavior degrade gracefully without them.
func New(dataStore dataStore, searchService *search.Service, resolver *media.Resolver) *Service {
	return &Service{
		store:  dataStore,
		auth:   authpw.NewService(dataStore),
		search: searchService,
		media:  resolver,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Auth() *authpw.Service {
	return s.auth
}

// Bootstrap seeds the video catalog when empty and pushes it to the search
// index.
func (s *Service) Bootstrap(ctx context.Context) error {
	seeded, err := store.EnsureSeeded(ctx, s.store)
	if err != nil {
		return fmt.Errorf("seed videos: %w", err)
	}
	if seeded {
		log.Info().Int("videos", len(store.SeedSet)).Msg("seeded video catalog")
	}

	if s.search != nil {
		videos, err := s.store.ListVideos(ctx)
		if err != nil {
			return fmt.Errorf("list videos for indexing: %w", err)
		}
		s.search.IndexVideos(searchRecords(videos))
	}
	return nil
}

func (s *Service) Feed(ctx context.Context) ([]VideoView, error) {
	videos, err := s.store.ListVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	views := make([]VideoView, 0, len(videos))
	for _, v := range videos {
		views = append(views, s.project(ctx, v))
	}
	return views, nil
}

// SearchFeed returns the feed filtered to videos matching q. Order follows
// the catalog, not relevance; the feed carries no ranking.
func (s *Service) SearchFeed(ctx context.Context, q string) ([]VideoView, error) {
	videos, err := s.store.ListVideos(ctx)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	if s.search == nil {
		return []VideoView{}, nil
	}
	matched := make(map[int64]bool)
	for _, id := range s.search.Search(q, searchRecords(videos)) {
		matched[id] = true
	}
	views := make([]VideoView, 0, len(matched))
	for _, v := range videos {
		if matched[v.ID] {
			views = append(views, s.project(ctx, v))
		}
	}
	return views, nil
}

// LikeVideo records one like per user per video. The store's conditional
// update carries the idempotence; a repeat like returns the same count.
func (s *Service) LikeVideo(ctx context.Context, videoID int64, userID string) (int64, error) {
	count, err := s.store.Like(ctx, videoID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, domainError(http.StatusNotFound, "not_found")
	}
	if err != nil {
		return 0, fmt.Errorf("like video %d: %w", videoID, err)
	}
	return count, nil
}

func (s *Service) Comments(ctx context.Context, videoID int64) ([]store.Comment, error) {
	video, err := s.store.GetVideo(ctx, videoID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainError(http.StatusNotFound, "not_found")
	}
	if err != nil {
		return nil, fmt.Errorf("get video %d: %w", videoID, err)
	}
	if video.Comments == nil {
		return []store.Comment{}, nil
	}
	return video.Comments, nil
}

// AddComment validates the text and appends it. The author comes from the
// session, never from the request body.
func (s *Service) AddComment(ctx context.Context, videoID int64, username, text string) (store.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return store.Comment{}, domainError(http.StatusBadRequest, "empty_comment")
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return store.Comment{}, domainError(http.StatusBadRequest, "too_long")
	}

	comment := store.Comment{
		ID:   uuid.NewString(),
		User: username,
		Text: text,
		At:   time.Now().UTC(),
	}
	created, err := s.store.AddComment(ctx, videoID, comment)
	if errors.Is(err, store.ErrNotFound) {
		return store.Comment{}, domainError(http.StatusNotFound, "not_found")
	}
	if err != nil {
		return store.Comment{}, fmt.Errorf("add comment to video %d: %w", videoID, err)
	}
	return created, nil
}

func (s *Service) Courses(ctx context.Context, username string) ([]string, error) {
	courses, err := s.store.ListCourses(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

func (s *Service) AddCourse(ctx context.Context, username, name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusBadRequest, "empty_course")
	}
	courses, err := s.store.AddCourse(ctx, username, name)
	if err != nil {
		return nil, fmt.Errorf("add course: %w", err)
	}
	return courses, nil
}

func (s *Service) RemoveCourse(ctx context.Context, username, name string) ([]string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domainError(http.StatusBadRequest, "empty_course")
	}
	courses, err := s.store.RemoveCourse(ctx, username, name)
	if err != nil {
		return nil, fmt.Errorf("remove course: %w", err)
	}
	return courses, nil
}

func (s *Service) project(ctx context.Context, v store.Video) VideoView {
	src := v.Src
	if s.media != nil {
		src = s.media.Resolve(ctx, src)
	}
	return VideoView{
		ID:           v.ID,
		Src:          src,
		Username:     v.Username,
		Caption:      v.Caption,
		Music:        v.Music,
		LikeCount:    v.LikeCount,
		CommentCount: v.CommentCount,
	}
}

func searchRecords(videos []store.Video) []search.VideoRecord {
	records := make([]search.VideoRecord, 0, len(videos))
	for _, v := range videos {
		records = append(records, search.VideoRecord{
			ID:       v.ID,
			Caption:  v.Caption,
			Music:    v.Music,
			Username: v.Username,
		})
	}
	return records
}
