package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newFileTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	return s, dir
}

func TestFileCreateUserConflict(t *testing.T) {
	s, _ := newFileTestStore(t)
	ctx := context.Background()

	user := User{ID: "u-1", Username: "alice", PasswordHash: "hash", CreatedAt: time.Now().UTC()}
	if err := s.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if err := s.CreateUser(ctx, user); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	loaded, err := s.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if loaded.ID != "u-1" {
		t.Fatalf("unexpected user %+v", loaded)
	}
	if _, err := s.GetUser(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileConcurrentSignupsYieldOneUser(t *testing.T) {
	s, _ := newFileTestStore(t)
	ctx := context.Background()

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			results <- s.CreateUser(ctx, User{
				ID:           fmt.Sprintf("u-%d", n),
				Username:     "alice",
				PasswordHash: "hash",
				CreatedAt:    time.Now().UTC(),
			})
		}(i)
	}
	wg.Wait()
	close(results)

	var created, conflicts int
	for err := range results {
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if created != 1 || conflicts != attempts-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d and %d", attempts-1, created, conflicts)
	}

	users, err := s.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if users.Username != "alice" {
		t.Fatalf("unexpected user %+v", users)
	}
}

func TestFileCoursesSurviveReopen(t *testing.T) {
	s, dir := newFileTestStore(t)
	ctx := context.Background()

	if err := s.CreateUser(ctx, User{ID: "u-1", Username: "alice", PasswordHash: "hash"}); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := s.AddCourse(ctx, "alice", "Editing 101"); err != nil {
		t.Fatalf("add course: %v", err)
	}
	if courses, err := s.AddCourse(ctx, "alice", "Editing 101"); err != nil || len(courses) != 1 {
		t.Fatalf("repeat add must not duplicate, got %v (%v)", courses, err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	courses, err := reopened.ListCourses(ctx, "alice")
	if err != nil {
		t.Fatalf("list courses: %v", err)
	}
	if len(courses) != 1 || courses[0] != "Editing 101" {
		t.Fatalf("expected [Editing 101], got %v", courses)
	}

	courses, err = reopened.RemoveCourse(ctx, "alice", "Editing 101")
	if err != nil {
		t.Fatalf("remove course: %v", err)
	}
	if len(courses) != 0 {
		t.Fatalf("expected empty list, got %v", courses)
	}
}

func TestFileLikeIsIdempotentPerUser(t *testing.T) {
	s, _ := newFileTestStore(t)
	ctx := context.Background()
	if _, err := EnsureSeeded(ctx, s); err != nil {
		t.Fatalf("seed: %v", err)
	}

	count, err := s.Like(ctx, 1, "u-1")
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected count 1, got %d", count)
	}
	count, err = s.Like(ctx, 1, "u-1")
	if err != nil {
		t.Fatalf("repeat like: %v", err)
	}
	if count != 1 {
		t.Fatalf("repeat like must not increment, got %d", count)
	}

	if _, err := s.Like(ctx, 999, "u-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFileConcurrentLikesFromDistinctUsers(t *testing.T) {
	s, _ := newFileTestStore(t)
	ctx := context.Background()
	if _, err := EnsureSeeded(ctx, s); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const users = 8
	var wg sync.WaitGroup
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := s.Like(ctx, 1, fmt.Sprintf("u-%d", n)); err != nil {
				t.Errorf("like: %v", err)
			}
		}(i)
	}
	wg.Wait()

	video, err := s.GetVideo(ctx, 1)
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if video.LikeCount != users {
		t.Fatalf("expected count %d, got %d", users, video.LikeCount)
	}
}

func TestFileCommentCountDerivesFromList(t *testing.T) {
	s, dir := newFileTestStore(t)
	ctx := context.Background()
	if _, err := EnsureSeeded(ctx, s); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if _, err := s.AddComment(ctx, 2, Comment{ID: "c-1", User: "alice", Text: "first", At: time.Now().UTC()}); err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if _, err := s.AddComment(ctx, 2, Comment{ID: "c-2", User: "bob", Text: "second", At: time.Now().UTC()}); err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if _, err := s.AddComment(ctx, 999, Comment{ID: "c-3"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	video, err := reopened.GetVideo(ctx, 2)
	if err != nil {
		t.Fatalf("get video: %v", err)
	}
	if video.CommentCount != 2 {
		t.Fatalf("expected commentCount 2, got %d", video.CommentCount)
	}
	if len(video.Comments) != 2 || video.Comments[0].ID != "c-1" {
		t.Fatalf("unexpected comments %+v", video.Comments)
	}
}

func TestFileSeedIsGuardedByCount(t *testing.T) {
	s, _ := newFileTestStore(t)
	ctx := context.Background()

	seeded, err := EnsureSeeded(ctx, s)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !seeded {
		t.Fatalf("expected an initial seed")
	}
	if seeded, err = EnsureSeeded(ctx, s); err != nil || seeded {
		t.Fatalf("second call must be a no-op, got seeded=%v err=%v", seeded, err)
	}

	videos, err := s.ListVideos(ctx)
	if err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if len(videos) != len(SeedSet) {
		t.Fatalf("expected %d videos, got %d", len(SeedSet), len(videos))
	}
}
