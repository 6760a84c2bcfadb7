package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore is the locked-document backend: one JSON document for users,
// one for videos, each rewritten wholesale under its own writer lock. The
// lock is the whole consistency story here, so every mutation goes through
// a load-mutate-save cycle while holding it.
type FileStore struct {
	usersPath  string
	videosPath string

	usersMu  sync.RWMutex
	videosMu sync.RWMutex
}

type fileUser struct {
	Username     string    `json:"username"`
	ID           string    `json:"id"`
	PasswordHash string    `json:"passwordHash"`
	Courses      []string  `json:"courses"`
	CreatedAt    time.Time `json:"createdAt"`
}

type fileVideo struct {
	ID          int64           `json:"id"`
	Src         string          `json:"src"`
	Username    string          `json:"username"`
	Caption     string          `json:"caption"`
	Music       string          `json:"music"`
	LikeCount   int64           `json:"likeCount"`
	LikesByUser map[string]bool `json:"likesByUser"`
	Comments    []Comment       `json:"comments"`
}

type usersDoc struct {
	Users []fileUser `json:"users"`
}

type videosDoc struct {
	Videos []fileVideo `json:"videos"`
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{
		usersPath:  filepath.Join(dir, "users.json"),
		videosPath: filepath.Join(dir, "videos.json"),
	}, nil
}

func (s *FileStore) Ping(ctx context.Context) error {
	_, err := os.Stat(filepath.Dir(s.usersPath))
	return err
}

func (s *FileStore) Close() error {
	return nil
}

func loadDoc(path string, target any) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// saveDoc writes to a temp file in the same directory and renames it over
// the target, so readers never observe a half-written document.
func saveDoc(path string, doc any) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp")
	if err != nil {
		return fmt.Errorf("temp file for %s: %w", path, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func (s *FileStore) GetUser(ctx context.Context, username string) (User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()

	var doc usersDoc
	if err := loadDoc(s.usersPath, &doc); err != nil {
		return User{}, err
	}
	for _, u := range doc.Users {
		if u.Username == username {
			return userFromFile(u), nil
		}
	}
	return User{}, ErrNotFound
}

func (s *FileStore) CreateUser(ctx context.Context, user User) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	var doc usersDoc
	if err := loadDoc(s.usersPath, &doc); err != nil {
		return err
	}
	for _, u := range doc.Users {
		if u.Username == user.Username {
			return ErrConflict
		}
	}
	doc.Users = append(doc.Users, fileUser{
		Username:     user.Username,
		ID:           user.ID,
		PasswordHash: user.PasswordHash,
		Courses:      emptyIfNil(user.Courses),
		CreatedAt:    user.CreatedAt,
	})
	return saveDoc(s.usersPath, doc)
}

func (s *FileStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	var doc usersDoc
	if err := loadDoc(s.usersPath, &doc); err != nil {
		return err
	}
	for i := range doc.Users {
		if doc.Users[i].Username == username {
			doc.Users[i].PasswordHash = passwordHash
			return saveDoc(s.usersPath, doc)
		}
	}
	return ErrNotFound
}

func (s *FileStore) ListCourses(ctx context.Context, username string) ([]string, error) {
	user, err := s.GetUser(ctx, username)
	if err != nil {
		return nil, err
	}
	return emptyIfNil(user.Courses), nil
}

func (s *FileStore) AddCourse(ctx context.Context, username, name string) ([]string, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	var doc usersDoc
	if err := loadDoc(s.usersPath, &doc); err != nil {
		return nil, err
	}
	for i := range doc.Users {
		if doc.Users[i].Username != username {
			continue
		}
		for _, c := range doc.Users[i].Courses {
			if c == name {
				return emptyIfNil(doc.Users[i].Courses), nil
			}
		}
		doc.Users[i].Courses = append(doc.Users[i].Courses, name)
		if err := saveDoc(s.usersPath, doc); err != nil {
			return nil, err
		}
		return doc.Users[i].Courses, nil
	}
	return nil, ErrNotFound
}

func (s *FileStore) RemoveCourse(ctx context.Context, username, name string) ([]string, error) {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()

	var doc usersDoc
	if err := loadDoc(s.usersPath, &doc); err != nil {
		return nil, err
	}
	for i := range doc.Users {
		if doc.Users[i].Username != username {
			continue
		}
		kept := doc.Users[i].Courses[:0]
		for _, c := range doc.Users[i].Courses {
			if c != name {
				kept = append(kept, c)
			}
		}
		doc.Users[i].Courses = kept
		if err := saveDoc(s.usersPath, doc); err != nil {
			return nil, err
		}
		return emptyIfNil(doc.Users[i].Courses), nil
	}
	return nil, ErrNotFound
}

func (s *FileStore) ListVideos(ctx context.Context) ([]Video, error) {
	s.videosMu.RLock()
	defer s.videosMu.RUnlock()

	var doc videosDoc
	if err := loadDoc(s.videosPath, &doc); err != nil {
		return nil, err
	}
	videos := make([]Video, 0, len(doc.Videos))
	for _, v := range doc.Videos {
		videos = append(videos, videoFromFile(v, false))
	}
	return videos, nil
}

func (s *FileStore) GetVideo(ctx context.Context, id int64) (Video, error) {
	s.videosMu.RLock()
	defer s.videosMu.RUnlock()

	var doc videosDoc
	if err := loadDoc(s.videosPath, &doc); err != nil {
		return Video{}, err
	}
	for _, v := range doc.Videos {
		if v.ID == id {
			return videoFromFile(v, true), nil
		}
	}
	return Video{}, ErrNotFound
}

func (s *FileStore) CountVideos(ctx context.Context) (int, error) {
	s.videosMu.RLock()
	defer s.videosMu.RUnlock()

	var doc videosDoc
	if err := loadDoc(s.videosPath, &doc); err != nil {
		return 0, err
	}
	return len(doc.Videos), nil
}

func (s *FileStore) SeedVideos(ctx context.Context, videos []Video) error {
	s.videosMu.Lock()
	defer s.videosMu.Unlock()

	var doc videosDoc
	if err := loadDoc(s.videosPath, &doc); err != nil {
		return err
	}
	present := make(map[int64]bool, len(doc.Videos))
	for _, v := range doc.Videos {
		present[v.ID] = true
	}
	for _, v := range videos {
		if present[v.ID] {
			continue
		}
		doc.Videos = append(doc.Videos, fileVideo{
			ID:          v.ID,
			Src:         v.Src,
			Username:    v.Username,
			Caption:     v.Caption,
			Music:       v.Music,
			LikesByUser: map[string]bool{},
			Comments:    []Comment{},
		})
	}
	return saveDoc(s.videosPath, doc)
}

func (s *FileStore) Like(ctx context.Context, videoID int64, userID string) (int64, error) {
	s.videosMu.Lock()
	defer s.videosMu.Unlock()

	var doc videosDoc
	if err := loadDoc(s.videosPath, &doc); err != nil {
		return 0, err
	}
	for i := range doc.Videos {
		if doc.Videos[i].ID != videoID {
			continue
		}
		if doc.Videos[i].LikesByUser == nil {
			doc.Videos[i].LikesByUser = map[string]bool{}
		}
		if doc.Videos[i].LikesByUser[userID] {
			return doc.Videos[i].LikeCount, nil
		}
		doc.Videos[i].LikesByUser[userID] = true
		doc.Videos[i].LikeCount++
		if err := saveDoc(s.videosPath, doc); err != nil {
			return 0, err
		}
		return doc.Videos[i].LikeCount, nil
	}
	return 0, ErrNotFound
}

func (s *FileStore) AddComment(ctx context.Context, videoID int64, comment Comment) (Comment, error) {
	s.videosMu.Lock()
	defer s.videosMu.Unlock()

	var doc videosDoc
	if err := loadDoc(s.videosPath, &doc); err != nil {
		return Comment{}, err
	}
	for i := range doc.Videos {
		if doc.Videos[i].ID != videoID {
			continue
		}
		doc.Videos[i].Comments = append(doc.Videos[i].Comments, comment)
		if err := saveDoc(s.videosPath, doc); err != nil {
			return Comment{}, err
		}
		return comment, nil
	}
	return Comment{}, ErrNotFound
}

func userFromFile(u fileUser) User {
	return User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Courses:      emptyIfNil(u.Courses),
		CreatedAt:    u.CreatedAt,
	}
}

func videoFromFile(v fileVideo, withComments bool) Video {
	video := Video{
		ID:           v.ID,
		Src:          v.Src,
		Username:     v.Username,
		Caption:      v.Caption,
		Music:        v.Music,
		LikeCount:    v.LikeCount,
		CommentCount: int64(len(v.Comments)),
	}
	if withComments {
		video.Comments = append([]Comment{}, v.Comments...)
	}
	return video
}
