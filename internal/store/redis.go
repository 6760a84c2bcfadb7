package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the managed key-value table backend. Every check-then-write
// (signup uniqueness, like witness, comment append + counter bump) runs as
// a server-side Lua script so it is atomic against concurrent requests.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// Seeded videos start with like_count/comment_count at 0; the scripts below
// keep the counters in step with the witness set and the comment list.
var (
	createUserScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'id', ARGV[1], 'password_hash', ARGV[2], 'created_at', ARGV[3])
return 1
`)

	updatePasswordScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('HSET', KEYS[1], 'password_hash', ARGV[1])
return 1
`)

	addCourseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
local items = redis.call('LRANGE', KEYS[2], 0, -1)
for _, item in ipairs(items) do
	if item == ARGV[1] then
		return items
	end
end
redis.call('RPUSH', KEYS[2], ARGV[1])
return redis.call('LRANGE', KEYS[2], 0, -1)
`)

	removeCourseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
redis.call('LREM', KEYS[2], 0, ARGV[1])
return redis.call('LRANGE', KEYS[2], 0, -1)
`)

	likeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
if redis.call('SADD', KEYS[2], ARGV[1]) == 1 then
	return redis.call('HINCRBY', KEYS[1], 'like_count', 1)
end
return tonumber(redis.call('HGET', KEYS[1], 'like_count'))
`)

	addCommentScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
redis.call('RPUSH', KEYS[2], ARGV[1])
return redis.call('HINCRBY', KEYS[1], 'comment_count', 1)
`)
)

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{client: client, prefix: "clipstream:"}, nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "clipstream:"}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) userKey(username string) string    { return s.prefix + "user:" + username }
func (s *RedisStore) coursesKey(username string) string { return s.prefix + "courses:" + username }
func (s *RedisStore) videoKey(id int64) string          { return s.prefix + "video:" + strconv.FormatInt(id, 10) }
func (s *RedisStore) likesKey(id int64) string          { return s.prefix + "likes:" + strconv.FormatInt(id, 10) }
func (s *RedisStore) commentsKey(id int64) string       { return s.prefix + "comments:" + strconv.FormatInt(id, 10) }
func (s *RedisStore) videosKey() string                 { return s.prefix + "videos" }

func (s *RedisStore) GetUser(ctx context.Context, username string) (User, error) {
	fields, err := s.client.HGetAll(ctx, s.userKey(username)).Result()
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	if len(fields) == 0 {
		return User{}, ErrNotFound
	}
	courses, err := s.client.LRange(ctx, s.coursesKey(username), 0, -1).Result()
	if err != nil {
		return User{}, fmt.Errorf("get user courses: %w", err)
	}
	user := User{
		ID:           fields["id"],
		Username:     username,
		PasswordHash: fields["password_hash"],
		Courses:      courses,
	}
	if raw := fields["created_at"]; raw != "" {
		user.CreatedAt, _ = time.Parse(time.RFC3339Nano, raw)
	}
	return user, nil
}

func (s *RedisStore) CreateUser(ctx context.Context, user User) error {
	created, err := createUserScript.Run(ctx, s.client,
		[]string{s.userKey(user.Username)},
		user.ID, user.PasswordHash, user.CreatedAt.Format(time.RFC3339Nano),
	).Int64()
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if created == 0 {
		return ErrConflict
	}
	if len(user.Courses) > 0 {
		values := make([]interface{}, len(user.Courses))
		for i, c := range user.Courses {
			values[i] = c
		}
		if err := s.client.RPush(ctx, s.coursesKey(user.Username), values...).Err(); err != nil {
			return fmt.Errorf("store courses: %w", err)
		}
	}
	return nil
}

func (s *RedisStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	updated, err := updatePasswordScript.Run(ctx, s.client,
		[]string{s.userKey(username)}, passwordHash,
	).Int64()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) ListCourses(ctx context.Context, username string) ([]string, error) {
	exists, err := s.client.Exists(ctx, s.userKey(username)).Result()
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if exists == 0 {
		return nil, ErrNotFound
	}
	courses, err := s.client.LRange(ctx, s.coursesKey(username), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

func (s *RedisStore) AddCourse(ctx context.Context, username, name string) ([]string, error) {
	result, err := addCourseScript.Run(ctx, s.client,
		[]string{s.userKey(username), s.coursesKey(username)}, name,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("add course: %w", err)
	}
	return coursesFromScript(result)
}

func (s *RedisStore) RemoveCourse(ctx context.Context, username, name string) ([]string, error) {
	result, err := removeCourseScript.Run(ctx, s.client,
		[]string{s.userKey(username), s.coursesKey(username)}, name,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("remove course: %w", err)
	}
	return coursesFromScript(result)
}

func coursesFromScript(result interface{}) ([]string, error) {
	switch value := result.(type) {
	case int64:
		// the scripts signal a missing user with -1
		return nil, ErrNotFound
	case []interface{}:
		courses := make([]string, 0, len(value))
		for _, item := range value {
			text, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected course entry %T", item)
			}
			courses = append(courses, text)
		}
		return courses, nil
	default:
		return nil, fmt.Errorf("unexpected script result %T", result)
	}
}

func (s *RedisStore) ListVideos(ctx context.Context) ([]Video, error) {
	ids, err := s.client.ZRange(ctx, s.videosKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	videos := make([]Video, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad video id %q: %w", raw, err)
		}
		video, err := s.loadVideo(ctx, id, false)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}
	return videos, nil
}

func (s *RedisStore) GetVideo(ctx context.Context, id int64) (Video, error) {
	return s.loadVideo(ctx, id, true)
}

func (s *RedisStore) loadVideo(ctx context.Context, id int64, withComments bool) (Video, error) {
	fields, err := s.client.HGetAll(ctx, s.videoKey(id)).Result()
	if err != nil {
		return Video{}, fmt.Errorf("get video: %w", err)
	}
	if len(fields) == 0 {
		return Video{}, ErrNotFound
	}

	video := Video{
		ID:       id,
		Src:      fields["src"],
		Username: fields["username"],
		Caption:  fields["caption"],
		Music:    fields["music"],
	}
	video.LikeCount, _ = strconv.ParseInt(fields["like_count"], 10, 64)
	video.CommentCount, _ = strconv.ParseInt(fields["comment_count"], 10, 64)

	if withComments {
		entries, err := s.client.LRange(ctx, s.commentsKey(id), 0, -1).Result()
		if err != nil {
			return Video{}, fmt.Errorf("list comments: %w", err)
		}
		for _, entry := range entries {
			var c Comment
			if err := json.Unmarshal([]byte(entry), &c); err != nil {
				return Video{}, fmt.Errorf("decode comment: %w", err)
			}
			video.Comments = append(video.Comments, c)
		}
	}
	return video, nil
}

func (s *RedisStore) CountVideos(ctx context.Context) (int, error) {
	count, err := s.client.ZCard(ctx, s.videosKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return int(count), nil
}

func (s *RedisStore) SeedVideos(ctx context.Context, videos []Video) error {
	pipe := s.client.TxPipeline()
	for _, v := range videos {
		pipe.ZAdd(ctx, s.videosKey(), redis.Z{Score: float64(v.ID), Member: strconv.FormatInt(v.ID, 10)})
		pipe.HSet(ctx, s.videoKey(v.ID),
			"src", v.Src,
			"username", v.Username,
			"caption", v.Caption,
			"music", v.Music,
			"like_count", "0",
			"comment_count", "0",
		)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("seed videos: %w", err)
	}
	return nil
}

func (s *RedisStore) Like(ctx context.Context, videoID int64, userID string) (int64, error) {
	count, err := likeScript.Run(ctx, s.client,
		[]string{s.videoKey(videoID), s.likesKey(videoID)}, userID,
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("like video: %w", err)
	}
	if count < 0 {
		return 0, ErrNotFound
	}
	return count, nil
}

func (s *RedisStore) AddComment(ctx context.Context, videoID int64, comment Comment) (Comment, error) {
	payload, err := json.Marshal(comment)
	if err != nil {
		return Comment{}, fmt.Errorf("encode comment: %w", err)
	}
	count, err := addCommentScript.Run(ctx, s.client,
		[]string{s.videoKey(videoID), s.commentsKey(videoID)}, string(payload),
	).Int64()
	if err != nil {
		return Comment{}, fmt.Errorf("add comment: %w", err)
	}
	if count < 0 {
		return Comment{}, ErrNotFound
	}
	return comment, nil
}
