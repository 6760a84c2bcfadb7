package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresStore is the relational backend. All conditional updates lean on
// single statements (ON CONFLICT, CTEs) so the check and the write cannot
// be separated by a concurrent request.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetUser(ctx context.Context, username string) (User, error) {
	const query = `SELECT username, id, password_hash, courses, created_at FROM users WHERE username=$1`
	var (
		user    User
		courses []byte
	)
	err := s.db.QueryRowContext(ctx, query, username).Scan(&user.Username, &user.ID, &user.PasswordHash, &courses, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	if err := json.Unmarshal(courses, &user.Courses); err != nil {
		return User{}, fmt.Errorf("decode courses: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	courses, err := json.Marshal(emptyIfNil(user.Courses))
	if err != nil {
		return fmt.Errorf("encode courses: %w", err)
	}
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, id, password_hash, courses, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (username) DO NOTHING
	`, user.Username, user.ID, user.PasswordHash, courses, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if inserted == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash=$2 WHERE username=$1`, username, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	updated, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if updated == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListCourses(ctx context.Context, username string) ([]string, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT courses FROM users WHERE username=$1`, username).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return decodeCourses(raw)
}

func (s *PostgresStore) AddCourse(ctx context.Context, username, name string) ([]string, error) {
	const query = `
		UPDATE users
		SET courses = CASE WHEN courses ? $2 THEN courses ELSE courses || to_jsonb($2::text) END
		WHERE username = $1
		RETURNING courses
	`
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, username, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("add course: %w", err)
	}
	return decodeCourses(raw)
}

func (s *PostgresStore) RemoveCourse(ctx context.Context, username, name string) ([]string, error) {
	const query = `
		UPDATE users
		SET courses = courses - $2
		WHERE username = $1
		RETURNING courses
	`
	var raw []byte
	err := s.db.QueryRowContext(ctx, query, username, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("remove course: %w", err)
	}
	return decodeCourses(raw)
}

func (s *PostgresStore) ListVideos(ctx context.Context) ([]Video, error) {
	const query = `
		SELECT v.id, v.src, v.username, v.caption, v.music, v.like_count,
			(SELECT COUNT(*) FROM video_comments c WHERE c.video_id = v.id)
		FROM videos v
		ORDER BY v.id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		var v Video
		if err := rows.Scan(&v.ID, &v.Src, &v.Username, &v.Caption, &v.Music, &v.LikeCount, &v.CommentCount); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (s *PostgresStore) GetVideo(ctx context.Context, id int64) (Video, error) {
	const query = `
		SELECT v.id, v.src, v.username, v.caption, v.music, v.like_count,
			(SELECT COUNT(*) FROM video_comments c WHERE c.video_id = v.id)
		FROM videos v
		WHERE v.id = $1
	`
	var v Video
	err := s.db.QueryRowContext(ctx, query, id).Scan(&v.ID, &v.Src, &v.Username, &v.Caption, &v.Music, &v.LikeCount, &v.CommentCount)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, ErrNotFound
	}
	if err != nil {
		return Video{}, fmt.Errorf("get video: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author, body, created_at
		FROM video_comments
		WHERE video_id = $1
		ORDER BY seq
	`, id)
	if err != nil {
		return Video{}, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.User, &c.Text, &c.At); err != nil {
			return Video{}, fmt.Errorf("scan comment: %w", err)
		}
		v.Comments = append(v.Comments, c)
	}
	return v, rows.Err()
}

func (s *PostgresStore) CountVideos(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count videos: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SeedVideos(ctx context.Context, videos []Video) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	for _, v := range videos {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO videos (id, src, username, caption, music, like_count)
			VALUES ($1, $2, $3, $4, $5, 0)
			ON CONFLICT (id) DO NOTHING
		`, v.ID, v.Src, v.Username, v.Caption, v.Music); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("seed video %d: %w", v.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}

// Like inserts the witness row and bumps the counter in one statement. The
// conditional insert contributes 0 or 1 to the increment, so a repeat like
// by the same user leaves like_count untouched.
func (s *PostgresStore) Like(ctx context.Context, videoID int64, userID string) (int64, error) {
	const query = `
		WITH ins AS (
			INSERT INTO video_likes (video_id, user_id)
			SELECT v.id, $2 FROM videos v WHERE v.id = $1
			ON CONFLICT (video_id, user_id) DO NOTHING
			RETURNING 1
		)
		UPDATE videos
		SET like_count = like_count + (SELECT COUNT(*) FROM ins)
		WHERE id = $1
		RETURNING like_count
	`
	var count int64
	err := s.db.QueryRowContext(ctx, query, videoID, userID).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("like video: %w", err)
	}
	return count, nil
}

// AddComment relies on the SELECT-driven insert to reject unknown videos;
// comment_count is derived from the table, so there is no counter to keep
// in step.
func (s *PostgresStore) AddComment(ctx context.Context, videoID int64, comment Comment) (Comment, error) {
	const query = `
		INSERT INTO video_comments (id, video_id, author, body, created_at)
		SELECT $1, v.id, $3, $4, $5 FROM videos v WHERE v.id = $2
		RETURNING id
	`
	var id string
	err := s.db.QueryRowContext(ctx, query, comment.ID, videoID, comment.User, comment.Text, comment.At).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	if err != nil {
		return Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	return comment, nil
}

func decodeCourses(raw []byte) ([]string, error) {
	var courses []string
	if err := json.Unmarshal(raw, &courses); err != nil {
		return nil, fmt.Errorf("decode courses: %w", err)
	}
	if courses == nil {
		courses = []string{}
	}
	return courses, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
