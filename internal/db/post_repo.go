package db

import (
	"context"
	"time"

	"wardalert/internal/types"
)

// MediaTypeShortVideo marks posts whose attachment lives in the temporary
// video bucket.
const MediaTypeShortVideo = "video_10s"

// PostRepository reads and updates rows in the posts table.
type PostRepository struct {
	db DBTX
}

// NewPostRepository creates a new PostRepository backed by the given database connection.
func NewPostRepository(db DBTX) *PostRepository {
	return &PostRepository{db: db}
}

// DeleteByUser removes every post authored by userID and returns the count.
func (r *PostRepository) DeleteByUser(ctx context.Context, userID string) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM posts WHERE user_id = $1`, userID)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to delete posts for user", err)
	}
	return tag.RowsAffected(), nil
}

// ListExpiredVideos returns short-video posts created at or before cutoff
// that still reference a stored object.
func (r *PostRepository) ListExpiredVideos(ctx context.Context, cutoff time.Time) ([]types.Post, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, COALESCE(content, ''), media_url, created_at
		FROM posts
		WHERE media_type = $1
		  AND created_at <= $2
		  AND media_url IS NOT NULL
		ORDER BY created_at`,
		MediaTypeShortVideo, cutoff,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to query expired videos", err)
	}
	defer rows.Close()

	var posts []types.Post
	for rows.Next() {
		var (
			p         types.Post
			mediaURL  *string
			createdAt time.Time
		)
		if err := rows.Scan(&p.ID, &p.Content, &mediaURL, &createdAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan expired video row", err)
		}
		p.MediaType = MediaTypeShortVideo
		p.MediaURL = mediaURL
		p.CreatedAt = &createdAt
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "error iterating expired videos", err)
	}
	return posts, nil
}

// MarkVideoExpired clears media_url and replaces content in one statement.
func (r *PostRepository) MarkVideoExpired(ctx context.Context, postID, content string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE posts SET media_url = NULL, content = $2 WHERE id = $1`,
		postID, content,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark video expired", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundPost, "post no longer exists", nil).
			WithDetails(map[string]any{"post_id": postID})
	}
	return nil
}
