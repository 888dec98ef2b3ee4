package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wardalert/internal/types"
)

func TestPostRepository_DeleteByUser(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPostRepository(db)
	ctx := context.Background()

	db.On("Exec", ctx, `DELETE FROM posts WHERE user_id = $1`, []any{"user_1"}).
		Return(pgconn.NewCommandTag("DELETE 3"), nil)

	n, err := repo.DeleteByUser(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	db.AssertExpectations(t)
}

func TestPostRepository_DeleteByUser_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPostRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	_, err := repo.DeleteByUser(context.Background(), "user_1")
	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestPostRepository_ListExpiredVideos(t *testing.T) {
	db := new(mockDBTX)
	repo := NewPostRepository(db)

	cutoff := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	created := cutoff.Add(-2 * time.Hour)

	rows := newMockRows([][]any{
		{"p1", "road flooded", "https://proj.supabase.co/storage/v1/object/public/temp_videos/u1/a.mp4", created},
		{"p2", "", "https://proj.supabase.co/storage/v1/object/public/temp_videos/u2/b.mp4", created},
	})

	db.On("Query", mock.Anything, mock.AnythingOfType("string"), []any{MediaTypeShortVideo, cutoff}).
		Return(rows, nil)

	posts, err := repo.ListExpiredVideos(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	assert.Equal(t, "p1", posts[0].ID)
	assert.Equal(t, "road flooded", posts[0].Content)
	require.NotNil(t, posts[0].MediaURL)
	assert.Contains(t, *posts[0].MediaURL, "/temp_videos/u1/a.mp4")
	assert.Equal(t, MediaTypeShortVideo, posts[1].MediaType)
	assert.Equal(t, created, *posts[1].CreatedAt)
	assert.True(t, rows.closed)
}

func TestPostRepository_ListExpiredVideos_Errors(t *testing.T) {
	t.Run("query error", func(t *testing.T) {
		db := new(mockDBTX)
		db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
			Return(nil, errors.New("timeout"))

		_, err := NewPostRepository(db).ListExpiredVideos(context.Background(), time.Now())
		assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
	})

	t.Run("iteration error", func(t *testing.T) {
		db := new(mockDBTX)
		rows := newMockRows(nil)
		rows.errVal = errors.New("conn reset")
		db.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

		_, err := NewPostRepository(db).ListExpiredVideos(context.Background(), time.Now())
		assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
	})
}

func TestPostRepository_MarkVideoExpired(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{"p1", "text\n\n[marker]"}).
		Return(pgconn.NewCommandTag("UPDATE 1"), nil)

	err := NewPostRepository(db).MarkVideoExpired(context.Background(), "p1", "text\n\n[marker]")
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestPostRepository_MarkVideoExpired_Missing(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("UPDATE 0"), nil)

	err := NewPostRepository(db).MarkVideoExpired(context.Background(), "gone", "x")
	assert.Equal(t, types.ErrCodeNotFoundPost, types.CodeOf(err))
}

func TestProfileRepository_Delete(t *testing.T) {
	db := new(mockDBTX)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), []any{"user_1"}).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	require.NoError(t, NewProfileRepository(db).Delete(context.Background(), "user_1"))

	failing := new(mockDBTX)
	failing.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("boom"))
	err := NewProfileRepository(failing).Delete(context.Background(), "user_1")
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
}
