package account

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"wardalert/internal/types"
)

type mockAuth struct{ mock.Mock }

func (m *mockAuth) GetUser(ctx context.Context, token string) (*types.AuthUser, error) {
	args := m.Called(ctx, token)
	u, _ := args.Get(0).(*types.AuthUser)
	return u, args.Error(1)
}

func (m *mockAuth) DeleteUser(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockPosts struct{ mock.Mock }

func (m *mockPosts) DeleteByUser(ctx context.Context, id string) (int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Error(1)
}

type mockProfiles struct{ mock.Mock }

func (m *mockProfiles) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func TestAuthenticate(t *testing.T) {
	auth := &mockAuth{}
	auth.On("GetUser", mock.Anything, "jwt").Return(&types.AuthUser{ID: "u-1"}, nil)

	id, err := NewService(auth, &mockPosts{}, &mockProfiles{}, nil).Authenticate(context.Background(), "jwt")
	require.NoError(t, err)
	assert.Equal(t, "u-1", id)
}

func TestAuthenticate_Rejected(t *testing.T) {
	auth := &mockAuth{}
	auth.On("GetUser", mock.Anything, "bad").
		Return(nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "auth user lookup failed (401)", nil))

	_, err := NewService(auth, &mockPosts{}, &mockProfiles{}, nil).Authenticate(context.Background(), "bad")
	assert.Equal(t, types.ErrCodeAuthTokenInvalid, types.CodeOf(err))
}

func TestDeleteAccount_CascadeOrder(t *testing.T) {
	auth, posts, profiles := &mockAuth{}, &mockPosts{}, &mockProfiles{}
	var order []string

	posts.On("DeleteByUser", mock.Anything, "u-1").Return(int64(4), nil).
		Run(func(mock.Arguments) { order = append(order, "posts") })
	profiles.On("Delete", mock.Anything, "u-1").Return(nil).
		Run(func(mock.Arguments) { order = append(order, "profile") })
	auth.On("DeleteUser", mock.Anything, "u-1").Return(nil).
		Run(func(mock.Arguments) { order = append(order, "auth") })

	err := NewService(auth, posts, profiles, nil).DeleteAccount(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"posts", "profile", "auth"}, order)
}

func TestDeleteAccount_StopsOnFailure(t *testing.T) {
	auth, posts, profiles := &mockAuth{}, &mockPosts{}, &mockProfiles{}

	posts.On("DeleteByUser", mock.Anything, "u-1").Return(int64(0), nil)
	profiles.On("Delete", mock.Anything, "u-1").
		Return(types.NewAppError(types.ErrCodeInternalDB, "failed to delete profile", nil))

	err := NewService(auth, posts, profiles, nil).DeleteAccount(context.Background(), "u-1")
	assert.Equal(t, types.ErrCodeInternalDB, types.CodeOf(err))
	auth.AssertNotCalled(t, "DeleteUser", mock.Anything, mock.Anything)
}

func TestDeleteAccount_AuthDeleteFailure(t *testing.T) {
	auth, posts, profiles := &mockAuth{}, &mockPosts{}, &mockProfiles{}

	posts.On("DeleteByUser", mock.Anything, mock.Anything).Return(int64(1), nil)
	profiles.On("Delete", mock.Anything, mock.Anything).Return(nil)
	auth.On("DeleteUser", mock.Anything, "u-1").
		Return(types.NewAppError(types.ErrCodeUpstreamAuth, "auth user delete failed (500)", nil))

	err := NewService(auth, posts, profiles, nil).DeleteAccount(context.Background(), "u-1")
	assert.Equal(t, types.ErrCodeUpstreamAuth, types.CodeOf(err))
}
