// Package mockstorage provides a testify-based mock implementation
// of the storage interfaces used by the service and auth packages.
// It is used for unit testing failure paths that the in-memory storage
// cannot produce.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/blogsbook/internal/models"
)

// StorageMock is a testify mock that implements every storage method.
type StorageMock struct {
	mock.Mock

	// OnPing, when set, replaces the testify handler for Ping.
	OnPing func(ctx context.Context) error
}

func (m *StorageMock) Ping(ctx context.Context) error {
	if m.OnPing != nil {
		return m.OnPing(ctx)
	}
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *StorageMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *StorageMock) CreateUser(ctx context.Context, usr *models.User) error {
	args := m.Called(ctx, usr)
	return args.Error(0)
}

func (m *StorageMock) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*models.User)
	return usr, args.Error(1)
}

func (m *StorageMock) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	usr, _ := args.Get(0).(*models.User)
	return usr, args.Error(1)
}

func (m *StorageMock) GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error) {
	args := m.Called(ctx, userIDs)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *StorageMock) GetAllUsers(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]models.User)
	return users, args.Error(1)
}

func (m *StorageMock) UpdateUserPassword(ctx context.Context, userID, password string) error {
	args := m.Called(ctx, userID, password)
	return args.Error(0)
}

func (m *StorageMock) DeleteUser(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *StorageMock) DeleteAllUsers(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *StorageMock) InsertAccessToken(ctx context.Context, token *models.AccessToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *StorageMock) FindAccessTokenByValue(ctx context.Context, value string) (*models.AccessToken, error) {
	args := m.Called(ctx, value)
	token, _ := args.Get(0).(*models.AccessToken)
	return token, args.Error(1)
}

func (m *StorageMock) FindAccessTokenByID(ctx context.Context, tokenID string) (*models.AccessToken, error) {
	args := m.Called(ctx, tokenID)
	token, _ := args.Get(0).(*models.AccessToken)
	return token, args.Error(1)
}

func (m *StorageMock) DeleteAccessTokensByUserIDs(ctx context.Context, userIDs []string) (int64, error) {
	args := m.Called(ctx, userIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *StorageMock) InsertBlog(ctx context.Context, blog *models.Blog) error {
	args := m.Called(ctx, blog)
	return args.Error(0)
}

func (m *StorageMock) GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error) {
	args := m.Called(ctx, blogID)
	blog, _ := args.Get(0).(*models.Blog)
	return blog, args.Error(1)
}

func (m *StorageMock) GetBlogs(ctx context.Context, authorID string) ([]models.Blog, error) {
	args := m.Called(ctx, authorID)
	blogs, _ := args.Get(0).([]models.Blog)
	return blogs, args.Error(1)
}

func (m *StorageMock) UpdateBlog(
	ctx context.Context,
	blogID,
	authorID string,
	patch models.BlogPatch,
) (*models.Blog, error) {
	args := m.Called(ctx, blogID, authorID, patch)
	blog, _ := args.Get(0).(*models.Blog)
	return blog, args.Error(1)
}

func (m *StorageMock) DeleteBlog(ctx context.Context, blogID, authorID string) error {
	args := m.Called(ctx, blogID, authorID)
	return args.Error(0)
}
