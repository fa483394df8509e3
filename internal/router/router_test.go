package router

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/blogsbook/internal/auth"
	"github.com/patric-chuzhbe/blogsbook/internal/db/memorystorage"
	"github.com/patric-chuzhbe/blogsbook/internal/ipchecker"
	"github.com/patric-chuzhbe/blogsbook/internal/mockstorage"
	"github.com/patric-chuzhbe/blogsbook/internal/models"
	servicepkg "github.com/patric-chuzhbe/blogsbook/internal/service"
	"github.com/patric-chuzhbe/blogsbook/internal/tokensweeper"
)

type storage interface {
	Ping(ctx context.Context) error
	CreateUser(ctx context.Context, usr *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	InsertAccessToken(ctx context.Context, token *models.AccessToken) error
	FindAccessTokenByValue(ctx context.Context, value string) (*models.AccessToken, error)
	FindAccessTokenByID(ctx context.Context, tokenID string) (*models.AccessToken, error)
	GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error)
	GetAllUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, userID string) error
	DeleteAllUsers(ctx context.Context) error
	DeleteAccessTokensByUserIDs(ctx context.Context, userIDs []string) (int64, error)
	InsertBlog(ctx context.Context, blog *models.Blog) error
	GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error)
	GetBlogs(ctx context.Context, authorID string) ([]models.Blog, error)
	UpdateBlog(ctx context.Context, blogID, authorID string, patch models.BlogPatch) (*models.Blog, error)
	DeleteBlog(ctx context.Context, blogID, authorID string) error
}

type testServer struct {
	*httptest.Server
	client *resty.Client
}

func newTestServer(t *testing.T, db storage, policy string) *testServer {
	t.Helper()

	secrets, err := auth.NewSecretResolver(policy, db, db)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	sweeper := tokensweeper.New(db, 16, 1<<30)
	sweeper.Run(ctx)

	checker, err := ipchecker.New("127.0.0.0/8")
	require.NoError(t, err)

	svc := servicepkg.New(
		db,
		auth.NewIssuer(db, db, secrets),
		auth.NewGuard(auth.NewVerifier(secrets)),
		sweeper,
	)
	srv := httptest.NewServer(New(svc, checker))
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-sweeper.Done()
	})

	return &testServer{
		Server: srv,
		client: resty.New().SetBaseURL(srv.URL),
	}
}

func newMemoryServer(t *testing.T, policy string) *testServer {
	t.Helper()
	theStorage, err := memorystorage.New()
	require.NoError(t, err)

	return newTestServer(t, theStorage, policy)
}

func (s *testServer) register(t *testing.T, username string) (string, string) {
	t.Helper()

	var usr models.RegisteredUser
	resp, err := s.client.R().
		SetBody(models.NewUserRequest{Username: username, Password: username + "-pass", Email: username + "@example.com"}).
		SetResult(&usr).
		Post("/users")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())

	var accessToken models.AccessToken
	resp, err = s.client.R().
		SetBody(models.CreateAccessTokenRequest{Username: username, Password: username + "-pass"}).
		SetResult(&accessToken).
		Post("/auth/authorize")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())

	var bearer models.BearerToken
	resp, err = s.client.R().
		SetBody(models.CreateBearerTokenRequest{
			Username:    username,
			Password:    username + "-pass",
			AccessToken: accessToken.Token,
		}).
		SetResult(&bearer).
		Post("/auth/token")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())
	require.Equal(t, models.TokenTypeBearer, bearer.Type)

	return usr.ID, bearer.Token
}

func (s *testServer) createBlog(t *testing.T, token, authorID string) models.Blog {
	t.Helper()

	var blog models.Blog
	resp, err := s.client.R().
		SetAuthToken(token).
		SetBody(models.NewBlogRequest{Title: "title", Content: "content", AuthorID: authorID}).
		SetResult(&blog).
		Post("/blogs")
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode(), resp.String())

	return blog
}

func TestGetRoot(t *testing.T) {
	srv := newMemoryServer(t, auth.PolicyAccessToken)

	var status models.StatusResponse
	resp, err := srv.client.R().SetResult(&status).Get("/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, "working", status.Status)
}

func TestAuthorizeUnknownUser(t *testing.T) {
	srv := newMemoryServer(t, auth.PolicyAccessToken)

	var body models.ErrorResponse
	resp, err := srv.client.R().
		SetBody(models.CreateAccessTokenRequest{Username: "thatuser", Password: "whatever"}).
		SetError(&body).
		Post("/auth/authorize")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
	assert.Equal(t, "No user with the provided username exists", body.Error.Message)
	assert.Equal(t, []string{"thatuser"}, body.Error.Values)
}

func TestAuthorizeWrongPassword(t *testing.T) {
	srv := newMemoryServer(t, auth.PolicyAccessToken)
	srv.register(t, "alice")

	resp, err := srv.client.R().
		SetBody(models.CreateAccessTokenRequest{Username: "alice", Password: "wrong"}).
		Post("/auth/authorize")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func TestRequestValidation(t *testing.T) {
	srv := newMemoryServer(t, auth.PolicyAccessToken)

	tests := []struct {
		name string
		path string
		body string
	}{
		{name: "malformed json", path: "/users", body: `{"username":`},
		{name: "empty body", path: "/auth/authorize", body: ``},
		{name: "missing email", path: "/users", body: `{"username":"a","password":"b"}`},
		{name: "bad email", path: "/users", body: `{"username":"a","password":"b","email":"nope"}`},
		{name: "missing blog title", path: "/blogs", body: `{"content":"c","authorId":"u1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := srv.client.R().
				SetHeader("Content-Type", "application/json").
				SetBody(tt.body).
				Post(tt.path)
			require.NoError(t, err)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode(), resp.String())
		})
	}
}

func TestDuplicateUsername(t *testing.T) {
	srv := newMemoryServer(t, auth.PolicyAccessToken)
	srv.register(t, "alice")

	resp, err := srv.client.R().
		SetBody(models.NewUserRequest{Username: "alice", Password: "p", Email: "other@example.com"}).
		Post("/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode())
}

func TestCreateBlogWithoutBearer(t *testing.T) {
	srv := newMemoryServer(t, auth.PolicyAccessToken)
	aliceID, _ := srv.register(t, "alice")

	var body models.ErrorResponse
	resp, err := srv.client.R().
		SetBody(models.NewBlogRequest{Title: "t", Content: "c", AuthorID: aliceID}).
		SetError(&body).
		Post("/blogs")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
	assert.Equal(t, "Please provide bearer token for authorization", body.Error.Message)
}

func TestBlogCRUD(t *testing.T) {
	for _, policy := range []string{auth.PolicyPassword, auth.PolicyAccessToken} {
		t.Run(policy, func(t *testing.T) {
			srv := newMemoryServer(t, policy)
			aliceID, aliceToken := srv.register(t, "alice")
			blog := srv.createBlog(t, aliceToken, aliceID)

			var fetched models.Blog
			resp, err := srv.client.R().SetResult(&fetched).Get("/blogs/" + blog.ID)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode())
			assert.Equal(t, blog, fetched)

			var updated models.Blog
			resp, err = srv.client.R().
				SetAuthToken(aliceToken).
				SetQueryParam("authorId", aliceID).
				SetBody(map[string]string{"content": "edited"}).
				SetResult(&updated).
				Patch("/blogs/" + blog.ID)
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode(), resp.String())
			assert.Equal(t, "edited", updated.Content)
			assert.Equal(t, blog.Title, updated.Title)

			var list []models.Blog
			resp, err = srv.client.R().SetQueryParam("authorId", aliceID).SetResult(&list).Get("/blogs")
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode())
			assert.Len(t, list, 1)

			resp, err = srv.client.R().SetAuthToken(aliceToken).Delete("/blogs/" + blog.ID)
			require.NoError(t, err)
			assert.Equal(t, http.StatusNoContent, resp.StatusCode())

			var body models.ErrorResponse
			resp, err = srv.client.R().SetAuthToken(aliceToken).SetError(&body).Delete("/blogs/" + blog.ID)
			require.NoError(t, err)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode())
			assert.Equal(t, "The blog to delete does not exist", body.Error.Message)
		})
	}
}

func TestPatchBlogOfAnotherAuthor(t *testing.T) {
	srv := newMemoryServer(t, auth.PolicyAccessToken)
	aliceID, aliceToken := srv.register(t, "alice")
	bobID, bobToken := srv.register(t, "bob")
	blog := srv.createBlog(t, bobToken, bobID)

	resp, err := srv.client.R().
		SetAuthToken(aliceToken).
		SetQueryParam("authorId", bobID).
		SetBody(map[string]string{"title": "hijacked"}).
		Patch("/blogs/" + blog.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())

	resp, err = srv.client.R().
		SetAuthToken(aliceToken).
		SetQueryParam("authorId", aliceID).
		SetBody(map[string]string{"title": "hijacked"}).
		Patch("/blogs/" + blog.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())

	var fetched models.Blog
	_, err = srv.client.R().SetResult(&fetched).Get("/blogs/" + blog.ID)
	require.NoError(t, err)
	assert.Equal(t, "title", fetched.Title)
}

func TestDeleteBlogOfAnotherAuthor(t *testing.T) {
	srv := newMemoryServer(t, auth.PolicyPassword)
	_, aliceToken := srv.register(t, "alice")
	bobID, bobToken := srv.register(t, "bob")
	blog := srv.createBlog(t, bobToken, bobID)

	resp, err := srv.client.R().SetAuthToken(aliceToken).Delete("/blogs/" + blog.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())

	resp, err = srv.client.R().Get("/blogs/" + blog.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
}

func TestUsersEndpoints(t *testing.T) {
	srv := newMemoryServer(t, auth.PolicyAccessToken)
	aliceID, aliceToken := srv.register(t, "alice")
	bobID, _ := srv.register(t, "bob")

	var usr models.PublicUser
	resp, err := srv.client.R().SetResult(&usr).Get("/users/" + aliceID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Equal(t, models.PublicUser{ID: aliceID, Username: "alice"}, usr)
	assert.NotContains(t, resp.String(), "password")

	var users []models.PublicUser
	resp, err = srv.client.R().
		SetQueryParam("ids", fmt.Sprintf("%s, %s,missing", aliceID, bobID)).
		SetResult(&users).
		Get("/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Len(t, users, 2)

	resp, err = srv.client.R().Get("/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())

	resp, err = srv.client.R().SetAuthToken(aliceToken).Delete("/users/" + bobID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())

	resp, err = srv.client.R().SetAuthToken(aliceToken).Delete("/users/" + aliceID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())

	resp, err = srv.client.R().Get("/users/" + aliceID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode())
}

func TestDeletedUserTokenIsRejected(t *testing.T) {
	for _, policy := range []string{auth.PolicyPassword, auth.PolicyAccessToken} {
		t.Run(policy, func(t *testing.T) {
			srv := newMemoryServer(t, policy)
			aliceID, aliceToken := srv.register(t, "alice")

			resp, err := srv.client.R().SetAuthToken(aliceToken).Delete("/users/" + aliceID)
			require.NoError(t, err)
			require.Equal(t, http.StatusNoContent, resp.StatusCode())

			var body models.ErrorResponse
			resp, err = srv.client.R().SetAuthToken(aliceToken).SetError(&body).Delete("/users/" + aliceID)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())
			assert.Equal(t, "The provided bearer token has been expired, please re-authorize", body.Error.Message)

			resp, err = srv.client.R().
				SetAuthToken(aliceToken).
				SetBody(models.NewBlogRequest{Title: "title", Content: "content", AuthorID: aliceID}).
				Post("/blogs")
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())

			var blogs []models.Blog
			resp, err = srv.client.R().SetQueryParam("authorId", aliceID).SetResult(&blogs).Get("/blogs")
			require.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode())
			assert.Empty(t, blogs)
		})
	}
}

func TestAdminEndpoints(t *testing.T) {
	srv := newMemoryServer(t, auth.PolicyAccessToken)
	srv.register(t, "alice")
	srv.register(t, "bob")

	resp, err := srv.client.R().SetHeader("X-Real-IP", "203.0.113.7").Get("/users/all")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode())

	var users []models.PublicUser
	resp, err = srv.client.R().SetResult(&users).Get("/users/all")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Len(t, users, 2)

	resp, err = srv.client.R().Delete("/users/all")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode())

	resp, err = srv.client.R().SetResult(&users).Get("/users/all")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())
	assert.Empty(t, users)
}

func TestConcurrentAuthorize(t *testing.T) {
	srv := newMemoryServer(t, auth.PolicyAccessToken)
	aliceID, _ := srv.register(t, "alice")

	const parallel = 2
	tokens := make([]models.AccessToken, parallel)
	var wg sync.WaitGroup
	for i := 0; i < parallel; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := srv.client.R().
				SetBody(models.CreateAccessTokenRequest{Username: "alice", Password: "alice-pass"}).
				SetResult(&tokens[i]).
				Post("/auth/authorize")
			assert.NoError(t, err)
			assert.Equal(t, http.StatusCreated, resp.StatusCode())
		}(i)
	}
	wg.Wait()

	assert.NotEqual(t, tokens[0].Token, tokens[1].Token)

	for _, accessToken := range tokens {
		var bearer models.BearerToken
		resp, err := srv.client.R().
			SetBody(models.CreateBearerTokenRequest{Username: "alice", AccessToken: accessToken.Token}).
			SetResult(&bearer).
			Post("/auth/token")
		require.NoError(t, err)
		require.Equal(t, http.StatusCreated, resp.StatusCode())

		srv.createBlog(t, bearer.Token, aliceID)
	}
}

func TestGzip(t *testing.T) {
	srv := newMemoryServer(t, auth.PolicyAccessToken)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"username":"alice","password":"p","email":"alice@example.com"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var usr models.RegisteredUser
	resp, err := srv.client.R().
		SetHeader("Content-Type", "application/json").
		SetHeader("Content-Encoding", "gzip").
		SetHeader("Accept-Encoding", "gzip").
		SetBody(buf.Bytes()).
		SetResult(&usr).
		Post("/users")
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, resp.StatusCode())
	assert.Equal(t, "alice", usr.Username)
}

func TestPing(t *testing.T) {
	storageMock := &mockstorage.StorageMock{}
	storageMock.On("Ping", mock.Anything).Return(nil).Once()
	storageMock.On("Ping", mock.Anything).Return(errors.New("db down")).Once()
	storageMock.On("DeleteAccessTokensByUserIDs", mock.Anything, mock.Anything).Return(int64(0), nil).Maybe()

	srv := newTestServer(t, storageMock, auth.PolicyPassword)

	resp, err := srv.client.R().Get("/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode())

	resp, err = srv.client.R().Get("/ping")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	storageMock.AssertExpectations(t)
}

func TestStorageFailureIsInternalError(t *testing.T) {
	storageMock := &mockstorage.StorageMock{}
	storageMock.On("GetBlogs", mock.Anything, "").Return(nil, errors.New("db down"))

	srv := newTestServer(t, storageMock, auth.PolicyPassword)

	var body models.ErrorResponse
	resp, err := srv.client.R().SetError(&body).Get("/blogs")
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode())
	assert.Equal(t, "internal server error", body.Error.Message)
}
