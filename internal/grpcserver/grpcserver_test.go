package grpcserver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/patric-chuzhbe/blogsbook/internal/auth"
	"github.com/patric-chuzhbe/blogsbook/internal/db/memorystorage"
	"github.com/patric-chuzhbe/blogsbook/internal/logger"
	"github.com/patric-chuzhbe/blogsbook/internal/mockstorage"
	"github.com/patric-chuzhbe/blogsbook/internal/models"
	"github.com/patric-chuzhbe/blogsbook/internal/service"
)

type testStorage interface {
	CreateUser(ctx context.Context, usr *models.User) error
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error)
	GetAllUsers(ctx context.Context) ([]models.User, error)
	DeleteUser(ctx context.Context, userID string) error
	DeleteAllUsers(ctx context.Context) error
	InsertAccessToken(ctx context.Context, token *models.AccessToken) error
	FindAccessTokenByValue(ctx context.Context, token string) (*models.AccessToken, error)
	FindAccessTokenByID(ctx context.Context, tokenID string) (*models.AccessToken, error)
	InsertBlog(ctx context.Context, blog *models.Blog) error
	GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error)
	GetBlogs(ctx context.Context, authorID string) ([]models.Blog, error)
	UpdateBlog(ctx context.Context, blogID, authorID string, patch models.BlogPatch) (*models.Blog, error)
	DeleteBlog(ctx context.Context, blogID, authorID string) error
	Ping(ctx context.Context) error
}

type noopSweeper struct{}

func (noopSweeper) EnqueueJob(*models.AccessTokensPurgeJob) {}

const (
	addr        = "localhost:0"
	dialTimeout = 5 * time.Second
)

// startTestGRPCServer boots up a test gRPC server and returns the client and shutdown function.
func startTestGRPCServer(t *testing.T, db testStorage) (*AuthServiceClient, func()) {
	require.NoError(t, logger.Init("debug"))

	if db == nil {
		theStorage, err := memorystorage.New()
		require.NoError(t, err)
		db = theStorage
	}

	secrets, err := auth.NewSecretResolver(auth.PolicyAccessToken, db, db)
	require.NoError(t, err)

	s := service.New(
		db,
		auth.NewIssuer(db, db, secrets),
		auth.NewGuard(auth.NewVerifier(secrets)),
		noopSweeper{},
	)

	server, lis, err := NewGRPCServer(addr, NewAuthHandler(s))
	require.NoError(t, err)

	go func() {
		if err := server.Serve(lis); err != nil {
			t.Logf("gRPC server stopped: %v", err)
		}
	}()

	dialContext, cancelDial := context.WithTimeout(context.Background(), dialTimeout)
	defer cancelDial()

	conn, err := grpc.DialContext(
		dialContext,
		lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	require.NoError(t, err)

	return NewAuthServiceClient(conn),
		func() {
			server.Stop()
			conn.Close()
			lis.Close()
		}
}

func newRequest(t *testing.T, fields map[string]interface{}) *structpb.Struct {
	req, err := structpb.NewStruct(fields)
	require.NoError(t, err)

	return req
}

func assertCode(t *testing.T, err error, want codes.Code) {
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, want, st.Code())
}

// register creates the user directly in the storage and returns its id.
func register(t *testing.T, db testStorage, username, password string) string {
	usr := &models.User{
		ID:       username + "-id",
		Username: username,
		Password: password,
		Email:    username + "@example.com",
	}
	require.NoError(t, db.CreateUser(context.Background(), usr))

	return usr.ID
}

func issueBearer(t *testing.T, client *AuthServiceClient, username, password string) string {
	ctx := context.Background()

	accessToken, err := client.IssueAccessToken(ctx, newRequest(t, map[string]interface{}{
		"username": username,
		"password": password,
	}))
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeAccess, accessToken.GetFields()["type"].GetStringValue())

	bearer, err := client.IssueBearerToken(ctx, newRequest(t, map[string]interface{}{
		"username":    username,
		"accessToken": accessToken.GetFields()["token"].GetStringValue(),
	}))
	require.NoError(t, err)
	assert.Equal(t, models.TokenTypeBearer, bearer.GetFields()["type"].GetStringValue())

	return bearer.GetFields()["token"].GetStringValue()
}

func TestIssueAndVerify(t *testing.T) {
	db, err := memorystorage.New()
	require.NoError(t, err)
	client, shutdown := startTestGRPCServer(t, db)
	defer shutdown()

	aliceID := register(t, db, "alice", "secret")
	bobID := register(t, db, "bob", "secret")
	token := issueBearer(t, client, "alice", "secret")

	resp, err := client.VerifyBearerToken(context.Background(), newRequest(t, map[string]interface{}{
		"token":  token,
		"userId": aliceID,
	}))
	require.NoError(t, err)
	assert.Equal(t, aliceID, resp.GetFields()["userId"].GetStringValue())

	_, err = client.VerifyBearerToken(context.Background(), newRequest(t, map[string]interface{}{
		"token":  token,
		"userId": bobID,
	}))
	assertCode(t, err, codes.Unauthenticated)
}

func TestIssueAccessToken_Errors(t *testing.T) {
	db, err := memorystorage.New()
	require.NoError(t, err)
	client, shutdown := startTestGRPCServer(t, db)
	defer shutdown()

	register(t, db, "alice", "secret")
	ctx := context.Background()

	_, err = client.IssueAccessToken(ctx, newRequest(t, map[string]interface{}{"username": "alice"}))
	assertCode(t, err, codes.InvalidArgument)

	_, err = client.IssueAccessToken(ctx, newRequest(t, map[string]interface{}{
		"username": "nobody",
		"password": "secret",
	}))
	assertCode(t, err, codes.NotFound)

	_, err = client.IssueAccessToken(ctx, newRequest(t, map[string]interface{}{
		"username": "alice",
		"password": "wrong",
	}))
	assertCode(t, err, codes.InvalidArgument)
}

func TestVerifyBearerToken_EmptyUserID(t *testing.T) {
	client, shutdown := startTestGRPCServer(t, nil)
	defer shutdown()

	_, err := client.VerifyBearerToken(context.Background(), newRequest(t, map[string]interface{}{
		"token": "whatever",
	}))
	assertCode(t, err, codes.InvalidArgument)
}

func TestDeleteBlog(t *testing.T) {
	db, err := memorystorage.New()
	require.NoError(t, err)
	client, shutdown := startTestGRPCServer(t, db)
	defer shutdown()

	aliceID := register(t, db, "alice", "secret")
	register(t, db, "bob", "secret")
	aliceToken := issueBearer(t, client, "alice", "secret")
	bobToken := issueBearer(t, client, "bob", "secret")

	blog := &models.Blog{ID: "blog-1", Title: "Hello", Content: "World", AuthorID: aliceID}
	require.NoError(t, db.InsertBlog(context.Background(), blog))

	req := newRequest(t, map[string]interface{}{"id": blog.ID})

	_, err = client.DeleteBlog(context.Background(), req)
	assertCode(t, err, codes.Unauthenticated)

	bobCtx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+bobToken)
	_, err = client.DeleteBlog(bobCtx, req)
	assertCode(t, err, codes.Unauthenticated)

	aliceCtx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer "+aliceToken)
	_, err = client.DeleteBlog(aliceCtx, req)
	require.NoError(t, err)

	_, err = db.GetBlogByID(context.Background(), blog.ID)
	assert.Error(t, err)

	_, err = client.DeleteBlog(aliceCtx, req)
	assertCode(t, err, codes.NotFound)

	_, err = client.DeleteBlog(aliceCtx, newRequest(t, map[string]interface{}{}))
	assertCode(t, err, codes.InvalidArgument)
}

func TestIssueAccessToken_InternalError(t *testing.T) {
	db := new(mockstorage.StorageMock)
	client, shutdown := startTestGRPCServer(t, db)
	defer shutdown()

	db.On("GetUserByUsername", mock.Anything, "alice").Return(nil, errors.New("db error"))

	_, err := client.IssueAccessToken(context.Background(), newRequest(t, map[string]interface{}{
		"username": "alice",
		"password": "secret",
	}))
	assertCode(t, err, codes.Internal)
}
