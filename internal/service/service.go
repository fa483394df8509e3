package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/blogsbook/internal/apierror"
	"github.com/patric-chuzhbe/blogsbook/internal/models"
)

type usersKeeper interface {
	CreateUser(ctx context.Context, usr *models.User) error

	GetUserByID(ctx context.Context, userID string) (*models.User, error)

	GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.User, error)

	GetAllUsers(ctx context.Context) ([]models.User, error)

	DeleteUser(ctx context.Context, userID string) error

	DeleteAllUsers(ctx context.Context) error
}

type blogsKeeper interface {
	InsertBlog(ctx context.Context, blog *models.Blog) error

	GetBlogByID(ctx context.Context, blogID string) (*models.Blog, error)

	GetBlogs(ctx context.Context, authorID string) ([]models.Blog, error)

	UpdateBlog(ctx context.Context, blogID, authorID string, patch models.BlogPatch) (*models.Blog, error)

	DeleteBlog(ctx context.Context, blogID, authorID string) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	usersKeeper
	blogsKeeper
	pinger
}

type tokenIssuer interface {
	IssueAccessToken(ctx context.Context, username, password string) (*models.AccessToken, error)

	IssueBearerToken(ctx context.Context, username, credential string) (*models.BearerToken, error)

	Credential(request models.CreateBearerTokenRequest) string
}

type authorizer interface {
	RequireToken(token string) error

	Authorize(ctx context.Context, token, claimedOwnerID, action string) error
}

type tokensSweeper interface {
	EnqueueJob(job *models.AccessTokensPurgeJob)
}

const (
	actionCreateBlog = "create the requested blog"
	actionUpdateBlog = "update the requested blog"
	actionDeleteBlog = "delete the requested blog"
	actionDeleteUser = "delete the requested user"
	actionVerify     = "act on behalf of the requested user"
)

// Service implements the user, blog and token operations on top of a storage.
// Every mutation of a blog or a user is preceded by a bearer token check
// against the identity owning the resource.
type Service struct {
	db      storage
	issuer  tokenIssuer
	guard   authorizer
	sweeper tokensSweeper
}

func New(
	db storage,
	issuer tokenIssuer,
	guard authorizer,
	sweeper tokensSweeper,
) *Service {
	return &Service{
		db:      db,
		issuer:  issuer,
		guard:   guard,
		sweeper: sweeper,
	}
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// IssueAccessToken exchanges username and password for a new access token.
func (s *Service) IssueAccessToken(
	ctx context.Context,
	request models.CreateAccessTokenRequest,
) (*models.AccessToken, error) {
	return s.issuer.IssueAccessToken(ctx, request.Username, request.Password)
}

// IssueBearerToken exchanges the credential the secret policy expects for a bearer token.
func (s *Service) IssueBearerToken(
	ctx context.Context,
	request models.CreateBearerTokenRequest,
) (*models.BearerToken, error) {
	return s.issuer.IssueBearerToken(ctx, request.Username, s.issuer.Credential(request))
}

// VerifyBearerToken succeeds when token was issued for userID.
func (s *Service) VerifyBearerToken(ctx context.Context, token, userID string) error {
	return s.guard.Authorize(ctx, token, userID, actionVerify)
}

func (s *Service) CreateUser(ctx context.Context, request models.NewUserRequest) (*models.RegisteredUser, error) {
	usr := &models.User{
		ID:       uuid.New().String(),
		Username: request.Username,
		Password: request.Password,
		Email:    request.Email,
	}

	err := s.db.CreateUser(ctx, usr)
	if errors.Is(err, models.ErrUsernameTaken) {
		return nil, apierror.Conflict("A user with the provided username already exists", request.Username)
	}
	if err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/CreateUser(): error while `s.db.CreateUser()` calling: %w", err)
	}

	return &models.RegisteredUser{
		ID:       usr.ID,
		Username: usr.Username,
		Email:    usr.Email,
	}, nil
}

func (s *Service) GetUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	usr, err := s.db.GetUserByID(ctx, userID)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, apierror.NotFound("No user with the provided id exists", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/GetUser(): error while `s.db.GetUserByID()` calling: %w", err)
	}

	return &models.PublicUser{ID: usr.ID, Username: usr.Username}, nil
}

func toPublicUsers(users []models.User) []models.PublicUser {
	return funk.Map(users, func(usr models.User) models.PublicUser {
		return models.PublicUser{ID: usr.ID, Username: usr.Username}
	}).([]models.PublicUser)
}

// GetUsersByIDs returns the users among userIDs that exist, in id order.
func (s *Service) GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.PublicUser, error) {
	users, err := s.db.GetUsersByIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/GetUsersByIDs(): error while `s.db.GetUsersByIDs()` calling: %w", err)
	}

	return toPublicUsers(users), nil
}

func (s *Service) GetAllUsers(ctx context.Context) ([]models.PublicUser, error) {
	users, err := s.db.GetAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/GetAllUsers(): error while `s.db.GetAllUsers()` calling: %w", err)
	}

	return toPublicUsers(users), nil
}

// DeleteAllUsers removes every user and schedules the purge of their access tokens.
func (s *Service) DeleteAllUsers(ctx context.Context) error {
	users, err := s.db.GetAllUsers(ctx)
	if err != nil {
		return fmt.Errorf("in internal/service/service.go/DeleteAllUsers(): error while `s.db.GetAllUsers()` calling: %w", err)
	}

	if err := s.db.DeleteAllUsers(ctx); err != nil {
		return fmt.Errorf("in internal/service/service.go/DeleteAllUsers(): error while `s.db.DeleteAllUsers()` calling: %w", err)
	}

	if len(users) > 0 {
		s.sweeper.EnqueueJob(&models.AccessTokensPurgeJob{
			UserIDs: funk.Map(users, func(usr models.User) string { return usr.ID }).([]string),
		})
	}

	return nil
}

// DeleteUser removes the user userID. token must have been issued for userID.
func (s *Service) DeleteUser(ctx context.Context, token, userID string) error {
	if err := s.guard.Authorize(ctx, token, userID, actionDeleteUser); err != nil {
		return err
	}

	err := s.db.DeleteUser(ctx, userID)
	if errors.Is(err, models.ErrRecordNotFound) {
		return apierror.NotFound("The user to delete does not exist", userID)
	}
	if err != nil {
		return fmt.Errorf("in internal/service/service.go/DeleteUser(): error while `s.db.DeleteUser()` calling: %w", err)
	}

	s.sweeper.EnqueueJob(&models.AccessTokensPurgeJob{UserIDs: []string{userID}})

	return nil
}

// CreateBlog stores a blog for request.AuthorID. token must have been issued for that author.
func (s *Service) CreateBlog(ctx context.Context, token string, request models.NewBlogRequest) (*models.Blog, error) {
	if err := s.guard.Authorize(ctx, token, request.AuthorID, actionCreateBlog); err != nil {
		return nil, err
	}

	blog := &models.Blog{
		ID:       uuid.New().String(),
		Title:    request.Title,
		Content:  request.Content,
		AuthorID: request.AuthorID,
	}
	if err := s.db.InsertBlog(ctx, blog); err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/CreateBlog(): error while `s.db.InsertBlog()` calling: %w", err)
	}

	return blog, nil
}

func (s *Service) fetchBlog(ctx context.Context, blogID, notFoundMessage string) (*models.Blog, error) {
	blog, err := s.db.GetBlogByID(ctx, blogID)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, apierror.NotFound(notFoundMessage, blogID)
	}
	if err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/fetchBlog(): error while `s.db.GetBlogByID()` calling: %w", err)
	}

	return blog, nil
}

func (s *Service) GetBlog(ctx context.Context, blogID string) (*models.Blog, error) {
	return s.fetchBlog(ctx, blogID, "No blog with the provided id exists")
}

// GetBlogs lists the blogs of authorID, or all blogs when authorID is empty.
func (s *Service) GetBlogs(ctx context.Context, authorID string) ([]models.Blog, error) {
	blogs, err := s.db.GetBlogs(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/GetBlogs(): error while `s.db.GetBlogs()` calling: %w", err)
	}

	return blogs, nil
}

// UpdateBlog applies patch to the blog blogID on behalf of authorID.
// A missing token and an empty patch are rejected first. The blog is then
// looked up before the token is verified, so a missing blog answers
// NotFound even to an unauthorized caller.
func (s *Service) UpdateBlog(
	ctx context.Context,
	token,
	blogID,
	authorID string,
	patch models.BlogPatch,
) (*models.Blog, error) {
	if err := s.guard.RequireToken(token); err != nil {
		return nil, err
	}

	if patch.Title == nil && patch.Content == nil {
		return nil, apierror.BadRequest("Please provide at least one of the fields title, content")
	}

	blog, err := s.fetchBlog(ctx, blogID, "The blog to update does not exist")
	if err != nil {
		return nil, err
	}

	if blog.AuthorID != authorID {
		return nil, apierror.Unauthorized("The user is not authorized to " + actionUpdateBlog)
	}

	if err := s.guard.Authorize(ctx, token, authorID, actionUpdateBlog); err != nil {
		return nil, err
	}

	updated, err := s.db.UpdateBlog(ctx, blogID, authorID, patch)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, apierror.NotFound("The blog to update does not exist", blogID)
	}
	if err != nil {
		return nil, fmt.Errorf("in internal/service/service.go/UpdateBlog(): error while `s.db.UpdateBlog()` calling: %w", err)
	}

	return updated, nil
}

// DeleteBlog removes the blog blogID. token must have been issued for its author.
func (s *Service) DeleteBlog(ctx context.Context, token, blogID string) error {
	if err := s.guard.RequireToken(token); err != nil {
		return err
	}

	blog, err := s.fetchBlog(ctx, blogID, "The blog to delete does not exist")
	if err != nil {
		return err
	}

	if err := s.guard.Authorize(ctx, token, blog.AuthorID, actionDeleteBlog); err != nil {
		return err
	}

	err = s.db.DeleteBlog(ctx, blogID, blog.AuthorID)
	if errors.Is(err, models.ErrRecordNotFound) {
		return apierror.NotFound("The blog to delete does not exist", blogID)
	}
	if err != nil {
		return fmt.Errorf("in internal/service/service.go/DeleteBlog(): error while `s.db.DeleteBlog()` calling: %w", err)
	}

	return nil
}
