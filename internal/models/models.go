// Package models holds the records persisted by the storage backends and the
// request/response payloads exchanged over HTTP.
package models

import "errors"

const (
	StorageTypeUnknown = iota
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

const (
	TokenTypeAccess = "accessToken"
	TokenTypeBearer = "bearer"
)

// ErrRecordNotFound is returned by storages when the requested record is absent.
var ErrRecordNotFound = errors.New("record not found")

// ErrUsernameTaken is returned by storages when a user with the same username exists.
var ErrUsernameTaken = errors.New("username already taken")

// User is a registered account. Password is kept as provided by the client.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

// PublicUser is the view of a User returned to other clients.
type PublicUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// RegisteredUser is returned to the client that has just created the account.
type RegisteredUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type NewUserRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}

// AccessToken is a long-lived random credential. Under the access-token
// secret policy its Token value is also the bearer signing key.
type AccessToken struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Token  string `json:"token"`
	Type   string `json:"type"`
}

// BearerToken is a signed identity claim; it is never persisted.
type BearerToken struct {
	Token string `json:"token"`
	Type  string `json:"type"`
}

type CreateAccessTokenRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CreateBearerTokenRequest carries either a password or an access token,
// depending on the configured secret policy.
type CreateBearerTokenRequest struct {
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password,omitempty"`
	AccessToken string `json:"accessToken,omitempty"`
}

type Blog struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	AuthorID string `json:"authorId"`
}

type NewBlogRequest struct {
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content" validate:"required"`
	AuthorID string `json:"authorId" validate:"required"`
}

// BlogPatch lists the fields a blog update may change. Nil fields stay untouched.
type BlogPatch struct {
	Title   *string `json:"title,omitempty" validate:"omitempty,min=1"`
	Content *string `json:"content,omitempty" validate:"omitempty,min=1"`
}

type ErrorBody struct {
	Message string   `json:"message"`
	Values  []string `json:"values,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

// AccessTokensPurgeJob asks the background sweeper to drop every access
// token issued to the listed users.
type AccessTokensPurgeJob struct {
	UserIDs []string
}
