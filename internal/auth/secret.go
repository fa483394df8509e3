// Package auth implements the credential exchange and the per-resource
// authorization of the service: signing-secret derivation, issuance of
// access and bearer tokens, bearer verification and the guard applied to
// every mutating endpoint.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/patric-chuzhbe/blogsbook/internal/apierror"
	"github.com/patric-chuzhbe/blogsbook/internal/models"
)

const (
	// PolicyPassword signs bearer tokens with SHA-256(username ‖ password).
	PolicyPassword = "password"

	// PolicyAccessToken signs bearer tokens with a previously issued access token.
	PolicyAccessToken = "access-token"
)

var (
	// ErrUnknownPolicy is returned by NewSecretResolver for unsupported policy names.
	ErrUnknownPolicy = errors.New("unknown secret policy")

	errSecretUnavailable = errors.New("signing secret cannot be resolved")
	errMissingKeyID      = errors.New("token carries no key id")
)

type userFinder interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, userID string) (*models.User, error)
}

type accessTokenKeeper interface {
	InsertAccessToken(ctx context.Context, token *models.AccessToken) error
	FindAccessTokenByValue(ctx context.Context, token string) (*models.AccessToken, error)
	FindAccessTokenByID(ctx context.Context, tokenID string) (*models.AccessToken, error)
}

// SecretResolver derives the key a bearer token is signed and verified with.
// A deployment runs exactly one implementation.
type SecretResolver interface {
	// Name returns the policy name.
	Name() string

	// Credential picks the credential the policy expects out of a bearer request.
	Credential(request models.CreateBearerTokenRequest) string

	// ResolveForIssue validates credential against usr and returns the signing
	// secret together with the key id to put into the token header.
	ResolveForIssue(ctx context.Context, usr *models.User, credential string) (secret []byte, keyID string, err error)

	// ResolveForVerify returns the secret for claimedOwnerID.
	ResolveForVerify(ctx context.Context, claimedOwnerID, keyID string) ([]byte, error)
}

// NewSecretResolver returns the resolver implementing the named policy.
func NewSecretResolver(policy string, users userFinder, tokens accessTokenKeeper) (SecretResolver, error) {
	switch policy {
	case PolicyPassword:
		return &PasswordHashPolicy{users: users}, nil
	case PolicyAccessToken:
		return &AccessTokenPolicy{users: users, tokens: tokens}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, policy)
}

// DeriveSecret computes the password-hash signing secret of usr.
func DeriveSecret(usr *models.User) []byte {
	sum := sha256.Sum256([]byte(usr.Username + usr.Password))

	return []byte(hex.EncodeToString(sum[:]))
}

func passwordsMatch(stored, provided string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(provided)) == 1
}

func credentialsMismatch() *apierror.Error {
	return apierror.BadRequest("username and password do not match, please provide valid credentials")
}

// PasswordHashPolicy keeps no extra state: a password change invalidates
// every bearer token signed before it.
type PasswordHashPolicy struct {
	users userFinder
}

func (p *PasswordHashPolicy) Name() string {
	return PolicyPassword
}

func (p *PasswordHashPolicy) Credential(request models.CreateBearerTokenRequest) string {
	return request.Password
}

func (p *PasswordHashPolicy) ResolveForIssue(
	ctx context.Context,
	usr *models.User,
	credential string,
) ([]byte, string, error) {
	if credential == "" {
		return nil, "", apierror.BadRequest("Please provide the password of the user")
	}
	if !passwordsMatch(usr.Password, credential) {
		return nil, "", credentialsMismatch()
	}

	return DeriveSecret(usr), "", nil
}

func (p *PasswordHashPolicy) ResolveForVerify(ctx context.Context, claimedOwnerID, keyID string) ([]byte, error) {
	usr, err := p.users.GetUserByID(ctx, claimedOwnerID)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, errSecretUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("in internal/auth/secret.go/ResolveForVerify(): error while `p.users.GetUserByID()` calling: %w", err)
	}

	return DeriveSecret(usr), nil
}

// AccessTokenPolicy signs with the value of a stored access token. Bearer
// tokens live as long as both that record and its user do.
type AccessTokenPolicy struct {
	users  userFinder
	tokens accessTokenKeeper
}

func (p *AccessTokenPolicy) Name() string {
	return PolicyAccessToken
}

func (p *AccessTokenPolicy) Credential(request models.CreateBearerTokenRequest) string {
	return request.AccessToken
}

func (p *AccessTokenPolicy) ResolveForIssue(
	ctx context.Context,
	usr *models.User,
	credential string,
) ([]byte, string, error) {
	if credential == "" {
		return nil, "", apierror.BadRequest("Please provide an access token issued for the user")
	}

	record, err := p.tokens.FindAccessTokenByValue(ctx, credential)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, "", apierror.NotFound("No access token with the provided value exists", usr.Username)
	}
	if err != nil {
		return nil, "", fmt.Errorf("in internal/auth/secret.go/ResolveForIssue(): error while `p.tokens.FindAccessTokenByValue()` calling: %w", err)
	}

	if record.UserID != usr.ID {
		return nil, "", apierror.BadRequest("The provided access token was not issued for the provided user")
	}

	return []byte(record.Token), record.ID, nil
}

func (p *AccessTokenPolicy) ResolveForVerify(ctx context.Context, claimedOwnerID, keyID string) ([]byte, error) {
	if keyID == "" {
		return nil, errMissingKeyID
	}

	// Access tokens of a deleted user are purged asynchronously.
	_, err := p.users.GetUserByID(ctx, claimedOwnerID)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, errSecretUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("in internal/auth/secret.go/ResolveForVerify(): error while `p.users.GetUserByID()` calling: %w", err)
	}

	record, err := p.tokens.FindAccessTokenByID(ctx, keyID)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, errSecretUnavailable
	}
	if err != nil {
		return nil, fmt.Errorf("in internal/auth/secret.go/ResolveForVerify(): error while `p.tokens.FindAccessTokenByID()` calling: %w", err)
	}

	// A key belonging to someone else cannot vouch for the claimed owner.
	if record.UserID != claimedOwnerID {
		return nil, errSecretUnavailable
	}

	return []byte(record.Token), nil
}
