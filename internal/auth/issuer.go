package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/patric-chuzhbe/blogsbook/internal/apierror"
	"github.com/patric-chuzhbe/blogsbook/internal/models"
)

// DefaultAccessTokenBytes is the entropy of a generated access token.
const DefaultAccessTokenBytes = 64

// Claims represents the JWT claims of a bearer token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// Issuer exchanges credentials for access and bearer tokens.
type Issuer struct {
	users            userFinder
	tokens           accessTokenKeeper
	secrets          SecretResolver
	accessTokenBytes int
	bearerTokenTTL   time.Duration
}

// IssuerOption tunes an Issuer.
type IssuerOption func(*Issuer)

// WithAccessTokenBytes sets how many random bytes an access token carries.
// Values below DefaultAccessTokenBytes are ignored.
func WithAccessTokenBytes(n int) IssuerOption {
	return func(issuer *Issuer) {
		if n >= DefaultAccessTokenBytes {
			issuer.accessTokenBytes = n
		}
	}
}

// WithBearerTokenTTL adds an exp claim to issued bearer tokens. Zero keeps
// them valid until their signing secret changes.
func WithBearerTokenTTL(ttl time.Duration) IssuerOption {
	return func(issuer *Issuer) {
		issuer.bearerTokenTTL = ttl
	}
}

// NewIssuer creates an Issuer backed by the given stores and secret policy.
func NewIssuer(
	users userFinder,
	tokens accessTokenKeeper,
	secrets SecretResolver,
	optionsProto ...IssuerOption,
) *Issuer {
	issuer := &Issuer{
		users:            users,
		tokens:           tokens,
		secrets:          secrets,
		accessTokenBytes: DefaultAccessTokenBytes,
	}
	for _, protoOption := range optionsProto {
		protoOption(issuer)
	}

	return issuer
}

// Credential returns the part of request the configured policy exchanges.
func (i *Issuer) Credential(request models.CreateBearerTokenRequest) string {
	return i.secrets.Credential(request)
}

// IssueAccessToken verifies username/password and persists a fresh random
// access token. Every call creates a new independent record.
func (i *Issuer) IssueAccessToken(ctx context.Context, username, password string) (*models.AccessToken, error) {
	usr, err := i.findUser(ctx, username)
	if err != nil {
		return nil, err
	}

	if !passwordsMatch(usr.Password, password) {
		return nil, credentialsMismatch()
	}

	value, err := randomHex(i.accessTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("in internal/auth/issuer.go/IssueAccessToken(): error while `randomHex()` calling: %w", err)
	}

	token := &models.AccessToken{
		ID:     uuid.New().String(),
		UserID: usr.ID,
		Token:  value,
		Type:   models.TokenTypeAccess,
	}
	if err := i.tokens.InsertAccessToken(ctx, token); err != nil {
		return nil, fmt.Errorf("in internal/auth/issuer.go/IssueAccessToken(): error while `i.tokens.InsertAccessToken()` calling: %w", err)
	}

	return token, nil
}

// IssueBearerToken validates credential under the configured policy and
// returns a signed bearer token claiming the user's id.
func (i *Issuer) IssueBearerToken(ctx context.Context, username, credential string) (*models.BearerToken, error) {
	usr, err := i.findUser(ctx, username)
	if err != nil {
		return nil, err
	}

	secret, keyID, err := i.secrets.ResolveForIssue(ctx, usr, credential)
	if err != nil {
		return nil, err
	}

	tokenString, err := i.buildJWTString(usr.ID, secret, keyID)
	if err != nil {
		return nil, fmt.Errorf("in internal/auth/issuer.go/IssueBearerToken(): error while `i.buildJWTString()` calling: %w", err)
	}

	return &models.BearerToken{
		Token: tokenString,
		Type:  models.TokenTypeBearer,
	}, nil
}

func (i *Issuer) findUser(ctx context.Context, username string) (*models.User, error) {
	usr, err := i.users.GetUserByUsername(ctx, username)
	if errors.Is(err, models.ErrRecordNotFound) {
		return nil, apierror.NotFound("No user with the provided username exists", username)
	}
	if err != nil {
		return nil, fmt.Errorf("in internal/auth/issuer.go/findUser(): error while `i.users.GetUserByUsername()` calling: %w", err)
	}

	return usr, nil
}

func (i *Issuer) buildJWTString(userID string, secret []byte, keyID string) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
		},
		UserID: userID,
	}
	if i.bearerTokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(i.bearerTokenTTL))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if keyID != "" {
		token.Header["kid"] = keyID
	}

	return token.SignedString(secret)
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}
