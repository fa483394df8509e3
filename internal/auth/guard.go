package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/patric-chuzhbe/blogsbook/internal/apierror"
)

// ContextKey is a custom type for storing values in context to avoid collisions.
type ContextKey string

// BearerTokenKey is the context key carrying the raw bearer token of a call.
const BearerTokenKey ContextKey = "bearerToken"

const msgMissingToken = "Please provide bearer token for authorization"

type tokenVerifier interface {
	Verify(ctx context.Context, tokenString, claimedOwnerID string) (string, error)
}

// Guard is the policy applied by every protected operation: a token must be
// present, must verify against the claimed owner and must name that owner.
type Guard struct {
	verifier tokenVerifier
}

// NewGuard creates a Guard delegating signature checks to verifier.
func NewGuard(verifier tokenVerifier) *Guard {
	return &Guard{verifier: verifier}
}

// RequireToken rejects requests that carry no bearer token.
func (g *Guard) RequireToken(token string) error {
	if token == "" {
		return apierror.Unauthorized(msgMissingToken)
	}

	return nil
}

// Authorize succeeds only when token verifies for claimedOwnerID and the
// identity it carries is claimedOwnerID. action completes the sentence
// "The user is not authorized to ..." of the rejection message.
func (g *Guard) Authorize(ctx context.Context, token, claimedOwnerID, action string) error {
	if err := g.RequireToken(token); err != nil {
		return err
	}

	userID, err := g.verifier.Verify(ctx, token, claimedOwnerID)
	if err != nil {
		return err
	}

	if userID != claimedOwnerID {
		return apierror.Unauthorized("The user is not authorized to " + action)
	}

	return nil
}

// BearerTokenFromRequest extracts <token> from an "Authorization: Bearer <token>"
// header. Any other shape yields an empty string.
func BearerTokenFromRequest(request *http.Request) string {
	return ParseAuthorizationValue(request.Header.Get("Authorization"))
}

// ParseAuthorizationValue extracts the token of a "Bearer <token>" credential.
func ParseAuthorizationValue(value string) string {
	scheme, token, found := strings.Cut(strings.TrimSpace(value), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}

	return strings.TrimSpace(token)
}

// BearerTokenFromContext returns the token stored under BearerTokenKey.
func BearerTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(BearerTokenKey).(string)

	return token
}
