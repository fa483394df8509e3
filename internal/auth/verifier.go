package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/blogsbook/internal/apierror"
	"github.com/patric-chuzhbe/blogsbook/internal/logger"
)

const (
	msgTokenInvalid = "The provided bearer token is invalid, please re-authorize"
	msgTokenExpired = "The provided bearer token has been expired, please re-authorize"
)

// Verifier checks bearer tokens against the identity a request claims.
type Verifier struct {
	secrets SecretResolver
	parser  *jwt.Parser
}

// NewVerifier creates a Verifier resolving secrets with the given policy.
func NewVerifier(secrets SecretResolver) *Verifier {
	return &Verifier{
		secrets: secrets,
		parser:  jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}
}

// Verify resolves the signing secret of claimedOwnerID, checks the token
// signature with it and returns the userId the token was issued for. Any
// token problem is reported as an apierror of kind Unauthorized; only
// storage failures come back as plain errors.
func (v *Verifier) Verify(ctx context.Context, tokenString, claimedOwnerID string) (string, error) {
	unverified, _, err := v.parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		logger.Log.Debugln("Error calling the `v.parser.ParseUnverified()`: ", zap.Error(err))
		return "", apierror.Unauthorized(msgTokenInvalid)
	}
	keyID, _ := unverified.Header["kid"].(string)

	secret, err := v.secrets.ResolveForVerify(ctx, claimedOwnerID, keyID)
	switch {
	case errors.Is(err, errMissingKeyID):
		return "", apierror.Unauthorized(msgTokenInvalid)
	case errors.Is(err, errSecretUnavailable):
		return "", apierror.Unauthorized(msgTokenExpired)
	case err != nil:
		return "", err
	}

	claims := &Claims{}
	token, err := v.parser.ParseWithClaims(
		tokenString,
		claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		},
	)
	if err != nil || !token.Valid {
		logger.Log.Debugln("Error calling the `v.parser.ParseWithClaims()`: ", zap.Error(err))
		var validationErr *jwt.ValidationError
		if errors.As(err, &validationErr) && validationErr.Errors&jwt.ValidationErrorExpired != 0 {
			return "", apierror.Unauthorized(msgTokenExpired)
		}
		return "", apierror.Unauthorized(msgTokenInvalid)
	}

	if claims.UserID == "" {
		return "", apierror.Unauthorized(msgTokenInvalid)
	}

	return claims.UserID, nil
}
