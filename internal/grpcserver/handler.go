package grpcserver

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/patric-chuzhbe/blogsbook/internal/apierror"
	"github.com/patric-chuzhbe/blogsbook/internal/auth"
	"github.com/patric-chuzhbe/blogsbook/internal/logger"
	"github.com/patric-chuzhbe/blogsbook/internal/models"
)

type authService interface {
	IssueAccessToken(ctx context.Context, request models.CreateAccessTokenRequest) (*models.AccessToken, error)
	IssueBearerToken(ctx context.Context, request models.CreateBearerTokenRequest) (*models.BearerToken, error)
	VerifyBearerToken(ctx context.Context, token, userID string) error
	DeleteBlog(ctx context.Context, token, blogID string) error
}

type AuthHandler struct {
	svc      authService
	validate *validator.Validate
}

func NewAuthHandler(svc authService) *AuthHandler {
	return &AuthHandler{
		svc:      svc,
		validate: validator.New(),
	}
}

func stringField(req *structpb.Struct, name string) string {
	return req.GetFields()[name].GetStringValue()
}

func toStatus(err error) error {
	apiErr, ok := apierror.As(err)
	if !ok {
		logger.Log.Debugln("Error passed to the gRPC client as Internal: ", zap.Error(err))
		return status.Error(codes.Internal, "internal server error")
	}

	switch apiErr.Kind {
	case apierror.KindNotFound:
		return status.Error(codes.NotFound, apiErr.Message)
	case apierror.KindBadRequest:
		return status.Error(codes.InvalidArgument, apiErr.Message)
	case apierror.KindUnauthorized:
		return status.Error(codes.Unauthenticated, apiErr.Message)
	case apierror.KindConflict:
		return status.Error(codes.AlreadyExists, apiErr.Message)
	}

	return status.Error(codes.Internal, apiErr.Message)
}

func newResponse(fields map[string]interface{}) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		logger.Log.Debugln("Error calling the `structpb.NewStruct()`: ", zap.Error(err))
		return nil, status.Error(codes.Internal, "internal server error")
	}

	return resp, nil
}

func (h *AuthHandler) IssueAccessToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	request := models.CreateAccessTokenRequest{
		Username: stringField(req, "username"),
		Password: stringField(req, "password"),
	}
	if err := h.validate.Struct(request); err != nil {
		return nil, status.Error(codes.InvalidArgument, "username and password must not be empty")
	}

	token, err := h.svc.IssueAccessToken(ctx, request)
	if err != nil {
		return nil, toStatus(err)
	}

	return newResponse(map[string]interface{}{
		"id":     token.ID,
		"userId": token.UserID,
		"token":  token.Token,
		"type":   token.Type,
	})
}

func (h *AuthHandler) IssueBearerToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	request := models.CreateBearerTokenRequest{
		Username:    stringField(req, "username"),
		Password:    stringField(req, "password"),
		AccessToken: stringField(req, "accessToken"),
	}
	if err := h.validate.Struct(request); err != nil {
		return nil, status.Error(codes.InvalidArgument, "username must not be empty")
	}

	token, err := h.svc.IssueBearerToken(ctx, request)
	if err != nil {
		return nil, toStatus(err)
	}

	return newResponse(map[string]interface{}{
		"token": token.Token,
		"type":  token.Type,
	})
}

func (h *AuthHandler) VerifyBearerToken(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID := stringField(req, "userId")
	if userID == "" {
		return nil, status.Error(codes.InvalidArgument, "userId must not be empty")
	}

	if err := h.svc.VerifyBearerToken(ctx, stringField(req, "token"), userID); err != nil {
		return nil, toStatus(err)
	}

	return newResponse(map[string]interface{}{"userId": userID})
}

// DeleteBlog takes the bearer token from the "authorization" metadata.
func (h *AuthHandler) DeleteBlog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	blogID := stringField(req, "id")
	if blogID == "" {
		return nil, status.Error(codes.InvalidArgument, "id must not be empty")
	}

	if err := h.svc.DeleteBlog(ctx, auth.BearerTokenFromContext(ctx), blogID); err != nil {
		return nil, toStatus(err)
	}

	return newResponse(map[string]interface{}{})
}
