// Package router exposes the service over HTTP. Handlers decode and validate
// the request, pass the bearer token of the call to the service and render
// either the result or an {"error": {...}} body.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/thoas/go-funk"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/blogsbook/internal/apierror"
	"github.com/patric-chuzhbe/blogsbook/internal/auth"
	"github.com/patric-chuzhbe/blogsbook/internal/gzippedhttp"
	"github.com/patric-chuzhbe/blogsbook/internal/logger"
	"github.com/patric-chuzhbe/blogsbook/internal/models"
)

type tokensService interface {
	IssueAccessToken(ctx context.Context, request models.CreateAccessTokenRequest) (*models.AccessToken, error)
	IssueBearerToken(ctx context.Context, request models.CreateBearerTokenRequest) (*models.BearerToken, error)
}

type usersService interface {
	CreateUser(ctx context.Context, request models.NewUserRequest) (*models.RegisteredUser, error)
	GetUser(ctx context.Context, userID string) (*models.PublicUser, error)
	GetUsersByIDs(ctx context.Context, userIDs []string) ([]models.PublicUser, error)
	GetAllUsers(ctx context.Context) ([]models.PublicUser, error)
	DeleteAllUsers(ctx context.Context) error
	DeleteUser(ctx context.Context, token, userID string) error
}

type blogsService interface {
	CreateBlog(ctx context.Context, token string, request models.NewBlogRequest) (*models.Blog, error)
	GetBlog(ctx context.Context, blogID string) (*models.Blog, error)
	GetBlogs(ctx context.Context, authorID string) ([]models.Blog, error)
	UpdateBlog(ctx context.Context, token, blogID, authorID string, patch models.BlogPatch) (*models.Blog, error)
	DeleteBlog(ctx context.Context, token, blogID string) error
}

type pinger interface {
	Ping(ctx context.Context) error
}

type service interface {
	tokensService
	usersService
	blogsService
	pinger
}

type adminGate interface {
	RequireTrustedSubnet(h http.Handler) http.Handler
}

const msgInternalError = "internal server error"

// Router holds the HTTP handlers of the service.
type Router struct {
	svc      service
	validate *validator.Validate
}

// New builds the chi router serving every endpoint. Administrative routes
// are wrapped with admin.
func New(svc service, admin adminGate) http.Handler {
	myRouter := &Router{
		svc:      svc,
		validate: validator.New(),
	}

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		logger.WithLoggingHTTPMiddleware,
		middleware.Recoverer,
		gzippedhttp.UngzipRequest,
		gzippedhttp.GzipResponse,
	)

	router.Get(`/`, myRouter.GetRoot)
	router.Get(`/ping`, myRouter.GetPing)

	router.Post(`/auth/authorize`, myRouter.PostAuthauthorize)
	router.Post(`/auth/token`, myRouter.PostAuthtoken)

	router.Route(`/users`, func(r chi.Router) {
		r.Post(`/`, myRouter.PostUsers)
		r.Get(`/`, myRouter.GetUsers)
		r.With(admin.RequireTrustedSubnet).Get(`/all`, myRouter.GetUsersall)
		r.With(admin.RequireTrustedSubnet).Delete(`/all`, myRouter.DeleteUsersall)
		r.Get(`/{id}`, myRouter.GetUsersid)
		r.Delete(`/{id}`, myRouter.DeleteUsersid)
	})

	router.Route(`/blogs`, func(r chi.Router) {
		r.Post(`/`, myRouter.PostBlogs)
		r.Get(`/`, myRouter.GetBlogs)
		r.Get(`/{id}`, myRouter.GetBlogsid)
		r.Patch(`/{id}`, myRouter.PatchBlogsid)
		r.Delete(`/{id}`, myRouter.DeleteBlogsid)
	})

	return router
}

func writeJSON(response http.ResponseWriter, status int, payload interface{}) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder().Encode()`: ", zap.Error(err))
	}
}

func writeError(response http.ResponseWriter, err error) {
	apiErr, ok := apierror.As(err)
	if !ok {
		logger.Log.Errorw("request failed", "error", err)
		writeJSON(
			response,
			http.StatusInternalServerError,
			models.ErrorResponse{Error: models.ErrorBody{Message: msgInternalError}},
		)
		return
	}

	writeJSON(
		response,
		apiErr.StatusCode(),
		models.ErrorResponse{Error: models.ErrorBody{Message: apiErr.Message, Values: apiErr.Values}},
	)
}

// decodeBody reads a JSON request body into target and validates it.
func (router *Router) decodeBody(request *http.Request, target interface{}) error {
	decoder := json.NewDecoder(request.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.BadRequest("The request body is empty")
		}
		logger.Log.Debugln("Error calling the `decoder.Decode()`: ", zap.Error(err))
		return apierror.BadRequest("The request body is not a valid JSON document")
	}

	if err := router.validate.Struct(target); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			fields := funk.Map(validationErrors, func(fieldErr validator.FieldError) string {
				return fieldErr.Field()
			}).([]string)
			return apierror.BadRequest("Invalid or missing fields: " + strings.Join(fields, ", "))
		}
		return apierror.BadRequest(err.Error())
	}

	return nil
}

// GetRoot is the liveness endpoint.
func (router *Router) GetRoot(response http.ResponseWriter, request *http.Request) {
	writeJSON(response, http.StatusOK, models.StatusResponse{Status: "working"})
}

// GetPing reports whether the storage is reachable.
func (router *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := router.svc.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `router.svc.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

// PostAuthauthorize exchanges username and password for an access token.
func (router *Router) PostAuthauthorize(response http.ResponseWriter, request *http.Request) {
	var body models.CreateAccessTokenRequest
	if err := router.decodeBody(request, &body); err != nil {
		writeError(response, err)
		return
	}

	token, err := router.svc.IssueAccessToken(request.Context(), body)
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, token)
}

// PostAuthtoken exchanges a credential for a bearer token.
func (router *Router) PostAuthtoken(response http.ResponseWriter, request *http.Request) {
	var body models.CreateBearerTokenRequest
	if err := router.decodeBody(request, &body); err != nil {
		writeError(response, err)
		return
	}

	token, err := router.svc.IssueBearerToken(request.Context(), body)
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, token)
}

func (router *Router) PostUsers(response http.ResponseWriter, request *http.Request) {
	var body models.NewUserRequest
	if err := router.decodeBody(request, &body); err != nil {
		writeError(response, err)
		return
	}

	usr, err := router.svc.CreateUser(request.Context(), body)
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, usr)
}

// GetUsers lists the users named by the comma separated ids query parameter.
func (router *Router) GetUsers(response http.ResponseWriter, request *http.Request) {
	ids := funk.FilterString(
		funk.Map(
			strings.Split(request.URL.Query().Get("ids"), ","),
			strings.TrimSpace,
		).([]string),
		func(id string) bool { return id != "" },
	)
	if len(ids) == 0 {
		writeError(response, apierror.BadRequest("Please provide the ids query parameter"))
		return
	}

	users, err := router.svc.GetUsersByIDs(request.Context(), ids)
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, users)
}

func (router *Router) GetUsersid(response http.ResponseWriter, request *http.Request) {
	usr, err := router.svc.GetUser(request.Context(), chi.URLParam(request, "id"))
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, usr)
}

func (router *Router) GetUsersall(response http.ResponseWriter, request *http.Request) {
	users, err := router.svc.GetAllUsers(request.Context())
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, users)
}

func (router *Router) DeleteUsersall(response http.ResponseWriter, request *http.Request) {
	if err := router.svc.DeleteAllUsers(request.Context()); err != nil {
		writeError(response, err)
		return
	}

	response.WriteHeader(http.StatusNoContent)
}

// DeleteUsersid deletes the account named in the path. The bearer token must
// have been issued for that account.
func (router *Router) DeleteUsersid(response http.ResponseWriter, request *http.Request) {
	err := router.svc.DeleteUser(
		request.Context(),
		auth.BearerTokenFromRequest(request),
		chi.URLParam(request, "id"),
	)
	if err != nil {
		writeError(response, err)
		return
	}

	response.WriteHeader(http.StatusNoContent)
}

// PostBlogs creates a blog for the authorId of the body.
func (router *Router) PostBlogs(response http.ResponseWriter, request *http.Request) {
	var body models.NewBlogRequest
	if err := router.decodeBody(request, &body); err != nil {
		writeError(response, err)
		return
	}

	blog, err := router.svc.CreateBlog(request.Context(), auth.BearerTokenFromRequest(request), body)
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusCreated, blog)
}

func (router *Router) GetBlogs(response http.ResponseWriter, request *http.Request) {
	blogs, err := router.svc.GetBlogs(request.Context(), request.URL.Query().Get("authorId"))
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, blogs)
}

func (router *Router) GetBlogsid(response http.ResponseWriter, request *http.Request) {
	blog, err := router.svc.GetBlog(request.Context(), chi.URLParam(request, "id"))
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, blog)
}

// PatchBlogsid updates a blog on behalf of the authorId query parameter.
func (router *Router) PatchBlogsid(response http.ResponseWriter, request *http.Request) {
	authorID := request.URL.Query().Get("authorId")
	if authorID == "" {
		writeError(response, apierror.BadRequest("Please provide the authorId query parameter"))
		return
	}

	var body models.BlogPatch
	if err := router.decodeBody(request, &body); err != nil {
		writeError(response, err)
		return
	}

	blog, err := router.svc.UpdateBlog(
		request.Context(),
		auth.BearerTokenFromRequest(request),
		chi.URLParam(request, "id"),
		authorID,
		body,
	)
	if err != nil {
		writeError(response, err)
		return
	}

	writeJSON(response, http.StatusOK, blog)
}

func (router *Router) DeleteBlogsid(response http.ResponseWriter, request *http.Request) {
	err := router.svc.DeleteBlog(
		request.Context(),
		auth.BearerTokenFromRequest(request),
		chi.URLParam(request, "id"),
	)
	if err != nil {
		writeError(response, err)
		return
	}

	response.WriteHeader(http.StatusNoContent)
}
