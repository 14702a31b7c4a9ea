// internal/api/handler.go
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	apperrors "github-activity-resolver/internal/errors"
	"github-activity-resolver/internal/model"
)

const (
	defaultCommitLimit = 100
	maxCommitLimit     = 100
	maxRequestBody     = 1 << 20
	pingTimeout        = 2 * time.Second
	requestTimeout     = 60 * time.Second

	// DefaultActivityTimeout bounds a batch when Options leaves it unset.
	DefaultActivityTimeout = 15 * time.Minute
)

// ActivityResolver resolves activity reports for batches of usernames.
type ActivityResolver interface {
	ResolveActivity(ctx context.Context, usernames []string) (model.ActivityReport, error)
}

// Storage is the read side of the activity store used by the API.
type Storage interface {
	ListCommits(ctx context.Context, repo, author string, limit int) ([]model.Commit, error)
	Ping(ctx context.Context) error
}

// Options describes the deployment for the health endpoints and bounds
// activity batches.
type Options struct {
	StorageDriver   string
	TokenConfigured bool
	// ActivityTimeout replaces the per-request timeout on the activity
	// endpoint; users still unresolved when it fires are reported as failed.
	ActivityTimeout time.Duration
}

// Handler is the container for API dependencies.
type Handler struct {
	resolver  ActivityResolver
	storage   Storage
	opts      Options
	logger    *slog.Logger
	validate  *validator.Validate
	startedAt time.Time
	now       func() time.Time
}

type activityRequest struct {
	Usernames []string `json:"usernames" validate:"required,min=1,max=100,dive,required"`
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(resolver ActivityResolver, storage Storage, opts Options, logger *slog.Logger) http.Handler {
	if opts.ActivityTimeout <= 0 {
		opts.ActivityTimeout = DefaultActivityTimeout
	}
	h := &Handler{
		resolver:  resolver,
		storage:   storage,
		opts:      opts,
		logger:    logger,
		validate:  validator.New(),
		startedAt: time.Now(),
		now:       time.Now,
	}
	return h.routes()
}

func (h *Handler) routes() http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Batches of up to 100 users run under their own, longer deadline.
	r.Post("/v1/github/activity", h.resolveActivity)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/health", h.healthCheck)
		r.Get("/health/detailed", h.detailedHealthCheck)
		r.Get("/v1/repos/{owner}/{name}/commits", h.getCommits)
	})

	return r
}

// resolveActivity handles a batch activity request.
// POST /v1/github/activity
func (h *Handler) resolveActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.ActivityTimeout)
	defer cancel()
	report, err := h.resolver.ResolveActivity(ctx, req.Usernames)
	if err != nil {
		if errors.Is(err, apperrors.ErrMissingToken) {
			respondWithError(w, http.StatusServiceUnavailable, "GitHub token not set")
			return
		}
		h.logger.Error("Failed to resolve activity", "error", err, "users", len(req.Usernames))
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondWithJSON(w, http.StatusOK, report)
}

func validationMessage(err error) string {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
		first := validationErrors[0]
		return fmt.Sprintf("field '%s' failed on the '%s' rule", first.Field(), first.Tag())
	}
	return "Invalid request body"
}

// getCommits returns cached commits for a repository, newest first.
// GET /v1/repos/{owner}/{name}/commits?author=<login>&limit=N
func (h *Handler) getCommits(w http.ResponseWriter, r *http.Request) {
	repo := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "name")
	author := r.URL.Query().Get("author")

	limit := defaultCommitLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n <= 0 || n > maxCommitLimit {
			respondWithError(w, http.StatusBadRequest, fmt.Sprintf("Invalid 'limit' parameter. Must be an integer between 1 and %d.", maxCommitLimit))
			return
		}
		limit = n
	}

	commits, err := h.storage.ListCommits(r.Context(), repo, author, limit)
	if err != nil {
		h.logger.Error("Failed to list commits", "repo", repo, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if commits == nil {
		commits = []model.Commit{}
	}

	respondWithJSON(w, http.StatusOK, commits)
}

type healthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

type storageStatus struct {
	Status string `json:"status"`
	Driver string `json:"driver"`
}

type githubStatus struct {
	Token string `json:"token"`
}

type dependencies struct {
	Storage storageStatus `json:"storage"`
	Github  githubStatus  `json:"github"`
}

type memoryUsage struct {
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

type detailedHealthResponse struct {
	healthResponse
	Dependencies dependencies `json:"dependencies"`
	Memory       memoryUsage  `json:"memory"`
}

func (h *Handler) health() healthResponse {
	now := h.now()
	return healthResponse{
		Status:    "ok",
		Timestamp: now.UTC().Format(time.RFC3339),
		Uptime:    now.Sub(h.startedAt).Seconds(),
	}
}

// healthCheck is a simple liveness endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, h.health())
}

// detailedHealthCheck adds storage connectivity, token presence and memory
// usage. It always answers 200; dependency state is reported in the body.
func (h *Handler) detailedHealthCheck(w http.ResponseWriter, r *http.Request) {
	resp := detailedHealthResponse{
		healthResponse: h.health(),
		Dependencies: dependencies{
			Storage: storageStatus{Status: "connected", Driver: h.opts.StorageDriver},
			Github:  githubStatus{Token: "configured"},
		},
	}

	ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
	defer cancel()
	if err := h.storage.Ping(ctx); err != nil {
		h.logger.Warn("Storage ping failed", "driver", h.opts.StorageDriver, "error", err)
		resp.Dependencies.Storage.Status = "disconnected"
	}
	if !h.opts.TokenConfigured {
		resp.Dependencies.Github.Token = "missing"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	resp.Memory = memoryUsage{
		Used:  toMegabytes(mem.HeapAlloc),
		Total: toMegabytes(mem.HeapSys),
	}

	respondWithJSON(w, http.StatusOK, resp)
}

func toMegabytes(b uint64) float64 {
	return float64(b*100/(1024*1024)) / 100
}
