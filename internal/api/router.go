// Package api exposes the orchestration operations as a local JSON API.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	jobs "github.com/jdziat/workbench-jobs"
	mw "github.com/jdziat/workbench-jobs/internal/api/middleware"
	"github.com/jdziat/workbench-jobs/internal/api/response"
)

// Service is the set of orchestration operations the API calls.
type Service interface {
	CreateJob(ctx context.Context, jobType jobs.JobType, params map[string]any) (string, error)
	Launch(ctx context.Context, p jobs.Parameters) (string, bool, error)
	GetJob(ctx context.Context, id string) (*jobs.Job, error)
	ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.Job, int64, error)
	JobProgress(ctx context.Context, id string) (*jobs.JobProgressView, error)
	MarkNamed(ctx context.Context, id string) error
	DeleteJob(ctx context.Context, id string) error
	AppendResultView(ctx context.Context, view *jobs.ResultView) error
	MoveResultView(ctx context.Context, sheetID, viewID string, layoutIndex int) error
	DeleteResultView(ctx context.Context, sheetID, viewID string) error
	DeleteResultSheet(ctx context.Context, sheetID string) error
	DeleteWorkbook(ctx context.Context, workbookID string) error
	DeleteDataset(ctx context.Context, kind jobs.DatasetKind, id string) (jobs.Dataset, error)
}

// NewRouter builds the chi router with middleware stack and all routes.
func NewRouter(svc Service, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &handlers{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(mw.Logger(log.Named("http")))
	r.Use(mw.Recovery(log.Named("http")))

	r.Get("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Post("/", h.createJob)
		r.Get("/", h.listJobs)
		r.Get("/{id}", h.getJob)
		r.Get("/{id}/progress", h.jobProgress)
		r.Post("/{id}/named", h.markNamed)
		r.Delete("/{id}", h.deleteJob)
	})

	r.Post("/api/v1/launch/{kind}", h.launch)

	r.Route("/api/v1/sheets/{sheetId}", func(r chi.Router) {
		r.Delete("/", h.deleteSheet)
		r.Post("/views", h.appendView)
		r.Put("/views/{viewId}/layout", h.moveView)
		r.Delete("/views/{viewId}", h.deleteView)
	})

	r.Delete("/api/v1/workbooks", h.deleteWorkbook)
	r.Delete("/api/v1/workbooks/{workbookId}", h.deleteWorkbook)

	r.Delete("/api/v1/datasets/{kind}/{id}", h.deleteDataset)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	return r
}
