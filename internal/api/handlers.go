package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	jobs "github.com/jdziat/workbench-jobs"
	"github.com/jdziat/workbench-jobs/internal/api/response"
	"github.com/jdziat/workbench-jobs/pkg/core"
	"github.com/jdziat/workbench-jobs/pkg/security"
)

// maxBodySize bounds request bodies; parameters are the largest payload.
const maxBodySize = 2 * security.MaxParametersSize

// JobIDHeader carries the id of the job a launch request created.
const JobIDHeader = "X-Job-Id"

// launchKinds maps launch route names to job types.
var launchKinds = map[string]core.JobType{
	"preprocess":  core.TypePreprocess,
	"model-build": core.TypeML,
	"evaluate":    core.TypeResult,
	"export":      core.TypeExport,
}

type handlers struct {
	svc Service
	log *zap.Logger
}

type createJobRequest struct {
	Type       string         `json:"type"`
	Parameters map[string]any `json:"parameters"`
}

type createJobResponse struct {
	InsertedID string `json:"insertedId"`
}

type moveViewRequest struct {
	Value struct {
		LayoutIndex *int `json:"layoutIndex"`
	} `json:"value"`
}

func (h *handlers) createJob(w http.ResponseWriter, r *http.Request) {
	var req createJobRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Parameters == nil {
		req.Parameters = map[string]any{}
	}
	id, err := h.svc.CreateJob(r.Context(), core.JobType(req.Type), req.Parameters)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.Created(w, createJobResponse{InsertedID: id})
}

func (h *handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := jobs.JobFilter{ID: q.Get("jobId")}
	if t := q.Get("type"); t != "" {
		jt, err := core.ParseJobType(t)
		if err != nil {
			h.fail(w, err)
			return
		}
		filter.Type = jt
	}
	var err error
	if filter.Page, err = intParam(q.Get("page")); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "page must be an integer", nil)
		return
	}
	if filter.PageSize, err = intParam(q.Get("limitPerPage")); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "limitPerPage must be an integer", nil)
		return
	}
	filter = filter.Normalize()

	list, total, err := h.svc.ListJobs(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	if list == nil {
		list = []*jobs.Job{}
	}
	response.Collection(w, list, response.PaginationMeta{
		Page:    filter.Page,
		Limit:   filter.PageSize,
		Total:   total,
		HasNext: int64(filter.Offset()+len(list)) < total,
	})
}

func (h *handlers) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	if job == nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
		return
	}
	response.JSON(w, job)
}

func (h *handlers) jobProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.svc.JobProgress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, progress)
}

func (h *handlers) markNamed(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkNamed(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	response.NoContent(w)
}

func (h *handlers) deleteJob(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteJob(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	response.NoContent(w)
}

// launch accepts {"parameters": {...}} for preprocess and {"data": {...}}
// for the other kinds, and answers {"data": <launched>}.
func (h *handlers) launch(w http.ResponseWriter, r *http.Request) {
	kind, ok := launchKinds[chi.URLParam(r, "kind")]
	if !ok {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Unknown launch kind", nil)
		return
	}

	var body map[string]json.RawMessage
	if !h.decode(w, r, &body) {
		return
	}
	field := "data"
	if kind == core.TypePreprocess {
		field = "parameters"
	}
	raw, ok := body[field]
	if !ok {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", field+" is required", nil)
		return
	}

	params, err := core.NewParameters(kind)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := json.Unmarshal(raw, params); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid "+field+": "+err.Error(), nil)
		return
	}

	id, launched, err := h.svc.Launch(r.Context(), params)
	if err != nil {
		h.fail(w, err)
		return
	}
	w.Header().Set(JobIDHeader, id)
	response.JSON(w, launched)
}

func (h *handlers) appendView(w http.ResponseWriter, r *http.Request) {
	var view jobs.ResultView
	if !h.decode(w, r, &view) {
		return
	}
	view.ID = ""
	view.SheetID = chi.URLParam(r, "sheetId")
	if err := h.svc.AppendResultView(r.Context(), &view); err != nil {
		h.fail(w, err)
		return
	}
	response.Created(w, view)
}

func (h *handlers) moveView(w http.ResponseWriter, r *http.Request) {
	var req moveViewRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Value.LayoutIndex == nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "value.layoutIndex is required", nil)
		return
	}
	err := h.svc.MoveResultView(r.Context(), chi.URLParam(r, "sheetId"), chi.URLParam(r, "viewId"), *req.Value.LayoutIndex)
	if err != nil {
		h.fail(w, err)
		return
	}
	response.NoContent(w)
}

func (h *handlers) deleteView(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteResultView(r.Context(), chi.URLParam(r, "sheetId"), chi.URLParam(r, "viewId")); err != nil {
		h.fail(w, err)
		return
	}
	response.NoContent(w)
}

func (h *handlers) deleteSheet(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteResultSheet(r.Context(), chi.URLParam(r, "sheetId")); err != nil {
		h.fail(w, err)
		return
	}
	response.NoContent(w)
}

func (h *handlers) deleteWorkbook(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteWorkbook(r.Context(), chi.URLParam(r, "workbookId")); err != nil {
		h.fail(w, err)
		return
	}
	response.NoContent(w)
}

func (h *handlers) deleteDataset(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseDatasetKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.fail(w, err)
		return
	}
	deleted, err := h.svc.DeleteDataset(r.Context(), kind, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	response.JSON(w, deleted)
}

// decode reads a JSON body into v, writing a 400 and returning false on
// failure.
func (h *handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large", nil)
		case errors.Is(err, io.EOF):
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Request body is required", nil)
		default:
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON: "+err.Error(), nil)
		}
		return false
	}
	return true
}

// fail maps domain errors onto HTTP statuses.
func (h *handlers) fail(w http.ResponseWriter, err error) {
	status, code := classify(err)
	msg := security.SanitizeErrorMessage(err.Error())
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.Error(err))
		if code == "INTERNAL_ERROR" {
			msg = "An unexpected error occurred"
		}
	}
	response.Error(w, status, code, msg, nil)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrJobNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, core.ErrParametersTooLarge):
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"
	case errors.Is(err, core.ErrInvalidJobType),
		errors.Is(err, core.ErrInvalidParameters),
		errors.Is(err, core.ErrInvalidDatasetKind),
		errors.Is(err, core.ErrMissingWorkbookID),
		errors.Is(err, core.ErrMissingSheetID),
		errors.Is(err, core.ErrMissingJobID):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, core.ErrCorruptParameters):
		return http.StatusInternalServerError, "CORRUPT_PARAMETERS"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", s)
	}
	return n, nil
}
