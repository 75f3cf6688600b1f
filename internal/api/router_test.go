package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	jobs "github.com/jdziat/workbench-jobs"
	"github.com/jdziat/workbench-jobs/internal/testdb"
	"github.com/jdziat/workbench-jobs/pkg/cascade"
	"github.com/jdziat/workbench-jobs/pkg/core"
	"github.com/jdziat/workbench-jobs/pkg/datadir"
	"github.com/jdziat/workbench-jobs/pkg/layout"
	"github.com/jdziat/workbench-jobs/pkg/storage"
)

type stubLauncher struct {
	ok    bool
	kinds []core.JobType
}

func (s *stubLauncher) Launch(_ context.Context, kind core.JobType, _ map[string]any) (int, bool) {
	s.kinds = append(s.kinds, kind)
	return 99, s.ok
}

type testServer struct {
	handler  http.Handler
	db       *gorm.DB
	store    *storage.GormStorage
	launcher *stubLauncher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db := testdb.Open(t)
	dir, err := datadir.Open(t.TempDir())
	require.NoError(t, err)

	store := storage.NewGormStorage(db)
	sl := &stubLauncher{ok: true}
	o := jobs.New(store, layout.New(db), cascade.New(db, dir), jobs.WithLauncher(sl))
	return &testServer{handler: NewRouter(o, nil), db: db, store: store, launcher: sl}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Meta  map[string]any  `json:"meta"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, string(env.Data))
}

func TestCreateAndGetJob(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/v1/jobs", `{"type":"export","parameters":{"source_id":"m","nested":{"a":[1,2]}}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		InsertedID string `json:"insertedId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.InsertedID)

	w, env = s.do(t, http.MethodGet, "/api/v1/jobs/"+created.InsertedID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var job map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &job))
	assert.Equal(t, "export", job["type"])
	assert.Equal(t, map[string]any{"source_id": "m", "nested": map[string]any{"a": []any{float64(1), float64(2)}}}, job["parameters"])

	w, env = s.do(t, http.MethodGet, "/api/v1/jobs/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestCreateJob_LargeIntegersRoundTrip(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/v1/jobs", `{"type":"ml","parameters":{"model_name":"m","seed":9007199254740993}}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		InsertedID string `json:"insertedId"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	job, err := s.store.GetJob(context.Background(), created.InsertedID)
	require.NoError(t, err)
	assert.Equal(t, json.Number("9007199254740993"), job.Parameters["seed"])

	w, _ = s.do(t, http.MethodGet, "/api/v1/jobs/"+created.InsertedID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"seed":9007199254740993`)
}

func TestCreateJob_Validation(t *testing.T) {
	s := newTestServer(t)

	w, env := s.do(t, http.MethodPost, "/api/v1/jobs", `{"type":"train","parameters":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/jobs", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/jobs", ``)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListJobs(t *testing.T) {
	s := newTestServer(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		jobType := core.TypePreprocess
		if i%5 == 0 {
			jobType = core.TypeML
		}
		job := &core.Job{Type: jobType, Parameters: map[string]any{"i": float64(i)}, CreatedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, s.db.Create(job).Error)
	}

	w, env := s.do(t, http.MethodGet, "/api/v1/jobs?page=2&limitPerPage=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 10)
	assert.Equal(t, float64(14), list[0]["parameters"].(map[string]any)["i"])
	assert.Equal(t, float64(5), list[9]["parameters"].(map[string]any)["i"])
	assert.Equal(t, float64(25), env.Meta["total"])
	assert.Equal(t, true, env.Meta["has_next"])

	w, env = s.do(t, http.MethodGet, "/api/v1/jobs?type=ml", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 5)
	assert.Equal(t, false, env.Meta["has_next"])

	w, env = s.do(t, http.MethodGet, "/api/v1/jobs?page=922337203685477590&limitPerPage=10", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Empty(t, list)
	assert.Equal(t, float64(25), env.Meta["total"])
	assert.Equal(t, false, env.Meta["has_next"])

	w, _ = s.do(t, http.MethodGet, "/api/v1/jobs?page=two", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodGet, "/api/v1/jobs?type=bogus", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListJobs_CorruptParameters(t *testing.T) {
	s := newTestServer(t)
	job := &core.Job{Type: core.TypeML}
	require.NoError(t, s.db.Create(job).Error)
	require.NoError(t, s.db.Exec("UPDATE jobs SET parameters = '[1,2' WHERE id = ?", job.ID).Error)

	w, env := s.do(t, http.MethodGet, "/api/v1/jobs", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "CORRUPT_PARAMETERS", env.Error.Code)
}

func TestLaunch(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		route string
		body  string
		kind  core.JobType
	}{
		{"preprocess", `{"parameters":{"data_set_id":"raw-1"}}`, core.TypePreprocess},
		{"model-build", `{"data":{"data_set_id":"n-1","model_name":"m"}}`, core.TypeML},
		{"evaluate", `{"data":{"model_file_id":"m-1","data_set_id":"n-1"}}`, core.TypeResult},
		{"export", `{"data":{"source_id":"m-1","destination":"out.csv"}}`, core.TypeExport},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			w, env := s.do(t, http.MethodPost, "/api/v1/launch/"+tt.route, tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			assert.JSONEq(t, `true`, string(env.Data))

			id := w.Header().Get(JobIDHeader)
			require.NotEmpty(t, id)
			job, err := s.store.GetJob(context.Background(), id)
			require.NoError(t, err)
			require.NotNil(t, job)
			assert.Equal(t, tt.kind, job.Type)
			assert.Equal(t, string(tt.kind), job.Parameters[core.ParameterTypeKey])
		})
	}
}

func TestLaunch_FailureReturnsFalse(t *testing.T) {
	s := newTestServer(t)
	s.launcher.ok = false

	w, env := s.do(t, http.MethodPost, "/api/v1/launch/preprocess", `{"parameters":{"data_set_id":"raw-1"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `false`, string(env.Data))

	job, err := s.store.GetJob(context.Background(), w.Header().Get(JobIDHeader))
	require.NoError(t, err)
	assert.NotNil(t, job)
}

func TestLaunch_Validation(t *testing.T) {
	s := newTestServer(t)

	w, _ := s.do(t, http.MethodPost, "/api/v1/launch/train", `{"data":{}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env := s.do(t, http.MethodPost, "/api/v1/launch/preprocess", `{"data":{"data_set_id":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error.Message, "parameters")

	w, _ = s.do(t, http.MethodPost, "/api/v1/launch/model-build", `{"data":{"data_set_id":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodPost, "/api/v1/launch/export", `{"data":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, s.launcher.kinds)
}

func TestJobProgressNamedAndDelete(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	job, err := s.store.CreateJob(ctx, core.TypePreprocess, map[string]any{})
	require.NoError(t, err)
	require.NoError(t, s.store.RecordTask(ctx, &core.JobTask{JobID: job.ID, ProgressPercent: "75%"}))

	w, env := s.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID+"/progress", "")
	require.Equal(t, http.StatusOK, w.Code)
	var progress map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &progress))
	assert.Equal(t, "running", progress["state"])
	assert.Equal(t, float64(75), progress["progress"])

	w, _ = s.do(t, http.MethodPost, "/api/v1/jobs/"+job.ID+"/named", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = s.do(t, http.MethodPost, "/api/v1/jobs/missing/named", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/jobs/"+job.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = s.do(t, http.MethodGet, "/api/v1/jobs/"+job.ID+"/progress", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestViewLayoutRoutes(t *testing.T) {
	s := newTestServer(t)
	ids := map[string]string{}
	for _, title := range []string{"A", "B", "C", "D"} {
		w, env := s.do(t, http.MethodPost, "/api/v1/sheets/sheet-1/views", `{"title":"`+title+`","style":"bar"}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var view core.ResultView
		require.NoError(t, json.Unmarshal(env.Data, &view))
		assert.Equal(t, "sheet-1", view.SheetID)
		ids[title] = view.ID
	}

	order := func() string {
		views, err := s.store.ListViews(context.Background(), "sheet-1")
		require.NoError(t, err)
		var titles []string
		for _, v := range views {
			titles = append(titles, v.Title)
		}
		return strings.Join(titles, "")
	}

	w, _ := s.do(t, http.MethodPut, "/api/v1/sheets/sheet-1/views/"+ids["D"]+"/layout", `{"value":{"layoutIndex":1}}`)
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "ADBC", order())

	w, _ = s.do(t, http.MethodPut, "/api/v1/sheets/sheet-1/views/"+ids["D"]+"/layout", `{"value":{}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/sheets/sheet-1/views/"+ids["B"], "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "ADC", order())

	w, _ = s.do(t, http.MethodDelete, "/api/v1/sheets/sheet-1", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "", order())
}

func TestDeleteWorkbookRoutes(t *testing.T) {
	s := newTestServer(t)
	wb := &core.Workbook{Name: "wb"}
	require.NoError(t, s.store.CreateWorkbook(context.Background(), wb))

	w, env := s.do(t, http.MethodDelete, "/api/v1/workbooks", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)

	w, _ = s.do(t, http.MethodDelete, "/api/v1/workbooks/"+wb.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDeleteDatasetRoute(t *testing.T) {
	s := newTestServer(t)
	ds := &core.RawDataSet{DataFile: core.DataFile{Name: "raw", FilePath: "raw/a.csv"}}
	require.NoError(t, s.store.CreateDataset(context.Background(), ds))

	w, env := s.do(t, http.MethodDelete, "/api/v1/datasets/raw/"+ds.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	var deleted map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &deleted))
	assert.Equal(t, ds.ID, deleted["id"])

	w, env = s.do(t, http.MethodDelete, "/api/v1/datasets/raw/"+ds.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", string(env.Data))

	w, _ = s.do(t, http.MethodDelete, "/api/v1/datasets/csv/"+ds.ID, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)
	w, env := s.do(t, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}
