package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/workbench-jobs/pkg/core"
)

func TestNewGormStorage_IsSQLite(t *testing.T) {
	s := newTestStorage(t)
	if s.DB().Dialector.Name() != "sqlite" {
		t.Skip("postgres test database")
	}
	assert.True(t, s.IsSQLite())
	assert.NotNil(t, s.DB())
}

func TestCreateJob(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	params := map[string]any{
		"data_set_id": "raw-1",
		"steps":       []any{map[string]any{"type": "scale"}},
		"ratio":       0.25,
	}
	job, err := s.CreateJob(ctx, core.TypePreprocess, params)
	require.NoError(t, err)
	require.Len(t, job.ID, 36)
	assert.Equal(t, core.StatePending, job.State())
	assert.False(t, job.IsNamed)
	assert.Nil(t, job.ProcessID)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, core.TypePreprocess, got.Type)
	assert.Equal(t, params, got.Parameters)
	assert.False(t, got.Launched())
}

func TestCreateJob_Validation(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.CreateJob(ctx, "train", map[string]any{})
	assert.ErrorIs(t, err, core.ErrInvalidJobType)

	_, err = s.CreateJob(ctx, core.TypeML, map[string]any{"blob": strings.Repeat("x", 2<<20)})
	assert.ErrorIs(t, err, core.ErrParametersTooLarge)

	var count int64
	require.NoError(t, s.DB().Model(&core.Job{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateJob_NilParametersStoredAsObject(t *testing.T) {
	s := newTestStorage(t)
	job := &core.Job{Type: core.TypeExport}
	require.NoError(t, s.DB().Create(job).Error)
	assert.Equal(t, "{}", job.RawParameters)

	got, err := s.GetJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, got.Parameters)
}

func TestGetJob_Missing(t *testing.T) {
	s := newTestStorage(t)
	job, err := s.GetJob(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, job)
}

func TestGetJob_CorruptParameters(t *testing.T) {
	s := newTestStorage(t)
	job := insertJob(t, s, core.TypeML, nil, time.Now())

	for _, raw := range []string{"not json", "[1,2]", "null", `"text"`} {
		require.NoError(t, s.DB().Exec("UPDATE jobs SET parameters = ? WHERE id = ?", raw, job.ID).Error)

		_, err := s.GetJob(context.Background(), job.ID)
		require.Error(t, err, raw)
		assert.ErrorIs(t, err, core.ErrCorruptParameters, raw)

		var corrupt *core.CorruptParametersError
		require.True(t, errors.As(err, &corrupt), raw)
		assert.Equal(t, job.ID, corrupt.JobID)
	}
}

func TestSearchJobs_Pagination(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	ids := make([]string, 25)
	for i := range ids {
		ids[i] = insertJob(t, s, core.TypePreprocess, map[string]any{"i": float64(i)}, base.Add(time.Duration(i)*time.Minute)).ID
	}

	page, total, err := s.SearchJobs(ctx, core.JobFilter{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 25, total)
	require.Len(t, page, 10)
	for rank, job := range page {
		assert.Equal(t, ids[14-rank], job.ID, "rank %d", rank)
	}

	last, err := s.ListJobs(ctx, core.JobFilter{Page: 3, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, last, 5)
	assert.Equal(t, ids[0], last[4].ID)

	empty, err := s.ListJobs(ctx, core.JobFilter{Page: 4, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSearchJobs_DefaultsAndFilters(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i := 0; i < 60; i++ {
		jobType := core.TypeML
		if i%3 == 0 {
			jobType = core.TypeExport
		}
		insertJob(t, s, jobType, nil, base.Add(time.Duration(i)*time.Second))
	}

	all, total, err := s.SearchJobs(ctx, core.JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, core.DefaultPageSize)
	assert.EqualValues(t, 60, total)

	exports, total, err := s.SearchJobs(ctx, core.JobFilter{Type: core.TypeExport})
	require.NoError(t, err)
	assert.Len(t, exports, 20)
	assert.EqualValues(t, 20, total)
	for _, j := range exports {
		assert.Equal(t, core.TypeExport, j.Type)
	}

	one, total, err := s.SearchJobs(ctx, core.JobFilter{ID: all[7].ID, Type: all[7].Type})
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.EqualValues(t, 1, total)

	none, err := s.CountJobs(ctx, core.JobFilter{ID: all[7].ID, Type: core.TypeResult})
	require.NoError(t, err)
	assert.Zero(t, none)
}

func TestSearchJobs_SameTimestampOrderedByID(t *testing.T) {
	s := newTestStorage(t)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		insertJob(t, s, core.TypeML, nil, at)
	}

	jobs, err := s.ListJobs(context.Background(), core.JobFilter{})
	require.NoError(t, err)
	require.Len(t, jobs, 5)
	for i := 1; i < len(jobs); i++ {
		assert.Greater(t, jobs[i-1].ID, jobs[i].ID)
	}
}

func TestSearchJobs_CorruptRowFailsListing(t *testing.T) {
	s := newTestStorage(t)
	good := insertJob(t, s, core.TypeML, nil, time.Now())
	bad := insertJob(t, s, core.TypeML, nil, time.Now())
	require.NoError(t, s.DB().Exec("UPDATE jobs SET parameters = '{' WHERE id = ?", bad.ID).Error)

	_, err := s.ListJobs(context.Background(), core.JobFilter{})
	assert.ErrorIs(t, err, core.ErrCorruptParameters)

	got, err := s.GetJob(context.Background(), good.ID)
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestJobUpdates(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	job := insertJob(t, s, core.TypeML, map[string]any{"model_name": "m"}, time.Now())

	require.NoError(t, s.MarkNamed(ctx, job.ID))
	require.NoError(t, s.SetProcessID(ctx, job.ID, 4242))
	require.NoError(t, s.SetStatus(ctx, job.ID, core.StateComplete))

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, got.IsNamed)
	require.NotNil(t, got.ProcessID)
	assert.Equal(t, 4242, *got.ProcessID)
	assert.Equal(t, "complete", got.Status)
	assert.Equal(t, core.StateComplete, got.State())
	assert.Equal(t, "m", got.Parameters["model_name"])

	require.NoError(t, s.SetStatus(ctx, job.ID, core.StatePending))
	got, err = s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "", got.Status)

	assert.ErrorIs(t, s.MarkNamed(ctx, "missing"), core.ErrJobNotFound)
	assert.ErrorIs(t, s.SetProcessID(ctx, "missing", 1), core.ErrJobNotFound)
}
