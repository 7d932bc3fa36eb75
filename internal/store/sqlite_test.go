package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bookgen/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestCreateAndGetRun(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "learn woodworking")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusQueued, run.Status)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "learn woodworking", got.Problem)
	assert.Nil(t, got.Result)
}

func TestGetRun_NotFound(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	_, err := st.GetRun(context.Background(), "no-such-run")
	assert.Error(t, err)
}

func TestUpdateRunStatus(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "p")
	require.NoError(t, err)

	require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusRunning))
	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusRunning, got.Status)

	assert.Error(t, st.UpdateRunStatus(ctx, "no-such-run", model.RunStatusFailed))
}

func TestUpdateRunResult(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "p")
	require.NoError(t, err)

	result := &model.RunResult{
		Chapters:     6,
		DraftedOK:    5,
		DraftsFailed: 1,
		OutputPath:   "/tmp/out/book.md",
	}
	require.NoError(t, st.UpdateRunResult(ctx, run.ID, model.RunStatusComplete, result))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 6, got.Result.Chapters)
	assert.Equal(t, 1, got.Result.DraftsFailed)
}

func TestListRuns_FilterAndLimit(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		run, err := st.CreateRun(ctx, "p")
		require.NoError(t, err)
		if i == 0 {
			require.NoError(t, st.UpdateRunStatus(ctx, run.ID, model.RunStatusFailed))
		}
	}

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	failed, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 1)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestRecordAndListStages(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "p")
	require.NoError(t, err)

	base := time.Now().UTC()
	for i, stage := range model.Stages() {
		require.NoError(t, st.RecordStage(ctx, model.StageRecord{
			RunID:      run.ID,
			Stage:      stage,
			Status:     model.StageStatusComplete,
			DurationMS: int64(i * 100),
			StartedAt:  base.Add(time.Duration(i) * time.Second),
		}))
	}

	recs, err := st.ListStages(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, recs, len(model.Stages()))

	// Ordered by start time, i.e. pipeline order.
	for i, stage := range model.Stages() {
		assert.Equal(t, stage, recs[i].Stage)
		assert.NotEmpty(t, recs[i].ID)
	}
}

func TestRecordStage_FailedWithError(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, "p")
	require.NoError(t, err)

	require.NoError(t, st.RecordStage(ctx, model.StageRecord{
		RunID:  run.ID,
		Stage:  model.StageSpec,
		Status: model.StageStatusFailed,
		Error:  "repair exhausted",
	}))

	recs, err := st.ListStages(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.StageStatusFailed, recs[0].Status)
	assert.Equal(t, "repair exhausted", recs[0].Error)
}
