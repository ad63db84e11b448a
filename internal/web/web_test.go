package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Joseda-hg/lazytime/internal/app"
	"github.com/Joseda-hg/lazytime/internal/config"
	"github.com/Joseda-hg/lazytime/internal/core"
)

type testClock struct {
	at time.Time
}

func (c *testClock) now() time.Time { return c.at }

var clock *testClock

func newTestServer(t *testing.T) (*app.Env, http.Handler) {
	t.Helper()
	dir := t.TempDir()
	clock = &testClock{at: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)}
	env, err := app.Open(config.Config{
		DBPath:        filepath.Join(dir, "lazytime.db"),
		HistoryDBPath: filepath.Join(dir, "history.db"),
	}, app.WithClock(clock.now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Close() })

	return env, NewServer(env, WithClock(clock.now)).Handler()
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func start(t *testing.T, env *app.Env, path ...string) *core.Activity {
	t.Helper()
	var a *core.Activity
	require.NoError(t, env.Update(context.Background(), func(tr *core.Tracker) error {
		var err error
		a, err = tr.Start(context.Background(), path)
		return err
	}))
	return a
}

func TestTasksAPI(t *testing.T) {
	env, h := newTestServer(t)
	a := start(t, env, "work", "client")
	clock.at = clock.at.Add(time.Hour)

	rec := get(t, h, "/api/tasks")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var tasks []taskJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	require.Len(t, tasks, 2)
	assert.Equal(t, "work", tasks[0].Label)
	assert.Equal(t, 0, tasks[0].Depth)
	assert.Equal(t, "client", tasks[1].Label)
	assert.Equal(t, 1, tasks[1].Depth)

	rec = get(t, h, "/api/tasks?tag=none")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = get(t, h, "/api/tasks/"+strconv.FormatInt(a.Task().ID, 10))
	require.Equal(t, http.StatusOK, rec.Code)
	var task struct {
		Task      taskJSON       `json:"task"`
		Intervals []intervalJSON `json:"intervals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &task))
	assert.Equal(t, "work::client", task.Task.Path)
	require.Len(t, task.Intervals, 1)
	assert.Nil(t, task.Intervals[0].End)
	assert.EqualValues(t, 3600, task.Intervals[0].Seconds)
}

func TestTaskAPINotFound(t *testing.T) {
	_, h := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/tasks/42").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/tasks/abc").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/nope").Code)
}

func TestStateAPI(t *testing.T) {
	env, h := newTestServer(t)

	rec := get(t, h, "/api/state")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"running": false, "interval": null}`, rec.Body.String())

	start(t, env, "work")
	rec = get(t, h, "/api/state")
	require.Equal(t, http.StatusOK, rec.Code)
	var state struct {
		Running  bool         `json:"running"`
		Interval intervalJSON `json:"interval"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.True(t, state.Running)
	assert.Equal(t, "work", state.Interval.TaskPath)
}

func TestReportAPI(t *testing.T) {
	env, h := newTestServer(t)
	start(t, env, "work")
	clock.at = clock.at.Add(90 * time.Minute)

	rec := get(t, h, "/api/report?from=2024-05-02&to=2024-05-02")
	require.Equal(t, http.StatusOK, rec.Code)
	var report struct {
		Rows  []struct{ Label string } `json:"rows"`
		Total int64                    `json:"total_seconds"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "work", report.Rows[0].Label)
	assert.EqualValues(t, 5400, report.Total)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/report?from=yesterday").Code)
}

func TestHistoryAPI(t *testing.T) {
	env, h := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/api/history").Code)

	start(t, env, "work")
	_, err := env.EnableHistory(context.Background())
	require.NoError(t, err)

	rec := get(t, h, "/api/history?limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var records []recordJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "create", records[0].Type)

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/api/history?limit=x").Code)
}

func TestIndexPage(t *testing.T) {
	env, h := newTestServer(t)
	start(t, env, "work", "client")

	rec := get(t, h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "2 tasks")
	assert.Contains(t, body, "Running <strong>client</strong>")
	assert.Contains(t, body, `padding-left: 20px`)
}
