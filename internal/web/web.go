package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/Joseda-hg/lazytime/internal/app"
	"github.com/Joseda-hg/lazytime/internal/core"
	"github.com/Joseda-hg/lazytime/internal/history"
	"github.com/Joseda-hg/lazytime/internal/model"
	"github.com/Joseda-hg/lazytime/internal/orm"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var indexTemplate = template.Must(template.New("index.tmpl").Funcs(template.FuncMap{
	"duration": func(d time.Duration) string { return d.Round(time.Second).String() },
	"since":    humanize.Time,
}).ParseFS(templateFS, "templates/index.tmpl"))

// Server is a read-only view of the tracker over HTTP.
type Server struct {
	env *app.Env
	log *slog.Logger
	now func() time.Time
}

type Option func(*Server)

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

func NewServer(env *app.Env, opts ...Option) *Server {
	s := &Server{env: env, log: slog.New(slog.DiscardHandler), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type taskRow struct {
	Task     model.Node
	Tags     []string
	IndentPx int
}

type taskJSON struct {
	ID       int64     `json:"id"`
	ParentID *int64    `json:"parent_id"`
	Label    string    `json:"label"`
	Path     string    `json:"path,omitempty"`
	Depth    int       `json:"depth"`
	Tags     []string  `json:"tags"`
	Created  time.Time `json:"created"`
	Closed   bool      `json:"closed"`
}

type intervalJSON struct {
	ID       int64      `json:"id"`
	TaskID   *int64     `json:"task_id"`
	Begin    time.Time  `json:"begin"`
	End      *time.Time `json:"end"`
	Seconds  int64      `json:"seconds"`
	TaskPath string     `json:"task_path,omitempty"`
}

type recordJSON struct {
	UUID       string    `json:"uuid"`
	Date       time.Time `json:"date"`
	Type       string    `json:"type"`
	EntityType string    `json:"entity_type"`
	EntityID   int64     `json:"entity_id"`
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.indexHandler)
	mux.HandleFunc("/api/tasks", s.apiTasksHandler)
	mux.HandleFunc("/api/tasks/", s.apiTaskHandler)
	mux.HandleFunc("/api/state", s.apiStateHandler)
	mux.HandleFunc("/api/report", s.apiReportHandler)
	mux.HandleFunc("/api/history", s.apiHistoryHandler)
	return mux
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	var data struct {
		Total   int
		Rows    []taskRow
		Running *core.Activity
		Elapsed time.Duration
	}
	err := s.env.View(r.Context(), func(tr *core.Tracker) error {
		forest, err := tr.FilteredForest(r.Context(), filterFromRequest(r))
		if err != nil {
			return err
		}
		forest.SortFunc(core.ByLabel)
		for depth, tree := range forest.Walk() {
			data.Rows = append(data.Rows, taskRow{Task: tree.Node, Tags: tree.Node.TagList(), IndentPx: depth * 20})
		}
		data.Total = forest.Len()

		data.Running, err = tr.Running(r.Context())
		if data.Running != nil {
			data.Elapsed = data.Running.Interval.Duration(s.now())
		}
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := indexTemplate.Execute(w, data); err != nil {
		s.writeError(w, r, err)
	}
}

func (s *Server) apiTasksHandler(w http.ResponseWriter, r *http.Request) {
	tasks := []taskJSON{}
	err := s.env.View(r.Context(), func(tr *core.Tracker) error {
		forest, err := tr.FilteredForest(r.Context(), filterFromRequest(r))
		if err != nil {
			return err
		}
		for depth, tree := range forest.Walk() {
			tasks = append(tasks, newTaskJSON(tree.Node, depth, ""))
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, tasks)
}

func (s *Server) apiTaskHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Path, "/api/tasks/")
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	var payload struct {
		Task      taskJSON       `json:"task"`
		Intervals []intervalJSON `json:"intervals"`
	}
	err = s.env.View(r.Context(), func(tr *core.Tracker) error {
		path, err := tr.Ancestors(r.Context(), id)
		if err != nil {
			return err
		}
		intervals, err := tr.TaskIntervals(r.Context(), id)
		if err != nil {
			return err
		}
		payload.Task = newTaskJSON(path[len(path)-1], len(path)-1, model.PathString(path))
		payload.Intervals = make([]intervalJSON, 0, len(intervals))
		for _, i := range intervals {
			payload.Intervals = append(payload.Intervals, s.newIntervalJSON(i, ""))
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, payload)
}

func (s *Server) apiStateHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Running  bool          `json:"running"`
		Interval *intervalJSON `json:"interval"`
	}
	err := s.env.View(r.Context(), func(tr *core.Tracker) error {
		_, interval, err := tr.LastRunning(r.Context())
		if err != nil || interval == nil {
			return err
		}
		a, err := tr.FindInterval(r.Context(), interval.ID)
		if err != nil {
			return err
		}
		iv := s.newIntervalJSON(a.Interval, model.PathString(a.Path))
		payload.Running = a.Interval.Running()
		payload.Interval = &iv
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, payload)
}

func (s *Server) apiReportHandler(w http.ResponseWriter, r *http.Request) {
	now := s.now().UTC()
	from := now.Truncate(24 * time.Hour)
	to := now
	var err error
	if value := strings.TrimSpace(r.URL.Query().Get("from")); value != "" {
		if from, err = time.Parse(time.DateOnly, value); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if value := strings.TrimSpace(r.URL.Query().Get("to")); value != "" {
		if to, err = time.Parse(time.DateOnly, value); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		// to names the last day included.
		to = to.AddDate(0, 0, 1)
	}

	type row struct {
		ID    int64  `json:"id"`
		Label string `json:"label"`
		Depth int    `json:"depth"`
		Own   int64  `json:"own_seconds"`
		Total int64  `json:"total_seconds"`
	}
	var payload struct {
		From  time.Time `json:"from"`
		To    time.Time `json:"to"`
		Rows  []row     `json:"rows"`
		Total int64     `json:"total_seconds"`
	}
	err = s.env.View(r.Context(), func(tr *core.Tracker) error {
		report, err := tr.Total(r.Context(), from, to)
		if err != nil {
			return err
		}
		payload.From, payload.To = report.From, report.To
		payload.Total = int64(report.Total / time.Second)
		payload.Rows = make([]row, 0, len(report.Rows))
		for _, rr := range report.Rows {
			payload.Rows = append(payload.Rows, row{
				ID:    rr.Node.ID,
				Label: rr.Node.Label,
				Depth: rr.Depth,
				Own:   int64(rr.Own / time.Second),
				Total: int64(rr.Total / time.Second),
			})
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, payload)
}

func (s *Server) apiHistoryHandler(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if value := r.URL.Query().Get("limit"); value != "" {
		n, err := strconv.Atoi(value)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", value))
			return
		}
		limit = n
	}

	records := []recordJSON{}
	err := s.env.Journal(r.Context(), func(j *history.Journal) error {
		res, err := j.Records(r.Context(), limit)
		if err != nil {
			return err
		}
		for _, rec := range res {
			records = append(records, recordJSON{
				UUID:       rec.UUID.String(),
				Date:       rec.Date,
				Type:       rec.Type.String(),
				EntityType: rec.EntityType,
				EntityID:   rec.EntityID,
			})
		}
		return nil
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, records)
}

func newTaskJSON(n model.Node, depth int, path string) taskJSON {
	tags := n.TagList()
	if tags == nil {
		tags = []string{}
	}
	return taskJSON{
		ID:       n.ID,
		ParentID: n.ParentID,
		Label:    n.Label,
		Path:     path,
		Depth:    depth,
		Tags:     tags,
		Created:  n.Created,
		Closed:   n.Closed,
	}
}

func (s *Server) newIntervalJSON(i *model.Interval, path string) intervalJSON {
	return intervalJSON{
		ID:       i.ID,
		TaskID:   i.NodeID,
		Begin:    i.Begin,
		End:      i.End,
		Seconds:  int64(i.Duration(s.now()) / time.Second),
		TaskPath: path,
	}
}

// filterFromRequest reads ?tag= and ?closed=1.
func filterFromRequest(r *http.Request) orm.Filter {
	var open, tagged orm.Filter
	if r.URL.Query().Get("closed") == "" {
		open = orm.Eq(model.NodeClosed, orm.Bool(false))
	}
	if tag := strings.TrimSpace(r.URL.Query().Get("tag")); tag != "" {
		tagged = model.TagFilter(tag)
	}
	return orm.AllOf(core.LiveNodes, open, tagged)
}

func parseID(path, prefix string) (int64, error) {
	if !strings.HasPrefix(path, prefix) {
		return 0, fmt.Errorf("invalid path")
	}
	value := strings.TrimPrefix(path, prefix)
	value = strings.Trim(value, "/")
	if value == "" {
		return 0, fmt.Errorf("missing id")
	}
	return strconv.ParseInt(value, 10, 64)
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}

// writeError maps domain errors onto status codes and logs the rest.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrTaskNotFound), errors.Is(err, core.ErrIntervalNotFound),
		errors.Is(err, app.ErrHistoryDisabled):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		s.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}
