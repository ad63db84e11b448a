package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/lazytime/internal/app"
	"github.com/Joseda-hg/lazytime/internal/core"
	"github.com/Joseda-hg/lazytime/internal/model"
)

const (
	viewHeader    = "header"
	viewFooter    = "footer"
	viewTasks     = "tasks"
	viewDetails   = "details"
	viewIntervals = "intervals"
	viewForm      = "form"
	viewHelp      = "help"
)

const recentIntervals = 50

type UI struct {
	env *app.Env
	gui *gocui.Gui
	ctx context.Context
	now func() time.Time

	tasks     []taskRow
	collapsed map[int64]bool
	running   *core.Activity
	intervals []*core.Activity
	details   []*model.Interval
	path      []model.Node

	selectedTasks     int
	selectedIntervals int
	focus             string

	form       *formState
	helpActive bool
	status     string
}

func newUI(ctx context.Context, env *app.Env) *UI {
	return &UI{
		env:       env,
		ctx:       ctx,
		now:       time.Now,
		focus:     viewTasks,
		collapsed: make(map[int64]bool),
	}
}

// Run shows the interactive browser until the user quits.
func Run(ctx context.Context, env *app.Env) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	ui := newUI(ctx, env)
	ui.gui = gui

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	if err := ui.load(); err != nil {
		return err
	}

	if err := gui.MainLoop(); err != nil && !goerrors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

type binding struct {
	view    string
	key     any
	handler func(*gocui.Gui, *gocui.View) error
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	bindings := []binding{
		{"", gocui.KeyCtrlC, u.quit},
		{"", 'q', u.quit},
		{"", '?', u.toggleHelp},
		{"", gocui.KeyTab, u.switchFocus},
		{"", 'g', u.reload},
		{viewTasks, 'j', u.moveDown},
		{viewTasks, 'k', u.moveUp},
		{viewTasks, gocui.KeyArrowDown, u.moveDown},
		{viewTasks, gocui.KeyArrowUp, u.moveUp},
		{viewTasks, gocui.KeyEnter, u.toggleCollapse},
		{viewTasks, 's', u.startSelected},
		{viewTasks, 'a', u.openStart},
		{viewTasks, 't', u.openTag},
		{viewTasks, 'e', u.openRename},
		{viewTasks, 'd', u.deleteSelected},
		{viewIntervals, 'j', u.moveDown},
		{viewIntervals, 'k', u.moveUp},
		{viewIntervals, gocui.KeyArrowDown, u.moveDown},
		{viewIntervals, gocui.KeyArrowUp, u.moveUp},
		{viewIntervals, 'd', u.deleteSelected},
		{viewTasks, 'x', u.stop},
		{viewIntervals, 'x', u.stop},
		{viewTasks, 'c', u.cancel},
		{viewIntervals, 'c', u.cancel},
		{viewTasks, 'r', u.restart},
		{viewIntervals, 'r', u.restart},
		{viewForm, gocui.KeyEnter, u.submitForm},
		{viewForm, gocui.KeyEsc, u.cancelForm},
		{viewHelp, gocui.KeyEsc, u.toggleHelp},
	}
	for _, b := range bindings {
		if err := gui.SetKeybinding(b.view, b.key, gocui.ModNone, b.handler); err != nil {
			return err
		}
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := setView(gui, viewHeader, 0, 0, maxX-1, 0)
	if err != nil {
		return err
	}
	headerView.Frame = false
	u.renderHeader(headerView)

	footerY1 := max(maxY-1, 1)
	footerY0 := max(footerY1-1, 1)
	footerView, err := setView(gui, viewFooter, 0, footerY0, maxX-1, footerY1)
	if err != nil {
		return err
	}
	footerView.Frame = false
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	u.renderFooter(footerView)

	bodyTop, bodyBottom := 1, footerY0-1
	if bodyBottom-bodyTop < 4 {
		return nil
	}
	leftX1 := max(maxX*2/5, 24)
	splitY := bodyTop + (bodyBottom-bodyTop)/2

	tasksView, err := setView(gui, viewTasks, 0, bodyTop, leftX1, bodyBottom)
	if err != nil {
		return err
	}
	tasksView.Title = "Tasks"
	applyViewStyle(tasksView, u.focus == viewTasks)
	u.renderTasks(tasksView)

	detailsView, err := setView(gui, viewDetails, leftX1+1, bodyTop, maxX-1, splitY)
	if err != nil {
		return err
	}
	detailsView.Title = "Details"
	detailsView.Wrap = true
	applyViewStyle(detailsView, false)
	u.renderDetails(detailsView)

	intervalsView, err := setView(gui, viewIntervals, leftX1+1, splitY+1, maxX-1, bodyBottom)
	if err != nil {
		return err
	}
	intervalsView.Title = "Intervals"
	applyViewStyle(intervalsView, u.focus == viewIntervals)
	u.renderIntervals(intervalsView)

	if u.form != nil {
		if err := u.showForm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
	}
	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewHelp)
	}

	if gui.CurrentView() == nil {
		_, _ = gui.SetCurrentView(u.focus)
	}
	gui.Cursor = u.form != nil
	return nil
}

// setView creates or resizes a view, hiding gocui's creation sentinel.
func setView(gui *gocui.Gui, name string, x0, y0, x1, y1 int) (*gocui.View, error) {
	view, err := gui.SetView(name, x0, y0, x1, y1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return nil, err
	}
	return view, nil
}

// load refreshes everything shown from the database in one read transaction.
func (u *UI) load() error {
	return u.env.View(u.ctx, func(tr *core.Tracker) error {
		forest, err := tr.FilteredForest(u.ctx, core.LiveNodes)
		if err != nil {
			return err
		}
		forest.SortFunc(core.ByLabel)
		u.tasks = buildVisibleTaskTree(forest, u.collapsed)
		u.selectedTasks = clamp(u.selectedTasks, len(u.tasks))

		if u.running, err = tr.Running(u.ctx); err != nil {
			return err
		}
		if u.intervals, err = tr.Intervals(u.ctx, recentIntervals); err != nil {
			return err
		}
		u.selectedIntervals = clamp(u.selectedIntervals, len(u.intervals))
		return u.loadDetails(tr)
	})
}

func (u *UI) loadDetails(tr *core.Tracker) error {
	u.path, u.details = nil, nil
	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	var err error
	if u.path, err = tr.Ancestors(u.ctx, selected.ID); err != nil {
		return err
	}
	u.details, err = tr.TaskIntervals(u.ctx, selected.ID)
	return err
}

// update runs fn as one committed command and reloads. Domain errors end up in
// the status line.
func (u *UI) update(fn func(*core.Tracker) (string, error)) error {
	var msg string
	err := u.env.Update(u.ctx, func(tr *core.Tracker) error {
		var err error
		msg, err = fn(tr)
		return err
	})
	if err != nil {
		u.status = err.Error()
		var running *core.RunningError
		if errors.As(err, &running) {
			u.status += ", stop or cancel it first"
		}
		return u.load()
	}
	u.status = msg
	return u.load()
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	if u.running == nil {
		fmt.Fprint(view, "Idle")
		return
	}
	fmt.Fprintf(view, "Running: %s for %s", model.PathString(u.running.Path),
		formatDuration(u.running.Interval.Duration(u.now())))
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	if u.status != "" {
		fmt.Fprintln(view, u.status)
	} else {
		fmt.Fprintln(view, "")
	}
	fmt.Fprint(view, "s start | a new | x stop | c cancel | r restart | t tag | e rename | d delete | enter collapse | ? help | q quit")
}

func (u *UI) renderTasks(view *gocui.View) {
	view.Clear()
	var runningID int64
	if u.running != nil {
		runningID = u.running.Task().ID
	}
	for i, row := range u.tasks {
		prefix := " "
		if i == u.selectedTasks && u.focus == viewTasks {
			prefix = ">"
		}
		marker := " "
		if row.HasChildren {
			marker = "-"
			if u.collapsed[row.Node.ID] {
				marker = "+"
			}
		}
		fmt.Fprintf(view, "%s %s%s %s\n", prefix, strings.Repeat("  ", row.Depth), marker,
			formatTaskSummary(row.Node, row.Node.ID == runningID))
	}
	if u.focus == viewTasks && len(u.tasks) > 0 {
		view.SetCursor(0, u.selectedTasks)
	}
}

func (u *UI) renderDetails(view *gocui.View) {
	view.Clear()
	if len(u.path) == 0 {
		fmt.Fprint(view, "No task selected")
		return
	}
	task := u.path[len(u.path)-1]
	fmt.Fprintf(view, "%s (id %d)\n", model.PathString(u.path), task.ID)
	if tags := task.TagList(); len(tags) > 0 {
		fmt.Fprintf(view, "Tags: %s\n", strings.Join(tags, ", "))
	}
	fmt.Fprintf(view, "Created: %s\n\n", task.Created.Local().Format("2006-01-02 15:04"))

	var total time.Duration
	now := u.now()
	for _, i := range u.details {
		total += i.Duration(now)
	}
	fmt.Fprintf(view, "%d intervals, %s in total\n", len(u.details), formatDuration(total))
}

func (u *UI) renderIntervals(view *gocui.View) {
	view.Clear()
	now := u.now()
	for i, a := range u.intervals {
		prefix := " "
		if i == u.selectedIntervals && u.focus == viewIntervals {
			prefix = ">"
		}
		end := "running"
		if a.Interval.End != nil {
			end = a.Interval.End.Local().Format("15:04")
		}
		fmt.Fprintf(view, "%s %4d %s-%-7s %8s  %s\n", prefix, a.Interval.ID,
			a.Interval.Begin.Local().Format("01-02 15:04"), end,
			formatDuration(a.Interval.Duration(now)), model.PathString(a.Path))
	}
	if u.focus == viewIntervals && len(u.intervals) > 0 {
		view.SetCursor(0, u.selectedIntervals)
	}
}

func (u *UI) showForm(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(40, maxX/2)
	x0 := (maxX - width) / 2
	y0 := (maxY - 3) / 2

	view, err := gui.SetView(viewForm, x0, y0, x0+width, y0+2, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = u.form.title()
		view.Editable = true
		view.Editor = gocui.DefaultEditor
		view.Clear()
		fmt.Fprint(view, u.form.value)
		view.SetCursor(len([]rune(u.form.value)), 0)
	}
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(60, maxX/2)
	height := 14
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewHelp, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) selectedTask() *model.Node {
	if u.selectedTasks < 0 || u.selectedTasks >= len(u.tasks) {
		return nil
	}
	return &u.tasks[u.selectedTasks].Node
}

func (u *UI) selectedInterval() *core.Activity {
	if u.selectedIntervals < 0 || u.selectedIntervals >= len(u.intervals) {
		return nil
	}
	return u.intervals[u.selectedIntervals]
}

func (u *UI) inputActive() bool {
	return u.form != nil || u.helpActive
}

func (u *UI) setFocus(gui *gocui.Gui, name string) {
	u.focus = name
	if gui != nil {
		_, _ = gui.SetCurrentView(name)
	}
}

func (u *UI) switchFocus(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.focus == viewTasks {
		u.setFocus(gui, viewIntervals)
	} else {
		u.setFocus(gui, viewTasks)
	}
	return nil
}

func (u *UI) moveDown(_ *gocui.Gui, _ *gocui.View) error {
	return u.move(1)
}

func (u *UI) moveUp(_ *gocui.Gui, _ *gocui.View) error {
	return u.move(-1)
}

func (u *UI) move(delta int) error {
	if u.inputActive() {
		return nil
	}
	if u.focus == viewIntervals {
		u.selectedIntervals = clamp(u.selectedIntervals+delta, len(u.intervals))
		return nil
	}
	next := clamp(u.selectedTasks+delta, len(u.tasks))
	if next == u.selectedTasks {
		return nil
	}
	u.selectedTasks = next
	return u.env.View(u.ctx, u.loadDetails)
}

func (u *UI) reload(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	return u.load()
}

func (u *UI) toggleCollapse(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || u.selectedTasks >= len(u.tasks) {
		return nil
	}
	row := u.tasks[u.selectedTasks]
	if !row.HasChildren {
		return nil
	}
	u.collapsed[row.Node.ID] = !u.collapsed[row.Node.ID]
	return u.load()
}

func (u *UI) startSelected(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || len(u.path) == 0 {
		return nil
	}
	path := make([]string, len(u.path))
	for i, n := range u.path {
		path[i] = n.Label
	}
	return u.start(path)
}

func (u *UI) start(path []string) error {
	return u.update(func(tr *core.Tracker) (string, error) {
		a, err := tr.Start(u.ctx, path)
		if err != nil {
			return "", err
		}
		return "Started " + model.PathString(a.Path), nil
	})
}

func (u *UI) stop(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	return u.update(func(tr *core.Tracker) (string, error) {
		a, err := tr.Stop(u.ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Stopped %s after %s", model.PathString(a.Path), formatDuration(a.Interval.Duration(u.now()))), nil
	})
}

func (u *UI) cancel(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	return u.update(func(tr *core.Tracker) (string, error) {
		a, err := tr.Cancel(u.ctx)
		if err != nil {
			return "", err
		}
		return "Canceled " + model.PathString(a.Path), nil
	})
}

func (u *UI) restart(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	return u.update(func(tr *core.Tracker) (string, error) {
		a, err := tr.Restart(u.ctx)
		if err != nil {
			return "", err
		}
		return "Restarted " + model.PathString(a.Path), nil
	})
}

// deleteSelected deletes the selected task or interval, depending on focus.
func (u *UI) deleteSelected(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.focus == viewIntervals {
		selected := u.selectedInterval()
		if selected == nil {
			return nil
		}
		return u.update(func(tr *core.Tracker) (string, error) {
			a, err := tr.DeleteInterval(u.ctx, selected.Interval.ID)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Deleted interval %d", a.Interval.ID), nil
		})
	}

	selected := u.selectedTask()
	if selected == nil {
		return nil
	}
	id := selected.ID
	return u.update(func(tr *core.Tracker) (string, error) {
		res, err := tr.DeleteTask(u.ctx, id)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Deleted %d tasks and %d intervals", res.Nodes, res.Intervals), nil
	})
}

func (u *UI) openStart(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.form = newStartForm(u.path)
	return nil
}

func (u *UI) openTag(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if selected := u.selectedTask(); selected != nil {
		u.form = &formState{kind: formTag, taskID: selected.ID}
	}
	return nil
}

func (u *UI) openRename(_ *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if selected := u.selectedTask(); selected != nil {
		u.form = &formState{kind: formRename, taskID: selected.ID, value: selected.Label}
	}
	return nil
}

func (u *UI) submitForm(gui *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	form := u.form
	value := form.value
	if view != nil {
		value = view.Buffer()
	}
	u.closeForm(gui)
	return u.applyForm(form, value)
}

func (u *UI) cancelForm(gui *gocui.Gui, _ *gocui.View) error {
	u.closeForm(gui)
	return nil
}

func (u *UI) closeForm(gui *gocui.Gui) {
	u.form = nil
	if gui != nil {
		_ = gui.DeleteView(viewForm)
		_, _ = gui.SetCurrentView(u.focus)
	}
}

// applyForm runs the command form was opened for.
func (u *UI) applyForm(form *formState, value string) error {
	if form == nil {
		return nil
	}
	value = strings.TrimSpace(value)

	switch form.kind {
	case formStart:
		return u.start(model.ParsePath(value))
	case formRename:
		return u.update(func(tr *core.Tracker) (string, error) {
			path, err := tr.Rename(u.ctx, form.taskID, value)
			if err != nil {
				return "", err
			}
			return "Renamed to " + model.PathString(path), nil
		})
	case formTag:
		add, remove, err := parseTagInput(value)
		if err != nil {
			u.status = err.Error()
			return nil
		}
		ids := []int64{form.taskID}
		return u.update(func(tr *core.Tracker) (string, error) {
			if len(add) > 0 {
				if _, err := tr.Tag(u.ctx, ids, add); err != nil {
					return "", err
				}
			}
			if len(remove) > 0 {
				if _, err := tr.Untag(u.ctx, ids, remove); err != nil {
					return "", err
				}
			}
			return "Tags updated", nil
		})
	}
	return nil
}

func (u *UI) toggleHelp(gui *gocui.Gui, _ *gocui.View) error {
	if u.form != nil {
		return nil
	}
	u.helpActive = !u.helpActive
	if !u.helpActive && gui != nil {
		_ = gui.DeleteView(viewHelp)
		_, _ = gui.SetCurrentView(u.focus)
	}
	return nil
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	if u.form != nil {
		return nil
	}
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Navigation:",
		"  tab switch between tasks and intervals",
		"  j/k or arrows move selection",
		"  enter collapse/expand a task",
		"",
		"Tracking:",
		"  s start the selected task | a start a new path",
		"  x stop | c cancel | r restart the last task",
		"",
		"Editing:",
		"  t tag (-tag removes) | e rename | d delete task or interval",
		"",
		"Other:",
		"  g reload | ? or esc close help | q quit",
	}, "\n")
}

func applyViewStyle(view *gocui.View, focused bool) {
	view.Frame = true
	view.Highlight = focused
	view.SelBgColor = gocui.ColorBlue
	view.SelFgColor = gocui.ColorBlack
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
		view.TitleColor = gocui.ColorDefault
	}
}

// clamp keeps i within [0, n).
func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	return min(i, n-1)
}
