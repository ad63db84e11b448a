package core

import (
	"errors"
	"fmt"

	"github.com/Joseda-hg/lazytime/internal/model"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrIntervalNotFound = errors.New("interval not found")
	ErrNoRunning        = errors.New("no interval running")
	ErrNothingToRestart = errors.New("there are no previously started tasks")
	ErrEmptyPath        = errors.New("task path is empty")
	ErrInvalidLabel     = errors.New("invalid task name")
	ErrInvalidMove      = errors.New("invalid move")
	ErrDuplicateTask    = errors.New("a task with that name already exists there")
	ErrTaskDeleted      = errors.New("task already deleted")
	ErrTaskRunning      = errors.New("task is running")
	ErrIntervalOverlap  = errors.New("interval would overlap another one")
	ErrIntervalRunning  = errors.New("interval is still running")
	ErrIntervalTooShort = errors.New("interval is too short")
)

// RunningError rejects a command because an interval is already open.
type RunningError struct {
	Path     []model.Node
	Interval *model.Interval
}

func (e *RunningError) Error() string {
	return fmt.Sprintf("interval already running on %s since %s",
		model.PathString(e.Path), e.Interval.Begin.Local().Format("2006-01-02 15:04:05"))
}
