package model

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Joseda-hg/lazytime/internal/orm"
)

// Column names of the nodes table.
const (
	NodeID       = "id"
	NodeLabel    = "label"
	NodeParentID = "parent_id"
	NodeCreated  = "created"
	NodeClosed   = "closed"
	NodeDeleted  = "deleted"
	NodeTags     = "tags"
)

// Column names of the intervals table.
const (
	IntervalID      = "id"
	IntervalNodeID  = "node_id"
	IntervalBegin   = "begin"
	IntervalEnd     = "end"
	IntervalDeleted = "deleted"
	IntervalClosed  = "closed"
)

var (
	nodeFields     = []string{NodeID, NodeLabel, NodeParentID, NodeCreated, NodeClosed, NodeDeleted, NodeTags}
	intervalFields = []string{IntervalID, IntervalNodeID, IntervalBegin, IntervalEnd, IntervalDeleted, IntervalClosed}
)

// Node is a task. ParentID nil means a top-level task.
type Node struct {
	ID       int64
	ParentID *int64
	Label    string
	Created  time.Time
	Closed   bool
	Deleted  bool
	Tags     string
}

func NewNode(label string, parentID *int64) *Node {
	return &Node{Label: label, ParentID: parentID, Created: now()}
}

func (*Node) TypeName() string { return "node" }
func (*Node) Fields() []string { return slices.Clone(nodeFields) }
func (*Node) New() orm.Record  { return &Node{Created: now()} }

func (n *Node) Get(field string) orm.Value {
	switch field {
	case NodeID:
		return orm.Int(n.ID)
	case NodeLabel:
		return orm.Text(n.Label)
	case NodeParentID:
		return orm.OptInt(n.ParentID)
	case NodeCreated:
		return orm.Time(n.Created)
	case NodeClosed:
		return orm.Bool(n.Closed)
	case NodeDeleted:
		return orm.Bool(n.Deleted)
	case NodeTags:
		return orm.Text(n.Tags)
	default:
		return orm.Null()
	}
}

func (n *Node) Set(field string, v orm.Value) error {
	var err error
	switch field {
	case NodeID:
		n.ID, err = v.AsInt64()
	case NodeLabel:
		n.Label, err = v.AsText()
	case NodeParentID:
		n.ParentID, err = v.AsOptInt64()
	case NodeCreated:
		n.Created, err = v.AsTime()
	case NodeClosed:
		n.Closed, err = v.AsBool()
	case NodeDeleted:
		n.Deleted, err = v.AsBool()
	case NodeTags:
		n.Tags, err = v.AsText()
	default:
		return orm.UnknownField(n, field)
	}
	if err != nil {
		return fmt.Errorf("node.%s: %w", field, err)
	}
	return nil
}

func (n *Node) String() string {
	return n.Label
}

// Interval is a span of work on a task. End nil means it is still running.
type Interval struct {
	ID      int64
	NodeID  *int64
	Begin   time.Time
	End     *time.Time
	Deleted bool
	Closed  bool
}

func NewInterval(nodeID int64, begin time.Time) *Interval {
	return &Interval{NodeID: &nodeID, Begin: begin.UTC()}
}

func (*Interval) TypeName() string { return "interval" }
func (*Interval) Fields() []string { return slices.Clone(intervalFields) }
func (*Interval) New() orm.Record  { return &Interval{Begin: now()} }

func (i *Interval) Get(field string) orm.Value {
	switch field {
	case IntervalID:
		return orm.Int(i.ID)
	case IntervalNodeID:
		return orm.OptInt(i.NodeID)
	case IntervalBegin:
		return orm.Time(i.Begin)
	case IntervalEnd:
		return orm.OptTime(i.End)
	case IntervalDeleted:
		return orm.Bool(i.Deleted)
	case IntervalClosed:
		return orm.Bool(i.Closed)
	default:
		return orm.Null()
	}
}

func (i *Interval) Set(field string, v orm.Value) error {
	var err error
	switch field {
	case IntervalID:
		i.ID, err = v.AsInt64()
	case IntervalNodeID:
		i.NodeID, err = v.AsOptInt64()
	case IntervalBegin:
		i.Begin, err = v.AsTime()
	case IntervalEnd:
		i.End, err = v.AsOptTime()
	case IntervalDeleted:
		i.Deleted, err = v.AsBool()
	case IntervalClosed:
		i.Closed, err = v.AsBool()
	default:
		return orm.UnknownField(i, field)
	}
	if err != nil {
		return fmt.Errorf("interval.%s: %w", field, err)
	}
	return nil
}

// Running reports whether the interval has no end and is not deleted.
func (i *Interval) Running() bool {
	return i.End == nil && !i.Deleted
}

// Duration is the length of the interval, measured up to at when it is open.
func (i *Interval) Duration(at time.Time) time.Duration {
	end := at
	if i.End != nil {
		end = *i.End
	}
	return end.Sub(i.Begin)
}

func (i *Interval) String() string {
	end := "never"
	if i.End != nil {
		end = i.End.Format(time.RFC3339)
	}
	return fmt.Sprintf("[started: %s stopped: %s]", i.Begin.Format(time.RFC3339), end)
}

// PathString joins task labels the way paths are typed on the command line.
func PathString(path []Node) string {
	labels := make([]string, len(path))
	for i, n := range path {
		labels[i] = n.Label
	}
	return strings.Join(labels, PathSeparator)
}

// now strips the monotonic reading so values compare equal after a round trip.
func now() time.Time {
	return time.Now().UTC().Round(0)
}
