package tui

import (
	"fmt"
	"strings"

	"github.com/Joseda-hg/lazytime/internal/model"
)

type formKind int

const (
	formStart formKind = iota
	formTag
	formRename
)

// formState is a one line prompt. taskID is the task the answer applies to,
// 0 for formStart.
type formState struct {
	kind   formKind
	taskID int64
	value  string
}

func (f *formState) title() string {
	switch f.kind {
	case formTag:
		return "Tags (comma separated, -tag removes)"
	case formRename:
		return "New name"
	default:
		return "Start task (a::b::c)"
	}
}

func newStartForm(path []model.Node) *formState {
	value := ""
	if len(path) > 0 {
		value = model.PathString(path) + model.PathSeparator
	}
	return &formState{kind: formStart, value: value}
}

// parseTagInput splits "a, -b" into tags to add and tags to remove.
func parseTagInput(value string) (add, remove []string, err error) {
	for part := range strings.SplitSeq(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(part, "-"); ok {
			remove = append(remove, rest)
		} else {
			add = append(add, part)
		}
	}
	add, remove = model.NormalizeTags(add), model.NormalizeTags(remove)
	if len(add) == 0 && len(remove) == 0 {
		return nil, nil, fmt.Errorf("no tags in %q", value)
	}
	return add, remove, nil
}
