package model

import (
	"slices"
	"strings"

	"github.com/Joseda-hg/lazytime/internal/orm"
)

// PathSeparator delimits nested task names.
const PathSeparator = "::"

// ParsePath splits a nested task name into trimmed, non-empty segments.
func ParsePath(name string) []string {
	var res []string
	for _, part := range strings.Split(name, PathSeparator) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			res = append(res, trimmed)
		}
	}
	return res
}

// TagList returns the node's tags in stored order.
func (n *Node) TagList() []string {
	var res []string
	for _, tag := range strings.Split(strings.Trim(n.Tags, ","), ",") {
		if tag != "" {
			res = append(res, tag)
		}
	}
	return res
}

// SetTags stores tags as ",a,b," so every tag is matched by TagFilter.
func (n *Node) SetTags(tags []string) {
	normalized := NormalizeTags(tags)
	if len(normalized) == 0 {
		n.Tags = ""
		return
	}
	n.Tags = "," + strings.Join(normalized, ",") + ","
}

func (n *Node) AddTags(tags []string) {
	n.SetTags(append(n.TagList(), tags...))
}

func (n *Node) RemoveTags(tags []string) {
	drop := NormalizeTags(tags)
	n.SetTags(slices.DeleteFunc(n.TagList(), func(tag string) bool {
		return slices.Contains(drop, tag)
	}))
}

func (n *Node) HasTag(tag string) bool {
	return strings.Contains(n.Tags, ","+normalizeTag(tag)+",")
}

// TagFilter matches nodes carrying tag.
func TagFilter(tag string) orm.Filter {
	return orm.Includes(NodeTags, ","+normalizeTag(tag)+",")
}

// NormalizeTags lower-cases, trims, dedups and sorts tags. Commas are dropped
// since they delimit the stored form.
func NormalizeTags(tags []string) []string {
	res := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := normalizeTag(tag); t != "" {
			res = append(res, t)
		}
	}
	slices.Sort(res)
	return slices.Compact(res)
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(tag, ",", "")))
}

// SplitTags parses a comma separated tag list.
func SplitTags(s string) []string {
	return NormalizeTags(strings.Split(s, ","))
}
