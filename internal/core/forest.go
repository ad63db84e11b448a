package core

import (
	"cmp"
	"iter"
	"slices"

	"github.com/Joseda-hg/lazytime/internal/model"
)

// Tree is a task with its placed children.
type Tree struct {
	Node     model.Node
	Children []*Tree
}

// Forest is an ordered list of top-level trees.
type Forest []*Tree

// BuildForest links a flat node listing into trees. Rows ordered by
// (parent_id, id) are the fast path, but any order is accepted: a node whose
// parent appears later is kept aside and attached once the parent is placed.
// Nodes whose parent never appears become top-level trees.
func BuildForest(nodes []model.Node) Forest {
	var root, dangling Forest

	i := 0
	for i < len(nodes) && nodes[i].ParentID == nil {
		root = append(root, &Tree{Node: nodes[i]})
		i++
	}

	for _, n := range nodes[i:] {
		t := &Tree{Node: n}
		switch {
		case n.ParentID == nil:
			root = append(root, t)
		case dangling.adopt(t), root.adopt(t):
		default:
			dangling = append(dangling, t)
		}
		dangling = t.claim(dangling)
	}

	return append(root, dangling...)
}

// adopt attaches t under the node its ParentID names, if f holds it.
func (f Forest) adopt(t *Tree) bool {
	for _, tree := range f {
		if parent := tree.find(*t.Node.ParentID); parent != nil {
			parent.Children = append(parent.Children, t)
			return true
		}
	}
	return false
}

// claim moves the dangling trees whose root is a child of t under t and
// returns the trees left dangling.
func (t *Tree) claim(dangling Forest) Forest {
	return slices.DeleteFunc(dangling, func(d *Tree) bool {
		if d.Node.ParentID == nil || *d.Node.ParentID != t.Node.ID || d.find(t.Node.ID) != nil {
			return false
		}
		t.Children = append(t.Children, d)
		return true
	})
}

func (t *Tree) find(id int64) *Tree {
	if t.Node.ID == id {
		return t
	}
	for _, c := range t.Children {
		if found := c.find(id); found != nil {
			return found
		}
	}
	return nil
}

// Find returns the subtree rooted at id, or nil.
func (f Forest) Find(id int64) *Tree {
	for _, t := range f {
		if found := t.find(id); found != nil {
			return found
		}
	}
	return nil
}

// Len counts every node in the forest.
func (f Forest) Len() int {
	n := 0
	for range f.Walk() {
		n++
	}
	return n
}

// Walk visits every tree depth-first, parents before children, with its depth.
func (f Forest) Walk() iter.Seq2[int, *Tree] {
	return func(yield func(int, *Tree) bool) {
		var walk func(ts []*Tree, depth int) bool
		walk = func(ts []*Tree, depth int) bool {
			for _, t := range ts {
				if !yield(depth, t) || !walk(t.Children, depth+1) {
					return false
				}
			}
			return true
		}
		walk(f, 0)
	}
}

// Paths yields the root-to-node path of every node in depth-first order. Each
// yielded slice is owned by the caller.
func (f Forest) Paths() iter.Seq[[]model.Node] {
	return f.paths(false)
}

// LeafPaths yields only the paths ending in a leaf.
func (f Forest) LeafPaths() iter.Seq[[]model.Node] {
	return f.paths(true)
}

func (f Forest) paths(leavesOnly bool) iter.Seq[[]model.Node] {
	return func(yield func([]model.Node) bool) {
		var path []model.Node
		var walk func(ts []*Tree) bool
		walk = func(ts []*Tree) bool {
			for _, t := range ts {
				path = append(path, t.Node)
				if (!leavesOnly || len(t.Children) == 0) && !yield(slices.Clone(path)) {
					return false
				}
				if !walk(t.Children) {
					return false
				}
				path = path[:len(path)-1]
			}
			return true
		}
		walk(f)
	}
}

// SortFunc orders every sibling list with compare, keeping equal elements in place.
func (f Forest) SortFunc(compare func(a, b *Tree) int) {
	slices.SortStableFunc(f, compare)
	for _, t := range f {
		Forest(t.Children).SortFunc(compare)
	}
}

// ByLabel orders trees by task label.
func ByLabel(a, b *Tree) int {
	return cmp.Compare(a.Node.Label, b.Node.Label)
}
