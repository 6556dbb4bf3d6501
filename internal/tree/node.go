// Package tree holds nested project items (notes, tasks, projects) as immutable node values.
//
// Every operation returns a new slice; inputs are never modified. Unchanged branches may be
// shared between the input and the output, which is safe because nothing mutates in place.
package tree

import (
	"fmt"
	"slices"
)

// Root is the scope id of the top-level sibling list. Item ids are always positive.
const Root int64 = 0

// Node wraps an item together with its ordered children.
type Node[T any] struct {
	ID       int64
	Item     T
	Children []Node[T]
}

// Location identifies a node's sibling list (by parent id) and its index in that list.
type Location struct {
	ParentID int64
	Index    int
}

type NotFoundError struct {
	ID int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("node not found: %d", e.ID)
}

// Find returns the first node with id in depth-first order.
func Find[T any](nodes []Node[T], id int64) (Node[T], bool) {
	for _, n := range nodes {
		if n.ID == id {
			return n, true
		}
		if found, ok := Find(n.Children, id); ok {
			return found, true
		}
	}
	var zero Node[T]
	return zero, false
}

// Locate returns the sibling list and index of the node with id.
func Locate[T any](nodes []Node[T], id int64) (Location, bool) {
	return locate(nodes, Root, id)
}

func locate[T any](nodes []Node[T], parentID, id int64) (Location, bool) {
	for i, n := range nodes {
		if n.ID == id {
			return Location{ParentID: parentID, Index: i}, true
		}
		if loc, ok := locate(n.Children, n.ID, id); ok {
			return loc, true
		}
	}
	return Location{}, false
}

// Extract removes the node with id (and its whole subtree) from wherever it is nested.
// When id is absent the input is returned unchanged with ok=false.
func Extract[T any](nodes []Node[T], id int64) (rest []Node[T], extracted Node[T], ok bool) {
	out := make([]Node[T], 0, len(nodes))
	for _, n := range nodes {
		if ok {
			out = append(out, n)
			continue
		}
		if n.ID == id {
			extracted, ok = n, true
			continue
		}
		if kids, ex, found := Extract(n.Children, id); found {
			n.Children = kids
			extracted, ok = ex, true
		}
		out = append(out, n)
	}
	if !ok {
		return nodes, extracted, false
	}
	return out, extracted, true
}

// InsertChild appends child as the last child of parentID (Root appends at the top level).
// When parentID is absent the input is returned unchanged with ok=false; callers treat that
// as a logic error.
func InsertChild[T any](nodes []Node[T], parentID int64, child Node[T]) ([]Node[T], bool) {
	if parentID == Root {
		return append(slices.Clone(nodes), child), true
	}
	for i := range nodes {
		if nodes[i].ID == parentID {
			out := slices.Clone(nodes)
			out[i].Children = append(slices.Clone(out[i].Children), child)
			return out, true
		}
		if kids, ok := InsertChild(nodes[i].Children, parentID, child); ok {
			out := slices.Clone(nodes)
			out[i].Children = kids
			return out, true
		}
	}
	return nodes, false
}

// InsertSibling inserts n at index in the sibling list whose parent is parentID.
// The index is clamped to the list bounds.
func InsertSibling[T any](nodes []Node[T], parentID int64, index int, n Node[T]) ([]Node[T], bool) {
	if parentID == Root {
		return insertAt(nodes, index, n), true
	}
	for i := range nodes {
		if nodes[i].ID == parentID {
			out := slices.Clone(nodes)
			out[i].Children = insertAt(out[i].Children, index, n)
			return out, true
		}
		if kids, ok := InsertSibling(nodes[i].Children, parentID, index, n); ok {
			out := slices.Clone(nodes)
			out[i].Children = kids
			return out, true
		}
	}
	return nodes, false
}

func insertAt[T any](list []Node[T], index int, n Node[T]) []Node[T] {
	if index < 0 {
		index = 0
	}
	if index > len(list) {
		index = len(list)
	}
	out := make([]Node[T], 0, len(list)+1)
	out = append(out, list[:index]...)
	out = append(out, n)
	out = append(out, list[index:]...)
	return out
}

// IsAncestor reports whether id is nested (at any depth) below ancestorID.
func IsAncestor[T any](nodes []Node[T], ancestorID, id int64) bool {
	anc, ok := Find(nodes, ancestorID)
	if !ok {
		return false
	}
	_, ok = Find(anc.Children, id)
	return ok
}

// IDs lists every node id in depth-first order.
func IDs[T any](nodes []Node[T]) []int64 {
	var out []int64
	var walk func([]Node[T])
	walk = func(ns []Node[T]) {
		for _, n := range ns {
			out = append(out, n.ID)
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}

// FromItems wraps a nested item list (e.g. notes with SubNotes) into nodes.
func FromItems[T any](items []T, id func(T) int64, children func(T) []T) []Node[T] {
	out := make([]Node[T], 0, len(items))
	for _, it := range items {
		out = append(out, Node[T]{
			ID:       id(it),
			Item:     it,
			Children: FromItems(children(it), id, children),
		})
	}
	return out
}

// ToItems unwraps nodes back into a nested item list, replacing each item's children with
// the node's children. Leaves get an empty (non-nil) child list.
func ToItems[T any](nodes []Node[T], withChildren func(T, []T) T) []T {
	out := make([]T, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, withChildren(n.Item, ToItems(n.Children, withChildren)))
	}
	return out
}
