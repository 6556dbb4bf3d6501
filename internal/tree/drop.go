package tree

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Position is where a dragged row was released relative to the target row.
type Position int

const (
	Above Position = -1
	On    Position = 0
	Below Position = 1
)

func (p Position) String() string {
	switch p {
	case Above:
		return "above"
	case On:
		return "on"
	case Below:
		return "below"
	default:
		return "Position(" + strconv.Itoa(int(p)) + ")"
	}
}

func ParsePosition(s string) (Position, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "above", "before":
		return Above, nil
	case "on", "into", "child":
		return On, nil
	case "below", "after":
		return Below, nil
	default:
		return 0, fmt.Errorf("invalid drop position: %q (want above|on|below)", s)
	}
}

// PositionFromOffset converts a tree widget's drop report into a Position.
// dropPosition is the absolute drop slot; targetPos is the target's depth path ("0-2-1"),
// whose last segment is the target's index among its siblings.
func PositionFromOffset(dropPosition int, targetPos string) (Position, error) {
	parts := strings.Split(strings.TrimSpace(targetPos), "-")
	last, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid target path %q: %w", targetPos, err)
	}
	switch rel := dropPosition - last; rel {
	case -1:
		return Above, nil
	case 0:
		return On, nil
	case 1:
		return Below, nil
	default:
		return 0, fmt.Errorf("invalid relative drop offset %d", rel)
	}
}

// ErrCycle is returned for a drop onto the dragged node itself or onto one of its descendants.
var ErrCycle = errors.New("cannot drop an item onto itself or its descendants")

// Drop is one drag gesture.
type Drop struct {
	SourceID int64
	TargetID int64
	Position Position
}

// Resolve applies a drag gesture and returns the complete new tree.
//
// Above/Below make the dragged node a sibling of the target; On makes it the target's last
// child. The input is left untouched.
func Resolve[T any](nodes []Node[T], d Drop) ([]Node[T], error) {
	if d.SourceID == d.TargetID {
		return nil, ErrCycle
	}
	src, ok := Locate(nodes, d.SourceID)
	if !ok {
		return nil, NotFoundError{ID: d.SourceID}
	}
	before, ok := Locate(nodes, d.TargetID)
	if !ok {
		return nil, NotFoundError{ID: d.TargetID}
	}
	if IsAncestor(nodes, d.SourceID, d.TargetID) {
		return nil, ErrCycle
	}

	rest, moved, _ := Extract(nodes, d.SourceID)
	target, ok := Locate(rest, d.TargetID)
	if !ok {
		return nil, NotFoundError{ID: d.TargetID}
	}

	switch d.Position {
	case On:
		out, ok := InsertChild(rest, d.TargetID, moved)
		if !ok {
			return nil, fmt.Errorf("insert under %d: %w", d.TargetID, NotFoundError{ID: d.TargetID})
		}
		return out, nil
	case Above, Below:
		// dropIndex is in the coordinates of the list before the dragged node was removed.
		dropIndex := before.Index
		if d.Position == Below {
			dropIndex++
		}
		insert := dropIndex
		if src.ParentID == before.ParentID && src.Index < dropIndex {
			insert = dropIndex - 1
		}
		out, ok := InsertSibling(rest, target.ParentID, insert, moved)
		if !ok {
			return nil, fmt.Errorf("insert next to %d: %w", d.TargetID, NotFoundError{ID: target.ParentID})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("invalid drop position %d", int(d.Position))
	}
}

// Move returns a copy of list with the element at from moved to index to.
func Move[T any](list []T, from, to int) ([]T, error) {
	if from < 0 || from >= len(list) {
		return nil, fmt.Errorf("source index %d out of range", from)
	}
	if to < 0 || to >= len(list) {
		return nil, fmt.Errorf("destination index %d out of range", to)
	}
	out := make([]T, 0, len(list))
	out = append(out, list[:from]...)
	out = append(out, list[from+1:]...)
	moved := list[from]
	out = append(out, moved)
	copy(out[to+1:], out[to:len(out)-1])
	out[to] = moved
	return out, nil
}
