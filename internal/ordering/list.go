package ordering

import (
	"errors"
	"fmt"
)

var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrDuplicateEntity = errors.New("duplicate entity")
)

// List is an editable sequence of entities, unique by id. It is not safe for
// concurrent mutation.
type List[T any] struct {
	id    func(T) int64
	items []T
}

// NewList copies items into a working list. It fails if two items share an id.
func NewList[T any](items []T, id func(T) int64) (*List[T], error) {
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		key := id(item)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("new list: id %d: %w", key, ErrDuplicateEntity)
		}
		seen[key] = struct{}{}
	}
	return &List[T]{id: id, items: append(make([]T, 0, len(items)), items...)}, nil
}

func (l *List[T]) Len() int {
	return len(l.items)
}

// Items returns a copy of the current sequence.
func (l *List[T]) Items() []T {
	return append(make([]T, 0, len(l.items)), l.items...)
}

func (l *List[T]) IndexOf(id int64) int {
	for i, item := range l.items {
		if l.id(item) == id {
			return i
		}
	}
	return -1
}

func (l *List[T]) Contains(id int64) bool {
	return l.IndexOf(id) >= 0
}

// Add appends item. Adding an id already in the list is rejected and leaves
// the list unchanged.
func (l *List[T]) Add(item T) error {
	key := l.id(item)
	if l.Contains(key) {
		return fmt.Errorf("add id %d: %w", key, ErrDuplicateEntity)
	}
	l.items = append(l.items, item)
	return nil
}

// RemoveAt deletes and returns the item at index.
func (l *List[T]) RemoveAt(index int) (T, error) {
	var zero T
	if index < 0 || index >= len(l.items) {
		return zero, fmt.Errorf("remove at %d (len %d): %w", index, len(l.items), ErrIndexOutOfRange)
	}
	removed := l.items[index]
	l.items = append(l.items[:index], l.items[index+1:]...)
	return removed, nil
}

// Move takes the item at from out of the list and reinserts it at to, where to
// indexes the shortened list.
func (l *List[T]) Move(from, to int) error {
	n := len(l.items)
	if from < 0 || from >= n || to < 0 || to >= n {
		return fmt.Errorf("move %d -> %d (len %d): %w", from, to, n, ErrIndexOutOfRange)
	}
	if from == to {
		return nil
	}
	item := l.items[from]
	if from < to {
		copy(l.items[from:to], l.items[from+1:to+1])
	} else {
		copy(l.items[to+1:from+1], l.items[to:from])
	}
	l.items[to] = item
	return nil
}

// OrderVector returns the ids in current order.
func (l *List[T]) OrderVector() []int64 {
	return IDs(l.items, l.id)
}
