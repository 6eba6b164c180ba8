// Package ordering keeps a user-reorderable list of entities in step with the
// canonical order vector persisted by the server.
package ordering

// Reconcile returns items arranged by order: entities referenced by order come
// first, in order's sequence, followed by the remaining entities in their
// original relative order. Ids in order with no matching entity are skipped.
// An empty order returns a copy of items unchanged.
func Reconcile[T any](order []int64, items []T, id func(T) int64) []T {
	out := make([]T, 0, len(items))
	if len(order) == 0 {
		return append(out, items...)
	}

	byID := make(map[int64]T, len(items))
	for _, item := range items {
		key := id(item)
		if _, exists := byID[key]; !exists {
			byID[key] = item
		}
	}

	emitted := make(map[int64]struct{}, len(items))
	for _, key := range order {
		item, ok := byID[key]
		if !ok {
			continue
		}
		if _, done := emitted[key]; done {
			continue
		}
		emitted[key] = struct{}{}
		out = append(out, item)
	}

	for _, item := range items {
		key := id(item)
		if _, done := emitted[key]; done {
			continue
		}
		emitted[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// Stale lists the ids in order that matched none of items, in order's sequence.
func Stale[T any](order []int64, items []T, id func(T) int64) []int64 {
	if len(order) == 0 {
		return nil
	}
	present := make(map[int64]struct{}, len(items))
	for _, item := range items {
		present[id(item)] = struct{}{}
	}
	var stale []int64
	for _, key := range order {
		if _, ok := present[key]; !ok {
			stale = append(stale, key)
		}
	}
	return stale
}

// IDs flattens items into their id vector.
func IDs[T any](items []T, id func(T) int64) []int64 {
	out := make([]int64, len(items))
	for i, item := range items {
		out[i] = id(item)
	}
	return out
}

// Identity is the id function for plain id slices.
func Identity(v int64) int64 { return v }
