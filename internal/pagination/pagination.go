// Package pagination implements the recency-anchored message window.
//
// NOTE: offset counts from the newest end. offset=0 is always the most
// recent page and larger offsets walk backward in time. The window itself
// stays in the input (ascending) order.
package pagination

// Paginate returns the window of items and the total item count.
// Negative offset or limit are treated as zero.
func Paginate[T any](items []T, offset, limit int) ([]T, int) {
	total := len(items)
	if offset < 0 {
		offset = 0
	}
	if limit < 0 {
		limit = 0
	}

	end := total - offset
	start := end - limit
	if start < 0 {
		start = 0
	}
	if start >= end {
		return make([]T, 0), total
	}

	window := make([]T, end-start)
	copy(window, items[start:end])
	return window, total
}
