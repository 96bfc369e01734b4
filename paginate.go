package propbooks

// PageSlice returns the records of a 1-based page. size <= 0 returns the full
// slice; a page past the end returns nil.
func PageSlice[T any](records []T, page, size int) []T {
	if size <= 0 {
		return records
	}
	if page < 1 {
		page = 1
	}
	lo := (page - 1) * size
	if lo >= len(records) {
		return nil
	}
	hi := lo + size
	if hi > len(records) {
		hi = len(records)
	}
	return records[lo:hi:hi]
}

// PageCount returns how many pages a collection of total records spans.
func PageCount(total, size int) int {
	if total <= 0 {
		return 0
	}
	if size <= 0 {
		return 1
	}
	return (total + size - 1) / size
}
