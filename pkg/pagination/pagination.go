package pagination

const (
	DefaultLimit = 10
	// MaxLimit caps any remote scan listing.
	MaxLimit = 100
)

// NormalizeLimit maps non-positive limits to DefaultLimit and clamps to MaxLimit.
func NormalizeLimit(limit int) int {
	return Clamp(limit, DefaultLimit, MaxLimit)
}

func Clamp(limit, def, max int) int {
	switch {
	case limit <= 0:
		return def
	case limit > max:
		return max
	}
	return limit
}

// Head returns at most limit leading items of a newest-first slice.
func Head[T any](items []T, limit int) []T {
	if limit < 0 {
		limit = 0
	}
	if len(items) <= limit {
		return items
	}
	return items[:limit]
}
