package sqlstore

// Dialect describes the differences between SQL backends.
type Dialect struct {
	// Name identifies the backend in logs
	Name string

	// Placeholder returns the bind parameter for the n-th argument, 1-based
	Placeholder func(n int) string

	// MapError translates driver errors into store errors
	MapError func(error) error
}

// placeholders returns the first n placeholders of d.
func (d Dialect) placeholders(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = d.Placeholder(i + 1)
	}
	return out
}
