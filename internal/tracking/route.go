package tracking

// route is a fixed-capacity ring of the most recent points.
type route[T any] struct {
	buf   []T
	start int
	n     int
}

func newRoute[T any](capacity int) *route[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &route[T]{buf: make([]T, capacity)}
}

func (r *route[T]) push(v T) {
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = v
		r.n++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *route[T]) len() int {
	return r.n
}

// items returns the points oldest first.
func (r *route[T]) items() []T {
	out := make([]T, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
