package term

// DefaultRingSize bounds the number of raw output chunks retained per agent.
const DefaultRingSize = 1000

// Ring is a bounded, insertion-ordered sequence of raw output chunks. When
// full, the oldest chunk is evicted. It is not safe for concurrent use; the
// manager serializes all access per agent.
type Ring struct {
	chunks []string
	max    int
}

// NewRing creates a ring retaining at most max chunks. Non-positive max
// falls back to DefaultRingSize.
func NewRing(max int) *Ring {
	if max <= 0 {
		max = DefaultRingSize
	}
	return &Ring{
		chunks: make([]string, 0, max),
		max:    max,
	}
}

// Append adds a chunk, evicting the oldest if the ring is full.
func (r *Ring) Append(chunk string) {
	if len(r.chunks) >= r.max {
		copy(r.chunks, r.chunks[1:])
		r.chunks = r.chunks[:len(r.chunks)-1]
	}
	r.chunks = append(r.chunks, chunk)
}

// Len returns the number of retained chunks.
func (r *Ring) Len() int {
	return len(r.chunks)
}

// Last returns a copy of the most recent n chunks in chronological order.
// Fewer are returned when the ring holds fewer.
func (r *Ring) Last(n int) []string {
	if n <= 0 || len(r.chunks) == 0 {
		return nil
	}
	if n > len(r.chunks) {
		n = len(r.chunks)
	}
	out := make([]string, n)
	copy(out, r.chunks[len(r.chunks)-n:])
	return out
}

// All returns a copy of every retained chunk in chronological order.
func (r *Ring) All() []string {
	return r.Last(len(r.chunks))
}

// Replace discards the ring contents and installs chunks as the new tail,
// keeping only the newest max entries. Used when restoring persisted agents.
func (r *Ring) Replace(chunks []string) {
	if len(chunks) > r.max {
		chunks = chunks[len(chunks)-r.max:]
	}
	r.chunks = r.chunks[:0]
	r.chunks = append(r.chunks, chunks...)
}
