package curl

import "bytes"

// responseBuffer collects the body of one transfer. The engine calls Write
// once per chunk as data arrives; chunks are appended in arrival order.
type responseBuffer struct {
	buf    bytes.Buffer
	chunks int
	total  int64
}

func (r *responseBuffer) Write(p []byte) (int, error) {
	n, err := r.buf.Write(p)
	r.chunks++
	r.total += int64(n)
	return n, err
}

// Bytes returns the assembled body. The result is never nil so an empty
// successful response stays distinguishable from an absent one.
func (r *responseBuffer) Bytes() []byte {
	if r.buf.Len() == 0 {
		return []byte{}
	}
	return r.buf.Bytes()
}
