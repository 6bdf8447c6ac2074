package execx

import "bytes"

const defaultOutputLimit = 1 << 20

// limitWriter keeps the first limit bytes written to it and counts the rest.
// Writes never fail so a chatty child process is not killed by EPIPE.
type limitWriter struct {
	limit   int
	data    bytes.Buffer
	dropped int64
}

func newLimitWriter(limit int) *limitWriter {
	if limit <= 0 {
		limit = defaultOutputLimit
	}
	return &limitWriter{limit: limit}
}

func (w *limitWriter) Write(p []byte) (int, error) {
	keep := w.limit - w.data.Len()
	if keep < 0 {
		keep = 0
	}
	if keep > len(p) {
		keep = len(p)
	}
	w.data.Write(p[:keep])
	w.dropped += int64(len(p) - keep)
	return len(p), nil
}

func (w *limitWriter) truncated() bool {
	return w.dropped > 0
}

func (w *limitWriter) String() string {
	return w.data.String()
}
