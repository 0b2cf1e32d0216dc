package middleware

import (
	"net/http"
)

// StatusRecorder captures the status code and body size written by a
// handler so the access logger can report them.
type StatusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	flusher      http.Flusher
}

func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	recorder := &StatusRecorder{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}

	if flusher, ok := w.(http.Flusher); ok {
		recorder.flusher = flusher
	}

	return recorder
}

func (r *StatusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *StatusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytesWritten += int64(n)

	return n, err
}

func (r *StatusRecorder) Flush() {
	if r.flusher != nil {
		r.flusher.Flush()
	}
}

func (r *StatusRecorder) StatusCode() int {
	return r.statusCode
}

func (r *StatusRecorder) BytesWritten() int64 {
	return r.bytesWritten
}

func (r *StatusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
