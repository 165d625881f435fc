package health

import (
	"net/http"
	"sync/atomic"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readiness tracks whether the chart renderer has finished warming up.
type Readiness struct {
	ready atomic.Bool
}

// MarkReady flips the probe to ready.
func (r *Readiness) MarkReady() {
	r.ready.Store(true)
}

// Ready reports the current state.
func (r *Readiness) Ready() bool {
	return r.ready.Load()
}

// Readyz returns 200 "ready\n" once MarkReady was called, 503 before.
func (r *Readiness) Readyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if !r.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("warming up\n"))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}
