package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestReadyz(t *testing.T) {
	var r Readiness

	w := httptest.NewRecorder()
	r.Readyz(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("before MarkReady: status = %d, want 503", w.Code)
	}

	r.MarkReady()
	w = httptest.NewRecorder()
	r.Readyz(w, httptest.NewRequest("GET", "/readyz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ready\n" {
		t.Errorf("after MarkReady: status = %d body = %q", w.Code, w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest("GET", "/healthz", nil))
	if w.Code != http.StatusOK || w.Body.String() != "ok\n" {
		t.Errorf("status = %d body = %q", w.Code, w.Body.String())
	}
}
