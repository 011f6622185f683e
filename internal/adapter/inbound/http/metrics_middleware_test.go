package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func histogramCount(t *testing.T, reg *prometheus.Registry, method string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() != "sessiongate_request_duration_seconds" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "method" && lp.GetValue() == method {
					return m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	handler := MetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/messages", nil))

	if got := histogramCount(t, reg, "POST"); got != 1 {
		t.Errorf("expected 1 observation, got %d", got)
	}
}

func TestMetricsMiddleware_StatusLabels(t *testing.T) {
	tests := []struct {
		name   string
		status int
		label  string
	}{
		{name: "accepted", status: http.StatusAccepted, label: "ok"},
		{name: "bad request", status: http.StatusBadRequest, label: "error"},
		{name: "no session", status: http.StatusServiceUnavailable, label: "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := NewMetrics(prometheus.NewRegistry())
			handler := MetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))

			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/messages", nil))

			var m dto.Metric
			if err := metrics.RequestsTotal.WithLabelValues("POST", tt.label).Write(&m); err != nil {
				t.Fatal(err)
			}
			if m.Counter.GetValue() != 1 {
				t.Errorf("expected count 1, got %f", m.Counter.GetValue())
			}
		})
	}
}

func TestMetricsMiddleware_SkipsHealthEndpoints(t *testing.T) {
	for _, path := range []string{"/metrics", "/health"} {
		t.Run(path, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			metrics := NewMetrics(reg)

			handler := MetricsMiddleware(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))

			if got := histogramCount(t, reg, "GET"); got != 0 {
				t.Errorf("expected 0 observations for %s, got %d", path, got)
			}
		})
	}
}

func TestStatusRecorder_TracksHeaders(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantSent   bool
		wantStatus int
	}{
		{
			name:       "nothing written",
			write:      func(w http.ResponseWriter) {},
			wantStatus: http.StatusOK,
		},
		{
			name:       "explicit header",
			write:      func(w http.ResponseWriter) { w.WriteHeader(http.StatusAccepted) },
			wantSent:   true,
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "implicit header on write",
			write:      func(w http.ResponseWriter) { _, _ = w.Write([]byte("data")) },
			wantSent:   true,
			wantStatus: http.StatusOK,
		},
		{
			name:       "flush commits header",
			write:      func(w http.ResponseWriter) { w.(http.Flusher).Flush() },
			wantSent:   true,
			wantStatus: http.StatusOK,
		},
		{
			name: "second header ignored",
			write: func(w http.ResponseWriter) {
				w.WriteHeader(http.StatusOK)
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantSent:   true,
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			sr := &statusRecorder{ResponseWriter: rec, status: http.StatusOK}

			if headersSent(sr) {
				t.Fatal("headersSent() before any write = true")
			}
			tt.write(sr)

			if got := headersSent(sr); got != tt.wantSent {
				t.Errorf("headersSent() = %v, want %v", got, tt.wantSent)
			}
			if sr.status != tt.wantStatus {
				t.Errorf("status = %d, want %d", sr.status, tt.wantStatus)
			}
			if tt.wantSent && rec.Code != tt.wantStatus {
				t.Errorf("underlying status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHeadersSent_UnknownWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusOK)
	if headersSent(rec) {
		t.Error("headersSent() on a writer without tracking should be false")
	}
}
