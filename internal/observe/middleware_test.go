package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		status     int
		wantStatus string
		wantErr    bool
	}{
		{name: "ok", path: "/readyz", status: http.StatusOK, wantStatus: "200"},
		{name: "not found", path: "/nope", status: http.StatusNotFound, wantStatus: "404"},
		{name: "server error", path: "/readyz", status: http.StatusServiceUnavailable, wantStatus: "503", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp := installTracer(t)
			m, reader := newTestMetrics(t)

			var cid string
			h := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				cid = CorrelationID(r.Context())
				w.WriteHeader(tt.status)
			}))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if cid == "" || rec.Header().Get("X-Correlation-ID") != cid {
				t.Errorf("X-Correlation-ID = %q, handler saw %q", rec.Header().Get("X-Correlation-ID"), cid)
			}

			spans := exp.GetSpans()
			if len(spans) != 1 {
				t.Fatalf("got %d spans, want 1", len(spans))
			}
			if want := "GET " + tt.path; spans[0].Name != want {
				t.Errorf("span name = %q, want %q", spans[0].Name, want)
			}
			if got := spans[0].Status.Code == codes.Error; got != tt.wantErr {
				t.Errorf("span error status = %v, want %v", got, tt.wantErr)
			}

			met := findMetric(collect(t, reader), "leadscout.http.request.duration")
			if met == nil {
				t.Fatal("request duration not recorded")
			}
			dp := met.Data.(metricdata.Histogram[float64]).DataPoints[0]
			for key, want := range map[string]string{"method": "GET", "path": tt.path, "status": tt.wantStatus} {
				if v, ok := dp.Attributes.Value(attribute.Key(key)); !ok || v.AsString() != want {
					t.Errorf("attribute %s = %q, want %q", key, v.AsString(), want)
				}
			}
		})
	}
}

func TestMiddleware_ContinuesIncomingTrace(t *testing.T) {
	installTracer(t)
	m, _ := newTestMetrics(t)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	var cid string
	h := Middleware(m)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		cid = CorrelationID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if cid != traceID {
		t.Errorf("correlation id = %q, want %q", cid, traceID)
	}
	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, traceID)
	}
}
