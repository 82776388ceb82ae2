package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByCode(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Patch("/v1/runs/{run_id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	r.Patch("/v1/items", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("implicit 200"))
	})

	accepted := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPatch, "202"))
	ok := testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPatch, "200"))

	for _, path := range []string{"/v1/runs/a", "/v1/runs/b", "/v1/items"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, path, nil))
	}

	require.InDelta(t, accepted+2, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPatch, "202")), 0)
	require.InDelta(t, ok+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues(http.MethodPatch, "200")), 0)
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}
