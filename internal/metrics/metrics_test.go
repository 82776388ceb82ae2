package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if frontierURLs == nil || fetchAttemptsTotal == nil ||
		upsertsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveFetch("https://Lacoste.ru/catalog/sales/?PAGEN_1=1", "success", 512)
	if val := testutil.ToFloat64(fetchAttemptsTotal.WithLabelValues("lacoste.ru", "success")); val != 1 {
		t.Errorf("Expected fetch attempts to be 1, got %f", val)
	}
	if val := testutil.ToFloat64(crawlerBytesTotal.WithLabelValues("lacoste.ru")); val != 512 {
		t.Errorf("Expected bytes to be 512, got %f", val)
	}
}

func TestSetFrontier(t *testing.T) {
	Init()

	SetFrontier("nb", 3, 2, 7)
	SetSlotsInUse("nb", 2)

	if val := testutil.ToFloat64(frontierURLs.WithLabelValues("nb", "pending")); val != 3 {
		t.Errorf("pending gauge = %f; want 3", val)
	}
	if val := testutil.ToFloat64(frontierURLs.WithLabelValues("nb", "completed")); val != 7 {
		t.Errorf("completed gauge = %f; want 7", val)
	}
	if val := testutil.ToFloat64(limiterSlotsInUse.WithLabelValues("nb")); val != 2 {
		t.Errorf("slots gauge = %f; want 2", val)
	}
}

func TestObserveUpsert(t *testing.T) {
	Init()

	ObserveUpsert("timberland", nil)
	ObserveUpsert("timberland", errors.New("boom"))
	ObserveUpsert("timberland", nil)

	if val := testutil.ToFloat64(upsertsTotal.WithLabelValues("timberland", "success")); val != 2 {
		t.Errorf("success upserts = %f; want 2", val)
	}
	if val := testutil.ToFloat64(upsertsTotal.WithLabelValues("timberland", "failure")); val != 1 {
		t.Errorf("failed upserts = %f; want 1", val)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
