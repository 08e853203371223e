package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type mockMetricsRecorder struct {
	records []metricRecord
}

type metricRecord struct {
	method   string
	endpoint string
	status   string
	duration time.Duration
}

func (m *mockMetricsRecorder) record(method, endpoint, status string, duration time.Duration) {
	m.records = append(m.records, metricRecord{
		method:   method,
		endpoint: endpoint,
		status:   status,
		duration: duration,
	})
}

func (m *mockMetricsRecorder) reset() {
	m.records = []metricRecord{}
}

var mockRecorder = &mockMetricsRecorder{}

func setupMock() func() {
	original := recordHTTPRequest
	recordHTTPRequest = func(method, endpoint, status string, duration time.Duration) {
		mockRecorder.record(method, endpoint, status, duration)
	}
	return func() { recordHTTPRequest = original }
}

func TestResponseWriter_WriteHeader(t *testing.T) {
	tests := []struct {
		name           string
		statusCode     int
		expectedStatus int
	}{
		{
			name:           "sets status code 200",
			statusCode:     http.StatusOK,
			expectedStatus: http.StatusOK,
		},
		{
			name:           "sets status code 404",
			statusCode:     http.StatusNotFound,
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "sets status code 500",
			statusCode:     http.StatusInternalServerError,
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rw := &responseWriter{
				ResponseWriter: rec,
				statusCode:     http.StatusOK,
			}

			rw.WriteHeader(tt.statusCode)

			if rw.statusCode != tt.expectedStatus {
				t.Errorf("expected status code %d, got %d", tt.expectedStatus, rw.statusCode)
			}

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected underlying response writer status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name:     "followup by id",
			path:     "/api/followups/123",
			expected: "/api/followups/:id",
		},
		{
			name:     "followup with uuid",
			path:     "/api/followups/abc-def-456",
			expected: "/api/followups/:id",
		},
		{
			name:     "followup with nested path (should not normalize)",
			path:     "/api/followups/123/sub",
			expected: "/api/followups/123/sub",
		},
		{
			name:     "followups list",
			path:     "/api/followups",
			expected: "/api/followups",
		},
		{
			name:     "escalations",
			path:     "/api/escalations",
			expected: "/api/escalations",
		},
		{
			name:     "root path",
			path:     "/",
			expected: "/",
		},
		{
			name:     "metrics endpoint",
			path:     "/metrics",
			expected: "/metrics",
		},
		{
			name:     "unknown endpoint",
			path:     "/api/unknown/path",
			expected: "/api/unknown/path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := normalizeEndpoint(tt.path)
			if result != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestMetricsMiddleware(t *testing.T) {
	cleanup := setupMock()
	defer cleanup()

	tests := []struct {
		name               string
		method             string
		path               string
		handlerStatusCode  int
		expectedMethod     string
		expectedEndpoint   string
		expectedStatusCode string
	}{
		{
			name:               "GET followup by id with 200",
			method:             http.MethodGet,
			path:               "/api/followups/123",
			handlerStatusCode:  http.StatusOK,
			expectedMethod:     http.MethodGet,
			expectedEndpoint:   "/api/followups/:id",
			expectedStatusCode: "200",
		},
		{
			name:               "POST followup with 201",
			method:             http.MethodPost,
			path:               "/api/followups",
			handlerStatusCode:  http.StatusCreated,
			expectedMethod:     http.MethodPost,
			expectedEndpoint:   "/api/followups",
			expectedStatusCode: "201",
		},
		{
			name:               "forbidden insights",
			method:             http.MethodGet,
			path:               "/api/insights",
			handlerStatusCode:  http.StatusForbidden,
			expectedMethod:     http.MethodGet,
			expectedEndpoint:   "/api/insights",
			expectedStatusCode: "403",
		},
		{
			name:               "internal server error",
			method:             http.MethodPost,
			path:               "/api/exports",
			handlerStatusCode:  http.StatusInternalServerError,
			expectedMethod:     http.MethodPost,
			expectedEndpoint:   "/api/exports",
			expectedStatusCode: "500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRecorder.reset()

			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.handlerStatusCode)
				_, _ = w.Write([]byte("test response"))
			})

			handler := MetricsMiddleware(testHandler)
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.handlerStatusCode {
				t.Errorf("expected status code %d, got %d", tt.handlerStatusCode, rec.Code)
			}

			if len(mockRecorder.records) != 1 {
				t.Fatalf("expected 1 metric recorded, got %d", len(mockRecorder.records))
			}

			m := mockRecorder.records[0]
			if m.method != tt.expectedMethod {
				t.Errorf("expected method %q, got %q", tt.expectedMethod, m.method)
			}
			if m.endpoint != tt.expectedEndpoint {
				t.Errorf("expected endpoint %q, got %q", tt.expectedEndpoint, m.endpoint)
			}
			if m.status != tt.expectedStatusCode {
				t.Errorf("expected status %q, got %q", tt.expectedStatusCode, m.status)
			}
			if m.duration <= 0 {
				t.Error("expected duration > 0")
			}
		})
	}
}

func TestMetricsMiddleware_CallsNextHandler(t *testing.T) {
	cleanup := setupMock()
	defer cleanup()

	mockRecorder.reset()
	handlerCalled := false

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})

	handler := MetricsMiddleware(testHandler)
	req := httptest.NewRequest(http.MethodGet, "/api/followups", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if !handlerCalled {
		t.Error("expected next handler to be called")
	}
}

func TestMetricsMiddleware_RecordsDuration(t *testing.T) {
	cleanup := setupMock()
	defer cleanup()

	mockRecorder.reset()
	delay := 50 * time.Millisecond

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		w.WriteHeader(http.StatusOK)
	})

	handler := MetricsMiddleware(testHandler)
	req := httptest.NewRequest(http.MethodGet, "/api/followups", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if len(mockRecorder.records) != 1 {
		t.Fatalf("expected 1 metric recorded, got %d", len(mockRecorder.records))
	}

	recorded := mockRecorder.records[0]
	if recorded.duration < delay {
		t.Errorf("expected duration >= %v, got %v", delay, recorded.duration)
	}
}
