package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cachebuster/pkg/logger"
)

func newTestServer(t *testing.T, status int, body string, inspect func(r *http.Request, payload []byte)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, _ := io.ReadAll(r.Body)
		if inspect != nil {
			inspect(r, payload)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestPurgeFilesSendsExpectedRequest(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotKey    string
		gotType   string
		gotBody   []string
	)
	server := newTestServer(t, http.StatusOK, `{"success":true,"errors":[]}`, func(r *http.Request, payload []byte) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotKey = r.Header.Get(ServiceKeyHeader)
		gotType = r.Header.Get("Content-Type")
		if err := json.Unmarshal(payload, &gotBody); err != nil {
			t.Errorf("request body is not a JSON array: %v", err)
		}
	})

	client := NewClient(logger.NewNop(), "service-key", server.URL+"/client/v4/", 0)
	result, err := client.PurgeFiles(context.Background(), "zone123", "https://cdn.example.com/a.js")
	if err != nil {
		t.Fatalf("PurgeFiles: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Fatalf("expected POST, got %s", gotMethod)
	}
	if gotPath != "/client/v4/zones/zone123/purge_cache" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "service-key" {
		t.Fatalf("unexpected service key header %q", gotKey)
	}
	if gotType != "application/json" {
		t.Fatalf("unexpected content type %q", gotType)
	}
	if len(gotBody) != 1 || gotBody[0] != "https://cdn.example.com/a.js" {
		t.Fatalf("unexpected body %v", gotBody)
	}
	if !result.Success || len(result.Errors) != 0 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestPurgeFilesDecodesErrorsRegardlessOfStatus(t *testing.T) {
	body := `{"success":false,"errors":[{"code":1012,"message":"Request must contain one of \"purge_everything\" or \"files\""},{"code":9109,"message":"Invalid access token"}]}`
	server := newTestServer(t, http.StatusBadRequest, body, nil)

	client := NewClient(logger.NewNop(), "k", server.URL, 0)
	result, err := client.PurgeFiles(context.Background(), "zone", "https://cdn.example.com/a.js")
	if err != nil {
		t.Fatalf("expected decoded result on 400, got error %v", err)
	}
	if result.Success {
		t.Fatalf("expected success=false")
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(result.Errors))
	}
	if result.Errors[0].Code != 1012 || result.Errors[1].Code != 9109 {
		t.Fatalf("errors out of order: %+v", result.Errors)
	}
	if result.Errors[1].Message != "Invalid access token" {
		t.Fatalf("unexpected message %q", result.Errors[1].Message)
	}
}

func TestPurgeFilesFailureWithoutErrors(t *testing.T) {
	server := newTestServer(t, http.StatusOK, `{"success":false}`, nil)

	client := NewClient(logger.NewNop(), "k", server.URL, 0)
	result, err := client.PurgeFiles(context.Background(), "zone", "https://cdn.example.com/a.js")
	if err != nil {
		t.Fatalf("PurgeFiles: %v", err)
	}
	if result.Success || result.Errors == nil || len(result.Errors) != 0 {
		t.Fatalf("expected failure with empty errors, got %+v", result)
	}
}

func TestPurgeFilesMalformedBodyIsTransportError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "html gateway error", status: http.StatusBadGateway, body: "<html>502 Bad Gateway</html>"},
		{name: "missing success flag", status: http.StatusOK, body: `{"errors":[]}`},
		{name: "empty body", status: http.StatusOK, body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, tt.status, tt.body, nil)
			client := NewClient(logger.NewNop(), "k", server.URL, 0)

			_, err := client.PurgeFiles(context.Background(), "zone", "https://cdn.example.com/a.js")
			var transportErr *TransportError
			if !errors.As(err, &transportErr) {
				t.Fatalf("expected *TransportError, got %T (%v)", err, err)
			}
			if transportErr.StatusCode != tt.status {
				t.Fatalf("expected status %d, got %d", tt.status, transportErr.StatusCode)
			}
			if !errors.Is(err, errMalformed) {
				t.Fatalf("expected malformed cause, got %v", err)
			}
		})
	}
}

func TestPurgeFilesNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := server.URL
	server.Close()

	client := NewClient(logger.NewNop(), "k", base, time.Second)
	_, err := client.PurgeFiles(context.Background(), "zone", "https://cdn.example.com/a.js")

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %T (%v)", err, err)
	}
	if transportErr.StatusCode != 0 {
		t.Fatalf("expected no status code, got %d", transportErr.StatusCode)
	}
}

func TestPurgeFilesHonorsContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewClient(logger.NewNop(), "k", server.URL, 0)
	_, err := client.PurgeFiles(ctx, "zone", "https://cdn.example.com/a.js")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
