package runcontrol

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rpattn/batchctl/internal/domain"
)

func newTestServer(t *testing.T, repo *stubRunRepo) *httptest.Server {
	t.Helper()
	handler := NewHTTPHandler(NewController(repo, &stubLogRepo{}))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /runs/start", handler.Start)
	mux.HandleFunc("POST /runs/end", handler.End)
	mux.HandleFunc("GET /runs/{name}", handler.Status)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStartEndpointConflict(t *testing.T) {
	server := newTestServer(t, newStubRunRepo("sales_load"))

	resp := postJSON(t, server.URL+"/runs/start", `{"packageName":"sales_load"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on first start, got %d", resp.StatusCode)
	}

	resp = postJSON(t, server.URL+"/runs/start", `{"packageName":"sales_load"}`)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 on concurrent start, got %d", resp.StatusCode)
	}
}

func TestStartEndpointUnknownPackage(t *testing.T) {
	server := newTestServer(t, newStubRunRepo())

	resp := postJSON(t, server.URL+"/runs/start", `{"packageName":"missing"}`)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown package, got %d", resp.StatusCode)
	}
}

func TestEndEndpointWritesTerminalState(t *testing.T) {
	repo := newStubRunRepo("sales_load")
	server := newTestServer(t, repo)

	postJSON(t, server.URL+"/runs/start", `{"packageName":"sales_load"}`)
	resp := postJSON(t, server.URL+"/runs/end",
		`{"packageName":"sales_load","status":"success","extracted":4,"loaded":3,"rejected":1}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on end, got %d", resp.StatusCode)
	}

	run := repo.runs["sales_load"]
	if run.Status != domain.RunStatusSuccess || run.RecordsLoaded != 3 {
		t.Fatalf("terminal state not written: %+v", run)
	}
}

func TestEndEndpointRejectsBadStatus(t *testing.T) {
	server := newTestServer(t, newStubRunRepo("sales_load"))

	resp := postJSON(t, server.URL+"/runs/end", `{"packageName":"sales_load","status":"running"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-terminal status, got %d", resp.StatusCode)
	}
}
