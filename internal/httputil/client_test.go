package httputil

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStandardClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	c := NewStandardClient(nil)
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "ok" {
		t.Errorf("body = %q, want ok", body)
	}
}

func TestStandardClient_Post(t *testing.T) {
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewStandardClient(&http.Client{})
	resp, err := c.Post(srv.URL, "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Errorf("status = %d, want 201", resp.StatusCode)
	}
	if gotContentType != "application/json" {
		t.Errorf("content type = %q, want application/json", gotContentType)
	}
}

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	m := NewMockHTTPClient()
	m.AddResponse(http.StatusOK, `{"state":"running"}`)
	m.AddResponse(http.StatusNotFound, `{"error":"no such session"}`)

	resp, err := m.Get("http://tracker.local/api/status")
	if err != nil {
		t.Fatalf("first Get failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != `{"state":"running"}` {
		t.Errorf("first body = %q", body)
	}

	resp, err = m.Get("http://tracker.local/api/sessions/nope")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second status = %d, want 404", resp.StatusCode)
	}

	if m.RequestCount() != 2 {
		t.Errorf("request count = %d, want 2", m.RequestCount())
	}
}

func TestMockHTTPClient_ErrorResponse(t *testing.T) {
	m := NewMockHTTPClient()
	m.AddErrorResponse(errors.New("connection refused"))

	if _, err := m.Get("http://tracker.local/api/status"); err == nil {
		t.Fatal("expected error from queued error response")
	}
}

func TestMockHTTPClient_DefaultResponse(t *testing.T) {
	m := NewMockHTTPClient()

	resp, err := m.Get("http://tracker.local/api/status")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200 default", resp.StatusCode)
	}
}

func TestMockHTTPClient_DoFunc(t *testing.T) {
	m := NewMockHTTPClient()
	m.DoFunc = func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusTeapot,
			Body:       io.NopCloser(strings.NewReader("")),
			Header:     make(http.Header),
		}, nil
	}

	resp, err := m.Get("http://tracker.local/anything")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if resp.StatusCode != http.StatusTeapot {
		t.Errorf("status = %d, want 418", resp.StatusCode)
	}
}
