package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetchSuccess(t *testing.T) {
	var gotUserAgent, gotAccept string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte("<rss></rss>"))
	}))
	defer server.Close()

	fetcher := NewFetcher("test-agent/1.0", 5*time.Second)
	data, err := fetcher.Fetch(context.Background(), server.URL, FetchOptions{})

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if string(data) != "<rss></rss>" {
		t.Errorf("Expected response body, got: %s", string(data))
	}

	if gotUserAgent != "test-agent/1.0" {
		t.Errorf("Expected user agent 'test-agent/1.0', got: %s", gotUserAgent)
	}

	if !strings.Contains(gotAccept, "application/rss+xml") {
		t.Errorf("Expected feed accept header, got: %s", gotAccept)
	}
}

func TestFetchUserAgentOverride(t *testing.T) {
	var gotUserAgent string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	fetcher := NewFetcher("default-agent", 5*time.Second)
	_, err := fetcher.Fetch(context.Background(), server.URL, FetchOptions{UserAgent: "custom-agent"})

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if gotUserAgent != "custom-agent" {
		t.Errorf("Expected user agent 'custom-agent', got: %s", gotUserAgent)
	}
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	fetcher := NewFetcher("test-agent", 5*time.Second)
	_, err := fetcher.Fetch(context.Background(), server.URL, FetchOptions{})

	if err == nil {
		t.Fatal("Expected error for 404 response")
	}

	if !strings.Contains(err.Error(), "HTTP error: 404") {
		t.Errorf("Expected HTTP error message, got: %v", err)
	}
}

func TestFetchTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte("too late"))
	}))
	defer server.Close()

	fetcher := NewFetcher("test-agent", 5*time.Second)
	_, err := fetcher.Fetch(context.Background(), server.URL, FetchOptions{Timeout: 50 * time.Millisecond})

	if err == nil {
		t.Fatal("Expected timeout error")
	}
}

func TestFetchInvalidURL(t *testing.T) {
	fetcher := NewFetcher("test-agent", 5*time.Second)
	_, err := fetcher.Fetch(context.Background(), "://not-a-url", FetchOptions{})

	if err == nil {
		t.Fatal("Expected error for invalid URL")
	}
}

func TestFetchArticleSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>Article</body></html>"))
	}))
	defer server.Close()

	fetcher := NewFetcher("test-agent", 5*time.Second)
	data, err := fetcher.FetchArticle(context.Background(), server.URL, FetchOptions{})

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if !strings.Contains(string(data), "Article") {
		t.Errorf("Expected article HTML, got: %s", string(data))
	}
}

func TestFetchArticleRejectsNonHTML(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"not": "html"}`))
	}))
	defer server.Close()

	fetcher := NewFetcher("test-agent", 5*time.Second)
	_, err := fetcher.FetchArticle(context.Background(), server.URL, FetchOptions{})

	if err == nil {
		t.Fatal("Expected error for non-HTML response")
	}

	if !strings.Contains(err.Error(), "content type is not HTML") {
		t.Errorf("Expected content type error, got: %v", err)
	}
}
