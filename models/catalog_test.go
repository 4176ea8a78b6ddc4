package models

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go/option"
)

type countingLister struct {
	ids   []string
	err   error
	calls int
}

func (l *countingLister) ListModels(context.Context) ([]string, error) {
	l.calls++
	return l.ids, l.err
}

func TestCatalog_FallbackWithoutLister(t *testing.T) {
	c := NewCatalog(nil, []string{"mistral", "llama3", "phi3"}, "llama3", time.Minute)
	got := c.Models(context.Background())
	want := []string{"llama3", "mistral", "phi3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestCatalog_DefaultAlwaysPresent(t *testing.T) {
	c := NewCatalog(nil, nil, "llama3", time.Minute)
	if got := c.Models(context.Background()); !reflect.DeepEqual(got, []string{"llama3"}) {
		t.Fatalf("unexpected models: %v", got)
	}
}

func TestCatalog_CachesDiscovered(t *testing.T) {
	lister := &countingLister{ids: []string{"qwen2", "gemma"}}
	c := NewCatalog(lister, []string{"unused"}, "llama3", time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	want := []string{"llama3", "gemma", "qwen2"}
	for i := 0; i < 3; i++ {
		if got := c.Models(context.Background()); !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if lister.calls != 1 {
		t.Fatalf("expected one lister call, got %d", lister.calls)
	}

	now = now.Add(2 * time.Minute)
	c.Models(context.Background())
	if lister.calls != 2 {
		t.Fatalf("expected refresh after ttl, got %d calls", lister.calls)
	}
}

func TestCatalog_ListerErrorFallsBack(t *testing.T) {
	lister := &countingLister{err: errors.New("connection refused")}
	c := NewCatalog(lister, []string{"mistral"}, "llama3", 5*time.Minute)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		got := c.Models(context.Background())
		if !reflect.DeepEqual(got, []string{"llama3", "mistral"}) {
			t.Fatalf("unexpected models: %v", got)
		}
	}
	if lister.calls != 1 {
		t.Fatalf("expected failed discovery to be retried later, got %d calls", lister.calls)
	}

	now = now.Add(retryAfter + time.Second)
	lister.err = nil
	lister.ids = []string{"qwen2"}
	if got := c.Models(context.Background()); !reflect.DeepEqual(got, []string{"llama3", "qwen2"}) {
		t.Fatalf("expected discovery after retry window, got %v", got)
	}
	if lister.calls != 2 {
		t.Fatalf("expected second lister call, got %d", lister.calls)
	}
}

type blockingLister struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (l *blockingLister) ListModels(context.Context) ([]string, error) {
	if l.calls.Add(1) == 1 {
		close(l.started)
	}
	<-l.release
	return []string{"gemma"}, nil
}

func TestCatalog_ConcurrentCallersShareDiscovery(t *testing.T) {
	lister := &blockingLister{started: make(chan struct{}), release: make(chan struct{})}
	c := NewCatalog(lister, nil, "llama3", time.Minute)

	const callers = 8
	results := make(chan []string, callers)
	go func() { results <- c.Models(context.Background()) }()
	<-lister.started

	// The lock is free while discovery runs.
	if !c.mu.TryLock() {
		t.Fatal("catalog lock held during discovery")
	}
	c.mu.Unlock()

	for i := 1; i < callers; i++ {
		go func() { results <- c.Models(context.Background()) }()
	}
	time.Sleep(50 * time.Millisecond)
	close(lister.release)

	want := []string{"llama3", "gemma"}
	for i := 0; i < callers; i++ {
		if got := <-results; !reflect.DeepEqual(got, want) {
			t.Fatalf("got %v want %v", got, want)
		}
	}
	if n := lister.calls.Load(); n != 1 {
		t.Fatalf("expected one shared discovery, got %d", n)
	}
}

func TestOpenAILister_ListModels(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[
			{"id":"llama3:latest","object":"model","created":1715000000,"owned_by":"library"},
			{"id":"mistral:latest","object":"model","created":1715000001,"owned_by":"library"}
		]}`))
	}))
	defer srv.Close()

	lister, err := NewOpenAILister(srv.URL+"/v1/", "secret", option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	ids, err := lister.ListModels(context.Background())
	if err != nil {
		t.Fatalf("list err: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"llama3:latest", "mistral:latest"}) {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if hits.Load() != 1 {
		t.Fatalf("unexpected request count: %d", hits.Load())
	}
}

func TestOpenAILister_ServerErrorFallsBackInCatalog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	lister, err := NewOpenAILister(srv.URL+"/v1/", "", option.WithMaxRetries(0))
	if err != nil {
		t.Fatal(err)
	}
	c := NewCatalog(lister, []string{"phi3"}, "llama3", time.Minute)
	if got := c.Models(context.Background()); !reflect.DeepEqual(got, []string{"llama3", "phi3"}) {
		t.Fatalf("unexpected models: %v", got)
	}
}

func TestNewOpenAILister_RequiresBaseURL(t *testing.T) {
	if _, err := NewOpenAILister("", ""); err == nil {
		t.Fatal("expected error without base url")
	}
}
