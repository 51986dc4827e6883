package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	meili "github.com/meilisearch/meilisearch-go"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type fakeIndex struct {
	healthy  bool
	results  []Result
	err      error
	indexed  []PageRecord
	searched int
}

func (f *fakeIndex) Healthy() bool { return f.healthy }

func (f *fakeIndex) Search(Query) ([]Result, int, error) {
	f.searched++
	return f.results, len(f.results), f.err
}

func (f *fakeIndex) IndexPages(pages []PageRecord) error {
	f.indexed = append(f.indexed, pages...)
	return nil
}

type fakeFallback struct {
	results []Result
	err     error
	calls   int
}

func (f *fakeFallback) Search(context.Context, Query) ([]Result, int, error) {
	f.calls++
	return f.results, len(f.results), f.err
}

func TestServicePrefersHealthyIndex(t *testing.T) {
	idx := &fakeIndex{healthy: true, results: []Result{{Slug: "energy"}}}
	fb := &fakeFallback{}
	s := &Service{index: idx, fallback: fb, logger: zapNop()}

	resp := s.Search(context.Background(), Query{Text: "energy"})
	if resp.Backend != BackendMeili || resp.Total != 1 || fb.calls != 0 {
		t.Fatalf("unexpected response %+v (fallback calls %d)", resp, fb.calls)
	}
}

func TestServiceFallsBack(t *testing.T) {
	tests := []struct {
		name  string
		index *fakeIndex
	}{
		{name: "unhealthy", index: &fakeIndex{healthy: false}},
		{name: "error", index: &fakeIndex{healthy: true, err: errors.New("timeout")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeFallback{results: []Result{{Slug: "co2-emissions"}}}
			s := &Service{index: tt.index, fallback: fb, logger: zapNop()}
			resp := s.Search(context.Background(), Query{Text: "co2"})
			if resp.Backend != BackendPgFTS || fb.calls != 1 {
				t.Fatalf("expected pgfts fallback, got %+v", resp)
			}
			if diff := cmp.Diff([]Result{{Slug: "co2-emissions"}}, resp.Results); diff != "" {
				t.Fatalf("results mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestServiceWithoutBackends(t *testing.T) {
	s := NewService(nil, nil, nil)
	resp := s.Search(context.Background(), Query{Text: "energy"})
	if resp.Backend != BackendNone || resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if err := s.IndexPages([]PageRecord{{ID: "energy"}}); !errors.Is(err, ErrIndexUnavailable) {
		t.Fatalf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestServiceFallbackErrorReturnsEmpty(t *testing.T) {
	s := &Service{fallback: &fakeFallback{err: errors.New("db down")}, logger: zapNop()}
	resp := s.Search(context.Background(), Query{Text: "energy"})
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Fatalf("expected empty results, got %+v", resp)
	}
}

func TestServiceIndexPages(t *testing.T) {
	idx := &fakeIndex{healthy: true}
	s := &Service{index: idx, logger: zapNop()}
	if err := s.IndexPages([]PageRecord{{ID: "energy", Slug: "energy"}}); err != nil {
		t.Fatalf("IndexPages() error = %v", err)
	}
	if len(idx.indexed) != 1 {
		t.Fatalf("expected one indexed page, got %d", len(idx.indexed))
	}
}

func TestQueryBounds(t *testing.T) {
	if got := (Query{}).limit(); got != defaultLimit {
		t.Fatalf("default limit = %d", got)
	}
	if got := (Query{Limit: 1000}).limit(); got != 100 {
		t.Fatalf("capped limit = %d", got)
	}
	if got := (Query{Offset: -4}).offset(); got != 0 {
		t.Fatalf("offset = %d", got)
	}
}

func TestHitToResult(t *testing.T) {
	hit := meili.Hit{
		"slug":       json.RawMessage(`"energy"`),
		"title":      json.RawMessage(`"Energy"`),
		"excerpt":    json.RawMessage(`"How the world produces energy"`),
		"authors":    json.RawMessage(`["Hannah Ritchie","Max Roser"]`),
		"_formatted": json.RawMessage(`{"title":"<mark>Energy</mark>","excerpt":"","authors":["Hannah Ritchie"]}`),
	}
	want := Result{
		Slug:    "energy",
		Title:   "<mark>Energy</mark>",
		Snippet: "How the world produces energy",
		Authors: []string{"Hannah Ritchie", "Max Roser"},
	}
	if diff := cmp.Diff(want, hitToResult(hit)); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
}

func fakeMeiliServer(t *testing.T, healthy *atomic.Bool, searches *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/health":
			if !healthy.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte(`{"message":"unavailable","code":"unavailable","type":"system","link":""}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"available"}`))
		case strings.HasSuffix(r.URL.Path, "/search"):
			searches.Add(1)
			_, _ = w.Write([]byte(`{"hits":[{"id":"energy","slug":"energy","title":"Energy","excerpt":"Energy mix","authors":["Max Roser"]}],"estimatedTotalHits":1,"limit":20,"offset":0,"processingTimeMs":1,"query":"energy"}`))
		default:
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte(`{"taskUid":1,"indexUid":"chartpress_pages","status":"enqueued","type":"indexCreation","enqueuedAt":"2024-01-01T00:00:00Z"}`))
		}
	}))
}

var leakOptions = []goleak.Option{
	goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
	goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
}

func TestMeiliSearchAndHealthLoop(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)

	var healthy atomic.Bool
	var searches atomic.Int32
	healthy.Store(true)
	srv := fakeMeiliServer(t, &healthy, &searches)
	defer srv.Close()

	m := NewMeili(srv.URL, "key", 10*time.Millisecond, nil)
	defer m.Close()

	if !m.Healthy() {
		t.Fatal("expected meilisearch to be healthy")
	}
	results, total, err := m.Search(Query{Text: "energy"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if total != 1 || len(results) != 1 || results[0].Slug != "energy" {
		t.Fatalf("unexpected results %+v (total %d)", results, total)
	}

	healthy.Store(false)
	waitFor(t, func() bool { return !m.Healthy() })
	if _, _, err := m.Search(Query{Text: "energy"}); err == nil {
		t.Fatal("expected unhealthy search to fail")
	}

	healthy.Store(true)
	waitFor(t, m.Healthy)
	if searches.Load() != 1 {
		t.Fatalf("expected one search request, got %d", searches.Load())
	}
}

func TestMeiliUnavailableAtStartup(t *testing.T) {
	defer goleak.VerifyNone(t, leakOptions...)

	var healthy atomic.Bool
	var searches atomic.Int32
	srv := fakeMeiliServer(t, &healthy, &searches)
	defer srv.Close()

	m := NewMeili(srv.URL, "key", time.Hour, nil)
	defer m.Close()
	if m.Healthy() {
		t.Fatal("expected meilisearch to start unhealthy")
	}
	s := NewService(m, nil, nil)
	if resp := s.Search(context.Background(), Query{Text: "energy"}); resp.Backend != BackendNone {
		t.Fatalf("expected no backend, got %+v", resp)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func zapNop() *zap.Logger { return zap.NewNop() }
