package index

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/tidwall/gjson"
)

// fakeIndex is an in-memory stand-in for the index service.
type fakeIndex struct {
	mu     sync.Mutex
	nodes  map[string]string
	auth   []string
	status int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{nodes: make(map[string]string)}
}

func (f *fakeIndex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = append(f.auth, r.Header.Get("Authorization"))
	if f.status != 0 {
		w.WriteHeader(f.status)
		io.WriteString(w, "unavailable")
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/kv/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.nodes[key] = gjson.GetBytes(body, "value").Raw
		w.WriteHeader(http.StatusCreated)
	case http.MethodGet:
		prefix := strings.TrimSuffix(key, "/*")
		var nodes []Entry
		for k, v := range f.nodes {
			if strings.HasPrefix(k, prefix+"/") {
				nodes = append(nodes, Entry{Key: k, Value: json.RawMessage(v)})
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"nodes": nodes})
	case http.MethodDelete:
		for k := range f.nodes {
			if k == key || (r.URL.Query().Get("children") == "true" && strings.HasPrefix(k, key+"/")) {
				delete(f.nodes, k)
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func TestClient_PutListDelete(t *testing.T) {
	fake := newFakeIndex()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	defer c.Close()
	ctx := context.Background()

	prefix := DocumentPrefix("Lecture Notes.pdf", "d1")
	for seq, text := range []string{"first", "second"} {
		rec := ChunkRecord{Text: text, Name: "Lecture Notes.pdf pages 1", DocID: "d1", DocName: "Lecture Notes.pdf", Seq: seq}
		if err := c.PutChunk(ctx, ChunkKey("Lecture Notes.pdf", "d1", seq), rec); err != nil {
			t.Fatalf("put chunk %d: %v", seq, err)
		}
	}

	entries, err := c.List(ctx, prefix+"/chunks", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if gjson.GetBytes(e.Value, "doc_id").String() != "d1" {
			t.Errorf("unexpected record %s", e.Value)
		}
	}

	if err := c.Delete(ctx, prefix, true); err != nil {
		t.Fatalf("delete: %v", err)
	}
	entries, err = c.List(ctx, prefix+"/chunks", 0)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries after delete, got %d", len(entries))
	}

	for _, a := range fake.auth {
		if a != "Bearer secret" {
			t.Errorf("expected bearer auth, got %q", a)
		}
	}
}

func TestClient_FindByHash(t *testing.T) {
	fake := newFakeIndex()
	srv := httptest.NewServer(fake)
	defer srv.Close()
	c := NewClient(srv.URL, "")
	ctx := context.Background()

	id, err := c.FindByHash(ctx, "abc")
	if err != nil || id != "" {
		t.Fatalf("expected no match, got %q, %v", id, err)
	}

	if err := c.PutDocument(ctx, HashKey("abc", "doc-9"), DocumentRecord{DocID: "doc-9"}); err != nil {
		t.Fatalf("put hash: %v", err)
	}
	id, err = c.FindByHash(ctx, "abc")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if id != "doc-9" {
		t.Errorf("expected doc-9, got %q", id)
	}
}

func TestClient_RetryableStatus(t *testing.T) {
	fake := newFakeIndex()
	fake.status = http.StatusServiceUnavailable
	srv := httptest.NewServer(fake)
	defer srv.Close()

	err := NewClient(srv.URL, "").PutChunk(context.Background(), "k", ChunkRecord{})
	var re *RetryableError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RetryableError, got %v", err)
	}
	if re.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", re.StatusCode)
	}
}

func TestClient_PermanentStatus(t *testing.T) {
	fake := newFakeIndex()
	fake.status = http.StatusBadRequest
	srv := httptest.NewServer(fake)
	defer srv.Close()

	err := NewClient(srv.URL, "").PutChunk(context.Background(), "k", ChunkRecord{})
	if err == nil {
		t.Fatal("expected error")
	}
	var re *RetryableError
	if errors.As(err, &re) {
		t.Errorf("400 should not be retryable: %v", err)
	}
}

func TestKeys(t *testing.T) {
	if got := ChunkKey("Week 1: Intro.PDF", "x1", 3); got != "documents/week-1-intro-pdf-x1/chunks/3" {
		t.Errorf("unexpected chunk key %q", got)
	}
	if got := DocumentPrefix("", "x2"); got != "documents/document-x2" {
		t.Errorf("unexpected prefix %q", got)
	}
	if got := HashKey("ff", "x3"); got != "by_hash/ff/x3" {
		t.Errorf("unexpected hash key %q", got)
	}
}
