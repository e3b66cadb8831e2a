// Package index pushes finished chunks to an external embedding/index
// service over HTTP and reads them back.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gosimple/slug"
)

// Client communicates with the index HTTP API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ChunkRecord is the body for PUT /kv/{key} of a chunk.
type ChunkRecord struct {
	Text    string `json:"text"`
	Name    string `json:"name"`
	DocID   string `json:"doc_id"`
	DocName string `json:"doc_name"`
	Seq     int    `json:"seq"`
	Source  string `json:"source,omitempty"`
}

// DocumentRecord describes an indexed document.
type DocumentRecord struct {
	DocID       string `json:"doc_id"`
	Name        string `json:"name"`
	Format      string `json:"format"`
	ContentHash string `json:"content_hash"`
	Chunks      int    `json:"chunks"`
	CreatedAt   string `json:"created_at"`
}

// Entry is one node returned by a prefix scan.
type Entry struct {
	Key   string          `json:"key_path"`
	Value json.RawMessage `json:"value"`
}

// RetryableError indicates a transient failure (rate limit or server
// error) that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	msg := e.Message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Sprintf("retryable index error (status %d): %s", e.StatusCode, msg)
}

// DocumentPrefix is the key prefix under which a document's nodes live.
func DocumentPrefix(docName, docID string) string {
	s := slug.Make(docName)
	if s == "" {
		s = "document"
	}
	return "documents/" + s + "-" + docID
}

// ChunkKey is the key of the seq-th chunk of a document.
func ChunkKey(docName, docID string, seq int) string {
	return DocumentPrefix(docName, docID) + "/chunks/" + strconv.Itoa(seq)
}

// HashKey indexes a document by content hash for de-duplication.
func HashKey(contentHash, docID string) string {
	return "by_hash/" + contentHash + "/" + docID
}

// PutChunk stores one chunk.
func (c *Client) PutChunk(ctx context.Context, key string, rec ChunkRecord) error {
	return c.put(ctx, key, rec)
}

// PutDocument stores document metadata under key.
func (c *Client) PutDocument(ctx context.Context, key string, rec DocumentRecord) error {
	return c.put(ctx, key, rec)
}

func (c *Client) put(ctx context.Context, key string, value any) error {
	body, err := json.Marshal(map[string]any{"value": value})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	resp, err := c.do(ctx, http.MethodPut, "/kv/"+key, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return statusError("put "+key, resp)
	}
	return nil
}

// List does a prefix scan under key.
func (c *Client) List(ctx context.Context, key string, limit int) ([]Entry, error) {
	path := "/kv/" + key + "/*"
	if limit > 0 {
		path += "?limit=" + url.QueryEscape(strconv.Itoa(limit))
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("list "+key, resp)
	}

	var result struct {
		Nodes []Entry `json:"nodes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode list %s: %w", key, err)
	}
	return result.Nodes, nil
}

// Delete removes the node at key and, when recursive, everything below it.
func (c *Client) Delete(ctx context.Context, key string, recursive bool) error {
	path := "/kv/" + key
	if recursive {
		path += "?children=true"
	}
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return statusError("delete "+key, resp)
	}
	return nil
}

// FindByHash returns the ID of a document already indexed with the given
// content hash, or "" when there is none.
func (c *Client) FindByHash(ctx context.Context, contentHash string) (string, error) {
	entries, err := c.List(ctx, "by_hash/"+contentHash, 1)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}
	key := entries[0].Key
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' || key[i] == '.' {
			return key[i+1:], nil
		}
	}
	return key, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return c.httpClient.Do(req)
}

func statusError(op string, resp *http.Response) error {
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &RetryableError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, string(respBody))
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
