package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/geraldbahati/unbowed/internal/document"
	"github.com/geraldbahati/unbowed/internal/index"
	"github.com/go-chi/chi/v5"
)

// handleDeleteIndexed removes every document a job pushed to the index,
// along with its hash entry.
func (s *Server) handleDeleteIndexed(w http.ResponseWriter, r *http.Request) {
	idx := s.orchestrator.IndexClient()
	if idx == nil {
		jsonError(w, "no index configured", http.StatusServiceUnavailable)
		return
	}

	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if !snap.Status.Done() {
		jsonError(w, "job is "+string(snap.Status), http.StatusConflict)
		return
	}

	ctx := r.Context()
	deleted := 0
	var errs []string
	for _, doc := range chunkOwners(job.Chunks()) {
		if err := idx.Delete(ctx, index.DocumentPrefix(doc.Name, doc.ID), true); err != nil {
			s.log.Error("index delete failed", "job_id", snap.ID, "doc_id", doc.ID, "error", err)
			errs = append(errs, err.Error())
			continue
		}
		deleted++
		deleteHashEntry(ctx, idx, job.ContentHash, doc.ID)
	}

	code := http.StatusOK
	if len(errs) > 0 {
		code = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":            snap.ID,
		"documents_deleted": deleted,
		"errors":            errs,
	})
}

// chunkOwners returns the distinct documents of chunks in first-seen order.
func chunkOwners(chunks []document.Chunk) []*document.Document {
	seen := make(map[*document.Document]bool)
	var docs []*document.Document
	for _, c := range chunks {
		if c.Doc == nil || seen[c.Doc] {
			continue
		}
		seen[c.Doc] = true
		docs = append(docs, c.Doc)
	}
	return docs
}

func deleteHashEntry(ctx context.Context, idx *index.Client, hash, docID string) {
	if hash == "" {
		return
	}
	idx.Delete(ctx, index.HashKey(hash, docID), false)
}
