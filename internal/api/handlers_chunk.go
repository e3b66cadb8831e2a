package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/geraldbahati/unbowed/internal/chunker"
	"github.com/geraldbahati/unbowed/internal/document"
	"github.com/geraldbahati/unbowed/internal/pipeline"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxFiles bounds the number of files in one request.
const maxFiles = 20

// handleChunk accepts one or more files and chunks each on its own.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	s.handleSubmit(w, r, pipeline.ModeDocuments, chunker.Config{
		ChunkChars: s.cfg.ChunkChars,
		Overlap:    s.cfg.ChunkOverlap,
	})
}

// handleBatch accepts files whose text is concatenated and chunked once.
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	s.handleSubmit(w, r, pipeline.ModeBatch, chunker.Config{
		ChunkChars: s.cfg.BatchChunkChars,
		Overlap:    s.cfg.BatchChunkOverlap,
	})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, mode pipeline.JobMode, cfg chunker.Config) {
	// Limit total request size; extra 1MB for form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*maxFiles+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	cfg, err := chunkConfig(r, cfg)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required in field \"files\"", http.StatusBadRequest)
		return
	}
	if len(files) > maxFiles {
		jsonError(w, fmt.Sprintf("too many files (max %d)", maxFiles), http.StatusBadRequest)
		return
	}

	mimeOverride := r.FormValue("mime_type")
	uploads := make([]pipeline.Upload, 0, len(files))
	for _, fh := range files {
		u, err := s.readUpload(fh, mimeOverride)
		if err != nil {
			if errors.Is(err, errTooLarge) {
				jsonError(w, err.Error(), http.StatusRequestEntityTooLarge)
				return
			}
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		uploads = append(uploads, u)
	}

	if r.FormValue("sync") == "true" {
		s.chunkNow(w, mode, uploads, cfg)
		return
	}

	job := pipeline.NewJob(uuid.NewString(), mode, uploads, cfg)
	job, err = s.orchestrator.Submit(job)
	if err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	snap := job.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":    snap.ID,
		"mode":      snap.Mode,
		"status":    snap.Status,
		"documents": snap.Documents,
		"poll_url":  fmt.Sprintf("/api/jobs/%s", snap.ID),
	})
}

// chunkNow runs the reader inline and responds with the chunks.
func (s *Server) chunkNow(w http.ResponseWriter, mode pipeline.JobMode, uploads []pipeline.Upload, cfg chunker.Config) {
	reader := s.orchestrator.Reader()

	var (
		chunks  []document.Chunk
		results []pipeline.Result
	)
	if mode == pipeline.ModeBatch {
		res, err := reader.Batch(uploads, cfg)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		chunks, results = res.Chunks, res.Results
	} else {
		var err error
		results, err = reader.ReadAll(uploads, cfg)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, res := range results {
			chunks = append(chunks, res.Chunks...)
		}
	}

	docs := make([]map[string]any, 0, len(results))
	failed := 0
	for _, res := range results {
		d := map[string]any{"doc_id": res.Doc.ID, "name": res.Doc.Name, "chunks": len(res.Chunks)}
		if res.Failed() {
			failed++
			d["error"] = res.Err.Error()
		}
		docs = append(docs, d)
	}

	code := http.StatusOK
	if failed == len(results) {
		code = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"mode":      mode,
		"documents": docs,
		"chunks":    pipeline.Views(chunks),
	})
}

var errTooLarge = errors.New("file exceeds max size")

func (s *Server) readUpload(fh *multipart.FileHeader, mimeOverride string) (pipeline.Upload, error) {
	filename := sanitizeFilename(fh.Filename)
	f, err := fh.Open()
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("read %s: %w", filename, err)
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return pipeline.Upload{}, fmt.Errorf("%s: %w (%d bytes)", filename, errTooLarge, s.cfg.MaxUploadBytes)
	}

	mimeType := mimeOverride
	if mimeType == "" {
		mimeType = fh.Header.Get("Content-Type")
	}
	// Generic types carry no information; leave them for sniffing.
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}

	return pipeline.Upload{
		Doc: &document.Document{
			ID:       uuid.NewString(),
			Name:     filename,
			MIMEType: mimeType,
		},
		Data: data,
	}, nil
}

// chunkConfig applies chunk_chars and overlap form overrides to def.
func chunkConfig(r *http.Request, def chunker.Config) (chunker.Config, error) {
	cfg := def
	if v := r.FormValue("chunk_chars"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("chunk_chars: %q is not an integer", v)
		}
		cfg.ChunkChars = n
	}
	if v := r.FormValue("overlap"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("overlap: %q is not an integer", v)
		}
		cfg.Overlap = n
	}
	return cfg, cfg.Validate()
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) handleJobChunks(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	if !snap.Status.Done() {
		jsonError(w, fmt.Sprintf("job is %s", snap.Status), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"job_id": snap.ID,
		"status": snap.Status,
		"chunks": pipeline.Views(job.Chunks()),
	})
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
