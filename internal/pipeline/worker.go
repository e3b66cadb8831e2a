package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/geraldbahati/unbowed/internal/document"
	"github.com/geraldbahati/unbowed/internal/index"
	"github.com/geraldbahati/unbowed/internal/parser"
	"github.com/geraldbahati/unbowed/internal/stats"
)

// Worker processes a single chunking job.
type Worker struct {
	reader *Reader
	index  *index.Client // nil when no index is configured
	stats  *stats.Recorder
	log    *slog.Logger

	maxConcurrentPush int
	backoff           func(int) time.Duration
}

func NewWorker(reader *Reader, idx *index.Client, rec *stats.Recorder, log *slog.Logger, maxPush int) *Worker {
	if maxPush <= 0 {
		maxPush = 1
	}
	return &Worker{
		reader:            reader,
		index:             idx,
		stats:             rec,
		log:               log,
		maxConcurrentPush: maxPush,
		backoff:           Backoff,
	}
}

// pushItem is one chunk bound for the index with its per-document sequence.
type pushItem struct {
	chunk document.Chunk
	seq   int
}

// Process runs extraction, chunking and indexing for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "mode", job.Mode)

	// Phase 0: Dedup against the index.
	if w.index != nil {
		docID, err := w.index.FindByHash(ctx, job.ContentHash)
		if err != nil {
			log.Warn("dedup check failed, proceeding", "error", err)
		} else if docID != "" {
			log.Info("duplicate content, skipping", "existing_doc_id", docID)
			job.SetStatus(StatusDupSkipped, "dedup")
			job.releaseUploads()
			return
		}
	}

	// Phase 1: Extract and chunk.
	job.SetStatus(StatusExtracting, "extracting")
	chunks, docs, err := w.read(job)
	job.releaseUploads()
	if err != nil {
		log.Error("chunking failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "extracting")
		return
	}
	for _, d := range docs {
		if d.Error != "" {
			job.AddError(fmt.Sprintf("%s: %s", d.Name, d.Error))
		}
	}
	job.SetResults(chunks, docs)
	failed := job.Snapshot().Progress.DocumentsFailed
	log.Info("chunked documents", "chunks", len(chunks), "documents", len(docs), "failed", failed)

	if len(chunks) == 0 {
		if failed < len(docs) {
			job.AddError("no extractable content")
		}
		job.SetStatus(StatusFailed, "extracting")
		return
	}

	if w.index == nil {
		job.SetStatus(finalStatus(failed > 0, true), "done")
		return
	}

	// Phase 2: Push chunks to the index with bounded concurrency.
	job.SetStatus(StatusIndexing, "indexing")
	items := sequence(chunks)
	pushed := w.push(ctx, job, log, items)
	log.Info("indexing complete", "pushed", pushed, "total", len(items))

	hadErrors := failed > 0 || pushed < len(items)
	if pushed > 0 {
		w.writeDocuments(ctx, job, log, chunks)
	}

	job.SetStatus(finalStatus(hadErrors, pushed > 0), "done")
}

// finalStatus maps the outcome of a run to a terminal status.
func finalStatus(hadErrors, anySuccess bool) JobStatus {
	switch {
	case !hadErrors:
		return StatusCompleted
	case anySuccess:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// read chunks the job's uploads according to its mode.
func (w *Worker) read(job *Job) ([]document.Chunk, []DocStatus, error) {
	uploads := job.Uploads()
	if job.Mode == ModeBatch {
		res, err := w.reader.Batch(uploads, job.chunkCfg)
		if err != nil {
			return nil, nil, err
		}
		return res.Chunks, docStatuses(res.Results), nil
	}

	results, err := w.reader.ReadAll(uploads, job.chunkCfg)
	if err != nil {
		return nil, nil, err
	}
	var chunks []document.Chunk
	for _, r := range results {
		chunks = append(chunks, r.Chunks...)
	}
	return chunks, docStatuses(results), nil
}

func docStatuses(results []Result) []DocStatus {
	docs := make([]DocStatus, 0, len(results))
	for _, r := range results {
		d := DocStatus{
			DocID:    r.Doc.ID,
			Name:     r.Doc.Name,
			MIMEType: r.Doc.MIMEType,
			Chunks:   len(r.Chunks),
		}
		if r.MIMEType != "" {
			d.MIMEType = r.MIMEType
		}
		if r.Err != nil {
			d.Error = r.Err.Error()
		}
		docs = append(docs, d)
	}
	return docs
}

// sequence numbers chunks from 0 within each owning document.
func sequence(chunks []document.Chunk) []pushItem {
	seqs := make(map[*document.Document]int)
	items := make([]pushItem, 0, len(chunks))
	for _, c := range chunks {
		items = append(items, pushItem{chunk: c, seq: seqs[c.Doc]})
		seqs[c.Doc]++
	}
	return items
}

func (w *Worker) push(ctx context.Context, job *Job, log *slog.Logger, items []pushItem) int {
	type pushResult struct {
		key string
		err error
	}
	results := make(chan pushResult, len(items))
	sem := make(chan struct{}, w.maxConcurrentPush)

	for _, it := range items {
		sem <- struct{}{}
		go func(it pushItem) {
			defer func() { <-sem }()
			key := index.ChunkKey(it.chunk.DocName(), it.chunk.Doc.ID, it.seq)
			rec := index.ChunkRecord{
				Text:    it.chunk.Text,
				Name:    it.chunk.Name,
				DocID:   it.chunk.Doc.ID,
				DocName: it.chunk.DocName(),
				Seq:     it.seq,
				Source:  "unbowed:" + job.ID,
			}
			start := time.Now()
			err := withRetry(ctx, w.backoff, func() error {
				err := w.index.PutChunk(ctx, key, rec)
				if err != nil && IsRetryable(err) {
					log.Warn("retryable index error", "key", key, "error", err)
				}
				return err
			})
			w.stats.Record("index_push", time.Since(start))
			results <- pushResult{key: key, err: err}
		}(it)
	}

	pushed := 0
	for range items {
		r := <-results
		if r.err != nil {
			log.Error("push failed", "key", r.key, "error", r.err)
			job.AddError(fmt.Sprintf("push %s: %s", r.key, r.err))
			continue
		}
		pushed++
		job.IncrChunksIndexed()
	}
	return pushed
}

// writeDocuments stores a metadata record and a hash entry for every
// document that produced chunks.
func (w *Worker) writeDocuments(ctx context.Context, job *Job, log *slog.Logger, chunks []document.Chunk) {
	counts := make(map[*document.Document]int)
	var order []*document.Document
	for _, c := range chunks {
		if _, ok := counts[c.Doc]; !ok {
			order = append(order, c.Doc)
		}
		counts[c.Doc]++
	}

	created := job.CreatedAt.Format(time.RFC3339)
	for _, doc := range order {
		format := string(job.Mode)
		if job.Mode != ModeBatch {
			format = parser.FormatFromFilename(doc.Name).String()
		}
		rec := index.DocumentRecord{
			DocID:       doc.ID,
			Name:        doc.Name,
			Format:      format,
			ContentHash: job.ContentHash,
			Chunks:      counts[doc],
			CreatedAt:   created,
		}
		metaKey := index.DocumentPrefix(doc.Name, doc.ID) + "/meta"
		if err := w.index.PutDocument(ctx, metaKey, rec); err != nil {
			log.Error("meta write failed", "doc_id", doc.ID, "error", err)
			job.AddError(fmt.Sprintf("meta %s: %s", doc.Name, err))
		}
		if err := w.index.PutDocument(ctx, index.HashKey(job.ContentHash, doc.ID), rec); err != nil {
			log.Error("hash index write failed", "doc_id", doc.ID, "error", err)
		}
	}
}
