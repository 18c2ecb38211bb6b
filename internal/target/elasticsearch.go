package target

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/analogrithems/rustored/internal/config"
)

// esBulkBatch is the number of documents sent per _bulk request.
const esBulkBatch = 500

// esFormat distinguishes the accepted snapshot formats.
type esFormat int

const (
	esFormatUnknown esFormat = iota
	esFormatBulk             // NDJSON with action lines, forwarded as-is
	esFormatDocs             // NDJSON documents or a JSON array of documents
)

// Elasticsearch restores snapshots into an index via the bulk API.
type Elasticsearch struct {
	cfg  config.Elasticsearch
	http *http.Client
	log  zerolog.Logger
}

// NewElasticsearch builds the document-search adapter.
func NewElasticsearch(cfg config.Elasticsearch, log zerolog.Logger) *Elasticsearch {
	return &Elasticsearch{cfg: cfg, http: &http.Client{}, log: log}
}

func (e *Elasticsearch) Name() string { return "Elasticsearch" }

func (e *Elasticsearch) url(path string) string {
	return strings.TrimSuffix(e.cfg.Host, "/") + path
}

// TestConnection checks that the cluster root answers.
func (e *Elasticsearch) TestConnection(ctx context.Context) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	resp, err := e.get(ctx, e.url("/"))
	if err != nil {
		return fmt.Errorf("cannot reach Elasticsearch at %s: %w", e.cfg.Host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Elasticsearch at %s answered %s", e.cfg.Host, resp.Status)
	}
	return nil
}

// Validate classifies the artifact: an NDJSON bulk body, NDJSON documents,
// or a JSON document array. No target state is touched.
func (e *Elasticsearch) Validate(_ context.Context, path string) error {
	_, err := sniffESFormat(path)
	return err
}

// Apply creates the index if needed and feeds the documents through the
// bulk API in batches, reporting the running document count.
func (e *Elasticsearch) Apply(ctx context.Context, path string, progress ProgressFunc) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	format, err := sniffESFormat(path)
	if err != nil {
		return err
	}

	if err := e.ensureIndex(ctx); err != nil {
		return err
	}

	switch format {
	case esFormatBulk:
		return e.applyBulkFile(ctx, path, progress)
	default:
		return e.applyDocs(ctx, path, progress)
	}
}

// Verify asks the index for its document count.
func (e *Elasticsearch) Verify(ctx context.Context) error {
	resp, err := e.get(ctx, e.url("/"+e.cfg.Index+"/_count"))
	if err != nil {
		return fmt.Errorf("cannot reach index %s: %w", e.cfg.Index, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("index %s answered %s", e.cfg.Index, resp.Status)
	}

	var out struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("bad _count response from %s: %w", e.cfg.Index, err)
	}
	if out.Count == 0 {
		return fmt.Errorf("index %s is empty after restore", e.cfg.Index)
	}
	return nil
}

// ensureIndex creates the index, tolerating an already-existing one.
func (e *Elasticsearch) ensureIndex(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, e.url("/"+e.cfg.Index), nil)
	if err != nil {
		return err
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", e.cfg.Index, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusBadRequest && bytes.Contains(body, []byte("resource_already_exists_exception")) {
		return nil
	}
	return fmt.Errorf("failed to create index %s: %s: %s", e.cfg.Index, resp.Status, strings.TrimSpace(string(body)))
}

// applyBulkFile forwards a ready-made bulk body, batching on action
// boundaries so a batch never splits an action from its source line.
func (e *Elasticsearch) applyBulkFile(ctx context.Context, path string, progress ProgressFunc) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open snapshot: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	var docs, batchDocs int64
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		buf.Write(line)
		buf.WriteByte('\n')
		if isBulkActionLine(line) {
			continue
		}
		docs++
		batchDocs++
		if batchDocs >= esBulkBatch {
			if err := e.sendBulk(ctx, &buf); err != nil {
				return err
			}
			report(progress, Progress{Done: docs, Total: -1, Detail: "documents indexed"})
			batchDocs = 0
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed reading snapshot: %w", err)
	}
	if buf.Len() > 0 {
		if err := e.sendBulk(ctx, &buf); err != nil {
			return err
		}
	}
	report(progress, Progress{Done: docs, Total: docs, Detail: "documents indexed"})
	return nil
}

// applyDocs wraps raw documents in index actions. Handles both NDJSON and
// a single JSON array.
func (e *Elasticsearch) applyDocs(ctx context.Context, path string, progress ProgressFunc) error {
	docs, err := readDocuments(path)
	if err != nil {
		return err
	}

	action := fmt.Sprintf(`{"index":{"_index":%q}}`, e.cfg.Index)
	var buf bytes.Buffer
	var sent int64
	total := int64(len(docs))
	for i, doc := range docs {
		buf.WriteString(action)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
		if (i+1)%esBulkBatch == 0 || i == len(docs)-1 {
			if err := e.sendBulk(ctx, &buf); err != nil {
				return err
			}
			sent = int64(i + 1)
			report(progress, Progress{Done: sent, Total: total, Detail: "documents indexed"})
		}
	}
	return nil
}

// sendBulk posts one bulk body and resets the buffer.
func (e *Elasticsearch) sendBulk(ctx context.Context, buf *bytes.Buffer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url("/_bulk"), bytes.NewReader(buf.Bytes()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	resp, err := e.http.Do(req)
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer resp.Body.Close()
	buf.Reset()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("bulk request answered %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	var out struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("bad bulk response: %w", err)
	}
	if out.Errors {
		return fmt.Errorf("bulk request reported item failures")
	}
	return nil
}

func (e *Elasticsearch) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return e.http.Do(req)
}

// isBulkActionLine reports whether a JSON line is a bulk action header.
func isBulkActionLine(line []byte) bool {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(line, &obj); err != nil || len(obj) != 1 {
		return false
	}
	for _, key := range []string{"index", "create", "update", "delete"} {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}

// sniffESFormat classifies the artifact by its first JSON value.
func sniffESFormat(path string) (esFormat, error) {
	f, err := os.Open(path)
	if err != nil {
		return esFormatUnknown, fmt.Errorf("cannot open snapshot: %w", err)
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	first, err := firstNonSpaceByte(reader)
	if err != nil {
		return esFormatUnknown, fmt.Errorf("snapshot is empty")
	}
	if first == '[' {
		return esFormatDocs, nil
	}
	if first != '{' {
		return esFormatUnknown, fmt.Errorf("snapshot is not a JSON document collection or bulk file")
	}

	line, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return esFormatUnknown, err
	}
	line = append([]byte{first}, bytes.TrimSpace(line)...)
	if !json.Valid(line) {
		return esFormatUnknown, fmt.Errorf("snapshot is not valid NDJSON")
	}
	if isBulkActionLine(line) {
		return esFormatBulk, nil
	}
	return esFormatDocs, nil
}

func firstNonSpaceByte(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, nil
	}
}

// readDocuments loads every document from an NDJSON file or a JSON array.
func readDocuments(path string) ([]json.RawMessage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read snapshot: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("snapshot is empty")
	}

	if trimmed[0] == '[' {
		var docs []json.RawMessage
		if err := json.Unmarshal(trimmed, &docs); err != nil {
			return nil, fmt.Errorf("bad JSON document array: %w", err)
		}
		return docs, nil
	}

	var docs []json.RawMessage
	for _, line := range bytes.Split(trimmed, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			return nil, fmt.Errorf("bad NDJSON document on line %d", len(docs)+1)
		}
		docs = append(docs, json.RawMessage(line))
	}
	return docs, nil
}
