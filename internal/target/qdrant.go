package target

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/analogrithems/rustored/internal/config"
)

// qdrantBatch is the number of points upserted per request.
const qdrantBatch = 256

// qdrantFormat distinguishes the accepted snapshot formats.
type qdrantFormat int

const (
	qdrantFormatUnknown  qdrantFormat = iota
	qdrantFormatSnapshot              // native .snapshot file, uploaded whole
	qdrantFormatPoints                // JSON point collection, upserted in batches
)

// qdrantPoint is one vector record in a JSON point collection.
type qdrantPoint struct {
	ID      json.RawMessage `json:"id"`
	Vector  json.RawMessage `json:"vector"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Qdrant restores snapshots into a vector collection over the HTTP API.
type Qdrant struct {
	cfg  config.Qdrant
	http *http.Client
	log  zerolog.Logger
}

// NewQdrant builds the vector-store adapter.
func NewQdrant(cfg config.Qdrant, log zerolog.Logger) *Qdrant {
	return &Qdrant{cfg: cfg, http: &http.Client{}, log: log}
}

func (q *Qdrant) Name() string { return "Qdrant" }

func (q *Qdrant) url(path string) string {
	return strings.TrimSuffix(q.cfg.Host, "/") + path
}

// do sends a request with the API key header applied when configured.
func (q *Qdrant) do(req *http.Request) (*http.Response, error) {
	if q.cfg.APIKey != "" {
		req.Header.Set("api-key", q.cfg.APIKey)
	}
	return q.http.Do(req)
}

// TestConnection probes the health endpoint with a bounded timeout.
func (q *Qdrant) TestConnection(ctx context.Context) error {
	if err := q.cfg.Validate(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url("/healthz"), nil)
	if err != nil {
		return err
	}
	resp, err := q.do(req)
	if err != nil {
		return fmt.Errorf("cannot reach Qdrant at %s: %w", q.cfg.Host, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Qdrant at %s answered %s", q.cfg.Host, resp.Status)
	}
	return nil
}

// Validate classifies the artifact: a native snapshot file or a JSON point
// collection. No target state is touched.
func (q *Qdrant) Validate(_ context.Context, path string) error {
	_, _, err := sniffQdrantFormat(path)
	return err
}

// Apply uploads a native snapshot whole, or upserts a JSON point
// collection in batches, creating the collection if absent.
func (q *Qdrant) Apply(ctx context.Context, path string, progress ProgressFunc) error {
	if err := q.cfg.Validate(); err != nil {
		return err
	}
	format, points, err := sniffQdrantFormat(path)
	if err != nil {
		return err
	}

	if format == qdrantFormatSnapshot {
		report(progress, Progress{Total: -1, Detail: "uploading snapshot"})
		return q.uploadSnapshot(ctx, path)
	}

	if err := q.ensureCollection(ctx, points); err != nil {
		return err
	}
	total := int64(len(points))
	for start := 0; start < len(points); start += qdrantBatch {
		end := start + qdrantBatch
		if end > len(points) {
			end = len(points)
		}
		if err := q.upsertPoints(ctx, points[start:end]); err != nil {
			return err
		}
		report(progress, Progress{Done: int64(end), Total: total, Detail: "points upserted"})
	}
	return nil
}

// Verify checks the collection status and that it holds points.
func (q *Qdrant) Verify(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url("/collections/"+q.cfg.Collection), nil)
	if err != nil {
		return err
	}
	resp, err := q.do(req)
	if err != nil {
		return fmt.Errorf("cannot reach collection %s: %w", q.cfg.Collection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("collection %s answered %s", q.cfg.Collection, resp.Status)
	}

	var out struct {
		Result struct {
			Status      string `json:"status"`
			PointsCount int64  `json:"points_count"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("bad collection info from %s: %w", q.cfg.Collection, err)
	}
	if out.Result.Status == "red" {
		return fmt.Errorf("collection %s is unhealthy (status %s)", q.cfg.Collection, out.Result.Status)
	}
	if out.Result.PointsCount == 0 {
		return fmt.Errorf("collection %s holds no points after restore", q.cfg.Collection)
	}
	return nil
}

// uploadSnapshot streams the file to the snapshot-upload endpoint.
func (q *Qdrant) uploadSnapshot(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot open snapshot: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("snapshot", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to stage snapshot upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return err
	}

	url := q.url("/collections/" + q.cfg.Collection + "/snapshots/upload?priority=snapshot")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := q.do(req)
	if err != nil {
		return fmt.Errorf("snapshot upload failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("snapshot upload answered %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

// ensureCollection creates the collection when absent, inferring the
// vector size from the first point.
func (q *Qdrant) ensureCollection(ctx context.Context, points []qdrantPoint) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.url("/collections/"+q.cfg.Collection), nil)
	if err != nil {
		return err
	}
	resp, err := q.do(req)
	if err != nil {
		return fmt.Errorf("cannot reach Qdrant at %s: %w", q.cfg.Host, err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("collection %s answered %s", q.cfg.Collection, resp.Status)
	}

	size := vectorSize(points)
	if size == 0 {
		return fmt.Errorf("cannot infer vector size: first point has no plain vector")
	}
	spec := map[string]any{"vectors": map[string]any{"size": size, "distance": "Cosine"}}
	payload, _ := json.Marshal(spec)

	q.log.Info().Str("collection", q.cfg.Collection).Int("vector_size", size).Msg("creating collection")
	req, err = http.NewRequestWithContext(ctx, http.MethodPut, q.url("/collections/"+q.cfg.Collection), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err = q.do(req)
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", q.cfg.Collection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("failed to create collection %s: %s: %s", q.cfg.Collection, resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

// upsertPoints sends one batch to the points endpoint.
func (q *Qdrant) upsertPoints(ctx context.Context, batch []qdrantPoint) error {
	payload, err := json.Marshal(map[string]any{"points": batch})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, q.url("/collections/"+q.cfg.Collection+"/points?wait=true"), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.do(req)
	if err != nil {
		return fmt.Errorf("point upsert failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("point upsert answered %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

// vectorSize returns the dimension of the first point's plain vector, or 0
// when it cannot be determined (named vectors are created server-side by
// snapshot restores, not point collections).
func vectorSize(points []qdrantPoint) int {
	if len(points) == 0 {
		return 0
	}
	var vec []float64
	if err := json.Unmarshal(points[0].Vector, &vec); err != nil {
		return 0
	}
	return len(vec)
}

// sniffQdrantFormat classifies the artifact and, for point collections,
// returns the parsed points.
func sniffQdrantFormat(path string) (qdrantFormat, []qdrantPoint, error) {
	if strings.HasSuffix(path, ".snapshot") {
		if _, err := os.Stat(path); err != nil {
			return qdrantFormatUnknown, nil, fmt.Errorf("cannot open snapshot: %w", err)
		}
		return qdrantFormatSnapshot, nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return qdrantFormatUnknown, nil, fmt.Errorf("cannot read snapshot: %w", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return qdrantFormatUnknown, nil, fmt.Errorf("snapshot is empty")
	}

	var points []qdrantPoint
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &points); err != nil {
			return qdrantFormatUnknown, nil, fmt.Errorf("bad JSON point array: %w", err)
		}
	case '{':
		var wrapper struct {
			Points []qdrantPoint `json:"points"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err != nil || wrapper.Points == nil {
			return qdrantFormatUnknown, nil, fmt.Errorf("snapshot is not a Qdrant point collection")
		}
		points = wrapper.Points
	default:
		return qdrantFormatUnknown, nil, fmt.Errorf("snapshot is neither a .snapshot file nor a JSON point collection")
	}

	for i, p := range points {
		if len(p.ID) == 0 || len(p.Vector) == 0 {
			return qdrantFormatUnknown, nil, fmt.Errorf("point %d is missing id or vector", i)
		}
	}
	return qdrantFormatPoints, points, nil
}
