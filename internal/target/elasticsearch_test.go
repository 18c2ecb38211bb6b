package target

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/analogrithems/rustored/internal/config"
)

// esTestServer is a scripted cluster: it records bulk bodies and answers
// the handful of endpoints the adapter talks to.
type esTestServer struct {
	mu         sync.Mutex
	bulkBodies []string
	indexPuts  int

	createStatus int
	createBody   string
	bulkErrors   bool
	countDocs    int64
}

func (s *esTestServer) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/":
			fmt.Fprint(w, `{"cluster_name":"test"}`)
		case r.Method == http.MethodPut:
			s.indexPuts++
			if s.createStatus != 0 {
				w.WriteHeader(s.createStatus)
				fmt.Fprint(w, s.createBody)
				return
			}
			fmt.Fprint(w, `{"acknowledged":true}`)
		case r.Method == http.MethodPost && r.URL.Path == "/_bulk":
			body, _ := io.ReadAll(r.Body)
			s.bulkBodies = append(s.bulkBodies, string(body))
			fmt.Fprintf(w, `{"errors":%v,"items":[]}`, s.bulkErrors)
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/_count"):
			fmt.Fprintf(w, `{"count":%d}`, s.countDocs)
		default:
			http.NotFound(w, r)
		}
	})
}

func (s *esTestServer) bulkDocCount(t *testing.T) int {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs int
	for _, body := range s.bulkBodies {
		for _, line := range strings.Split(strings.TrimSpace(body), "\n") {
			if line == "" || isBulkActionLine([]byte(line)) {
				continue
			}
			docs++
		}
	}
	return docs
}

func newESAdapter(t *testing.T, s *esTestServer) (*Elasticsearch, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(s.handler())
	t.Cleanup(srv.Close)
	return NewElasticsearch(config.Elasticsearch{Host: srv.URL, Index: "books"}, zerolog.Nop()), srv
}

func TestSniffESFormat(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    esFormat
		wantErr bool
	}{
		{"bulk file", `{"index":{"_id":"1"}}` + "\n" + `{"title":"one"}` + "\n", esFormatBulk, false},
		{"ndjson docs", `{"title":"one"}` + "\n" + `{"title":"two"}` + "\n", esFormatDocs, false},
		{"json array", `[{"title":"one"},{"title":"two"}]`, esFormatDocs, false},
		{"not json", "title,author\none,someone\n", esFormatUnknown, true},
		{"empty", "   \n", esFormatUnknown, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeSnapshot(t, "snap.json", tt.content)
			got, err := sniffESFormat(path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("format = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestElasticsearchTestConnection(t *testing.T) {
	e, _ := newESAdapter(t, &esTestServer{})
	if err := e.TestConnection(context.Background()); err != nil {
		t.Fatalf("TestConnection() = %v", err)
	}

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer down.Close()
	e = NewElasticsearch(config.Elasticsearch{Host: down.URL, Index: "books"}, zerolog.Nop())
	if err := e.TestConnection(context.Background()); err == nil {
		t.Error("expected error for 500 response")
	}
}

func TestElasticsearchApplyDocsWrapsActions(t *testing.T) {
	s := &esTestServer{}
	e, _ := newESAdapter(t, s)
	path := writeSnapshot(t, "docs.ndjson",
		`{"title":"one"}`+"\n"+`{"title":"two"}`+"\n"+`{"title":"three"}`+"\n")

	var last Progress
	if err := e.Apply(context.Background(), path, func(p Progress) { last = p }); err != nil {
		t.Fatalf("Apply() = %v", err)
	}

	if s.indexPuts != 1 {
		t.Errorf("index created %d times, want 1", s.indexPuts)
	}
	if got := s.bulkDocCount(t); got != 3 {
		t.Errorf("indexed %d documents, want 3", got)
	}
	if !strings.Contains(s.bulkBodies[0], `{"index":{"_index":"books"}}`) {
		t.Errorf("bulk body lacks index action: %q", s.bulkBodies[0])
	}
	if last.Done != 3 || last.Total != 3 {
		t.Errorf("final progress = %d/%d, want 3/3", last.Done, last.Total)
	}
}

func TestElasticsearchApplyJSONArray(t *testing.T) {
	s := &esTestServer{}
	e, _ := newESAdapter(t, s)
	path := writeSnapshot(t, "docs.json", `[{"title":"one"},{"title":"two"}]`)

	if err := e.Apply(context.Background(), path, nil); err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	if got := s.bulkDocCount(t); got != 2 {
		t.Errorf("indexed %d documents, want 2", got)
	}
}

func TestElasticsearchApplyForwardsBulkFile(t *testing.T) {
	s := &esTestServer{}
	e, _ := newESAdapter(t, s)
	path := writeSnapshot(t, "bulk.ndjson",
		`{"index":{"_id":"1"}}`+"\n"+`{"title":"one"}`+"\n"+
			`{"index":{"_id":"2"}}`+"\n"+`{"title":"two"}`+"\n")

	if err := e.Apply(context.Background(), path, nil); err != nil {
		t.Fatalf("Apply() = %v", err)
	}
	if got := s.bulkDocCount(t); got != 2 {
		t.Errorf("indexed %d documents, want 2", got)
	}
	if !strings.Contains(s.bulkBodies[0], `"_id":"1"`) {
		t.Errorf("action lines were not forwarded: %q", s.bulkBodies[0])
	}
}

func TestElasticsearchApplyToleratesExistingIndex(t *testing.T) {
	s := &esTestServer{
		createStatus: http.StatusBadRequest,
		createBody:   `{"error":{"type":"resource_already_exists_exception"}}`,
	}
	e, _ := newESAdapter(t, s)
	path := writeSnapshot(t, "docs.ndjson", `{"title":"one"}`+"\n")

	if err := e.Apply(context.Background(), path, nil); err != nil {
		t.Fatalf("Apply() = %v", err)
	}
}

func TestElasticsearchApplySurfacesItemFailures(t *testing.T) {
	s := &esTestServer{bulkErrors: true}
	e, _ := newESAdapter(t, s)
	path := writeSnapshot(t, "docs.ndjson", `{"title":"one"}`+"\n")

	if err := e.Apply(context.Background(), path, nil); err == nil {
		t.Error("expected error when bulk response reports item failures")
	}
}

func TestElasticsearchVerify(t *testing.T) {
	s := &esTestServer{countDocs: 42}
	e, _ := newESAdapter(t, s)
	if err := e.Verify(context.Background()); err != nil {
		t.Fatalf("Verify() = %v", err)
	}

	s2 := &esTestServer{countDocs: 0}
	e2, _ := newESAdapter(t, s2)
	err := e2.Verify(context.Background())
	if err == nil || !strings.Contains(err.Error(), "empty") {
		t.Errorf("expected empty-index error, got %v", err)
	}
}

func TestReadDocuments(t *testing.T) {
	path := writeSnapshot(t, "docs.ndjson", `{"a":1}`+"\n\n"+`{"b":2}`+"\n")
	docs, err := readDocuments(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2", len(docs))
	}
	var first map[string]json.RawMessage
	if err := json.Unmarshal(docs[0], &first); err != nil {
		t.Fatal(err)
	}
}
