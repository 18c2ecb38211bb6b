package target

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
)

// fakeDBResponses scripts the answers the fake driver gives to the
// adapter's queries.
type fakeDBResponses struct {
	dbExists   bool
	pingErr    error
	queryErr   error
	execErr    error
	tableCount int64
}

// fakeDB records statements so tests can assert what the adapter ran.
type fakeDB struct {
	mu    sync.Mutex
	r     fakeDBResponses
	execs []string
}

func (f *fakeDB) recordExec(query string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, query)
}

func (f *fakeDB) executed(fragment string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.execs {
		if strings.Contains(q, fragment) {
			return true
		}
	}
	return false
}

// openFakeDB returns an openDB replacement backed by the scripted driver.
func openFakeDB(t *testing.T, r fakeDBResponses) func(string) (*sql.DB, error) {
	t.Helper()
	f := &fakeDB{r: r}
	return func(string) (*sql.DB, error) {
		return sql.OpenDB(fakeConnector{f: f}), nil
	}
}

// openFakeDBRecording also exposes the recorder for assertions.
func openFakeDBRecording(t *testing.T, r fakeDBResponses) (func(string) (*sql.DB, error), *fakeDB) {
	t.Helper()
	f := &fakeDB{r: r}
	return func(string) (*sql.DB, error) {
		return sql.OpenDB(fakeConnector{f: f}), nil
	}, f
}

type fakeConnector struct{ f *fakeDB }

func (c fakeConnector) Connect(context.Context) (driver.Conn, error) { return &fakeConn{f: c.f}, nil }
func (c fakeConnector) Driver() driver.Driver                        { return fakeDriver{} }

type fakeDriver struct{}

func (fakeDriver) Open(string) (driver.Conn, error) { return nil, fmt.Errorf("use OpenDB") }

type fakeConn struct{ f *fakeDB }

func (c *fakeConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not supported") }
func (c *fakeConn) Close() error                        { return nil }
func (c *fakeConn) Begin() (driver.Tx, error)           { return nil, fmt.Errorf("not supported") }

func (c *fakeConn) Ping(context.Context) error { return c.f.r.pingErr }

func (c *fakeConn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.f.recordExec(query)
	if c.f.r.execErr != nil {
		return nil, c.f.r.execErr
	}
	return driver.RowsAffected(0), nil
}

func (c *fakeConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if c.f.r.queryErr != nil {
		return nil, c.f.r.queryErr
	}
	switch {
	case strings.Contains(query, "pg_database"):
		return &fakeRows{cols: []string{"exists"}, vals: [][]driver.Value{{c.f.r.dbExists}}}, nil
	case strings.Contains(query, "information_schema.tables"):
		return &fakeRows{cols: []string{"count"}, vals: [][]driver.Value{{c.f.r.tableCount}}}, nil
	}
	return nil, fmt.Errorf("unexpected query: %s", query)
}

type fakeRows struct {
	cols []string
	vals [][]driver.Value
	i    int
}

func (r *fakeRows) Columns() []string { return r.cols }
func (r *fakeRows) Close() error      { return nil }

func (r *fakeRows) Next(dest []driver.Value) error {
	if r.i >= len(r.vals) {
		return io.EOF
	}
	copy(dest, r.vals[r.i])
	r.i++
	return nil
}
