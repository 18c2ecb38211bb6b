package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Target identifies one of the supported restore destinations.
type Target int

const (
	TargetPostgres Target = iota
	TargetElasticsearch
	TargetQdrant
)

// Targets lists every restore target in selection order (keys 1-3 in the UI).
var Targets = []Target{TargetPostgres, TargetElasticsearch, TargetQdrant}

func (t Target) String() string {
	switch t {
	case TargetPostgres:
		return "PostgreSQL"
	case TargetElasticsearch:
		return "Elasticsearch"
	case TargetQdrant:
		return "Qdrant"
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// Postgres holds connection settings for the relational target.
type Postgres struct {
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool
	Database string
}

// Validate checks the settings locally. It does not touch the network.
func (c *Postgres) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fieldErrorf("host", "must not be empty")
	}
	if !validPort(c.Port) {
		return fieldErrorf("port", "must be between 1 and 65535, got %d", c.Port)
	}
	if strings.TrimSpace(c.Database) == "" {
		return fieldErrorf("database", "must not be empty")
	}
	return nil
}

// DSN builds a connection string for the given database name. An empty
// dbName targets the maintenance database configured for this target.
func (c *Postgres) DSN(dbName string) string {
	if dbName == "" {
		dbName = c.Database
	}
	sslmode := "disable"
	if c.UseSSL {
		sslmode = "require"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "host=%s port=%d dbname=%s sslmode=%s", c.Host, c.Port, dbName, sslmode)
	if c.Username != "" {
		fmt.Fprintf(&b, " user=%s", c.Username)
	}
	if c.Password != "" {
		fmt.Fprintf(&b, " password=%s", c.Password)
	}
	return b.String()
}

// Elasticsearch holds connection settings for the document-search target.
type Elasticsearch struct {
	Host  string
	Index string
}

// Validate checks the settings locally. It does not touch the network.
func (c *Elasticsearch) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fieldErrorf("host", "must not be empty")
	}
	if !strings.HasPrefix(c.Host, "http://") && !strings.HasPrefix(c.Host, "https://") {
		return fieldErrorf("host", "must start with http:// or https://")
	}
	if _, err := url.Parse(c.Host); err != nil {
		return fieldErrorf("host", "not a valid URL")
	}
	if strings.TrimSpace(c.Index) == "" {
		return fieldErrorf("index", "must not be empty")
	}
	return nil
}

// Qdrant holds connection settings for the vector-store target.
type Qdrant struct {
	Host       string
	Collection string
	APIKey     string
}

// Validate checks the settings locally. It does not touch the network.
func (c *Qdrant) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fieldErrorf("host", "must not be empty")
	}
	if !strings.HasPrefix(c.Host, "http://") && !strings.HasPrefix(c.Host, "https://") {
		return fieldErrorf("host", "must start with http:// or https://")
	}
	if strings.TrimSpace(c.Collection) == "" {
		return fieldErrorf("collection", "must not be empty")
	}
	return nil
}

// MaskedAPIKey returns the API key with all but the last four characters
// hidden.
func (c *Qdrant) MaskedAPIKey() string {
	return MaskSecret(c.APIKey)
}

// TargetSet owns the per-target configurations. A target's configuration is
// created lazily on first selection and retained for the rest of the
// session.
type TargetSet struct {
	Postgres      *Postgres
	Elasticsearch *Elasticsearch
	Qdrant        *Qdrant
}

// Ensure creates the configuration for t if it does not exist yet.
func (s *TargetSet) Ensure(t Target) {
	switch t {
	case TargetPostgres:
		if s.Postgres == nil {
			s.Postgres = &Postgres{Port: 5432}
		}
	case TargetElasticsearch:
		if s.Elasticsearch == nil {
			s.Elasticsearch = &Elasticsearch{}
		}
	case TargetQdrant:
		if s.Qdrant == nil {
			s.Qdrant = &Qdrant{}
		}
	}
}

// Validate runs the local validation for the given target's configuration.
func (s *TargetSet) Validate(t Target) error {
	s.Ensure(t)
	switch t {
	case TargetPostgres:
		return s.Postgres.Validate()
	case TargetElasticsearch:
		return s.Elasticsearch.Validate()
	case TargetQdrant:
		return s.Qdrant.Validate()
	}
	return fmt.Errorf("unknown target %d", int(t))
}
