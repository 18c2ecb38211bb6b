// Package session holds the TUI's navigation state: which field has focus,
// which popup is active, and the snapshot catalog with its selection.
package session

import (
	"fmt"

	"github.com/analogrithems/rustored/internal/config"
)

// Field identifies exactly one navigable element in the UI.
type Field int

const (
	// Object-store settings panel.
	FieldBucket Field = iota
	FieldRegion
	FieldPrefix
	FieldEndpoint
	FieldAccessKey
	FieldSecretKey
	FieldPathStyle

	// Restore target selector.
	FieldTargetPicker

	// PostgreSQL settings panel.
	FieldPgHost
	FieldPgPort
	FieldPgUser
	FieldPgPassword
	FieldPgSSL
	FieldPgDatabase

	// Elasticsearch settings panel.
	FieldEsHost
	FieldEsIndex

	// Qdrant settings panel.
	FieldQdrantHost
	FieldQdrantCollection
	FieldQdrantAPIKey

	// Snapshot catalog.
	FieldSnapshotList
)

// Group partitions fields into the cycle order used by tab navigation.
type Group int

const (
	GroupObjectStore Group = iota
	GroupTargetPicker
	GroupBackend
	GroupCatalog
)

var fieldLabels = map[Field]string{
	FieldBucket:           "Bucket",
	FieldRegion:           "Region",
	FieldPrefix:           "Prefix",
	FieldEndpoint:         "Endpoint URL",
	FieldAccessKey:        "Access Key ID",
	FieldSecretKey:        "Secret Access Key",
	FieldPathStyle:        "Path Style",
	FieldTargetPicker:     "Restore Target",
	FieldPgHost:           "Host",
	FieldPgPort:           "Port",
	FieldPgUser:           "Username",
	FieldPgPassword:       "Password",
	FieldPgSSL:            "SSL",
	FieldPgDatabase:       "Database",
	FieldEsHost:           "Host",
	FieldEsIndex:          "Index",
	FieldQdrantHost:       "Host",
	FieldQdrantCollection: "Collection",
	FieldQdrantAPIKey:     "API Key",
	FieldSnapshotList:     "Snapshot List",
}

func (f Field) String() string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}
	return fmt.Sprintf("Field(%d)", int(f))
}

// Sensitive reports whether rendering should mask this field's value.
// Masking itself is a rendering concern; the model keeps plain values.
func (f Field) Sensitive() bool {
	switch f {
	case FieldSecretKey, FieldPgPassword, FieldQdrantAPIKey:
		return true
	}
	return false
}

// ObjectStoreFields is the ordered field set of the object-store panel.
var ObjectStoreFields = []Field{
	FieldBucket, FieldRegion, FieldPrefix, FieldEndpoint,
	FieldAccessKey, FieldSecretKey, FieldPathStyle,
}

var backendFields = map[config.Target][]Field{
	config.TargetPostgres: {
		FieldPgHost, FieldPgPort, FieldPgUser,
		FieldPgPassword, FieldPgSSL, FieldPgDatabase,
	},
	config.TargetElasticsearch: {FieldEsHost, FieldEsIndex},
	config.TargetQdrant:        {FieldQdrantHost, FieldQdrantCollection, FieldQdrantAPIKey},
}

// FieldsFor returns the ordered field set of the given target's settings
// panel.
func FieldsFor(t config.Target) []Field {
	return backendFields[t]
}

// GroupOf returns the panel group a field belongs to. The backend group is
// shared by all target variants; membership within it is target-dependent.
func GroupOf(f Field) Group {
	switch f {
	case FieldTargetPicker:
		return GroupTargetPicker
	case FieldSnapshotList:
		return GroupCatalog
	}
	for _, of := range ObjectStoreFields {
		if of == f {
			return GroupObjectStore
		}
	}
	return GroupBackend
}

// Direction of an in-group focus move.
type Direction int

const (
	Next Direction = iota
	Prev
)

// Focus tracks the single focused field and the selected restore target.
// Exactly one field is current at any time.
type Focus struct {
	current Field
	target  config.Target
}

// NewFocus starts on the snapshot list, mirroring where an operator usually
// begins.
func NewFocus() *Focus {
	return &Focus{current: FieldSnapshotList, target: config.TargetPostgres}
}

// Current returns the focused field.
func (fo *Focus) Current() Field { return fo.current }

// Target returns the selected restore target.
func (fo *Focus) Target() config.Target { return fo.target }

// Set moves focus directly to f. Used by tests and by group jumps.
func (fo *Focus) Set(f Field) { fo.current = f }

// groupFields returns the ordered fields of the group the focus is in,
// resolved against the selected target for the backend group.
func (fo *Focus) groupFields() []Field {
	switch GroupOf(fo.current) {
	case GroupObjectStore:
		return ObjectStoreFields
	case GroupTargetPicker:
		return []Field{FieldTargetPicker}
	case GroupBackend:
		return FieldsFor(fo.target)
	default:
		return []Field{FieldSnapshotList}
	}
}

// Advance moves focus to the adjacent field within the current group,
// wrapping at the group boundary. It never crosses groups.
func (fo *Focus) Advance(dir Direction) {
	fields := fo.groupFields()
	idx := 0
	for i, f := range fields {
		if f == fo.current {
			idx = i
			break
		}
	}
	if dir == Next {
		idx = (idx + 1) % len(fields)
	} else {
		idx = (idx - 1 + len(fields)) % len(fields)
	}
	fo.current = fields[idx]
}

// CycleGroup moves focus to the first field of the next panel group:
// object store, then the active backend, then the catalog, and around.
// The target picker is reached with its dedicated keys, not by cycling.
func (fo *Focus) CycleGroup() {
	switch GroupOf(fo.current) {
	case GroupObjectStore:
		fo.current = FieldsFor(fo.target)[0]
	case GroupBackend, GroupTargetPicker:
		fo.current = FieldSnapshotList
	default:
		fo.current = ObjectStoreFields[0]
	}
}

// JumpToGroup moves focus to the designated first field of the given group.
func (fo *Focus) JumpToGroup(g Group) {
	switch g {
	case GroupObjectStore:
		fo.current = ObjectStoreFields[0]
	case GroupTargetPicker:
		fo.current = FieldTargetPicker
	case GroupBackend:
		fo.current = FieldsFor(fo.target)[0]
	case GroupCatalog:
		fo.current = FieldSnapshotList
	}
}

// SetTarget selects a restore target. When the current focus sits on a
// field that does not exist for the new target, focus relocates to that
// target's first field; otherwise it is left alone so switching targets
// does not yank the operator around.
func (fo *Focus) SetTarget(t config.Target) {
	fo.target = t
	if GroupOf(fo.current) != GroupBackend {
		return
	}
	for _, f := range FieldsFor(t) {
		if f == fo.current {
			return
		}
	}
	fo.current = FieldsFor(t)[0]
}
