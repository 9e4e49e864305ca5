package domain

import "context"

// MigrationStrategy upgrades a record by one schema version. The engine takes
// ownership of the returned record for persistence.
type MigrationStrategy func(Record) (Record, error)

// CollectionConfig is everything a storage engine needs to host a collection.
type CollectionConfig struct {
	// Schema is the full structural schema: every historical payload version
	// optional except the latest.
	Schema *Schema
	// Latest is the latest-only structural schema.
	Latest *Schema
	// Strategies maps a target version to the step producing it.
	Strategies map[int]MigrationStrategy
}

// LatestVersion returns the schema version the collection is registered at.
func (c CollectionConfig) LatestVersion() int {
	if c.Schema == nil || c.Schema.Version == nil {
		return 0
	}
	return *c.Schema.Version
}

// AfterLoadFunc runs on every document returned by the engine.
type AfterLoadFunc func(ctx context.Context, doc *Document) error

// BeforeWriteFunc runs before a record reaches storage; an error aborts the write.
type BeforeWriteFunc func(ctx context.Context, rec Record) error

// CollectionRegistrar accepts collection registrations. Names are unique per
// engine.
type CollectionRegistrar interface {
	RegisterCollection(ctx context.Context, name string, cfg CollectionConfig) error
}

// LifecycleHooks is the capability set the core relies on to observe
// documents crossing the engine boundary. Each callback fires exactly once per
// matching event, synchronously, before the event completes.
type LifecycleHooks interface {
	OnAfterLoad(name string, fn AfterLoadFunc) error
	OnBeforeInsert(name string, fn BeforeWriteFunc) error
	OnBeforeUpdate(name string, fn BeforeWriteFunc) error
}

// StorageEngine is the full boundary the core registers against.
type StorageEngine interface {
	CollectionRegistrar
	LifecycleHooks
}

// StoredDocument is the persisted form of a document: its identifier, the
// schema version recorded by the last upgrade pass and the raw JSON bytes.
type StoredDocument struct {
	ID            string
	SchemaVersion int
	Body          []byte
}

// Backend is a minimal abstraction over durable document storage.
type Backend interface {
	Get(ctx context.Context, collection, id string) (StoredDocument, error)
	Put(ctx context.Context, collection string, doc StoredDocument) error
	Delete(ctx context.Context, collection, id string) (bool, error)
	List(ctx context.Context, collection string) ([]StoredDocument, error)
	Close() error
}
