package database

// Table names double as hashing namespaces for the cipher layer, so two
// logical stores sharing one database file never collide on hashed keys.
const (
	TableMedia = "media_cache"
	TableKV    = "media_kv"
)

// Well-known media_kv keys.
const (
	keyVersion = "version"

	// KeyCipher holds the passphrase-wrapped store cipher export.
	KeyCipher = "cipher"
)

const schema = `
CREATE TABLE media_kv (
	key TEXT PRIMARY KEY NOT NULL,
	value BLOB NOT NULL
);

CREATE TABLE media_cache (
	uri BLOB NOT NULL,
	format BLOB NOT NULL,
	data BLOB NOT NULL,
	last_access INTEGER NOT NULL,
	PRIMARY KEY (uri, format)
);

CREATE INDEX idx_media_cache_last_access ON media_cache(last_access);
`

// migrations contains incremental schema changes
// migrations[v] upgrades the schema from version v to v+1
// migrations[0] is empty because version 1 is created by the base schema
var migrations = []string{
	"",
	// Future migrations go here, e.g.:
	// `-- Migration 1: Example future migration
	// ALTER TABLE media_cache ADD COLUMN new_field TEXT;`,
}
