// Package kishudb opens the single bbolt file a session's
// MetadataStore and VariableStore share, so both can be handed the
// same *bbolt.DB instead of each locking the file independently.
package kishudb

import (
	"time"

	"go.etcd.io/bbolt"
)

// Open opens (creating if absent) the bbolt database at path. The
// caller is responsible for closing it once every store built on top
// of it is done.
func Open(path string) (*bbolt.DB, error) {
	return bbolt.Open(path, 0o644, &bbolt.Options{Timeout: 2 * time.Second})
}
