// Package varstore implements VariableStore: content-addressed
// storage of serialized variable snapshots keyed by (names, version).
//
// Grounded on loog-project-loog's internal/store/bbolt (bbolt bucket
// layout, one *bbolt.DB shared with metastore via internal/kishudb)
// and on the teacher's content-addressing idiom in pkg/cas, adapted
// here so a VersionedName's blob is written at most once across the
// whole commit graph rather than once per commit.
package varstore

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/MRyutaro/kishu-vldb/internal/codec"
	"github.com/MRyutaro/kishu-vldb/internal/kishuerrors"
	"github.com/MRyutaro/kishu-vldb/internal/types"
)

var (
	bucketVariableKV = []byte("variable_kv")
	bucketNamespace  = []byte("namespace")
)

var allBuckets = [][]byte{bucketVariableKV, bucketNamespace}

// Store is the bbolt-backed VariableStore.
type Store struct {
	db    *bbolt.DB
	codec codec.Codec
}

// Open ensures the variable_kv and namespace tables exist in db and
// returns a Store bound to it. db is owned by the caller.
func Open(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, codec: codec.Default}, nil
}

// kvKey is the composite primary key (commit_id, names_hash, version).
func kvKey(commitID types.CommitID, vn types.VersionedName) []byte {
	return []byte(fmt.Sprintf("%s|%s|%d", commitID, vn.NamesHashHex(), vn.Version))
}

// contentKey is the content-address used to dedup a VS's blob across
// the whole graph, independent of which commit first wrote it: blobs
// are shared by (names_hash, version) alone.
func contentKey(vn types.VersionedName) []byte {
	return []byte(fmt.Sprintf("%s|%d", vn.NamesHashHex(), vn.Version))
}

// Put stores blob for versionedName as written at commitID. If the
// same (names, version) content was already stored by an earlier
// commit, the blob is not duplicated: only a pointer row is added so
// get_stored_versioned_names still sees commitID as having it.
func (s *Store) Put(commitID types.CommitID, vn types.VersionedName, blob []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		content := tx.Bucket(bucketVariableKV)
		ck := contentKey(vn)
		if content.Get(ck) == nil {
			if err := content.Put(ck, blob); err != nil {
				return err
			}
		}
		ns := tx.Bucket(bucketNamespace)
		namesBlob, err := s.codec.Marshal(vn.Names.Sorted())
		if err != nil {
			return err
		}
		return ns.Put(kvKey(commitID, vn), namesBlob)
	})
}

// GetStoredVersionedNames returns the VersionedNames already persisted
// for any of the given commits, used by the planner to compute the
// checkpoint delta against an ancestor set.
func (s *Store) GetStoredVersionedNames(commitIDs []types.CommitID) (map[types.VersionedName]bool, error) {
	wanted := make(map[types.CommitID]struct{}, len(commitIDs))
	for _, id := range commitIDs {
		wanted[id] = struct{}{}
	}
	out := make(map[types.VersionedName]bool)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketNamespace).ForEach(func(k, v []byte) error {
			commitID, vn, ok := splitKVKey(k)
			if !ok {
				return nil
			}
			if _, want := wanted[commitID]; !want {
				return nil
			}
			var names []types.Name
			if err := s.codec.Unmarshal(v, &names); err != nil {
				return err
			}
			out[types.VersionedName{Names: types.NewNameSet(names...), Version: vn}] = true
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// splitKVKey recovers (commitID, version) from a namespace row's key.
// names_hash is opaque and not needed by callers here, so it is
// discarded.
func splitKVKey(key []byte) (types.CommitID, int, bool) {
	parts := splitN(string(key), '|', 3)
	if len(parts) != 3 {
		return "", 0, false
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "%d", &version); err != nil {
		return "", 0, false
	}
	return types.CommitID(parts[0]), version, true
}

func splitN(s string, sep byte, n int) []string {
	out := make([]string, 0, n)
	start := 0
	for i := 0; i < len(s) && len(out) < n-1; i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// SnapshotRequest pairs a VersionedName with the names the caller
// expects it to populate, mirroring the (VersionedName, context) pairs
// the planner issues during restore.
type SnapshotRequest struct {
	VersionedName types.VersionedName
	Context       types.NameSet
}

// GetVariableSnapshots fetches blobs for each request in order.
// A missing blob is reported via ErrBlobUnreadable rather than
// silently skipped, since a RestorePlan relies on every requested
// blob to assemble the target namespace.
func (s *Store) GetVariableSnapshots(requests []SnapshotRequest) ([][]byte, error) {
	out := make([][]byte, len(requests))
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVariableKV)
		for i, req := range requests {
			blob := b.Get(contentKey(req.VersionedName))
			if blob == nil {
				return kishuerrors.Wrap(kishuerrors.Storage,
					fmt.Sprintf("blob for %s missing", req.VersionedName.Key()),
					kishuerrors.ErrBlobUnreadable)
			}
			cp := make([]byte, len(blob))
			copy(cp, blob)
			out[i] = cp
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
