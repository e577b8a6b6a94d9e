// Package metastore implements MetadataStore: the durable commit
// entries, branches, tags, and HEAD for one notebook session.
//
// Grounded on loog-project-loog's internal/store/bbolt (bbolt buckets
// standing in for spec.md §4.2's relational tables) and on
// original_source/kishu/kishu/storage/branch.py for the exact branch
// lifecycle contracts (delete-refuses-HEAD, rename-updates-HEAD,
// random_branch_name word lists).
package metastore

import (
	"bytes"
	"fmt"

	"github.com/spf13/afero"
	"go.etcd.io/bbolt"

	"github.com/MRyutaro/kishu-vldb/internal/branchword"
	"github.com/MRyutaro/kishu-vldb/internal/codec"
	"github.com/MRyutaro/kishu-vldb/internal/kishuerrors"
	"github.com/MRyutaro/kishu-vldb/internal/types"
)

var (
	bucketCommitEntry           = []byte("commit_entry")
	bucketSessionState          = []byte("session_state")
	bucketBranch                = []byte("branch")
	bucketTag                   = []byte("tag")
	bucketVariableVersion       = []byte("variable_version")
	bucketCommitVariableVersion = []byte("commit_variable_version")
)

var allBuckets = [][]byte{
	bucketCommitEntry,
	bucketSessionState,
	bucketBranch,
	bucketTag,
	bucketVariableVersion,
	bucketCommitVariableVersion,
}

// Store is the bbolt-backed MetadataStore for one notebook session.
type Store struct {
	db    *bbolt.DB
	codec codec.Codec

	fs       afero.Fs
	headPath string
}

// Open ensures every metadata table exists in db and returns a Store
// bound to it. db is owned by the caller (typically shared with a
// VariableStore over the same file); Open never closes it. headPath
// is the small, atomically-replaced file (outside the DB, per the
// HEAD persistence contract) that persists HEAD.
func Open(db *bbolt.DB, fs afero.Fs, headPath string) (*Store, error) {
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
	return &Store{db: db, codec: codec.Default, fs: fs, headPath: headPath}, nil
}

// StoreCommit inserts a commit_entry row and a matching session_state
// row in a single transaction, returning the bytes written. Both rows
// must be durable before the caller's post_cell returns (spec.md §5).
func (s *Store) StoreCommit(entry types.CommitEntry) (int, error) {
	entryBytes, err := s.codec.Marshal(entry)
	if err != nil {
		return 0, err
	}
	stateBytes, err := s.codec.Marshal(entry.ActiveVSFingerprint)
	if err != nil {
		return 0, err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketCommitEntry).Put([]byte(entry.CommitID), entryBytes); err != nil {
			return err
		}
		return tx.Bucket(bucketSessionState).Put([]byte(entry.CommitID), stateBytes)
	})
	if err != nil {
		return 0, err
	}
	return len(entryBytes) + len(stateBytes), nil
}

// UpdateCommitMessage is the narrow admin path that edits a commit's
// message in place; it is the only mutator of an otherwise-immutable
// CommitEntry (spec.md §3 Lifecycle).
func (s *Store) UpdateCommitMessage(id types.CommitID, message string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCommitEntry)
		data := b.Get([]byte(id))
		if data == nil {
			return kishuerrors.Wrap(kishuerrors.Storage, "update commit message", kishuerrors.ErrMissingCommitEntry)
		}
		var entry types.CommitEntry
		if err := s.codec.Unmarshal(data, &entry); err != nil {
			return kishuerrors.Wrap(kishuerrors.Storage, "decode commit entry", err)
		}
		entry.Message = message
		updated, err := s.codec.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(id), updated)
	})
}

// GetCommit retrieves a single commit entry by id.
func (s *Store) GetCommit(id types.CommitID) (*types.CommitEntry, error) {
	var entry types.CommitEntry
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCommitEntry).Get([]byte(id))
		if data == nil {
			return kishuerrors.Wrap(kishuerrors.Storage, fmt.Sprintf("commit %q", id), kishuerrors.ErrMissingCommitEntry)
		}
		return s.codec.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetCommits returns a mapping from requested commit id to its data.
// Completeness is not guaranteed: ids absent from the store are
// simply omitted rather than causing an error.
func (s *Store) GetCommits(ids []types.CommitID) (map[types.CommitID]*types.CommitEntry, error) {
	result := make(map[types.CommitID]*types.CommitEntry, len(ids))
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCommitEntry)
		for _, id := range ids {
			data := b.Get([]byte(id))
			if data == nil {
				continue
			}
			var entry types.CommitEntry
			if err := s.codec.Unmarshal(data, &entry); err != nil {
				return err
			}
			result[id] = &entry
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// GetSessionState returns the active-VS fingerprint stored alongside
// a commit entry, without decoding the full entry.
func (s *Store) GetSessionState(id types.CommitID) ([]types.VersionedName, error) {
	var vns []types.VersionedName
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSessionState).Get([]byte(id))
		if data == nil {
			return kishuerrors.Wrap(kishuerrors.Storage, fmt.Sprintf("session state %q", id), kishuerrors.ErrMissingCommitEntry)
		}
		return s.codec.Unmarshal(data, &vns)
	})
	if err != nil {
		return nil, err
	}
	return vns, nil
}

// KeysLike returns every commit id in the store carrying the given
// prefix.
func (s *Store) KeysLike(prefix string) ([]types.CommitID, error) {
	var matches []types.CommitID
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketCommitEntry).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			matches = append(matches, types.CommitID(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// ResolveCommitID resolves an exact or abbreviated commit id. An exact
// match always wins even if other ids share its prefix; otherwise a
// unique prefix match is returned, multiple matches raise
// ErrAmbiguousCommit, and no matches raise ErrCommitIDNotFound.
func (s *Store) ResolveCommitID(idOrPrefix string) (types.CommitID, error) {
	matches, err := s.KeysLike(idOrPrefix)
	if err != nil {
		return "", err
	}
	for _, m := range matches {
		if string(m) == idOrPrefix {
			return m, nil
		}
	}
	switch len(matches) {
	case 0:
		return "", kishuerrors.ErrCommitIDNotFound
	case 1:
		return matches[0], nil
	default:
		return "", kishuerrors.ErrAmbiguousCommit
	}
}

// Stats reports approximate per-table sizes for the commit_entry and
// session_state tables.
type Stats struct {
	CommitEntryBytes  int64
	SessionStateBytes int64
}

// Stats computes approximate bucket sizes by summing key+value bytes.
func (s *Store) Stats() (Stats, error) {
	var out Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		out.CommitEntryBytes = bucketByteSize(tx.Bucket(bucketCommitEntry))
		out.SessionStateBytes = bucketByteSize(tx.Bucket(bucketSessionState))
		return nil
	})
	return out, err
}

func bucketByteSize(b *bbolt.Bucket) int64 {
	var total int64
	_ = b.ForEach(func(k, v []byte) error {
		total += int64(len(k) + len(v))
		return nil
	})
	return total
}

// RandomBranchName draws an unused "adjective_noun" branch name.
func (s *Store) RandomBranchName() (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		name := branchword.Random()
		_, err := s.GetBranch(name)
		if err != nil {
			if kind, _ := kishuerrors.KindOf(err); kind == kishuerrors.Resolution {
				return name, nil
			}
			return "", err
		}
	}
	return "", fmt.Errorf("metastore: could not find an unused branch name")
}
