package metastore

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/MRyutaro/kishu-vldb/internal/types"
)

// RecordVariableVersion records the most recent commit that wrote to
// name, so GetVariableVersion can answer "when was this variable last
// changed" without scanning every commit entry.
func (s *Store) RecordVariableVersion(name types.Name, commitID types.CommitID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVariableVersion).Put([]byte(name), []byte(commitID))
	})
}

// GetVariableVersion returns the most recent commit that wrote name,
// if any.
func (s *Store) GetVariableVersion(name types.Name) (types.CommitID, bool, error) {
	var commitID types.CommitID
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketVariableVersion).Get([]byte(name))
		if v == nil {
			return nil
		}
		commitID = types.CommitID(v)
		found = true
		return nil
	})
	return commitID, found, err
}

func commitVariableVersionKey(commitID types.CommitID, name types.Name) []byte {
	return []byte(fmt.Sprintf("%s|%s", commitID, name))
}

// RecordCommitVariableVersion records that at commitID, name's
// connected component was at the given write version, read back by
// GetCommitVariableVersion.
func (s *Store) RecordCommitVariableVersion(commitID types.CommitID, name types.Name, version int) error {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(version))
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCommitVariableVersion).Put(commitVariableVersionKey(commitID, name), buf)
	})
}

// GetCommitVariableVersion returns the write version name had at commitID.
func (s *Store) GetCommitVariableVersion(commitID types.CommitID, name types.Name) (int, bool, error) {
	var version int
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketCommitVariableVersion).Get(commitVariableVersionKey(commitID, name))
		if v == nil {
			return nil
		}
		version = int(binary.BigEndian.Uint32(v))
		found = true
		return nil
	})
	return version, found, err
}
