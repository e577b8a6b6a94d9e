package metastore

import (
	"go.etcd.io/bbolt"

	"github.com/MRyutaro/kishu-vldb/internal/kishuerrors"
	"github.com/MRyutaro/kishu-vldb/internal/types"
)

// UpsertBranch creates or repoints a branch.
func (s *Store) UpsertBranch(name string, commitID types.CommitID) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBranch).Put([]byte(name), []byte(commitID))
	})
}

// GetBranch returns the commit a branch points to.
func (s *Store) GetBranch(name string) (types.Branch, error) {
	var branch types.Branch
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketBranch).Get([]byte(name))
		if v == nil {
			return kishuerrors.ErrBranchNotFound
		}
		branch = types.Branch{BranchName: name, CommitID: types.CommitID(v)}
		return nil
	})
	if err != nil {
		return types.Branch{}, err
	}
	return branch, nil
}

// ListBranch returns every branch in the store.
func (s *Store) ListBranch() ([]types.Branch, error) {
	var out []types.Branch
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBranch).ForEach(func(k, v []byte) error {
			out = append(out, types.Branch{BranchName: string(k), CommitID: types.CommitID(v)})
			return nil
		})
	})
	return out, err
}

// BranchesForCommit returns every branch currently pointing at commitID.
func (s *Store) BranchesForCommit(commitID types.CommitID) ([]types.Branch, error) {
	all, err := s.ListBranch()
	if err != nil {
		return nil, err
	}
	var out []types.Branch
	for _, b := range all {
		if b.CommitID == commitID {
			out = append(out, b)
		}
	}
	return out, nil
}

// BranchesForCommits batches BranchesForCommit over many commits in a
// single table scan (supplements spec.md, grounded on the Python
// original's branches_for_many_commits).
func (s *Store) BranchesForCommits(ids []types.CommitID) (map[types.CommitID][]types.Branch, error) {
	wanted := make(map[types.CommitID]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	all, err := s.ListBranch()
	if err != nil {
		return nil, err
	}
	out := make(map[types.CommitID][]types.Branch)
	for _, b := range all {
		if _, ok := wanted[b.CommitID]; ok {
			out[b.CommitID] = append(out[b.CommitID], b)
		}
	}
	return out, nil
}

// DeleteBranch removes a branch, refusing to delete the branch HEAD
// is currently attached to.
func (s *Store) DeleteBranch(name string) error {
	head, err := s.GetHead()
	if err != nil {
		return err
	}
	if head.BranchName != nil && *head.BranchName == name {
		return kishuerrors.Wrap(kishuerrors.Resolution, "cannot delete the currently checked-out branch", kishuerrors.ErrBranchConflict)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBranch)
		if b.Get([]byte(name)) == nil {
			return kishuerrors.ErrBranchNotFound
		}
		return b.Delete([]byte(name))
	})
}

// RenameBranch renames a branch, refusing collisions, and updates
// HEAD if the renamed branch is currently checked out.
func (s *Store) RenameBranch(oldName, newName string) error {
	var commitID types.CommitID
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketBranch)
		v := b.Get([]byte(oldName))
		if v == nil {
			return kishuerrors.ErrBranchNotFound
		}
		if b.Get([]byte(newName)) != nil {
			return kishuerrors.Wrap(kishuerrors.Resolution, "branch already exists", kishuerrors.ErrBranchConflict)
		}
		commitID = types.CommitID(v)
		if err := b.Put([]byte(newName), v); err != nil {
			return err
		}
		return b.Delete([]byte(oldName))
	})
	if err != nil {
		return err
	}

	head, err := s.GetHead()
	if err != nil {
		return err
	}
	if head.BranchName != nil && *head.BranchName == oldName {
		newNameCopy := newName
		_, err := s.UpdateHead(&newNameCopy, &commitID, false)
		return err
	}
	return nil
}

// --- Tags -------------------------------------------------------------

// UpsertTag creates or replaces a tag.
func (s *Store) UpsertTag(tag types.Tag) error {
	data, err := s.codec.Marshal(tag)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTag).Put([]byte(tag.TagName), data)
	})
}

// GetTag returns a tag by name.
func (s *Store) GetTag(name string) (types.Tag, error) {
	var tag types.Tag
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketTag).Get([]byte(name))
		if v == nil {
			return kishuerrors.ErrTagNotFound
		}
		return s.codec.Unmarshal(v, &tag)
	})
	if err != nil {
		return types.Tag{}, err
	}
	return tag, nil
}

// ListTag returns every tag in the store.
func (s *Store) ListTag() ([]types.Tag, error) {
	var out []types.Tag
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTag).ForEach(func(k, v []byte) error {
			var tag types.Tag
			if err := s.codec.Unmarshal(v, &tag); err != nil {
				return err
			}
			out = append(out, tag)
			return nil
		})
	})
	return out, err
}

// DeleteTag removes a tag.
func (s *Store) DeleteTag(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketTag)
		if b.Get([]byte(name)) == nil {
			return kishuerrors.ErrTagNotFound
		}
		return b.Delete([]byte(name))
	})
}
