package metastore

import (
	"encoding/json"

	"github.com/MRyutaro/kishu-vldb/internal/layout"
	"github.com/MRyutaro/kishu-vldb/internal/types"
)

// headJSON is the on-disk shape of head.json.
type headJSON struct {
	BranchName *string         `json:"branch_name,omitempty"`
	CommitID   *types.CommitID `json:"commit_id,omitempty"`
}

// GetHead reads the current HEAD. A missing or unparsable file is
// treated as an unattached, commit-less HEAD rather than an error,
// matching the Python original's behavior on a fresh session.
func (s *Store) GetHead() (types.Head, error) {
	data, err := layout.ReadFile(s.fs, s.headPath)
	if err != nil {
		return types.Head{}, nil
	}
	var h headJSON
	if err := json.Unmarshal(data, &h); err != nil {
		return types.Head{}, nil
	}
	return types.Head{
		BranchName: h.BranchName,
		CommitID:   h.CommitID,
		Detached:   h.BranchName == nil && h.CommitID != nil,
	}, nil
}

// UpdateHead updates HEAD in place: a nil branchName/commitID leaves
// that field unchanged, unless detach is true, which clears the
// branch name. The result is written atomically.
func (s *Store) UpdateHead(branchName *string, commitID *types.CommitID, detach bool) (types.Head, error) {
	head, err := s.GetHead()
	if err != nil {
		return types.Head{}, err
	}

	if detach {
		head.BranchName = nil
		head.Detached = true
	} else if branchName != nil {
		head.BranchName = branchName
		head.Detached = false
	}
	if commitID != nil {
		head.CommitID = commitID
	}

	out := headJSON{BranchName: head.BranchName, CommitID: head.CommitID}
	data, err := json.Marshal(out)
	if err != nil {
		return types.Head{}, err
	}
	if err := layout.WriteAtomic(s.fs, s.headPath, data); err != nil {
		return types.Head{}, err
	}
	return head, nil
}
