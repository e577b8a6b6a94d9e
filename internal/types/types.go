// Package types holds Kishu's core, storage-agnostic data model: the
// commit graph's on-disk record shape, commit metadata, variable
// snapshots, and the AHG's cell-execution records.
package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// CommitID is an opaque commit identifier: either a UUID-like hex
// string, or "<session>:<counter>" in deterministic test mode.
type CommitID string

// NewCommitID generates a fresh, non-deterministic commit id.
func NewCommitID() CommitID {
	return CommitID(uuid.NewString())
}

// NewTestCommitID generates the deterministic test-mode id used when
// KISHU_TEST_MODE is set, so commit graphs are reproducible in tests.
func NewTestCommitID(session string, counter int) CommitID {
	return CommitID(fmt.Sprintf("%s:%d", session, counter))
}

// Name is a variable name in the live namespace.
type Name string

// NameSet is a set of variable names that must be (de)serialized
// together because they share references. It is comparable via its
// canonical string form so it can key a map.
type NameSet map[Name]struct{}

// NewNameSet builds a NameSet from a slice of names.
func NewNameSet(names ...Name) NameSet {
	s := make(NameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return s
}

// Sorted returns the set's names in deterministic ascending order.
func (s NameSet) Sorted() []Name {
	out := make([]Name, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Key returns a canonical, comparable string representation of the set.
func (s NameSet) Key() string {
	sorted := s.Sorted()
	parts := make([]string, len(sorted))
	for i, n := range sorted {
		parts[i] = string(n)
	}
	return strings.Join(parts, "\x00")
}

// Hash returns the SHA-256 digest of the set's canonical key, used as
// the names_hash component of a VersionedName's storage key.
func (s NameSet) Hash() [32]byte {
	return sha256.Sum256([]byte(s.Key()))
}

// Intersects reports whether s and other share at least one name.
func (s NameSet) Intersects(other NameSet) bool {
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	for n := range small {
		if _, ok := big[n]; ok {
			return true
		}
	}
	return false
}

// VersionedName is the primary key of VariableStore: a NameSet paired
// with the write-version of the component it identifies.
type VersionedName struct {
	Names   NameSet
	Version int
}

// Key returns a canonical string key combining names and version.
func (v VersionedName) Key() string {
	return fmt.Sprintf("%s@%d", v.Names.Key(), v.Version)
}

// NamesHashHex returns the hex-encoded names hash, used as a bbolt
// bucket sub-key component.
func (v VersionedName) NamesHashHex() string {
	h := v.Names.Hash()
	return hex.EncodeToString(h[:])
}

// VariableSnapshot groups co-linked variables that must be serialized
// together, at a given write version.
type VariableSnapshot struct {
	Names   NameSet
	Version int
	Size    int64
	Deleted bool
}

// VersionedName returns the VS's primary key.
func (vs VariableSnapshot) VersionedName() VersionedName {
	return VersionedName{Names: vs.Names, Version: vs.Version}
}

// AccessTrace is what a namespace proxy records while a cell runs:
// which names it looked up, assigned, or deleted. The AHG turns this
// into CellExecution.Reads/Writes once the post-execution namespace
// is diffed against the pre-execution fingerprint.
type AccessTrace struct {
	Reads   []Name
	Writes  []Name
	Deletes []Name
}

// CellExecution records one executed cell's code, runtime, and the
// variable snapshots it read from and wrote to.
type CellExecution struct {
	CellNum int
	Code    string
	Runtime float64 // seconds
	Reads   []VersionedName
	Writes  []VersionedName
}

// CommitEntryKind classifies how a commit was produced.
type CommitEntryKind string

const (
	KindManual        CommitEntryKind = "manual"
	KindCellTriggered CommitEntryKind = "cell-triggered"
	KindUnspecified   CommitEntryKind = "unspecified"
)

// CellType classifies a notebook cell for FormattedCell.
type CellType string

const (
	CellCode     CellType = "code"
	CellMarkdown CellType = "markdown"
	CellRaw      CellType = "raw"
)

// FormattedCell is a display-ready rendering of one notebook cell.
type FormattedCell struct {
	CellType        CellType
	Source          string
	Output          *string
	ExecutionCount  *int
}

// CommitEntry is the durable record of one commit: code, outputs, and
// everything needed to locate and restore the variable snapshot.
type CommitEntry struct {
	CommitID       CommitID
	Kind           CommitEntryKind
	Timestamp      float64 // epoch seconds
	Message        string
	ExecutedCells  []string
	RawNotebook    string
	FormattedCells []FormattedCell

	// CodeVersion and VarsetVersion are hashes of the code executed
	// and the active variable-name set, respectively, used as cheap
	// equality checks without decoding the whole entry.
	CodeVersion    string
	VarsetVersion  string

	// ActiveVSFingerprint is the frontier of active VersionedNames at
	// this commit; it is always present (possibly empty) per the
	// Open Question resolution in DESIGN.md, and is what the Planner
	// consumes to build a RestorePlan on demand.
	ActiveVSFingerprint []VersionedName

	RuntimeS           *float64
	CheckpointRuntimeS *float64
	StartTime          *float64
	EndTime            *float64

	// Jupyter-only fields, unset for manual commits.
	RawCell         *string
	ExecutionCount  *int
	ErrorBeforeExec *string
	ErrorInExec     *string
	ResultRepr      *string
}

// Branch maps a unique name to the commit it currently points at.
type Branch struct {
	BranchName string
	CommitID   CommitID
}

// Tag maps a unique name to a commit, with an optional message.
type Tag struct {
	TagName  string
	CommitID CommitID
	Message  string
}

// Head records the current checkout position: either attached to a
// branch, or detached at a bare commit.
type Head struct {
	BranchName *string
	CommitID   *CommitID
	Detached   bool
}
