// Package kishuerrors defines the error taxonomy shared across Kishu's
// storage, planning, and session layers.
package kishuerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error for CLI reporting and fallback decisions.
// It is a taxonomy, not a concrete error type: callers wrap a cause
// with a Kind via New or Wrap.
type Kind string

const (
	Connection Kind = "Connection"
	Notebook   Kind = "Notebook"
	Resolution Kind = "Resolution"
	Storage    Kind = "Storage"
	Planning   Kind = "Planning"
)

// KishuError is a Kind-tagged error that wraps an underlying cause.
type KishuError struct {
	Kind  Kind
	msg   string
	cause error
}

func (e *KishuError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *KishuError) Unwrap() error { return e.cause }

// New creates a KishuError with the given kind and message.
func New(kind Kind, msg string) error {
	return &KishuError{Kind: kind, msg: msg}
}

// Wrap annotates cause with a Kind and message, preserving it for
// errors.Is/As and for %w-style unwrapping.
func Wrap(kind Kind, msg string, cause error) error {
	if cause == nil {
		return nil
	}
	return &KishuError{Kind: kind, msg: msg, cause: cause}
}

// KindOf returns the Kind attached to err, if any, and whether one was found.
func KindOf(err error) (Kind, bool) {
	var ke *KishuError
	if errors.As(err, &ke) {
		return ke.Kind, true
	}
	return "", false
}

// Sentinel errors surfaced verbatim per the Connection/Resolution policy.
var (
	ErrMissingConnectionInfo = New(Connection, "missing connection info")
	ErrKernelNotAlive        = New(Connection, "kernel not alive")
	ErrChannelStartFailed    = New(Connection, "channel start failure")
	ErrNoChannel             = New(Connection, "no channel")

	ErrMissingMetadata  = New(Notebook, "missing kishu metadata in notebook")
	ErrNotebookNotFound = New(Notebook, "notebook file not found")
	ErrPostWithoutPre   = New(Notebook, "post_cell called without a matching pre_cell")

	ErrCommitIDNotFound = New(Resolution, "commit id not found")
	ErrAmbiguousCommit  = New(Resolution, "ambiguous commit id")
	ErrBranchNotFound   = New(Resolution, "branch not found")
	ErrBranchConflict   = New(Resolution, "branch conflict")
	ErrTagNotFound      = New(Resolution, "tag not found")

	ErrMissingCommitEntry = New(Storage, "missing commit entry")
	ErrBlobUnreadable     = New(Storage, "stored blob unreadable")

	ErrRestorePlanMissing = New(Planning, "restore plan missing")
	ErrLoadFailed         = New(Planning, "load failed")
	ErrUnserializableVS   = New(Planning, "variable snapshot is unserializable")
	ErrCommitIDNotExist   = New(Planning, "commit has no stored snapshots and no viable rerun plan")
)
