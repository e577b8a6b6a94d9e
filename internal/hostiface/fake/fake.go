// Package fake implements hostiface's interfaces in memory, so
// internal/session and internal/plans can be tested without a real
// notebook kernel.
package fake

import (
	"context"
	"fmt"

	"github.com/MRyutaro/kishu-vldb/internal/ahg"
	"github.com/MRyutaro/kishu-vldb/internal/hostiface"
	"github.com/MRyutaro/kishu-vldb/internal/types"
)

// NamespaceProxy is an in-memory hostiface.NamespaceProxy. Every Get
// is recorded as a read and every Set/Delete as a write/delete, the
// same way a real proxy wrapping the kernel's globals dict would.
type NamespaceProxy struct {
	ns    ahg.Namespace
	trace types.AccessTrace
}

// NewNamespaceProxy creates a proxy seeded with the given bindings.
func NewNamespaceProxy(initial ahg.Namespace) *NamespaceProxy {
	ns := make(ahg.Namespace, len(initial))
	for k, v := range initial {
		ns[k] = v
	}
	return &NamespaceProxy{ns: ns}
}

func (p *NamespaceProxy) Get(name types.Name) any {
	p.trace.Reads = append(p.trace.Reads, name)
	return p.ns[name]
}

func (p *NamespaceProxy) Set(name types.Name, v any) {
	p.trace.Writes = append(p.trace.Writes, name)
	p.ns[name] = v
}

func (p *NamespaceProxy) Delete(name types.Name) {
	p.trace.Deletes = append(p.trace.Deletes, name)
	delete(p.ns, name)
}

func (p *NamespaceProxy) Snapshot() ahg.Namespace {
	out := make(ahg.Namespace, len(p.ns))
	for k, v := range p.ns {
		out[k] = v
	}
	return out
}

func (p *NamespaceProxy) Trace() types.AccessTrace { return p.trace }

func (p *NamespaceProxy) Reset() { p.trace = types.AccessTrace{} }

func (p *NamespaceProxy) Replace(ns ahg.Namespace) error {
	p.ns = make(ahg.Namespace, len(ns))
	for k, v := range ns {
		p.ns[k] = v
	}
	return nil
}

var _ hostiface.NamespaceProxy = (*NamespaceProxy)(nil)

// Evaluator is an in-memory hostiface.Evaluator driven by a registry
// of named cell functions, standing in for real code execution.
type Evaluator struct {
	cells map[string]func(ahg.Namespace) (ahg.Namespace, error)
}

// NewEvaluator creates an Evaluator with no registered cells.
func NewEvaluator() *Evaluator {
	return &Evaluator{cells: make(map[string]func(ahg.Namespace) (ahg.Namespace, error))}
}

// Register associates code with the function that simulates running
// it, so tests can exercise RerunCell without a real interpreter.
func (e *Evaluator) Register(code string, fn func(ahg.Namespace) (ahg.Namespace, error)) {
	e.cells[code] = fn
}

func (e *Evaluator) Execute(_ context.Context, code string, ns ahg.Namespace) (ahg.Namespace, error) {
	fn, ok := e.cells[code]
	if !ok {
		return nil, fmt.Errorf("fake evaluator: no registered cell for code %q", code)
	}
	return fn(ns)
}

var _ hostiface.Evaluator = (*Evaluator)(nil)

// controller is the narrow slice of *session.Controller that Channel
// needs. Declared locally (rather than importing internal/session
// directly into the exported API) so hostiface/fake stays a leaf
// package callers can wire in either direction.
type controller interface {
	Commit(message string) (types.CommitEntry, error)
	Checkout(ctx context.Context, ref string, skipNotebook bool) error
}

// Channel is an in-process hostiface.Channel that relays directly to
// a live session.Controller, standing in for the real kernel comm
// channel.
type Channel struct {
	ctrl controller
}

// NewChannel wraps ctrl (typically a *session.Controller) as a Channel.
func NewChannel(ctrl controller) *Channel {
	return &Channel{ctrl: ctrl}
}

func (c *Channel) Commit(_ context.Context, message string) (types.CommitEntry, error) {
	return c.ctrl.Commit(message)
}

func (c *Channel) Checkout(ctx context.Context, ref string, skipNotebook bool) error {
	return c.ctrl.Checkout(ctx, ref, skipNotebook)
}

func (c *Channel) Close() error { return nil }

var _ hostiface.Channel = (*Channel)(nil)
