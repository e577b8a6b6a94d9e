// Package graph implements CommitGraph: a durable, append-only DAG of
// commits with jump (checkout) semantics and LCA queries, stored as
// fixed-size node records packed into page-sized segment files.
//
// Grounded on the teacher's (0xlemi-microprolly) CAS atomic-write
// idiom and its commit-log parent-chain walk, generalized to the
// fixed-slot record format spec.md mandates explicitly.
package graph

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/MRyutaro/kishu-vldb/internal/kishulog"
	"github.com/MRyutaro/kishu-vldb/internal/layout"
	"github.com/MRyutaro/kishu-vldb/internal/types"
)

// RecordsPerSegment bounds how many fixed-width node records live in
// one segment file before a new segment is started.
const RecordsPerSegment = 1024

const cursorFileName = "cursor"

// Node is the public view of one commit node in the graph.
type Node struct {
	CommitID types.CommitID
	ParentID types.CommitID // empty string for a root
}

// Graph is a durable, append-only commit DAG.
type Graph struct {
	fs  afero.Fs
	dir string
	log zerolog.Logger

	mu      sync.Mutex
	index   map[types.CommitID]Position
	nextSeg int32
	nextOff int32
	head    types.CommitID
}

// Open loads (or initializes) a CommitGraph rooted at dir.
func Open(fs afero.Fs, dir string) (*Graph, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	g := &Graph{
		fs:    fs,
		dir:   dir,
		log:   kishulog.Component("graph"),
		index: make(map[types.CommitID]Position),
	}
	if err := g.loadSegments(); err != nil {
		return nil, err
	}
	if err := g.loadCursor(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Graph) segmentPath(seg int32) string {
	return filepath.Join(g.dir, fmt.Sprintf("segment-%05d.bin", seg))
}

func (g *Graph) cursorPath() string {
	return filepath.Join(g.dir, cursorFileName)
}

// loadSegments scans every segment file in order, rebuilding the
// commit_id -> position index and determining where the next append
// should land. A torn or corrupt tail record in the final segment is
// truncated with a logged warning rather than treated as fatal.
func (g *Graph) loadSegments() error {
	entries, err := afero.ReadDir(g.fs, g.dir)
	if err != nil {
		return err
	}

	var segNums []int32
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		var n int
		if _, err := fmt.Sscanf(e.Name(), "segment-%05d.bin", &n); err == nil {
			segNums = append(segNums, int32(n))
		}
	}
	sort.Slice(segNums, func(i, j int) bool { return segNums[i] < segNums[j] })

	var lastSeg int32 = 0
	var lastOff int32 = 0
	any := false

	for _, seg := range segNums {
		path := g.segmentPath(seg)
		data, err := afero.ReadFile(g.fs, path)
		if err != nil {
			return err
		}

		validRecords := len(data) / NodeSize
		truncateAt := -1
		for i := 0; i < validRecords; i++ {
			buf := data[i*NodeSize : (i+1)*NodeSize]
			rec, err := decodeRecord(buf)
			if err != nil {
				truncateAt = i
				break
			}
			g.index[rec.CommitID] = Position{Segment: seg, Offset: int32(i)}
			lastSeg = seg
			lastOff = int32(i)
			any = true
		}
		if truncateAt < 0 && len(data)%NodeSize != 0 {
			truncateAt = validRecords
		}

		if truncateAt >= 0 {
			g.log.Warn().
				Str("segment", path).
				Int("valid_records", truncateAt).
				Msg("truncating corrupt or torn segment tail")
			truncated := data[:truncateAt*NodeSize]
			if err := afero.WriteFile(g.fs, path, truncated, 0o644); err != nil {
				return err
			}
			break
		}
	}

	if !any {
		g.nextSeg, g.nextOff = 0, 0
		return nil
	}

	g.nextSeg = lastSeg
	g.nextOff = lastOff + 1
	if g.nextOff >= RecordsPerSegment {
		g.nextSeg++
		g.nextOff = 0
	}
	return nil
}

func (g *Graph) loadCursor() error {
	data, err := afero.ReadFile(g.fs, g.cursorPath())
	if err != nil {
		g.head = ""
		return nil
	}
	g.head = types.CommitID(strings.TrimSpace(string(data)))
	return nil
}

func (g *Graph) saveCursor() error {
	return layout.WriteAtomic(g.fs, g.cursorPath(), []byte(g.head))
}

// Head returns the current HEAD commit id, or "" if the graph is empty.
func (g *Graph) Head() types.CommitID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.head
}

// Step appends a node whose parent is the current HEAD, then moves
// HEAD to it.
func (g *Graph) Step(commitID types.CommitID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	parentPos := NonePosition
	if g.head != "" {
		var ok bool
		parentPos, ok = g.index[g.head]
		if !ok {
			parentPos = NonePosition
		}
	}

	if err := g.appendLocked(commitID, g.head, parentPos); err != nil {
		return err
	}
	g.head = commitID
	return g.saveCursor()
}

// Jump sets HEAD to commitID. If commitID is unknown to the graph, a
// new node with an empty parent (a fresh root) is appended for it.
// Subsequent Step calls build from this new position.
func (g *Graph) Jump(commitID types.CommitID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.index[commitID]; ok {
		g.head = commitID
		return g.saveCursor()
	}

	if err := g.appendLocked(commitID, "", NonePosition); err != nil {
		return err
	}
	g.head = commitID
	return g.saveCursor()
}

func (g *Graph) appendLocked(commitID, parentID types.CommitID, parentPos Position) error {
	if len(commitID) > maxIDBytes {
		return ErrIDTooLong
	}
	if len(parentID) > maxIDBytes {
		return ErrIDTooLong
	}

	pos := Position{Segment: g.nextSeg, Offset: g.nextOff}
	rec := &nodeRecord{
		CommitID:       commitID,
		ParentID:       parentID,
		Position:       pos,
		ParentPosition: parentPos,
	}
	buf, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	path := g.segmentPath(g.nextSeg)
	f, err := g.fs.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(buf, int64(g.nextOff)*NodeSize); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	g.index[commitID] = pos

	g.nextOff++
	if g.nextOff >= RecordsPerSegment {
		g.nextSeg++
		g.nextOff = 0
	}
	return nil
}

func (g *Graph) readAt(pos Position) (*nodeRecord, error) {
	if pos.IsNone() {
		return nil, fmt.Errorf("graph: no node at none-position")
	}
	path := g.segmentPath(pos.Segment)
	f, err := g.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, NodeSize)
	if _, err := f.ReadAt(buf, int64(pos.Offset)*NodeSize); err != nil {
		return nil, err
	}
	return decodeRecord(buf)
}

// ListHistory returns the ancestors of commitID (or of HEAD, if
// commitID is empty), newest first, inclusive of commitID itself.
func (g *Graph) ListHistory(commitID types.CommitID) ([]Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := commitID
	if start == "" {
		start = g.head
	}
	if start == "" {
		return nil, nil
	}

	pos, ok := g.index[start]
	if !ok {
		return nil, fmt.Errorf("graph: unknown commit %q", start)
	}

	var out []Node
	for {
		rec, err := g.readAt(pos)
		if err != nil {
			return nil, err
		}
		out = append(out, Node{CommitID: rec.CommitID, ParentID: rec.ParentID})
		if rec.ParentPosition.IsNone() {
			break
		}
		pos = rec.ParentPosition
	}
	return out, nil
}

// GetCommonAncestor returns the lowest common ancestor of a and b by
// walking both parent chains, or nil if they are disjoint.
func (g *Graph) GetCommonAncestor(a, b types.CommitID) (*types.CommitID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	ancestorsA, err := g.ancestorSetLocked(a)
	if err != nil {
		return nil, err
	}

	posB, ok := g.index[b]
	if !ok {
		return nil, fmt.Errorf("graph: unknown commit %q", b)
	}
	for {
		rec, err := g.readAt(posB)
		if err != nil {
			return nil, err
		}
		if _, isAncestor := ancestorsA[rec.CommitID]; isAncestor {
			id := rec.CommitID
			return &id, nil
		}
		if rec.ParentPosition.IsNone() {
			return nil, nil
		}
		posB = rec.ParentPosition
	}
}

func (g *Graph) ancestorSetLocked(commitID types.CommitID) (map[types.CommitID]struct{}, error) {
	pos, ok := g.index[commitID]
	if !ok {
		return nil, fmt.Errorf("graph: unknown commit %q", commitID)
	}
	set := make(map[types.CommitID]struct{})
	for {
		rec, err := g.readAt(pos)
		if err != nil {
			return nil, err
		}
		set[rec.CommitID] = struct{}{}
		if rec.ParentPosition.IsNone() {
			break
		}
		pos = rec.ParentPosition
	}
	return set, nil
}

// Contains reports whether commitID has been recorded in the graph.
func (g *Graph) Contains(commitID types.CommitID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.index[commitID]
	return ok
}
