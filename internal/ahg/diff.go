package ahg

import (
	"fmt"
	"reflect"

	"github.com/MRyutaro/kishu-vldb/internal/types"
)

// maxReachDepth bounds the reflect walk used to find references
// shared between two names: notebooks can hold deeply nested or
// cyclic structures, and this only needs to find shallow aliasing,
// not a full object graph.
const maxReachDepth = 6

// diffNamespace compares a pre-execution fingerprint against the
// post-execution namespace and classifies every name as added,
// modified, or deleted.
func diffNamespace(pre map[types.Name]string, post Namespace) ChangedVariables {
	var changed ChangedVariables
	for name, v := range post {
		postID := identityOf(v)
		preID, existed := pre[name]
		if !existed {
			changed.Added = append(changed.Added, name)
		} else if preID != postID {
			changed.Modified = append(changed.Modified, name)
		}
	}
	for name := range pre {
		if _, ok := post[name]; !ok {
			changed.Deleted = append(changed.Deleted, name)
		}
	}
	return changed
}

// identityOf returns a string that changes whenever a name's bound
// value changes identity (for reference types) or content (for value
// types), cheap enough to compute for every name on every cell.
func identityOf(v any) string {
	if v == nil {
		return "<nil>"
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		if rv.IsNil() {
			return fmt.Sprintf("%s:nil", rv.Type())
		}
		return fmt.Sprintf("%s:%d", rv.Type(), rv.Pointer())
	default:
		return fmt.Sprintf("%s:%#v", rv.Type(), v)
	}
}

// connectedComponents partitions every name in ns into the connected
// components of the reference graph, restricted to the components
// that contain at least one name from touched. A union-find over the
// whole namespace is simpler than seeding from touched names and
// expanding outward, and gives the same result since reachability is
// transitive.
func connectedComponents(ns Namespace, touched map[types.Name]struct{}) []map[types.Name]struct{} {
	names := make([]types.Name, 0, len(ns))
	addrSets := make(map[types.Name][]uintptr, len(ns))
	for name, v := range ns {
		names = append(names, name)
		addrSets[name] = reachableAddresses(v)
	}

	uf := newDSU(names)
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if sharesAddress(addrSets[names[i]], addrSets[names[j]]) {
				uf.union(names[i], names[j])
			}
		}
	}

	groups := make(map[types.Name]map[types.Name]struct{})
	for _, name := range names {
		root := uf.find(name)
		if groups[root] == nil {
			groups[root] = make(map[types.Name]struct{})
		}
		groups[root][name] = struct{}{}
	}

	var out []map[types.Name]struct{}
	for _, group := range groups {
		isTouched := false
		for name := range group {
			if _, ok := touched[name]; ok {
				isTouched = true
				break
			}
		}
		if isTouched {
			out = append(out, group)
		}
	}
	return out
}

func sharesAddress(a, b []uintptr) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[uintptr]struct{}, len(a))
	for _, addr := range a {
		set[addr] = struct{}{}
	}
	for _, addr := range b {
		if _, ok := set[addr]; ok {
			return true
		}
	}
	return false
}

// reachableAddresses walks v's outgoing references up to maxReachDepth
// and returns every distinct pointer-ish address reached, used as a
// shallow proxy for "what does this value alias".
func reachableAddresses(v any) []uintptr {
	seen := make(map[uintptr]struct{})
	visited := make(map[uintptr]bool)
	walkReachable(reflect.ValueOf(v), 0, seen, visited)
	out := make([]uintptr, 0, len(seen))
	for addr := range seen {
		out = append(out, addr)
	}
	return out
}

func walkReachable(rv reflect.Value, depth int, seen map[uintptr]struct{}, visited map[uintptr]bool) {
	if depth > maxReachDepth || !rv.IsValid() {
		return
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.UnsafePointer:
		if rv.IsNil() {
			return
		}
		addr := rv.Pointer()
		seen[addr] = struct{}{}
		if visited[addr] {
			return
		}
		visited[addr] = true
		walkReachable(rv.Elem(), depth+1, seen, visited)
	case reflect.Interface:
		walkReachable(rv.Elem(), depth, seen, visited)
	case reflect.Map:
		if rv.IsNil() {
			return
		}
		seen[rv.Pointer()] = struct{}{}
		for _, key := range rv.MapKeys() {
			walkReachable(rv.MapIndex(key), depth+1, seen, visited)
		}
	case reflect.Slice:
		if rv.IsNil() {
			return
		}
		seen[rv.Pointer()] = struct{}{}
		for i := 0; i < rv.Len(); i++ {
			walkReachable(rv.Index(i), depth+1, seen, visited)
		}
	case reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			walkReachable(rv.Index(i), depth+1, seen, visited)
		}
	case reflect.Struct:
		for i := 0; i < rv.NumField(); i++ {
			field := rv.Field(i)
			if field.CanInterface() {
				walkReachable(field, depth+1, seen, visited)
			}
		}
	}
}

// dsu is a disjoint-set union over a fixed universe of names.
type dsu struct {
	parent map[types.Name]types.Name
}

func newDSU(names []types.Name) *dsu {
	parent := make(map[types.Name]types.Name, len(names))
	for _, n := range names {
		parent[n] = n
	}
	return &dsu{parent: parent}
}

func (d *dsu) find(n types.Name) types.Name {
	for d.parent[n] != n {
		d.parent[n] = d.parent[d.parent[n]]
		n = d.parent[n]
	}
	return n
}

func (d *dsu) union(a, b types.Name) {
	ra, rb := d.find(a), d.find(b)
	if ra != rb {
		d.parent[ra] = rb
	}
}
