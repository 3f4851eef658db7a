// Package namespace builds the nested tree the client exposes its calls on.
package namespace

import (
	"strings"

	"github.com/machinery-rpc/machinery/internal/codegen/meta"
)

// Node is either a namespace (Children set) or a leaf carrying a service.
// Children keep first-insertion order so emission is deterministic.
type Node struct {
	Name     string
	Service  *meta.Service
	Children []*Node

	index map[string]*Node
}

// IsLeaf reports whether n holds a service.
func (n *Node) IsLeaf() bool { return n.Service != nil }

// Child returns the direct child called name, or nil.
func (n *Node) Child(name string) *Node {
	return n.index[name]
}

// Leaves returns every service under n in depth-first, insertion order.
func (n *Node) Leaves() []*meta.Service {
	var out []*meta.Service
	var walk func(*Node)
	walk = func(cur *Node) {
		if cur.IsLeaf() {
			out = append(out, cur.Service)
			return
		}
		for _, c := range cur.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

func (n *Node) add(child *Node) {
	if n.index == nil {
		n.index = make(map[string]*Node)
	}
	n.index[child.Name] = child
	n.Children = append(n.Children, child)
}

// Build inserts every service at NamespacePath(s, basePath) + [s.Name].
// Synthetic services are skipped unless includeSynthetic is set. Services
// sharing a path prefix share the corresponding namespace nodes.
func Build(services []meta.Service, basePath string, includeSynthetic bool) (*Node, error) {
	root := &Node{}
	for i := range services {
		s := &services[i]
		if s.Synthetic && !includeSynthetic {
			continue
		}
		if err := insert(root, meta.NamespacePath(*s, basePath), s); err != nil {
			return nil, err
		}
	}
	return root, nil
}

func insert(root *Node, path []string, s *meta.Service) error {
	cur := root
	for i, seg := range path {
		next := cur.Child(seg)
		switch {
		case next == nil:
			next = &Node{Name: seg}
			cur.add(next)
		case next.IsLeaf():
			return &meta.NamespaceConflictError{Path: strings.Join(path[:i+1], meta.Separator)}
		}
		cur = next
	}

	if existing := cur.Child(s.Name); existing != nil {
		full := strings.Join(append(append([]string(nil), path...), s.Name), meta.Separator)
		if existing.IsLeaf() {
			return &meta.DuplicateServiceError{Key: meta.CallKey(*s)}
		}
		return &meta.NamespaceConflictError{Path: full}
	}
	cur.add(&Node{Name: s.Name, Service: s})
	return nil
}
