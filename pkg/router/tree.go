package router

import "github.com/gantry-web/gantry/pkg/httperr"

// Router ownership is tracked in a flat arena rather than with parent
// back-pointers. Each router holds an index into the arena; the node
// records its parent's index, so ownership checks and cycle detection are
// walks over integers instead of pointer chases, and a router can never
// end up with two owners.

const noParent = -1

type arenaNode struct {
	parent int
	router *Router
}

type arena struct {
	nodes []arenaNode
}

func newArena(root *Router) *arena {
	a := &arena{}
	a.nodes = append(a.nodes, arenaNode{parent: noParent, router: root})
	return a
}

// adopt attaches child under parent, merging the child's arena (and any
// routers already registered beneath it) into the parent's.
func (a *arena) adopt(parentIdx int, child *Router) error {
	if child.arena == a && child.index == parentIdx {
		return httperr.Config("router at %s cannot be registered on itself", child.path)
	}
	if child.owned() {
		return httperr.Config("router at %s already has an owner", child.path)
	}
	// Walking up from the parent must not reach the child; otherwise the
	// registration would create a cycle.
	if child.arena == a {
		for idx := parentIdx; idx != noParent; idx = a.nodes[idx].parent {
			if a.nodes[idx].router == child {
				return httperr.Config("registering router at %s would create a cycle", child.path)
			}
		}
	}

	src := child.arena
	base := len(a.nodes)
	for i, node := range src.nodes {
		mapped := node.parent
		if mapped == noParent {
			if i == child.index {
				mapped = parentIdx
			}
		} else {
			mapped += base
		}
		a.nodes = append(a.nodes, arenaNode{parent: mapped, router: node.router})
		node.router.arena = a
		node.router.index = base + i
	}
	return nil
}

// owned reports whether the router has a parent in its arena.
func (r *Router) owned() bool {
	return r.arena.nodes[r.index].parent != noParent
}
