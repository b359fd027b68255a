package core

import (
	"sort"
	"strings"
)

// CategoryNode is a category with its children attached. Nodes never point
// back to their parent, so a forest always serializes.
type CategoryNode struct {
	Category
	Subcategories []*CategoryNode `json:"subcategories"`
}

// BuildCategoryForest assembles categories into a forest in one pass over an
// id-keyed arena. Every category appears exactly once. Categories whose parent
// is missing become roots. A parent chain that loops back on itself is cut at
// its smallest id, which becomes a root. Siblings are ordered by name
// (case-insensitive), then id.
func BuildCategoryForest(categories []Category) []*CategoryNode {
	arena := make(map[int64]*CategoryNode, len(categories))
	order := make([]int64, 0, len(categories))
	for _, c := range categories {
		if _, dup := arena[c.ID]; dup {
			continue
		}
		arena[c.ID] = &CategoryNode{Category: c, Subcategories: []*CategoryNode{}}
		order = append(order, c.ID)
	}

	parentOf := func(id int64) (int64, bool) {
		n := arena[id]
		if n.ParentID == nil || *n.ParentID == id {
			return 0, false
		}
		if _, ok := arena[*n.ParentID]; !ok {
			return 0, false
		}
		return *n.ParentID, true
	}

	cut := breakCycles(order, parentOf)

	var roots []*CategoryNode
	for _, id := range order {
		n := arena[id]
		pid, ok := parentOf(id)
		if !ok || cut[id] {
			roots = append(roots, n)
			continue
		}
		arena[pid].Subcategories = append(arena[pid].Subcategories, n)
	}

	sortNodes(roots)
	for _, n := range arena {
		sortNodes(n.Subcategories)
	}
	return roots
}

// breakCycles returns the ids that must be treated as roots so that following
// parent links always terminates.
func breakCycles(order []int64, parentOf func(int64) (int64, bool)) map[int64]bool {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[int64]int, len(order))
	cut := make(map[int64]bool)
	for _, start := range order {
		if state[start] != unvisited {
			continue
		}
		var path []int64
		id := start
		for {
			if state[id] == done {
				break
			}
			if state[id] == visiting {
				// path from id to the end is a cycle
				minID := id
				for i := len(path) - 1; i >= 0 && path[i] != id; i-- {
					if path[i] < minID {
						minID = path[i]
					}
				}
				cut[minID] = true
				break
			}
			state[id] = visiting
			path = append(path, id)
			next, ok := parentOf(id)
			if !ok {
				break
			}
			id = next
		}
		for _, p := range path {
			state[p] = done
		}
	}
	return cut
}

func sortNodes(nodes []*CategoryNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		a, b := strings.ToLower(nodes[i].Name), strings.ToLower(nodes[j].Name)
		if a != b {
			return a < b
		}
		return nodes[i].ID < nodes[j].ID
	})
}

// Walk visits every node of the forest depth-first.
func Walk(forest []*CategoryNode, fn func(*CategoryNode)) {
	for _, n := range forest {
		fn(n)
		Walk(n.Subcategories, fn)
	}
}
