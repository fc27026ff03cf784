package teardown

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/skalb/diskomat/internal/runner"
)

// Node is one block device in the dependency graph rooted at the target
// disks. The graph is built once per teardown call and never mutated.
type Node struct {
	Name        string
	Path        string
	Type        string // lsblk TYPE: disk, part, raid0..raid10, lvm, crypt
	Mountpoints []string

	parents  []int
	children []int
}

// Graph is an immutable arena of nodes with integer indices. Raw disks
// are the roots; everything stacked on them hangs below.
type Graph struct {
	Nodes []Node

	byPath map[string]int
	depth  []int
}

// IsRaid reports whether the node is an md array.
func (n *Node) IsRaid() bool {
	return strings.HasPrefix(n.Type, "raid") || strings.HasPrefix(n.Type, "linear")
}

// lsblkNode mirrors lsblk's nested JSON tree.
type lsblkNode struct {
	Name        string      `json:"name"`
	Path        string      `json:"path"`
	Type        string      `json:"type"`
	Mountpoints []*string   `json:"mountpoints"`
	Children    []lsblkNode `json:"children"`
}

// DiscoverGraph walks the kernel's block-device tree below the target
// disks. The same device can appear under several parents (an array
// under each of its members); nodes are deduplicated by path with all
// parent edges kept.
func DiscoverGraph(ctx context.Context, r runner.Runner, targets []string) (*Graph, error) {
	argv := append([]string{"lsblk", "-J", "-o", "NAME,PATH,TYPE,MOUNTPOINTS"}, targets...)
	res, err := r.Run(ctx, argv...)
	if err != nil {
		return nil, fmt.Errorf("discover block tree: %w", err)
	}

	var report struct {
		Blockdevices []lsblkNode `json:"blockdevices"`
	}
	if err := json.Unmarshal(res.Stdout, &report); err != nil {
		return nil, fmt.Errorf("parse lsblk tree: %w", err)
	}

	g := &Graph{byPath: make(map[string]int)}
	for _, root := range report.Blockdevices {
		g.add(root, -1)
	}
	g.computeDepths()
	return g, nil
}

func (g *Graph) add(n lsblkNode, parent int) int {
	path := n.Path
	if path == "" {
		path = "/dev/" + n.Name
	}

	idx, seen := g.byPath[path]
	if !seen {
		node := Node{Name: n.Name, Path: path, Type: n.Type}
		for _, m := range n.Mountpoints {
			if m != nil && *m != "" {
				node.Mountpoints = append(node.Mountpoints, *m)
			}
		}
		g.Nodes = append(g.Nodes, node)
		idx = len(g.Nodes) - 1
		g.byPath[path] = idx
	}
	if parent >= 0 {
		g.Nodes[parent].children = appendUnique(g.Nodes[parent].children, idx)
		g.Nodes[idx].parents = appendUnique(g.Nodes[idx].parents, parent)
	}
	if !seen {
		for _, c := range n.Children {
			g.add(c, idx)
		}
	}
	return idx
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// computeDepths assigns each node its maximum distance from a root. One
// pass in topological order; the graph is a DAG so this terminates.
func (g *Graph) computeDepths() {
	g.depth = make([]int, len(g.Nodes))
	order := g.topoOrder()
	for _, i := range order {
		for _, p := range g.Nodes[i].parents {
			if g.depth[p]+1 > g.depth[i] {
				g.depth[i] = g.depth[p] + 1
			}
		}
	}
}

// topoOrder returns node indices parents-before-children.
func (g *Graph) topoOrder() []int {
	state := make([]int, len(g.Nodes)) // 0 unvisited, 1 visiting, 2 done
	var order []int
	var visit func(int)
	visit = func(i int) {
		if state[i] != 0 {
			return
		}
		state[i] = 1
		for _, c := range g.Nodes[i].children {
			visit(c)
		}
		state[i] = 2
		order = append(order, i)
	}
	for i := range g.Nodes {
		visit(i)
	}
	// post-order gives children first; reverse for parents-first
	for l, r := 0, len(order)-1; l < r; l, r = l+1, r-1 {
		order[l], order[r] = order[r], order[l]
	}
	return order
}

// Has reports whether the graph contains the device path.
func (g *Graph) Has(path string) bool {
	_, ok := g.byPath[path]
	return ok
}

// Mountpoints returns every active mountpoint in the graph, deepest
// paths first so nested mounts unmount before their parents.
func (g *Graph) Mountpoints() []string {
	var mounts []string
	seen := make(map[string]bool)
	for _, n := range g.Nodes {
		for _, m := range n.Mountpoints {
			if !seen[m] {
				seen[m] = true
				mounts = append(mounts, m)
			}
		}
	}
	sort.Slice(mounts, func(i, j int) bool {
		di, dj := strings.Count(mounts[i], "/"), strings.Count(mounts[j], "/")
		if di != dj {
			return di > dj
		}
		return mounts[i] > mounts[j]
	})
	return mounts
}

// Arrays returns md array nodes, innermost (deepest-stacked) first, so
// nested RAID-on-RAID stops top-down.
func (g *Graph) Arrays() []int {
	var arrays []int
	for i := range g.Nodes {
		if g.Nodes[i].IsRaid() {
			arrays = append(arrays, i)
		}
	}
	sort.SliceStable(arrays, func(a, b int) bool {
		return g.depth[arrays[a]] > g.depth[arrays[b]]
	})
	return arrays
}

// Members returns the parent device paths of a node (an array's member
// partitions or devices).
func (g *Graph) Members(i int) []string {
	var paths []string
	for _, p := range g.Nodes[i].parents {
		paths = append(paths, g.Nodes[p].Path)
	}
	sort.Strings(paths)
	return paths
}
