package lopf

import "github.com/gridbench/lopf-bench/network"

// angleBuses finds the buses that need a voltage angle (those touched by a line with
// non-zero reactance) and, for each connected group of them, the reference bus whose
// angle is fixed at zero: the first one in n.Buses order.
func angleBuses(n *network.Network, buses map[string]int) (needsAngle, isReference []bool) {
	parent := make([]int, len(n.Buses))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}

	needsAngle = make([]bool, len(n.Buses))
	for _, l := range n.Lines {
		if l.X == 0 {
			continue
		}
		b0, b1 := buses[l.Bus0], buses[l.Bus1]
		needsAngle[b0], needsAngle[b1] = true, true
		if r0, r1 := find(b0), find(b1); r0 != r1 {
			parent[r1] = r0
		}
	}

	isReference = make([]bool, len(n.Buses))
	claimed := map[int]bool{}
	for i := range n.Buses {
		if !needsAngle[i] {
			continue
		}
		if root := find(i); !claimed[root] {
			claimed[root] = true
			isReference[i] = true
		}
	}
	return needsAngle, isReference
}
