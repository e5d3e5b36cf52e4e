package simulator

// Tree construction. Each spanning tree is a level-ordered array of
// rack-hub node ids: the root sits at position 0 and the parent of
// position i is position (i-1)/fanout, so the shape is a complete
// fanout-ary heap over the racks. Non-hub nodes never appear in a
// layout; they funnel through their rack hub on every tree.

// internalNodeCount returns how many positions of a complete f-ary
// level-order tree over n nodes have at least one child. Position i has
// children iff i*f+1 < n, so the internal positions are exactly the
// first ceil((n-1)/f).
func internalNodeCount(fanout, n int) int {
	if n <= 1 {
		return 0
	}
	return (n - 2 + fanout) / fanout
}

// treeLevels returns the depth of a complete f-ary tree over n nodes:
// ceil(log_f((f-1)n + 1)) computed by walking level widths.
func treeLevels(fanout, n int) int {
	levels := 0
	total, width := 0, 1
	for total < n {
		total += width
		width *= fanout
		levels++
	}
	return levels
}

// positionLevels returns the depth of each layout position, root = 0
func positionLevels(fanout, n int) []int {
	levels := make([]int, n)
	for i := 1; i < n; i++ {
		levels[i] = levels[(i-1)/fanout] + 1
	}
	return levels
}

// buildLayouts produces numTrees level-ordered layouts of rack-hub node
// ids. Tree 0 is the identity layout (hub of rack j at position j).
// For tree k >= 1 the first internalNodeCount positions are swapped
// with the block offset by k*I, rotating internal responsibility
// across racks; swaps whose partner falls outside the layout are
// skipped.
func buildLayouts(numRacks, nodesPerRack, fanout, numTrees int) [][]int {
	internal := internalNodeCount(fanout, numRacks)
	layouts := make([][]int, numTrees)
	for k := range layouts {
		layout := make([]int, numRacks)
		for j := 0; j < numRacks; j++ {
			layout[j] = j * nodesPerRack
		}
		if k >= 1 {
			for j := 0; j < internal; j++ {
				o := j + k*internal
				if o >= numRacks {
					continue
				}
				layout[j], layout[o] = layout[o], layout[j]
			}
		}
		layouts[k] = layout
	}
	return layouts
}
