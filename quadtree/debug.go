package quadtree

import "github.com/aukilabs/quadrant/spatial"

const backendName = "quadtree"

// DebugInfo walks the subtree and reports its shape.
func (n *Node[K]) DebugInfo() spatial.DebugInfo {
	info := spatial.DebugInfo{
		Backend: backendName,
		Region:  n.region,
	}
	n.collectDebugInfo(&info, 0)
	return info
}

func (n *Node[K]) collectDebugInfo(info *spatial.DebugInfo, depth int) {
	info.NodeCount++
	info.ItemCount += len(n.items)

	if depth > info.MaxDepth {
		info.MaxDepth = depth
	}
	if len(info.Occupancy) <= depth {
		info.Occupancy = append(info.Occupancy, 0)
	}
	info.Occupancy[depth] += len(n.items)

	if n.children == nil {
		info.LeafCount++
		return
	}

	info.SpanningItemCount += len(n.items)
	for _, c := range n.children {
		c.collectDebugInfo(info, depth+1)
	}
}
