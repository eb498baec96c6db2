package codegraph

// locationProperties is the full location set that qualifies a node as a
// locatable code element.
var locationProperties = []string{"name", "filePath", "startLine", "endLine"}

// SyncCodeElementLabels enforces the labeling invariant as a post-pass over
// the merged node set: a node carries the CodeElement label if and only if it
// has the full location property set. Fragment producers are not required to
// agree on labeling, so both directions are corrected here. Returns the
// number of nodes changed.
func SyncCodeElementLabels(g *Graph) int {
	changed := 0
	for _, n := range g.Nodes {
		locatable := hasLocation(n)
		tagged := n.HasLabel(LabelCodeElement)
		switch {
		case locatable && !tagged:
			n.Labels = append(n.Labels, LabelCodeElement)
			changed++
		case !locatable && tagged:
			n.Labels = removeLabel(n.Labels, LabelCodeElement)
			changed++
		}
	}
	return changed
}

func hasLocation(n *Node) bool {
	if n.Properties == nil {
		return false
	}
	for _, key := range locationProperties {
		v, ok := n.Properties[key]
		if !ok || v == nil {
			return false
		}
		if s, isStr := v.(string); isStr && s == "" {
			return false
		}
	}
	return true
}

func removeLabel(labels []string, label string) []string {
	out := labels[:0]
	for _, l := range labels {
		if l != label {
			out = append(out, l)
		}
	}
	return out
}
