package codegraph

import (
	"github.com/sirupsen/logrus"
)

// Merger collapses per-file fragments into one set of unique nodes and
// relationships. Duplicate ids across fragments are routine (a shared type
// referenced from many files); collisions resolve last-write-wins, never as
// an error.
type Merger struct {
	logger *logrus.Logger
}

// NewMerger creates a fragment merger.
func NewMerger(logger *logrus.Logger) *Merger {
	return &Merger{logger: logger}
}

// Merge performs two bounded passes over the fragments: a counting pass that
// collects the distinct id sets (to pre-size the output slices), then a
// collection pass that fills pre-allocated arrays. Peak memory is
// proportional to the unique entity count, not the fragment sum. Each
// fragment is released as soon as the collection pass absorbs it.
func (m *Merger) Merge(codebaseID string, fragments []*Fragment) *Graph {
	// Pass 1: count distinct ids.
	nodeIDs := make(map[string]struct{})
	relIDs := make(map[string]struct{})
	totalNodes, totalRels := 0, 0
	for _, frag := range fragments {
		totalNodes += len(frag.Nodes)
		totalRels += len(frag.Relationships)
		for _, n := range frag.Nodes {
			nodeIDs[n.ID] = struct{}{}
		}
		for _, r := range frag.Relationships {
			relIDs[r.ID] = struct{}{}
		}
	}

	// Pass 2: fill fixed-size arrays. A first occurrence claims a slot; later
	// occurrences of the same id overwrite that slot in place, so fragment
	// order decides which version survives.
	nodes := make([]*Node, 0, len(nodeIDs))
	rels := make([]*Relationship, 0, len(relIDs))
	nodeSlot := make(map[string]int, len(nodeIDs))
	relSlot := make(map[string]int, len(relIDs))

	for _, frag := range fragments {
		for _, n := range frag.Nodes {
			if slot, seen := nodeSlot[n.ID]; seen {
				nodes[slot] = n
				continue
			}
			nodeSlot[n.ID] = len(nodes)
			nodes = append(nodes, n)
		}
		for _, r := range frag.Relationships {
			if slot, seen := relSlot[r.ID]; seen {
				rels[slot] = r
				continue
			}
			relSlot[r.ID] = len(rels)
			rels = append(rels, r)
		}
		frag.Release()
	}

	m.logger.WithFields(logrus.Fields{
		"codebase":     codebaseID,
		"fragments":    len(fragments),
		"nodes_seen":   totalNodes,
		"nodes_unique": len(nodes),
		"rels_seen":    totalRels,
		"rels_unique":  len(rels),
	}).Info("Merged fragments into unique entity set")

	return &Graph{
		CodebaseID:    codebaseID,
		Nodes:         nodes,
		Relationships: rels,
	}
}
