package codegraph

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// depKey identifies one synthesized dependency edge.
type depKey struct {
	kind   string
	source string
	target string
}

// Deriver synthesizes DEPENDS_ON edges from primitive call and reference
// edges. Multiple primitives between the same pair increment a weight on one
// edge instead of duplicating it. Because derivation keys strictly off the
// already-deduplicated primitive set, re-running the pass yields identical
// weights.
type Deriver struct {
	logger *logrus.Logger
}

// NewDeriver creates a derived-relationship engine.
func NewDeriver(logger *logrus.Logger) *Deriver {
	return &Deriver{logger: logger}
}

// strengthFor maps a primitive relationship type to a dependency strength.
// CALLS is a strong dependency; type and variable references are weak.
func strengthFor(relType string) (string, bool) {
	switch relType {
	case RelCalls:
		return StrengthStrong, true
	case RelReferencesType, RelReferencesVariable:
		return StrengthWeak, true
	default:
		return "", false
	}
}

// Derive appends one DEPENDS_ON edge per distinct (source, target) pair found
// in the primitive edges, with a weight counting the contributing primitives.
// Strong strength wins when both strong and weak primitives contribute.
// Derived edges carry deterministic ids so a re-imported run merges onto the
// same stored edge.
func (d *Deriver) Derive(g *Graph) int {
	order := make([]depKey, 0)
	derived := make(map[depKey]*Relationship)

	for _, r := range g.Relationships {
		strength, ok := strengthFor(r.Type)
		if !ok {
			continue
		}
		key := depKey{kind: RelDependsOn, source: r.SourceID, target: r.TargetID}
		if existing, seen := derived[key]; seen {
			existing.Properties["weight"] = existing.Properties["weight"].(int) + 1
			if strength == StrengthStrong {
				existing.Properties["strength"] = StrengthStrong
			}
			continue
		}
		derived[key] = &Relationship{
			ID:         fmt.Sprintf("%s:%s:%s->%s", g.CodebaseID, RelDependsOn, r.SourceID, r.TargetID),
			CodebaseID: g.CodebaseID,
			Type:       RelDependsOn,
			SourceID:   r.SourceID,
			TargetID:   r.TargetID,
			Properties: map[string]any{
				"weight":   1,
				"strength": strength,
			},
		}
		order = append(order, key)
	}

	// Append in first-seen order; output never depends on map iteration.
	for _, key := range order {
		g.Relationships = append(g.Relationships, derived[key])
	}

	d.logger.WithFields(logrus.Fields{
		"derived": len(order),
	}).Info("Synthesized dependency edges")

	return len(order)
}
