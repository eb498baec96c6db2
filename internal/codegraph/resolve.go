package codegraph

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// resolveProgressInterval controls how often the resolver reports progress on
// large relationship sets. Advisory only.
const resolveProgressInterval = 5000

// Resolver rewrites placeholder relationship targets to canonical node ids.
// Single-file parsers cannot see the whole project, so RENDERS,
// USES_COMPOSABLE and IMPORTS edges arrive with display names (or raw import
// specifiers) as targets; forward references across files make inline
// resolution impossible, hence the two-phase registry build.
type Resolver struct {
	logger *logrus.Logger
}

// NewResolver creates a reference resolver.
func NewResolver(logger *logrus.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// ResolveStats summarizes a resolution pass.
type ResolveStats struct {
	Components  int
	Composables int
	Files       int
	Resolved    int
	Unresolved  int
}

// Resolve builds the name registries from the merged node set, then rewrites
// every resolvable relationship target in place. Targets with no registry
// match get the matching Unresolved* marker and keep their placeholder value;
// they are retained so the importer can materialize stub targets later.
func (rv *Resolver) Resolve(g *Graph) ResolveStats {
	stats := ResolveStats{}

	// Phase 1: name -> canonical id registries.
	components := make(map[string]string)
	composables := make(map[string]string)
	files := make(map[string]string)
	known := make(map[string]struct{}, len(g.Nodes))

	for _, n := range g.Nodes {
		known[n.ID] = struct{}{}
		name := n.Name()
		switch {
		case n.HasLabel(LabelComponent) && name != "":
			components[name] = n.ID
		case n.HasLabel(LabelComposable) && name != "":
			composables[name] = n.ID
		case n.HasLabel(LabelFile):
			if path, ok := n.Properties["filePath"].(string); ok && path != "" {
				files[path] = n.ID
			}
		}
	}
	stats.Components = len(components)
	stats.Composables = len(composables)
	stats.Files = len(files)

	// Phase 2: rewrite placeholder targets.
	for i, r := range g.Relationships {
		if i > 0 && i%resolveProgressInterval == 0 {
			rv.logger.WithFields(logrus.Fields{
				"processed": i,
				"total":     len(g.Relationships),
			}).Debug("Resolving references")
		}

		if _, ok := known[r.TargetID]; ok {
			continue // already canonical
		}

		switch r.Type {
		case RelRenders:
			if id, ok := components[r.TargetID]; ok {
				r.TargetID = id
				stats.Resolved++
			} else {
				r.UnresolvedComponent = true
				stats.Unresolved++
			}
		case RelUsesComposable:
			if id, ok := composables[r.TargetID]; ok {
				r.TargetID = id
				stats.Resolved++
			} else {
				r.UnresolvedComposable = true
				stats.Unresolved++
			}
		case RelImports:
			if id, ok := files[normalizeImportPath(r.TargetID)]; ok {
				r.TargetID = id
				stats.Resolved++
			} else {
				r.UnresolvedImport = true
				stats.Unresolved++
			}
		}
	}

	rv.logger.WithFields(logrus.Fields{
		"components":  stats.Components,
		"composables": stats.Composables,
		"files":       stats.Files,
		"resolved":    stats.Resolved,
		"unresolved":  stats.Unresolved,
	}).Info("Reference resolution complete")

	return stats
}

// normalizeImportPath strips a leading "./" from relative import specifiers so
// they line up with File node paths.
func normalizeImportPath(path string) string {
	return strings.TrimPrefix(path, "./")
}
