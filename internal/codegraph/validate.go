package codegraph

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	cgerrors "github.com/codegraph/codegraph-go/internal/errors"
)

// Relationship kinds exempt from the soft referential gate. These point at
// symbols that cannot be resolved from single-codebase extraction output:
// external packages, local-export sentinels, bare type names on inheritance
// edges, and reference edges that may target globals. DEPENDS_ON inherits the
// referential validity of its source primitives and is not re-checked.
var softGateExemptKinds = map[string]bool{
	RelImportsFromPackage: true,
	RelExportsLocal:       true,
	RelExtends:            true,
	RelImplements:         true,
	RelReferencesType:     true,
	RelReferencesVariable: true,
	RelDependsOn:          true,
}

// nonCodeExtensions are import targets that legitimately resolve to assets
// rather than parsed source files.
var nonCodeExtensions = map[string]bool{
	".css": true, ".scss": true, ".sass": true, ".less": true,
	".svg": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".ico": true, ".woff": true, ".woff2": true, ".ttf": true,
	".json": true, ".yaml": true, ".yml": true, ".md": true, ".txt": true,
	".html": true,
}

// Validator runs the two-tier gate over a merged graph: a hard structural
// gate that fails the whole pipeline (programmer-error signal) and a soft
// referential gate whose findings are logged (data-quality signal).
type Validator struct {
	logger *logrus.Logger

	// ProjectRoot anchors filesystem checks for import-edge exemptions.
	// Empty disables the filesystem check.
	ProjectRoot string

	// Strict escalates non-exempt referential findings to a fatal error.
	// Default is warn-and-proceed.
	Strict bool

	// SkipSoft disables the referential gate entirely.
	SkipSoft bool
}

// NewValidator creates a graph validator.
func NewValidator(logger *logrus.Logger) *Validator {
	return &Validator{logger: logger}
}

// Validate runs the hard gate, then the soft gate. It returns the dangling
// relationships found by the soft gate (for reporting) and an error when the
// hard gate fails or strict mode escalates the soft gate.
func (v *Validator) Validate(g *Graph) ([]*Relationship, error) {
	if err := v.validateStructure(g); err != nil {
		return nil, err
	}
	if v.SkipSoft {
		v.logger.Warn("Soft referential validation skipped by flag")
		return nil, nil
	}
	return v.validateReferences(g)
}

// validateStructure enforces required fields on every entity. Any violation
// aborts before a single store write.
func (v *Validator) validateStructure(g *Graph) error {
	for _, n := range g.Nodes {
		switch {
		case n.ID == "":
			return cgerrors.StructuralError("node with empty id").
				WithContext("labels", strings.Join(n.Labels, ","))
		case n.CodebaseID == "":
			return cgerrors.StructuralErrorf("node %s missing codebase id", n.ID)
		case len(n.Labels) == 0:
			return cgerrors.StructuralErrorf("node %s has no labels", n.ID)
		}
	}
	for _, r := range g.Relationships {
		switch {
		case r.ID == "":
			return cgerrors.StructuralErrorf("relationship with empty id (%s %s -> %s)",
				r.Type, r.SourceID, r.TargetID)
		case r.CodebaseID == "":
			return cgerrors.StructuralErrorf("relationship %s missing codebase id", r.ID)
		case r.Type == "":
			return cgerrors.StructuralErrorf("relationship %s missing type", r.ID)
		case r.SourceID == "":
			return cgerrors.StructuralErrorf("relationship %s missing source id", r.ID)
		case r.TargetID == "":
			return cgerrors.StructuralErrorf("relationship %s missing target id", r.ID)
		}
	}
	return nil
}

// validateReferences checks that relationship endpoints resolve to known node
// ids, under the exemption rules.
func (v *Validator) validateReferences(g *Graph) ([]*Relationship, error) {
	known := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		known[n.ID] = struct{}{}
	}

	var dangling []*Relationship
	for _, r := range g.Relationships {
		if v.exempt(r) {
			continue
		}
		_, srcOK := known[r.SourceID]
		_, tgtOK := known[r.TargetID]
		if srcOK && tgtOK {
			continue
		}
		dangling = append(dangling, r)
		v.logger.WithFields(logrus.Fields{
			"relationship": r.ID,
			"type":         r.Type,
			"source":       r.SourceID,
			"target":       r.TargetID,
		}).Warn("Dangling relationship endpoint")
	}

	if len(dangling) > 0 && v.Strict {
		return dangling, cgerrors.New(cgerrors.ErrorTypeReferential, cgerrors.SeverityFatal,
			"strict mode: dangling relationship endpoints").
			WithContext("count", len(dangling))
	}
	return dangling, nil
}

// exempt reports whether a relationship is excluded from the soft gate.
func (v *Validator) exempt(r *Relationship) bool {
	if softGateExemptKinds[r.Type] {
		return true
	}
	if r.Unresolved() {
		return true // already flagged; stub materialized at import time
	}
	if r.Type == RelImports && v.importTargetIsAsset(r.TargetID) {
		return true
	}
	return false
}

// importTargetIsAsset checks the filesystem for import targets that resolve
// to a directory (index imports) or a known non-code extension.
func (v *Validator) importTargetIsAsset(target string) bool {
	path := importedPath(target)
	if nonCodeExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	if v.ProjectRoot == "" {
		return false
	}
	info, err := os.Stat(filepath.Join(v.ProjectRoot, path))
	return err == nil && info.IsDir()
}

// importedPath extracts the file-path portion of an import target, which may
// be a canonical id (<codebase>:File:<path>) or a raw placeholder path.
func importedPath(target string) string {
	parts := strings.SplitN(target, ":", 3)
	if len(parts) == 3 && parts[1] == LabelFile {
		return parts[2]
	}
	return target
}
