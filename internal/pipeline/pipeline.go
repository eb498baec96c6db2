package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/codegraph/codegraph-go/internal/codegraph"
	"github.com/codegraph/codegraph-go/internal/config"
	"github.com/codegraph/codegraph-go/internal/store"
)

// Options are the per-run parameters. CodebaseID and OutputDir are mandatory.
type Options struct {
	CodebaseID string
	InputDir   string
	OutputDir  string
}

// Result summarizes a completed run for the console report and the run log.
type Result struct {
	RunID          string        `json:"runId"`
	CodebaseID     string        `json:"codebaseId"`
	Status         string        `json:"status"`
	Fragments      int           `json:"fragments"`
	Nodes          int           `json:"nodes"`
	Relationships  int           `json:"relationships"`
	DerivedEdges   int           `json:"derivedEdges"`
	Unresolved     int           `json:"unresolved"`
	Dangling       int           `json:"dangling"`
	Stubs          int           `json:"stubs"`
	StoredEntities int64         `json:"storedEntities"`
	Duration       time.Duration `json:"duration"`
	StartedAt      time.Time     `json:"startedAt"`
}

// Pipeline coordinates the ingestion stages: merge, resolve, derive,
// validate, checkpoint, import, post-import consistency. Stages run strictly
// in sequence; each fully consumes the previous stage's output. There is no
// cancellation mid-run beyond context propagation into store calls.
type Pipeline struct {
	client *store.Client
	cfg    *config.Config
	logger *logrus.Logger
}

// New creates an ingestion pipeline bound to one store client.
func New(client *store.Client, cfg *config.Config, logger *logrus.Logger) *Pipeline {
	return &Pipeline{client: client, cfg: cfg, logger: logger}
}

// Run executes the full pipeline: load fragments from the input directory,
// build the merged graph, persist it, and run the consistency passes.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{
		RunID:      uuid.NewString(),
		CodebaseID: opts.CodebaseID,
		StartedAt:  time.Now(),
		Status:     "failed",
	}
	p.logger.WithFields(logrus.Fields{
		"run":      result.RunID,
		"codebase": opts.CodebaseID,
		"input":    opts.InputDir,
	}).Info("Starting ingestion run")

	fragments, err := LoadFragments(opts.InputDir, p.logger)
	if err != nil {
		return result, err
	}
	result.Fragments = len(fragments)

	graph, err := p.buildGraph(opts, fragments, result)
	if err != nil {
		return result, err
	}

	if err := WriteCheckpoint(graph, opts.OutputDir); err != nil {
		return result, fmt.Errorf("checkpoint write failed: %w", err)
	}
	p.logger.WithField("dir", opts.OutputDir).Info("Checkpoint written")

	if err := p.persist(ctx, graph, opts, result); err != nil {
		return result, err
	}

	result.Status = "completed"
	result.Duration = time.Since(result.StartedAt)
	p.report(result)
	return result, nil
}

// Replay re-runs the persistence stage from a previously written checkpoint,
// skipping parsing and graph construction.
func (p *Pipeline) Replay(ctx context.Context, opts Options) (*Result, error) {
	result := &Result{
		RunID:      uuid.NewString(),
		CodebaseID: opts.CodebaseID,
		StartedAt:  time.Now(),
		Status:     "failed",
	}
	graph, err := ReadCheckpoint(opts.OutputDir, opts.CodebaseID)
	if err != nil {
		return result, err
	}
	result.Nodes = len(graph.Nodes)
	result.Relationships = len(graph.Relationships)
	p.logger.WithFields(logrus.Fields{
		"run":   result.RunID,
		"nodes": result.Nodes,
		"rels":  result.Relationships,
	}).Info("Replaying persistence from checkpoint")

	if err := p.persist(ctx, graph, opts, result); err != nil {
		return result, err
	}
	result.Status = "completed"
	result.Duration = time.Since(result.StartedAt)
	p.report(result)
	return result, nil
}

// buildGraph runs the in-memory stages over the loaded fragments.
func (p *Pipeline) buildGraph(opts Options, fragments []*codegraph.Fragment, result *Result) (*codegraph.Graph, error) {
	graph := codegraph.NewMerger(p.logger).Merge(opts.CodebaseID, fragments)

	resolveStats := codegraph.NewResolver(p.logger).Resolve(graph)
	result.Unresolved = resolveStats.Unresolved

	if changed := codegraph.SyncCodeElementLabels(graph); changed > 0 {
		p.logger.WithField("nodes", changed).Debug("Synced CodeElement labels")
	}

	result.DerivedEdges = codegraph.NewDeriver(p.logger).Derive(graph)
	result.Nodes = len(graph.Nodes)
	result.Relationships = len(graph.Relationships)

	validator := codegraph.NewValidator(p.logger)
	validator.ProjectRoot = p.cfg.Ingest.ProjectRoot
	validator.Strict = p.cfg.Ingest.StrictReferential
	validator.SkipSoft = p.cfg.Ingest.SkipSoftValidation
	dangling, err := validator.Validate(graph)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	result.Dangling = len(dangling)

	return graph, nil
}

// persist drives the import state machine: ProvisionSchema, VerifySchema,
// optional migration (with optional backup), ProvisionCodebaseSchema,
// ImportNodes, ImportRelationships, PostImportConsistency.
func (p *Pipeline) persist(ctx context.Context, graph *codegraph.Graph, opts Options, result *Result) error {
	schema, err := store.LoadSchema()
	if err != nil {
		return err
	}

	schemaMgr := store.NewSchemaManager(p.client, schema, p.logger)
	if err := schemaMgr.Provision(ctx); err != nil {
		return fmt.Errorf("schema provisioning failed: %w", err)
	}
	if err := schemaMgr.Verify(ctx); err != nil {
		return fmt.Errorf("schema verification failed: %w", err)
	}

	migrator := store.NewMigrator(p.client, schema, p.logger)
	pending, err := migrator.PendingVersions(ctx)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		if !p.cfg.Ingest.AutoMigrate {
			return fmt.Errorf("stored entities at stale schema versions %v; run 'cgraph migrate' or enable auto-migrate", pending)
		}
		if p.cfg.Ingest.BackupBeforeMigrate {
			if _, err := store.ExportBackup(ctx, p.client, opts.OutputDir, p.logger); err != nil {
				return fmt.Errorf("pre-migration backup failed: %w", err)
			}
		}
		if _, err := migrator.Migrate(ctx); err != nil {
			return err
		}
	}

	if err := schemaMgr.ProvisionCodebase(ctx, opts.CodebaseID); err != nil {
		return err
	}

	importer := store.NewImporter(p.client, schema, p.logger, p.cfg.Ingest.BatchSize)
	nodeStats, err := importer.ImportNodes(ctx, graph.Nodes)
	if err != nil {
		return fmt.Errorf("node import failed: %w", err)
	}
	relStats, err := importer.ImportRelationships(ctx, graph.Relationships)
	if err != nil {
		return fmt.Errorf("relationship import failed: %w", err)
	}
	result.Stubs = relStats.Stubs
	if skipped := nodeStats.PropertiesSkipped + relStats.PropertiesSkipped; skipped > 0 {
		p.logger.WithField("properties", skipped).Warn("Some unsupported property values were dropped during import")
	}

	consistency := store.NewConsistencyRunner(p.client, p.logger)
	if err := consistency.RecomputeAggregates(ctx, opts.CodebaseID); err != nil {
		return err
	}
	if _, err := consistency.BackfillOwnership(ctx, opts.CodebaseID); err != nil {
		return err
	}

	stored, err := store.CountCodebaseEntities(ctx, p.client, opts.CodebaseID)
	if err != nil {
		p.logger.WithError(err).Warn("Could not count stored entities")
	} else {
		result.StoredEntities = stored
	}
	return nil
}

// report prints the end-of-run summary.
func (p *Pipeline) report(r *Result) {
	p.logger.WithFields(logrus.Fields{
		"run":           r.RunID,
		"codebase":      r.CodebaseID,
		"fragments":     r.Fragments,
		"nodes":         r.Nodes,
		"relationships": r.Relationships,
		"derived":       r.DerivedEdges,
		"unresolved":    r.Unresolved,
		"dangling":      r.Dangling,
		"stubs":         r.Stubs,
		"stored":        r.StoredEntities,
		"duration":      r.Duration.Round(time.Millisecond).String(),
	}).Info("Ingestion run completed")
}
