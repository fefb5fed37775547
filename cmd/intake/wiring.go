package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/steveyegge/intake/internal/ai"
	"github.com/steveyegge/intake/internal/config"
	"github.com/steveyegge/intake/internal/deduplication"
	"github.com/steveyegge/intake/internal/embedding"
	"github.com/steveyegge/intake/internal/feedback"
	"github.com/steveyegge/intake/internal/gates"
	"github.com/steveyegge/intake/internal/intake"
	"github.com/steveyegge/intake/internal/logging"
	"github.com/steveyegge/intake/internal/similarity"
	"github.com/steveyegge/intake/internal/storage"
	"github.com/steveyegge/intake/internal/storage/postgres"
	"github.com/steveyegge/intake/internal/storage/redis"
	"github.com/steveyegge/intake/internal/storage/sqlite"
	"github.com/steveyegge/intake/internal/tracker"
	"github.com/steveyegge/intake/internal/types"
)

// app holds the components built from one configuration
type app struct {
	cfg       *config.Config
	retention config.LedgerRetentionConfig

	store    storage.ContentStore
	ledger   storage.Ledger
	tracker  tracker.Tracker
	embedder *embedding.Service
	dedup    *deduplication.VectorDeduplicator
	gate     *gates.Runner
	pipeline *intake.Pipeline
	rewriter *ai.Supervisor

	closers []func() error
}

// newApp opens the configured backends and wires the pipeline. Callers must
// call close when done.
func newApp(ctx context.Context, cfg *config.Config, saveApproved bool) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.wire(ctx, saveApproved); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context, saveApproved bool) error {
	cfg := a.cfg
	var err error

	a.retention, err = config.LedgerRetentionConfigFromEnv()
	if err != nil {
		return err
	}
	if err := a.openStorage(ctx); err != nil {
		return err
	}

	a.embedder, err = embedding.NewServiceFromConfig(embeddingConfig(cfg))
	if err != nil {
		return err
	}

	index, err := openIndex(ctx, cfg)
	if err != nil {
		return err
	}
	a.dedup, err = deduplication.NewVectorDeduplicator(a.embedder, index, dedupConfig(cfg))
	if err != nil {
		return err
	}

	gateCfg, err := gateConfig(cfg, a.dedup)
	if err != nil {
		return err
	}
	a.gate, err = gates.NewRunner(gateCfg)
	if err != nil {
		return err
	}

	a.pipeline, err = intake.New(intake.Config{
		MaxItemsPerRun:    cfg.Intake.MaxItemsPerRun,
		SampleConcurrency: cfg.Intake.SampleConcurrency,
		SaveApproved:      saveApproved,
	}, a.gate, a.dedup, a.store)
	if err != nil {
		return err
	}
	return nil
}

// openStorage opens the content store, the ledger and the tracker. The
// SQLite file backs all three when selected; reports can only be listed
// from the tracker when it is SQLite, otherwise they arrive in batches.
func (a *app) openStorage(ctx context.Context) error {
	var local *sqlite.Storage
	switch a.cfg.Storage.Driver {
	case "postgres":
		pgCfg := postgres.DefaultConfig()
		pgCfg.DSN = a.cfg.Storage.DSN
		pg, err := postgres.New(ctx, pgCfg)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, pg.Close)
		a.store = pg
		a.tracker = tracker.NewMemoryTracker()
	default:
		s, err := sqlite.New(a.cfg.Storage.Path)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, s.Close)
		local = s
		a.store = s
		a.tracker = s
	}

	switch a.cfg.Ledger.Driver {
	case "redis":
		retention := a.retention.Retention()
		if retention < a.cfg.Ledger.Cooldown {
			retention = a.cfg.Ledger.Cooldown
		}
		l, err := redis.New(ctx, redis.Config{
			Addr:      a.cfg.Ledger.Redis.Addr,
			Password:  a.cfg.Ledger.Redis.Password,
			DB:        a.cfg.Ledger.Redis.DB,
			KeyPrefix: a.cfg.Ledger.KeyPrefix,
			Retention: retention,
		})
		if err != nil {
			return err
		}
		a.closers = append(a.closers, l.Close)
		a.ledger = l
	default:
		if local == nil {
			return fmt.Errorf("ledger.driver 'sqlite' requires storage.driver 'sqlite'")
		}
		a.ledger = local
	}
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Warnf("[STORAGE] close failed: %v", err)
		}
	}
	a.closers = nil
}

// newProcessor builds the feedback processor. Without an Anthropic key only
// disable reports can be applied.
func (a *app) newProcessor() (*feedback.Processor, error) {
	var rewriter feedback.Rewriter
	if a.cfg.Anthropic.APIKey != "" {
		sup, err := ai.NewSupervisor(&ai.Config{
			APIKey:    a.cfg.Anthropic.APIKey,
			Model:     a.cfg.Anthropic.Model,
			MaxTokens: a.cfg.Anthropic.MaxTokens,
			Retry:     ai.DefaultRetryConfig(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create AI supervisor: %w", err)
		}
		a.rewriter = sup
		rewriter = sup
	} else {
		logging.Warnf("[FEEDBACK] no Anthropic API key configured; improve and rewrite reports will fail")
	}

	return feedback.NewProcessor(feedback.Config{
		Label:                 a.cfg.Feedback.Label,
		Limit:                 a.cfg.Feedback.Limit,
		MaxReportsPerRun:      a.cfg.Feedback.MaxReportsPerRun,
		Cooldown:              a.cfg.Ledger.Cooldown,
		CertificationChannels: a.cfg.Feedback.CertificationChannels,
	}, a.tracker, a.store, a.ledger, rewriter)
}

// pruneLedger removes entries older than the retention period when the
// ledger keeps them until pruned. Redis entries expire on their own.
func (a *app) pruneLedger(ctx context.Context) {
	pruner, ok := a.ledger.(storage.Pruner)
	if !ok || !a.retention.PruneEnabled {
		return
	}
	cutoff := time.Now().Add(-a.retention.Retention())
	if _, err := pruner.Prune(ctx, cutoff, a.retention.PruneBatchSize); err != nil {
		logging.Warnf("[LEDGER] prune failed: %v", err)
	}
}

// health checks that the content store answers queries and that the
// rewriter, when configured, is not rejecting calls
func (a *app) health(ctx context.Context) error {
	if p, ok := a.store.(storage.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("content store unavailable: %w", err)
		}
	}
	if _, err := a.store.GetChannelCounts(ctx); err != nil {
		return fmt.Errorf("content store unavailable: %w", err)
	}
	if a.rewriter != nil {
		if err := a.rewriter.Ready(ctx); err != nil {
			return err
		}
	}
	return nil
}

func embeddingConfig(cfg *config.Config) embedding.Config {
	return embedding.Config{
		BaseURL:        cfg.Embedding.BaseURL,
		Model:          cfg.Embedding.Model,
		Dimensions:     cfg.Embedding.Dimensions,
		BatchSize:      cfg.Embedding.BatchSize,
		ChunkDelay:     cfg.Embedding.ChunkDelay,
		Timeout:        cfg.Embedding.Timeout,
		CachePrefixLen: cfg.Embedding.CachePrefixLen,
	}
}

func openIndex(ctx context.Context, cfg *config.Config) (similarity.Index, error) {
	if cfg.Similarity.Backend != "elasticsearch" {
		return similarity.NewMemoryIndex(), nil
	}
	es := cfg.Similarity.Elasticsearch
	return similarity.NewElasticIndex(ctx, similarity.ElasticConfig{
		Addresses:  es.Addresses,
		Username:   es.Username,
		Password:   es.Password,
		IndexName:  es.IndexName,
		Dimensions: cfg.Embedding.Dimensions,
	})
}

func dedupConfig(cfg *config.Config) deduplication.Config {
	d := deduplication.DefaultConfig()
	d.DuplicateThreshold = cfg.Dedup.DuplicateThreshold
	d.NearDuplicateThreshold = cfg.Dedup.NearDuplicateThreshold
	d.MaxCandidates = cfg.Dedup.MaxCandidates
	d.FailOpen = cfg.Dedup.FailOpen
	d.MinTextLength = cfg.Dedup.MinTextLength
	return d
}

func gateConfig(cfg *config.Config, dedup deduplication.Deduplicator) (*gates.Config, error) {
	g := gates.DefaultConfig()
	g.Threshold = cfg.Gate.Threshold
	g.ReviewBuffer = cfg.Gate.ReviewBuffer
	if len(cfg.Gate.Weights) > 0 {
		w, err := gates.WeightsFromMap(cfg.Gate.Weights)
		if err != nil {
			return nil, fmt.Errorf("invalid gate weights: %w", err)
		}
		g.Weights = w
	}
	if len(cfg.Gate.TechnicalChannels) > 0 {
		g.TechnicalChannels = cfg.Gate.TechnicalChannels
	}
	lexicon, err := cfg.Lexicon()
	if err != nil {
		return nil, err
	}
	g.Lexicon = lexicon
	g.DuplicateBlockAbove = cfg.Dedup.DuplicateThreshold
	g.DuplicateWarnAbove = cfg.Dedup.NearDuplicateThreshold
	g.Deduplicator = dedup
	if cfg.Gate.CheckURLs {
		g.URLChecker = gates.NewHTTPChecker(0)
	}
	return &g, nil
}

// readItems loads candidates from a JSON array or an {"items": [...]} object
func readItems(path string) ([]*types.ContentItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var items []*types.ContentItem
	if err := json.Unmarshal(data, &items); err == nil {
		return items, nil
	}
	var wrapped struct {
		Items []*types.ContentItem `json:"items"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return wrapped.Items, nil
}

// readReports loads tracker issues from a JSON array or a {"reports": [...]} object
func readReports(path string) ([]types.TrackerIssue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var issues []types.TrackerIssue
	if err := json.Unmarshal(data, &issues); err == nil {
		return issues, nil
	}
	var wrapped struct {
		Reports []types.TrackerIssue `json:"reports"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return wrapped.Reports, nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
