package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/shopdesk/workorder-cli/internal/pipeline"
	"github.com/shopdesk/workorder-cli/internal/resilience"
	"github.com/shopdesk/workorder-cli/internal/store"
	anthropicpkg "github.com/shopdesk/workorder-cli/pkg/anthropic"
	"github.com/shopdesk/workorder-cli/pkg/vpic"
	"github.com/shopdesk/workorder-cli/pkg/whisper"
)

// pipelineEnv holds the store and the wired intake pipeline used by the
// serve and intake commands.
type pipelineEnv struct {
	Store       store.Store
	Coordinator *pipeline.Coordinator
}

// Close drains in-flight background runs, then releases the store. Called
// on shutdown so every dispatched work order reaches a terminal status.
func (pe *pipelineEnv) Close() {
	if pe.Coordinator != nil {
		pe.Coordinator.Wait()
	}
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	case "dynamo":
		return store.NewDynamo(ctx, store.DynamoConfig{
			Region:      cfg.Store.Dynamo.Region,
			TablePrefix: cfg.Store.Dynamo.TablePrefix,
			Endpoint:    cfg.Store.Dynamo.Endpoint,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline sets up the store, the external API clients, and the intake
// coordinator. Callers should defer env.Close().
func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	whisperClient := whisper.NewClient(cfg.Whisper.Key,
		whisper.WithBaseURL(cfg.Whisper.BaseURL),
		whisper.WithModel(cfg.Whisper.Model),
	)
	vpicClient := vpic.NewClient(vpic.WithBaseURL(cfg.VPIC.BaseURL))

	exOpts := []pipeline.ExtractorOption{
		pipeline.WithCallTimeout(time.Duration(cfg.Pipeline.CallTimeoutSecs) * time.Second),
	}
	if cfg.Pipeline.RetryAttempts > 1 {
		exOpts = append(exOpts, pipeline.WithRetry(resilience.RetryConfig{
			MaxAttempts: cfg.Pipeline.RetryAttempts,
		}))
	}

	extractor := pipeline.NewExtractor(anthropicClient, cfg.Anthropic.VisionModel, cfg.Anthropic.MaxTokens, exOpts...)
	decoder := pipeline.NewDecoder(vpicClient)
	transcriber := pipeline.NewTranscriber(whisperClient)
	summarizer := pipeline.NewSummarizer(anthropicClient, cfg.Anthropic.SummaryModel, cfg.Anthropic.MaxTokens)

	orch := pipeline.NewOrchestrator(st, extractor, decoder, transcriber, summarizer)
	coordinator := pipeline.NewCoordinator(st, orch, &pipeline.Runner{})

	return &pipelineEnv{
		Store:       st,
		Coordinator: coordinator,
	}, nil
}
