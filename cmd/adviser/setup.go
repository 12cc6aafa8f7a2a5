package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairplaylabs/adviser"
	"github.com/fairplaylabs/adviser/checkpoint"
	"github.com/fairplaylabs/adviser/config"
	"github.com/fairplaylabs/adviser/core"
	"github.com/fairplaylabs/adviser/logging"
	advmemory "github.com/fairplaylabs/adviser/memory"
	redisstore "github.com/fairplaylabs/adviser/memory/redis"
	"github.com/fairplaylabs/adviser/model"
	"github.com/fairplaylabs/adviser/model/anthropic"
	"github.com/fairplaylabs/adviser/model/openai"
	"github.com/fairplaylabs/adviser/node"
	"github.com/fairplaylabs/adviser/resilience"
	"github.com/fairplaylabs/adviser/retrieval"
	"github.com/fairplaylabs/adviser/retrieval/sqlitefts"
	"github.com/fairplaylabs/adviser/websearch"
)

// runtime bundles everything a command needs, plus the handles it must
// release on exit.
type runtime struct {
	adviser *adviser.Adviser
	vectors *retrieval.MemoryVectorIndex
	lexical *sqlitefts.Searcher
	close   func()
}

func buildRuntime(cfg config.Config, logger logging.Logger) (*runtime, error) {
	buildModel := modelBuilder(cfg.Models)

	lexical, err := sqlitefts.Open(cfg.Retrieval.IndexPath)
	if err != nil {
		return nil, err
	}
	cleanup := []func(){func() { lexical.Close() }}
	closeAll := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}

	vectors := retrieval.NewMemoryVectorIndex(openai.NewEmbedder())

	settings := resilience.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		RequestTimeout:   cfg.Breaker.RequestTimeout,
	}

	retriever := retrieval.NewHybridRetriever(vectors, lexical,
		retrieval.WithOptions(retrieval.Options{
			VectorWeight:   cfg.Retrieval.VectorWeight,
			RRFK:           cfg.Retrieval.RRFK,
			ConfidenceTopN: cfg.Retrieval.ConfidenceTopN,
		}),
		retrieval.WithBreakers(
			resilience.NewCircuitBreaker("retrieval.vector", settings, logger),
			resilience.NewCircuitBreaker("retrieval.lexical", settings, logger),
		),
		retrieval.WithLogger(logger),
	)
	expander := retrieval.NewExpander(
		buildModel(cfg.Models.Role(cfg.Models.Planner)),
		retriever,
		resilience.NewCircuitBreaker("model.reformulate", settings, logger),
		retrieval.ExpanderOptions{
			MaxQueries:     cfg.Retrieval.MaxReformulations,
			K:              cfg.Retrieval.K,
			ConfidenceTopN: cfg.Retrieval.ConfidenceTopN,
		},
		logger,
	)

	var web core.WebSearcher
	if cfg.Web.Enabled {
		if cfg.Web.BaseURL == "" {
			closeAll()
			return nil, fmt.Errorf("web search enabled but web.base_url is empty")
		}
		var optFns []websearch.ClientOption
		if cfg.Web.APIKey != "" {
			optFns = append(optFns, websearch.WithAPIKey(cfg.Web.APIKey))
		}
		web = websearch.NewClient(cfg.Web.BaseURL, optFns...)
	}

	var checkpoints core.CheckpointStore
	if cfg.Stores.CheckpointPath != "" {
		store, err := checkpoint.OpenSQLite(cfg.Stores.CheckpointPath)
		if err != nil {
			closeAll()
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = store.Setup(ctx)
		cancel()
		if err != nil {
			closeAll()
			return nil, err
		}
		cleanup = append(cleanup, func() { store.Close() })
		checkpoints = store
	}

	var summaries core.SummaryStore = advmemory.NewInMemoryStore()
	if cfg.Stores.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Stores.RedisAddr})
		cleanup = append(cleanup, func() { client.Close() })
		summaries = redisstore.NewStore(client)
	}

	adv, err := adviser.New(node.Deps{
		ClassifierModel:  buildModel(cfg.Models.Role(cfg.Models.Classifier)),
		PlannerModel:     buildModel(cfg.Models.Role(cfg.Models.Planner)),
		SynthesizerModel: buildModel(cfg.Models.Role(cfg.Models.Synthesizer)),
		QualityModel:     buildModel(cfg.Models.Role(cfg.Models.Quality)),
		EscalateModel:    buildModel(cfg.Models.Role(cfg.Models.Escalate)),
		Retriever:        retriever,
		Expander:         expander,
		Web:              web,
		Checkpoints:      checkpoints,
		Logger:           logger,
	}, func(o *adviser.Options) {
		o.Pipeline = node.Options{
			MaxQualityRetries:   cfg.Quality.MaxRetries,
			ConfidenceThreshold: cfg.Retrieval.ConfidenceThreshold,
			Researcher: node.ResearcherOptions{
				K:                   cfg.Retrieval.K,
				ConfidenceThreshold: cfg.Retrieval.ConfidenceThreshold,
				ConfidenceTopN:      cfg.Retrieval.ConfidenceTopN,
				WebLimit:            cfg.Web.Limit,
			},
			Breaker: settings,
		}
		o.InvokeDeadline = cfg.Deadlines.Invoke
		o.StreamDeadline = cfg.Deadlines.Stream
		o.SummaryStore = summaries
		o.SummarizerModel = buildModel(cfg.Models.Role(cfg.Models.Summarizer))
		o.Logger = logger
	})
	if err != nil {
		closeAll()
		return nil, err
	}

	rt := &runtime{adviser: adv, vectors: vectors, lexical: lexical}
	rt.close = func() {
		adv.Wait()
		closeAll()
	}
	return rt, nil
}

func modelBuilder(cfg config.ModelsConfig) func(model.Config) model.Model {
	switch cfg.Provider {
	case "anthropic":
		return func(c model.Config) model.Model {
			return anthropic.NewModel(anthropic.WithConfig(c))
		}
	default:
		return func(c model.Config) model.Model {
			return openai.NewModel(openai.WithConfig(c))
		}
	}
}
