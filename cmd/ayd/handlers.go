// handlers.go contains the RunE handler functions for all CLI commands.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yannistannier/ayd/internal/chunker"
	"github.com/yannistannier/ayd/internal/config"
	"github.com/yannistannier/ayd/internal/embeddings"
	openaiembed "github.com/yannistannier/ayd/internal/embeddings/openai"
	"github.com/yannistannier/ayd/internal/eval"
	"github.com/yannistannier/ayd/internal/ingest"
	"github.com/yannistannier/ayd/internal/llm"
	"github.com/yannistannier/ayd/internal/objectstore"
	"github.com/yannistannier/ayd/internal/observability"
	"github.com/yannistannier/ayd/internal/prompts"
	"github.com/yannistannier/ayd/internal/rag"
	"github.com/yannistannier/ayd/internal/tracking"
	"github.com/yannistannier/ayd/internal/vectorstore/pgvector"
)

// app bundles the service handles every command needs. Lifecycle is owned
// here: construct once per invocation, close on the way out.
type app struct {
	cfg      *config.Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	client   *llm.OpenAIClient
	embedder embeddings.Provider
	store    *pgvector.Store
	prompts  *prompts.Store
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
	metrics := observability.NewMetrics()

	client := llm.NewOpenAIClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
	}, llm.WithLogger(logger), llm.WithMetrics(metrics))

	embedder, err := openaiembed.New(openaiembed.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.Models.Embedding,
		Metrics: metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("init embedding provider: %w", err)
	}

	dimension := cfg.VectorStore.Dimension
	if dimension == 0 {
		dimension = embedder.Dimension()
	}
	store, err := pgvector.New(pgvector.Config{
		DSN:           cfg.VectorStore.DSN,
		Dimension:     dimension,
		RunMigrations: cfg.VectorStore.RunMigrations,
	})
	if err != nil {
		return nil, fmt.Errorf("init vector store: %w", err)
	}

	promptStore, err := prompts.Load(cfg.Prompts.Path)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("load prompt catalog: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		client:   client,
		embedder: embedder,
		store:    store,
		prompts:  promptStore,
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}

func (a *app) objectStore(ctx context.Context) (objectstore.ObjectStore, error) {
	return objectstore.NewMinio(ctx, objectstore.Config{
		Endpoint:  a.cfg.Storage.Endpoint,
		AccessKey: a.cfg.Storage.AccessKey,
		SecretKey: a.cfg.Storage.SecretKey,
		Bucket:    a.cfg.Storage.Bucket,
		UseSSL:    a.cfg.Storage.UseSSL,
	})
}

type ingestOptions struct {
	configPath   string
	index        string
	paths        []string
	preprocessed bool
	noCorrection bool
	archive      bool
}

func runIngest(ctx context.Context, opts ingestOptions) error {
	a, err := newApp(opts.configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	splitter, err := chunker.New(chunker.Config{
		Size:    a.cfg.RAG.ChunkSize,
		Overlap: a.cfg.RAG.ChunkOverlap,
	})
	if err != nil {
		return err
	}

	pipelineCfg := ingest.Config{
		Chunker:    splitter,
		Embedder:   a.embedder,
		Store:      a.store,
		Collection: a.cfg.VectorStore.Collection,
		BatchSize:  a.cfg.RAG.BatchSize,
		Logger:     a.logger,
		Metrics:    a.metrics,
	}

	if !opts.noCorrection && !opts.preprocessed {
		var lexicons []string
		if a.cfg.Lexicons.Primary != "" {
			lexicons = append(lexicons, a.cfg.Lexicons.Primary)
		}
		if a.cfg.Lexicons.Secondary != "" {
			lexicons = append(lexicons, a.cfg.Lexicons.Secondary)
		}
		if len(lexicons) > 0 || len(a.cfg.Lexicons.CustomVocabulary) > 0 {
			if err := a.prompts.Validate(a.cfg.Models.Correction, [][2]string{{"correction", "process"}}); err != nil {
				return err
			}
			gate, err := ingest.NewQualityGate(ingest.GateConfig{
				LexiconPaths:     lexicons,
				CustomVocabulary: a.cfg.Lexicons.CustomVocabulary,
				Threshold:        a.cfg.RAG.QualityThreshold,
			})
			if err != nil {
				return fmt.Errorf("load quality gate lexicons: %w", err)
			}
			pipelineCfg.Gate = gate
			pipelineCfg.Corrector = ingest.NewCorrector(a.client, a.prompts, a.cfg.Models.Correction)
		}
	}

	pipeline, err := ingest.New(pipelineCfg)
	if err != nil {
		return err
	}

	var total int
	if opts.preprocessed {
		for _, path := range opts.paths {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			n, err := pipeline.IngestPreprocessed(ctx, f, filepath.Base(path), opts.index)
			f.Close()
			if err != nil {
				return err
			}
			total += n
		}
	} else {
		total, err = pipeline.IngestPaths(ctx, opts.paths, opts.index)
		if err != nil {
			return err
		}
	}

	if opts.archive {
		if err := archiveFiles(ctx, a, opts.paths, opts.index); err != nil {
			return err
		}
	}

	fmt.Printf("ingested %d chunks from %d files into index %q\n", total, len(opts.paths), opts.index)
	return nil
}

// archiveFiles uploads the raw source files under the index prefix so a
// later clear --purge-files can remove them together with the records.
func archiveFiles(ctx context.Context, a *app, paths []string, index string) error {
	store, err := a.objectStore(ctx)
	if err != nil {
		return err
	}
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		info, err := f.Stat()
		if err != nil {
			f.Close()
			return err
		}
		key := index + "/" + filepath.Base(path)
		err = store.Put(ctx, key, f, info.Size(), "application/octet-stream")
		f.Close()
		if err != nil {
			return err
		}
		a.logger.Debug(ctx, "file archived", "key", key)
	}
	return nil
}

type queryOptions struct {
	configPath string
	index      string
	workflow   string
	question   string
	topK       int
	showSource bool
}

func runQuery(ctx context.Context, opts queryOptions) error {
	a, err := newApp(opts.configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	refs := [][2]string{{"rag", "direct"}}
	if opts.workflow == rag.WorkflowSelfCheck {
		refs = append(refs, [2]string{"rag", "check"})
	}
	if err := a.prompts.Validate(a.cfg.Models.Generation, refs); err != nil {
		return err
	}

	precision := opts.topK
	if precision == 0 {
		precision = a.cfg.RAG.Precision
	}
	strategy, err := rag.New(opts.workflow, rag.Deps{
		Embedder:   a.embedder,
		Store:      a.store,
		Client:     a.client,
		Prompts:    a.prompts,
		Collection: a.cfg.VectorStore.Collection,
		Model:      a.cfg.Models.Generation,
		Precision:  precision,
		Logger:     a.logger,
		Metrics:    a.metrics,
	})
	if err != nil {
		return err
	}

	answer, err := strategy.Query(ctx, opts.question, map[string]string{"index": opts.index})
	if err != nil {
		return err
	}

	fmt.Println(answer.Text)
	if opts.showSource {
		fmt.Println()
		for i, src := range answer.Sources {
			fmt.Printf("[%d] %s (score %.3f)\n", i+1, src.ElementID(), src.Score)
			fmt.Println(src.Text)
		}
	}
	return nil
}

type evalOptions struct {
	configPath string
	index      string
	workflow   string
	samples    int
}

func runEval(ctx context.Context, opts evalOptions) error {
	a, err := newApp(opts.configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	refs := [][2]string{
		{"qa_generation", "question"},
		{"qa_generation", "answer"},
		{"retrieval_check", "eval"},
		{"faithfulness", "eval"},
		{"correctness", "eval"},
	}
	if err := a.prompts.Validate(a.cfg.Models.Judge, refs); err != nil {
		return err
	}

	classifier, err := eval.LoadClassifier(a.cfg.Classifier.Path)
	if err != nil {
		return err
	}

	strategy, err := rag.New(opts.workflow, rag.Deps{
		Embedder:   a.embedder,
		Store:      a.store,
		Client:     a.client,
		Prompts:    a.prompts,
		Collection: a.cfg.VectorStore.Collection,
		Model:      a.cfg.Models.Generation,
		Precision:  a.cfg.RAG.Precision,
		Logger:     a.logger,
		Metrics:    a.metrics,
	})
	if err != nil {
		return err
	}

	var tracker tracking.Recorder
	if a.cfg.Tracking.URI != "" {
		tracker = tracking.NewMLflowRecorder(a.cfg.Tracking.URI, a.cfg.Tracking.Experiment)
	}

	orchestrator, err := eval.NewOrchestrator(eval.Config{
		Client:     a.client,
		Embedder:   a.embedder,
		Strategy:   strategy,
		Classifier: classifier,
		Prompts:    a.prompts,
		Tracker:    tracker,
		Logger:     a.logger,
		Metrics:    a.metrics,
	})
	if err != nil {
		return err
	}

	samples, err := eval.LoadSamples(ctx, a.store, a.cfg.VectorStore.Collection, opts.index, opts.samples)
	if err != nil {
		return err
	}

	result, err := orchestrator.Run(ctx, eval.RunConfig{
		Workflow:        opts.workflow,
		Collection:      a.cfg.VectorStore.Collection,
		Index:           opts.index,
		GenerationModel: a.cfg.Models.EvalGeneration,
		JudgeModel:      a.cfg.Models.Judge,
		Precision:       a.cfg.RAG.Precision,
	}, samples)
	if err != nil {
		return err
	}

	fmt.Printf("workflow:      %s\n", result.Workflow)
	fmt.Printf("retrieval:     %.3f\n", result.RetrievalScore)
	fmt.Printf("faithfulness:  %.3f\n", result.FaithfulnessScore)
	fmt.Printf("correctness:   %.3f\n", result.CorrectnessScore)
	return nil
}

func runCollectionIndex(ctx context.Context, configPath, field string) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.CreateFieldIndex(ctx, a.cfg.VectorStore.Collection, field); err != nil {
		return err
	}
	fmt.Printf("index created on payload field %q\n", field)
	return nil
}

func runCollectionClear(ctx context.Context, configPath, index string, purge bool) error {
	a, err := newApp(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	err = a.store.DeleteByFilter(ctx, a.cfg.VectorStore.Collection, map[string]string{"index": index})
	if err != nil {
		return err
	}

	if purge {
		store, err := a.objectStore(ctx)
		if err != nil {
			return err
		}
		if err := store.RemovePrefix(ctx, index+"/"); err != nil {
			return err
		}
	}

	fmt.Printf("cleared index %q\n", index)
	return nil
}
