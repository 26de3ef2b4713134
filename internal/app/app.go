// Package app wires configuration, infrastructure and features into the
// HTTP service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/nsqio/go-nsq"

	"github.com/JulioPeixoto/veritas/features/agent"
	"github.com/JulioPeixoto/veritas/features/catalog"
	"github.com/JulioPeixoto/veritas/features/chat"
	"github.com/JulioPeixoto/veritas/features/scraping"
	"github.com/JulioPeixoto/veritas/features/stats"
	"github.com/JulioPeixoto/veritas/features/store"
	"github.com/JulioPeixoto/veritas/internal/adapter/serpapi"
	"github.com/JulioPeixoto/veritas/internal/audio"
	"github.com/JulioPeixoto/veritas/internal/config"
	"github.com/JulioPeixoto/veritas/internal/extract"
	"github.com/JulioPeixoto/veritas/internal/middleware"
	"github.com/JulioPeixoto/veritas/internal/retrieval"
	"github.com/JulioPeixoto/veritas/internal/vector"
	"github.com/JulioPeixoto/veritas/internal/worker"
)

const apiPrefix = "/api/v1"

type App struct {
	Handler  http.Handler
	Index    *vector.Index
	Store    *store.Service
	Search   *retrieval.Service
	Chat     *chat.Service
	Scraping *scraping.Service

	cfg *config.Config
}

// NewScraping builds the scraping service alone, for commands that never
// touch a model or the vector store.
func NewScraping(cfg *config.Config) *scraping.Service {
	return scraping.NewService(
		serpapi.NewClient(cfg.SerpAPIKey, cfg.SerpAPIURL),
		&http.Client{},
		scraping.Options{
			DataDir:   cfg.DataDir,
			OutDir:    cfg.ScrapedDir(),
			UserAgent: cfg.ScrapeUserAgent,
			Timeout:   time.Duration(cfg.ScrapeTimeoutSeconds) * time.Second,
			Delay:     time.Duration(cfg.ScrapeDelayMs) * time.Millisecond,
		},
	)
}

func New(cfg *config.Config, deps *Dependencies, models *Models) (*App, error) {
	pub := deps.Publisher
	if pub == nil {
		pub = worker.NoopPublisher{}
	}

	// Catalog
	var catalogRepo catalog.Repository = catalog.NoopRepo{}
	if deps.DB != nil {
		catalogRepo = catalog.NewPostgresRepo(deps.DB)
	}
	catalogHandler := catalog.NewHandler(catalogRepo)

	// Index & retrieval
	index := vector.NewIndex(models.Embedder, deps.Backend)

	queryLogger, err := retrieval.NewFileQueryLogger(cfg.QueryLogPath)
	if err != nil {
		slog.Warn("failed to create query logger, falling back to stdout", "error", err)
		queryLogger = retrieval.NewQueryLogger(os.Stdout)
	}
	searchService := retrieval.NewService(index, queryLogger)

	// Feature: Store
	storeService := store.NewService(index, extract.New(), catalogRepo, pub)
	storeHandler := store.NewHandler(storeService, searchService, cfg.MaxUploadSizeMB)

	// Feature: Chat
	prompts, err := chat.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	chatService := chat.NewService(models.Generator, searchService, prompts)
	chatHandler := chat.NewHandler(chatService)

	// Feature: Scraping
	scrapingService := NewScraping(cfg)
	scrapingHandler := scraping.NewHandler(scrapingService, pub)

	// Feature: Agent
	var answerer agent.Answerer = agent.DirectAnswerer(models.Generator)
	if cfg.AgentUseRAG {
		answerer = chatService
	}
	var processor agent.AudioProcessor
	if cfg.AgentSpeedup {
		processor = audio.NewProcessor(cfg.FFmpegPath, audio.Options{})
	}
	agentHandler := agent.NewHandler(answerer, models.Speaker, processor)

	// Feature: Stats
	statsHandler := stats.NewHandler(catalogRepo, index, scrapingService)

	// Routes
	mux := http.NewServeMux()
	route := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.CorrelationID(middleware.CORS(h)))
	}
	method := func(m, path string) string { return m + " " + apiPrefix + path }

	route(method("GET", "/health"), health)

	route(method("POST", "/store/docs/indexing"), storeHandler.Index)
	route(method("GET", "/store/docs"), catalogHandler.List)
	route(method("GET", "/store/docs/search"), storeHandler.Search)
	route(method("GET", "/store/docs/search/context"), storeHandler.SearchContext)

	route(method("POST", "/chat"), chatHandler.Chat)

	route(method("POST", "/scraping/urls"), scrapingHandler.SearchLinks)
	route(method("POST", "/scraping/etl"), scrapingHandler.ETL)
	route(method("GET", "/scraping/files"), scrapingHandler.ListFiles)
	route(method("DELETE", "/scraping/files"), scrapingHandler.DeleteFile)

	route(method("GET", "/stats"), statsHandler.GetStats)

	route(method("GET", "/ws/health"), agentHandler.Health)
	route(method("GET", "/ws/agent"), agentHandler.Agent)

	// Preflight for every API path
	mux.Handle("OPTIONS "+apiPrefix+"/", middleware.CORS(http.NotFoundHandler()))
	mux.HandleFunc("GET /health", health)

	return &App{
		Handler:  mux,
		Index:    index,
		Store:    storeService,
		Search:   searchService,
		Chat:     chatService,
		Scraping: scrapingService,
		cfg:      cfg,
	}, nil
}

func health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Run serves HTTP until ctx is cancelled. With NSQ enabled it also consumes
// queued ETL runs.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.NSQEnabled {
		consumer, err := a.startETLConsumer()
		if err != nil {
			slog.Error("failed to start ETL consumer", "error", err)
		} else {
			defer consumer.Stop()
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.ServerPort),
		Handler:           a.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("server starting", "port", a.cfg.ServerPort, "vector_backend", a.Index.BackendName())
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return a.Index.Close()
}

func (a *App) startETLConsumer() (*nsq.Consumer, error) {
	nsqCfg := nsq.NewConfig()
	nsqCfg.MaxInFlight = 1
	nsqCfg.MsgTimeout = 2 * time.Minute
	consumer, err := nsq.NewConsumer(config.TopicScrapingETL, config.ChannelETLWorker, nsqCfg)
	if err != nil {
		return nil, err
	}
	consumer.AddHandler(worker.NewETLConsumer(a.Scraping, 0, scraping.IsPermanent))
	if err := consumer.ConnectToNSQLookupd(a.cfg.NSQLookupd); err != nil {
		consumer.Stop()
		return nil, err
	}
	slog.Info("NSQ ETL consumer connected", "topic", config.TopicScrapingETL)
	return consumer, nil
}
