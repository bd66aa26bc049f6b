package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator"
	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomid "github.com/labstack/echo/v4/middleware"

	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/peakfunnel/intentgraph/internal/queue"
	mid "github.com/peakfunnel/intentgraph/internal/server/middleware"
	"github.com/peakfunnel/intentgraph/internal/storage"
	"github.com/peakfunnel/intentgraph/internal/util"
	"github.com/peakfunnel/intentgraph/pkg/embed"
	"github.com/peakfunnel/intentgraph/pkg/embed/ollama"
	"github.com/peakfunnel/intentgraph/pkg/embed/openai"
	"github.com/peakfunnel/intentgraph/pkg/graph"
	"github.com/peakfunnel/intentgraph/pkg/intent"
	"github.com/peakfunnel/intentgraph/pkg/logger"
	"github.com/peakfunnel/intentgraph/pkg/propagation"
	"github.com/peakfunnel/intentgraph/pkg/resilience"
	"github.com/peakfunnel/intentgraph/pkg/semantic"
	pgxstore "github.com/peakfunnel/intentgraph/pkg/store/pgx"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

// NewProvider selects the embedding provider from AI_ADAPTER. The local
// hash provider is both the explicit "local" adapter and the fallback
// when no remote provider is configured.
func NewProvider(tuning graph.Tuning) (embed.Provider, embed.KeywordClient) {
	adapter := util.GetEnv("AI_ADAPTER")

	switch adapter {
	case "ollama":
		client, err := ollama.New(ollama.Params{
			EmbeddingModel:        util.GetEnv("AI_EMBED_MODEL"),
			BaseURL:               util.GetEnv("AI_EMBED_URL"),
			Dimensions:            tuning.EmbedDim,
			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		return client, embed.NewLocalKeywordClient(5)
	case "openai":
		client, err := openai.New(openai.Params{
			EmbeddingModel:        util.GetEnv("AI_EMBED_MODEL"),
			KeywordModel:          util.GetEnv("AI_KEYWORD_MODEL"),
			BaseURL:               util.GetEnv("AI_EMBED_URL"),
			APIKey:                util.GetEnv("AI_EMBED_KEY"),
			Dimensions:            tuning.EmbedDim,
			MaxConcurrentRequests: int64(util.GetEnvNumeric("AI_PARALLEL_REQ", 15)),
		})
		if err != nil {
			logger.Fatal("Could not create OpenAI client", "err", err)
		}
		return client, client
	}

	logger.Info("No remote embedding adapter configured, using local provider")
	return embed.NewHashProvider(tuning.EmbedDim), embed.NewLocalKeywordClient(5)
}

// NewMigrator wraps golang-migrate over the migrations directory.
func NewMigrator() resilience.Migrator {
	return resilience.MigratorFunc(func(context.Context) error {
		source := util.GetEnvString("MIGRATIONS_URL", "file://migrations")
		m, err := migrate.New(source, util.GetEnv("DATABASE_URL"))
		if err != nil {
			return err
		}
		defer m.Close()
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return err
		}
		return nil
	})
}

func Init() {
	e := echo.New()
	e.Validator = &CustomValidator{validator: validator.New()}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tuning := graph.TuningFromEnv()

	pgCfg, err := pgxpool.ParseConfig(util.GetEnv("DATABASE_URL"))
	if err != nil {
		logger.Fatal("Invalid database url", "err", err)
	}
	pgCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	conn, err := pgxpool.NewWithConfig(ctx, pgCfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "err", err)
	}
	defer conn.Close()

	que := queue.Init()
	defer que.Close()
	ch, err := que.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	if err := queue.SetupQueues(ch); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}
	publisher := queue.NewPublisher(ch)

	opts := []resilience.Option{
		resilience.WithMigrator(NewMigrator()),
		resilience.WithSeedNodes(resilience.DefaultSeedNodes()),
		resilience.WithSeedEdges(resilience.DefaultSeedEdges()),
	}
	if util.GetEnv("AWS_ENDPOINT") != "" {
		opts = append(opts, resilience.WithSnapshotExporter(storage.NewSnapshotStore(storage.NewS3Client(ctx))))
	}
	manager := resilience.New(pgxstore.New(conn), tuning, opts...)
	if err := manager.Initialize(ctx); err != nil {
		logger.Error("Storage initialization degraded", "err", err)
	}

	provider, keywords := NewProvider(tuning)
	sem := semantic.New(manager, provider, tuning, semantic.WithReembedScheduler(publisher))
	intents := intent.New(sem, tuning, intent.WithKeywordClient(keywords))
	if err := intents.LoadSnapshot(ctx); err != nil {
		logger.Warn("Cluster snapshot unavailable, starting empty", "err", err)
	}
	prop := propagation.New(sem, intents, tuning)

	app := &mid.App{
		Semantic:     sem,
		Intent:       intents,
		Propagation:  prop,
		Resilience:   manager,
		Queue:        ch,
		Publisher:    publisher,
		Tuning:       tuning,
		MasterAPIKey: util.GetEnv("MASTER_API_KEY"),
	}

	e.Use(mid.AppContextMiddleware(app))
	e.Use(echomid.CORS())
	e.Use(echomid.Logger())
	e.Use(echomid.Recover())

	RegisterRoutes(e)

	go func() {
		port := util.GetEnv("PORT")
		if port == "" {
			port = "8080"
		}
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
