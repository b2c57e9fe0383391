package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	redisclient "github.com/yungbote/kgbridge-backend/internal/clients/redis"
	"github.com/yungbote/kgbridge-backend/internal/db"
	httpserver "github.com/yungbote/kgbridge-backend/internal/http"
	httpH "github.com/yungbote/kgbridge-backend/internal/http/handlers"
	"github.com/yungbote/kgbridge-backend/internal/kg"
	"github.com/yungbote/kgbridge-backend/internal/platform/envutil"
	"github.com/yungbote/kgbridge-backend/internal/platform/logger"
	"github.com/yungbote/kgbridge-backend/internal/platform/neo4jdb"
	"github.com/yungbote/kgbridge-backend/internal/platform/openai"
	"github.com/yungbote/kgbridge-backend/internal/repos"
	"github.com/yungbote/kgbridge-backend/internal/services"
)

func main() {
	logMode := envutil.Str("LOG_MODE", "development")
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Postgres (audit log + document corpus)
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err := postgresService.AutoMigrateAll(); err != nil {
		log.Error("Postgres auto migration failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	// Neo4j (graph sink) — optional; without it, ingestion audits
	// graph_write_failed instead of crashing the process.
	neo4jClient, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("Neo4j init failed, graph sink disabled", "error", err)
	}
	var sink kg.GraphSink
	if neo4jClient != nil {
		sink = kg.NewNeo4jSink(neo4jClient, log)
	}

	// OpenAI (generation collaborator) — optional; a missing key surfaces as
	// provider_key_missing per attempt.
	aiClient, err := openai.NewClient(log)
	if err != nil {
		log.Warn("OpenAI init failed, generation disabled", "error", err)
	}

	// Redis (ingest event bus) — optional.
	ingestBus, err := redisclient.NewIngestBus(log)
	if err != nil {
		log.Warn("Redis ingest bus unavailable", "error", err)
		ingestBus = nil
	}

	// Repos
	ingestLogRepo := repos.NewIngestLogRepo(thePG, log)
	kgDocumentRepo := repos.NewKGDocumentRepo(thePG, log)

	// Services
	ingestService := services.NewKGIngestService(log, aiClient, sink, ingestLogRepo, kgDocumentRepo, ingestBus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ingestService.Start(ctx)

	// HTTP
	server := httpserver.NewServer(httpserver.RouterConfig{
		Log:           log,
		KGHandler:     httpH.NewKGHandler(ingestService),
		HealthHandler: httpH.NewHealthHandler(),
	})

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutdown signal received, stopping worker")
		cancel()
		if neo4jClient != nil {
			_ = neo4jClient.Close(context.Background())
		}
		if ingestBus != nil {
			_ = ingestBus.Close()
		}
		os.Exit(0)
	}()

	addr := envutil.Str("HTTP_ADDR", ":8080")
	log.Info("starting HTTP server", "addr", addr)
	if err := server.Run(addr); err != nil {
		log.Fatal("HTTP server exited", "error", err)
	}
}
