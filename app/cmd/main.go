package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio/app/api"
	"portfolio/app/server"
	"portfolio/config"
	"portfolio/loader"
	"portfolio/logger"
	"portfolio/mailer"
	"portfolio/model"
	"portfolio/store"

	"github.com/joho/godotenv"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}
}

func main() {
	cfg := config.Load()

	logger.Init(cfg.Log.Dir)
	defer logger.Sync()

	ctx := context.Background()

	embedder := model.NewOpenAIEmbedder(cfg.Embedding)
	vectors, err := store.NewPgVectorStore(ctx, cfg.Postgres.ConnString(), embedder, cfg.Embedding.Dimensions)
	if err != nil {
		logger.Fatalf("error connecting to vector store: %v", err)
	}
	logger.Info("connection established")

	records, err := store.NewRecordStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		logger.Fatalf("error connecting to record store: %v", err)
	}

	if err := vectors.CreateCollection(ctx, cfg.Knowledge.Collection); err != nil {
		logger.Fatalf("error creating collection: %v", err)
	}

	// Ingestion failures are logged but never block startup: the service
	// still answers with whatever is already in the collection.
	if err := loader.NewIngestor(vectors).Run(ctx, cfg.Knowledge.Dir, cfg.Knowledge.Collection); err != nil {
		logger.ErrorAt("Run", err)
	}

	ensureIndexes(ctx, records, cfg.Conversation)

	generator := model.NewGenerator(cfg.LLM)
	sender := mailer.NewSMTPSender(cfg.SMTP)

	chatHandler := api.NewChatHandler(vectors, records, generator, cfg.Retrieval, cfg.Knowledge.Collection)
	contactHandler := api.NewContactHandler(records, sender)

	s := server.New(cfg.Server.Addr, chatHandler, contactHandler)
	go func() {
		logger.Infof("server listening on %s", cfg.Server.Addr)
		if err := s.Run(); err != nil {
			logger.Fatalf("server stopped: %v", err)
		}
	}()

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, os.Interrupt, syscall.SIGTERM)
	<-sigch
	logger.Info("received shutdown signal, shutting down server...")

	if err := s.Shutdown(); err != nil {
		logger.ErrorAt("Shutdown", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cleanup(shutdownCtx, vectors, records)

	logger.Info("service stopped")
}

// ensureIndexes sets up the record-store indexes. Failures are logged
// only: the service works without them, just slower.
func ensureIndexes(ctx context.Context, records store.RecordStorer, conv config.ConversationConfig) {
	if _, err := records.CreateIndex(ctx, api.ConversationCollection,
		[]store.SortField{{Field: "user_id"}}, &store.IndexOpts{Unique: true}); err != nil {
		logger.ErrorAt("ensureIndexes", err)
	}

	if conv.TTLDays > 0 {
		if _, err := records.CreateIndex(ctx, api.ConversationCollection,
			[]store.SortField{{Field: "last_active"}},
			&store.IndexOpts{ExpireAfter: time.Duration(conv.TTLDays) * 24 * time.Hour}); err != nil {
			logger.ErrorAt("ensureIndexes", err)
		}
	}
}

// cleanup releases external resources. Shutdown errors are logged, never
// raised: teardown must not crash the process.
func cleanup(ctx context.Context, vectors store.VectorStorer, records store.RecordStorer) {
	collections, err := vectors.ListCollections(ctx)
	if err != nil {
		logger.ErrorAt("cleanup", err)
	}
	for _, name := range collections {
		if err := vectors.DeleteCollection(ctx, name); err != nil {
			logger.ErrorAt("cleanup", err)
		}
	}
	vectors.Close()

	if err := records.Close(ctx); err != nil {
		logger.ErrorAt("cleanup", err)
	}
}
