// Package app wires the chat service together: config, store backend,
// provider clients, hub, responder, and the HTTP server.
package app

import (
	"context"
	"fmt"
	"log"

	"chatpilot/internal/archive"
	"chatpilot/internal/bot"
	"chatpilot/internal/config"
	"chatpilot/internal/hub"
	"chatpilot/internal/llm"
	"chatpilot/internal/server"
	"chatpilot/internal/server/handler"
	"chatpilot/internal/store"
	"chatpilot/internal/suggest"
	"chatpilot/internal/util/cryptutil"
)

type App struct {
	cfg    *config.Config
	store  store.Store
	llm    *llm.Failover
	server *server.Server
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	box := cryptutil.New(cfg.EncryptionKey)

	st, err := initStore(cfg, box)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	failover, err := initLLM(cfg)
	if err != nil {
		return nil, fmt.Errorf("init llm: %w", err)
	}

	h := hub.New()
	responder := bot.New(st, h, failover, cfg.BotEmail)
	responder.Delay = cfg.BotThinkDelay
	pipeline := suggest.New(failover)

	sink := initArchive(cfg)

	mux := server.NewMux(
		handler.NewChatHandler(st),
		handler.NewAIHandler(pipeline),
		handler.NewAuthHandler(st, cfg.BotEmail),
		handler.NewArchiveHandler(st, sink),
		handler.NewWSHandler(st, h, responder),
	)

	return &App{
		cfg:    cfg,
		store:  st,
		llm:    failover,
		server: server.New(cfg.Port, mux),
	}, nil
}

func initStore(cfg *config.Config, box *cryptutil.Box) (store.Store, error) {
	if cfg.DatabaseURL != "" {
		st, err := store.NewPostgres(cfg.DatabaseURL, box, cfg.BotEmail)
		if err != nil {
			return nil, err
		}
		log.Printf("store: postgres")
		return st, nil
	}
	log.Printf("store: in-memory (no DATABASE_URL)")
	return store.NewMemory(box, cfg.BotEmail), nil
}

func initLLM(cfg *config.Config) (*llm.Failover, error) {
	clients := make([]llm.Client, 0, len(cfg.Credentials))
	for _, key := range cfg.Credentials {
		c, err := llm.NewGeminiClient(context.Background(), key, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	log.Printf("llm: %d credential(s) configured", len(clients))
	failover := llm.NewFailover(clients...)
	failover.Timeout = cfg.ProviderTimeout
	return failover, nil
}

func initArchive(cfg *config.Config) archive.Sink {
	if !cfg.Archive.Enabled {
		return nil
	}
	sink, err := archive.NewS3Sink(archive.S3Config{
		Endpoint:  cfg.Archive.Endpoint,
		Region:    cfg.Archive.Region,
		AccessKey: cfg.Archive.AccessKey,
		SecretKey: cfg.Archive.SecretKey,
		Bucket:    cfg.Archive.Bucket,
		UseSSL:    cfg.Archive.UseSSL,
	})
	if err != nil {
		log.Printf("archive: disabled: %v", err)
		return nil
	}
	log.Printf("archive: s3 bucket=%s endpoint=%s", cfg.Archive.Bucket, cfg.Archive.Endpoint)
	return sink
}

func (a *App) Start() error { return a.server.Start() }

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if cerr := a.llm.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := a.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
