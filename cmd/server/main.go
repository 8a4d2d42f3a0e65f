package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"health-assistant/internal/config"
	"health-assistant/internal/llm"
	"health-assistant/internal/logging"
	"health-assistant/internal/messaging"
	"health-assistant/internal/question"
	"health-assistant/internal/retrieval"
	"health-assistant/internal/scenario"
	"health-assistant/internal/server"
	"health-assistant/internal/storage"
	"health-assistant/internal/welcome"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init storage")
	}
	defer store.Close()

	model, err := llm.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create llm client")
	}
	systemPrompt := readSystemPrompt(cfg.SystemPromptPath)

	retriever := retrieval.New(cfg.FaissServiceURL, cfg.KnowledgeBase, cfg.RetrievalTopK)
	messenger := messaging.New(cfg.MessagingBaseURL, cfg.SupportChannelPrefix, cfg.MessagingTimeout)

	questions := question.NewService(store, model, retriever, systemPrompt)
	scenarios := scenario.NewService(scenario.NewLoader(cfg.ScenarioDir), store)

	worker := welcome.NewWorker(store, messenger, cfg.WelcomeDelay(), cfg.WelcomeScanInterval())
	if err := worker.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start welcome worker")
	}

	handler := server.NewHandler(store, store, questions, scenarios)
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.New(handler),
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func readSystemPrompt(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Str("path", path).Err(err).Msg("system prompt file not found or unreadable")
		return ""
	}
	return string(data)
}
