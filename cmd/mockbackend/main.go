package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/goalprobe/internal/config"
	"github.com/zhouzirui/goalprobe/internal/handler"
	"github.com/zhouzirui/goalprobe/internal/service/ai"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	mockCfg, err := config.LoadMock()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	responder, err := newResponder(ctx, mockCfg)
	if err != nil {
		log.Fatalf("failed to initialize responder: %v", err)
	}

	svc := handler.NewInMemoryServices(mockCfg.Email, mockCfg.Password, mockCfg.APIKey, responder)
	svc.BatchFrames = mockCfg.Batch

	if mockCfg.APIKey == "" {
		log.Println("[mock] MOCK_API_KEY 未设置，跳过 X-API-Key 校验")
	}
	log.Printf("[mock] account=%s reply_mode=%s batch_frames=%t", mockCfg.Email, mockCfg.ReplyMode, mockCfg.Batch)

	startServer(ctx, mockCfg.Server, handler.NewRouter(svc))
}

// newResponder 根据 MOCK_REPLY_MODE 选择回复来源。
func newResponder(ctx context.Context, cfg config.MockConfig) (ai.Responder, error) {
	switch cfg.ReplyMode {
	case "oblivious":
		return &ai.ScriptedResponder{Oblivious: true, ChunkDelay: cfg.ChunkDelay}, nil
	case "llm":
		svc, err := ai.NewService(ctx, cfg.AI)
		if err != nil {
			return nil, err
		}
		log.Println("AI service initialized successfully")
		return svc, nil
	default:
		return &ai.ScriptedResponder{ChunkDelay: cfg.ChunkDelay}, nil
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("mock coaching backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
