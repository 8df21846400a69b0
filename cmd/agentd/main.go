// In file: cmd/agentd/main.go

// Command agentd serves single-turn agent runs over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/dileep-u-k/llm-agent/internal/config"
	"github.com/dileep-u-k/llm-agent/internal/llm"
	"github.com/dileep-u-k/llm-agent/internal/tracing"
	"github.com/dileep-u-k/llm-agent/internal/version"
)

// main is the composition root: it loads configuration, initializes all
// services, injects dependencies, and starts the server.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	buildInfo := version.Get()
	log.Printf("🚀 Starting LLM Agent service | Version: %s | Commit: %s", buildInfo.Version, buildInfo.GitCommit)

	// 1. LOAD CONFIGURATION
	cfg, err := config.Load(os.Getenv("LLM_AGENT_CONFIG"))
	if err != nil {
		log.Fatalf("❌ FATAL: Configuration Error: %v", err)
	}
	log.Printf("✅ Configuration loaded. Model: %s (%s)", cfg.Model.Model, llm.ResolveProvider(&cfg.Model))

	// 2. INITIALIZE SERVICES
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, buildInfo.Version)
	if err != nil {
		log.Fatalf("❌ FATAL: Could not set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("WARNING: tracing shutdown: %v", err)
		}
	}()

	var profiler *llm.Profiler
	if cfg.Server.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Server.RedisAddr})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			log.Fatalf("❌ FATAL: Could not connect to Redis: %v", err)
		}
		defer rdb.Close()
		profiler = llm.NewProfiler(rdb)
		log.Println("✅ Model profiling enabled.")
	}

	handler, err := NewAgentHandler(cfg, profiler, func(ctx context.Context, m *llm.ModelConfig) (llm.ModelClient, error) {
		return llm.NewClient(ctx, m, cfg.AWSCredentials)
	})
	if err != nil {
		log.Fatalf("❌ FATAL: %v", err)
	}
	log.Printf("✅ Default tools: %v", handler.defaultTools.Names())
	defer handler.Close()
	log.Println("✅ All services initialized.")

	// 3. START BACKGROUND PROCESSES
	if profiler != nil && cfg.Server.HealthCheckInterval > 0 {
		go startHealthChecker(ctx, cfg, handler, profiler)
	}

	// 4. SETUP AND RUN THE WEB SERVER
	gin.SetMode(os.Getenv("GIN_MODE"))
	srv := &http.Server{Addr: fmt.Sprintf(":%s", cfg.Server.Port), Handler: newRouter(handler)}
	runServerWithGracefulShutdown(ctx, srv)
}

func newRouter(h *AgentHandler) *gin.Engine {
	engine := gin.Default()
	engine.GET("/healthz", h.HandleHealth)
	v1 := engine.Group("/api/v1")
	{
		v1.POST("/agent/run", h.HandleRun)
		v1.GET("/models/:id/profile", h.HandleProfile)
	}
	return engine
}

// startHealthChecker periodically checks the configured model and records
// the result in its profile.
func startHealthChecker(ctx context.Context, cfg *config.Config, h *AgentHandler, profiler *llm.Profiler) {
	ticker := time.NewTicker(cfg.Server.HealthCheckInterval)
	defer ticker.Stop()

	log.Println("🩺 Health checker started.")
	for {
		checkModelHealth(ctx, cfg.ModelFor(""), h, profiler)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func checkModelHealth(ctx context.Context, modelCfg *llm.ModelConfig, h *AgentHandler, profiler *llm.Profiler) {
	check := *modelCfg
	check.MaxTokens = 5

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client, err := h.clientFor(ctx, &check)
	if err == nil {
		prompt := []llm.Message{{Role: llm.RoleUser, Content: "What is the capital of India?"}}
		_, err = client.Complete(ctx, prompt, &check, nil)
	}
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return
	}

	isHealthy := err == nil
	profiler.RecordHealthCheck(context.Background(), check.Model, isHealthy)
	log.Printf("Health check for %s: Healthy = %v", check.Model, isHealthy)
}

// runServerWithGracefulShutdown serves until ctx is canceled by a signal.
func runServerWithGracefulShutdown(ctx context.Context, srv *http.Server) {
	go func() {
		log.Printf("👂 Agent service is listening on http://localhost%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Listen error: %s\n", err)
		}
	}()

	<-ctx.Done()

	log.Println("🛑 Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("❌ Server shutdown failed:", err)
	}

	log.Println("👋 Server exited gracefully.")
}
