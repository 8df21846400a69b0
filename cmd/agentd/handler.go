// In file: cmd/agentd/handler.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dileep-u-k/llm-agent/internal/agent"
	"github.com/dileep-u-k/llm-agent/internal/api"
	"github.com/dileep-u-k/llm-agent/internal/config"
	"github.com/dileep-u-k/llm-agent/internal/errorsx"
	"github.com/dileep-u-k/llm-agent/internal/llm"
	"github.com/dileep-u-k/llm-agent/internal/tools"
	"github.com/dileep-u-k/llm-agent/internal/version"
)

// statusClientClosedRequest is the nginx convention for a caller that went away.
const statusClientClosedRequest = 499

// clientFactory builds the model client for one model configuration.
type clientFactory func(ctx context.Context, cfg *llm.ModelConfig) (llm.ModelClient, error)

// AgentHandler serves agent runs over HTTP. Model clients are built on first
// use and reused by later runs against the same model.
type AgentHandler struct {
	cfg       *config.Config
	profiler  *llm.Profiler
	newClient clientFactory
	// defaultTools serves every run that does not pick its own tools.
	defaultTools *tools.Registry

	mu      sync.Mutex
	clients map[string]llm.ModelClient
}

func NewAgentHandler(cfg *config.Config, profiler *llm.Profiler, newClient clientFactory) (*AgentHandler, error) {
	defaultTools, err := tools.NewBuiltinRegistry(cfg.Tools.Enabled, cfg.Tools.BuiltinConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build default tool registry: %w", err)
	}
	return &AgentHandler{
		cfg:          cfg,
		profiler:     profiler,
		newClient:    newClient,
		defaultTools: defaultTools,
		clients:      make(map[string]llm.ModelClient),
	}, nil
}

// HandleRun executes one agent run for the posted prompt.
func (h *AgentHandler) HandleRun(c *gin.Context) {
	startTime := time.Now()
	var req api.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	reg := h.defaultTools
	if len(req.Tools) > 0 {
		var err error
		if reg, err = tools.NewBuiltinRegistry(req.Tools, h.cfg.Tools.BuiltinConfig); err != nil {
			h.writeError(c, "", err)
			return
		}
	}

	modelCfg := h.cfg.ModelFor(req.Model)
	client, err := h.clientFor(c.Request.Context(), modelCfg)
	if err != nil {
		log.Printf("ERROR: could not create client for %s: %v", modelCfg.Model, err)
		h.writeError(c, "", errorsx.Wrap(err, errorsx.KindModelUnavailable))
		return
	}

	maxIterations := h.cfg.Agent.MaxIterations
	if req.MaxIterations > 0 {
		maxIterations = req.MaxIterations
	}
	runner := agent.New(client,
		agent.WithMaxIterations(maxIterations),
		agent.WithSystemPrompt(h.cfg.Agent.SystemPrompt),
		agent.WithRateLimitBackoff(h.cfg.Agent.RateLimitDelay, h.cfg.Agent.MaxRateLimitDelay),
		agent.WithProfiler(h.profiler),
	)

	ctx := c.Request.Context()
	if h.cfg.Agent.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.Agent.Timeout)
		defer cancel()
	}

	log.Printf("--- New Run (Model: %s, Tools: %v, Prompt: '%.30s...') ---", modelCfg.Model, reg.Names(), req.Prompt)
	res, err := runner.RunRegistry(ctx, req.Prompt, reg, modelCfg)
	if err != nil {
		h.writeError(c, res.RunID, err)
		return
	}

	c.JSON(http.StatusOK, api.RunResponse{
		RunID:           res.RunID,
		Content:         res.Text,
		ModelUsed:       modelCfg.Model,
		Usage:           res.Usage,
		ModelCalls:      res.ModelCalls,
		ToolInvocations: res.ToolInvocations,
		LatencyMS:       time.Since(startTime).Milliseconds(),
	})
}

// HandleProfile returns the recorded profile of a model.
func (h *AgentHandler) HandleProfile(c *gin.Context) {
	if h.profiler == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "model profiling is disabled"})
		return
	}
	profile, err := h.profiler.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *AgentHandler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"model":   h.cfg.Model.Model,
		"tools":   h.cfg.Tools.Enabled,
		"version": version.Get(),
	})
}

// clientFor returns the cached client for cfg's model, creating it if needed.
// The factory runs outside h.mu, so a slow provider never blocks runs against
// other models. When two runs race to build the same client the first one
// stored wins and the other is closed.
func (h *AgentHandler) clientFor(ctx context.Context, cfg *llm.ModelConfig) (llm.ModelClient, error) {
	key := llm.ResolveProvider(cfg) + "/" + cfg.Model
	h.mu.Lock()
	client, ok := h.clients[key]
	h.mu.Unlock()
	if ok {
		return client, nil
	}

	built, err := h.newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[key]; ok {
		if closer, ok := built.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				log.Printf("WARNING: closing duplicate client %s: %v", key, err)
			}
		}
		return client, nil
	}
	h.clients[key] = built
	return built, nil
}

// Close releases clients that hold connections.
func (h *AgentHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, client := range h.clients {
		if closer, ok := client.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				log.Printf("WARNING: closing client %s: %v", key, err)
			}
		}
	}
}

func (h *AgentHandler) writeError(c *gin.Context, runID string, err error) {
	kind := errorsx.KindOf(err)
	status := statusForError(err)
	if kind == errorsx.KindRateLimited {
		if d, ok := errorsx.RetryAfterOf(err); ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
		}
	}
	c.JSON(status, api.ErrorResponse{RunID: runID, Kind: string(kind), Message: err.Error()})
}

// statusForError maps an agent error kind to the HTTP status returned to callers.
func statusForError(err error) int {
	switch errorsx.KindOf(err) {
	case errorsx.KindUnknownTool, errorsx.KindDuplicateTool, errorsx.KindInvalidArguments:
		return http.StatusBadRequest
	case errorsx.KindRateLimited:
		return http.StatusTooManyRequests
	case errorsx.KindTokenLimitExceeded, errorsx.KindIterationLimitExceeded:
		return http.StatusUnprocessableEntity
	case errorsx.KindModelUnavailable:
		return http.StatusBadGateway
	case errorsx.KindCanceled:
		if errors.Is(err, context.DeadlineExceeded) {
			return http.StatusGatewayTimeout
		}
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
