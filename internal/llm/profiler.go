// In file: internal/llm/profiler.go
package llm

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dileep-u-k/llm-agent/internal/api"
	"github.com/dileep-u-k/llm-agent/internal/errorsx"
)

// Model status values kept in a profile.
const (
	StatusOnline   = "online"
	StatusDegraded = "degraded"
	StatusOffline  = "offline"
)

// ModelProfile tracks the observed latency, usage and reliability of a model
// across agent runs.
type ModelProfile struct {
	ModelID           string    `json:"model_id" redis:"model_id"`
	AvgLatencyMS      int64     `json:"avg_latency_ms" redis:"avg_latency_ms"`
	Status            string    `json:"status" redis:"status"`
	ErrorRate         float64   `json:"error_rate" redis:"error_rate"`
	TotalSuccesses    int64     `json:"total_successes" redis:"total_successes"`
	TotalFailures     int64     `json:"total_failures" redis:"total_failures"`
	TotalInputTokens  int64     `json:"total_input_tokens" redis:"total_input_tokens"`
	TotalOutputTokens int64     `json:"total_output_tokens" redis:"total_output_tokens"`
	LastErrorKind     string    `json:"last_error_kind,omitempty" redis:"last_error_kind"`
	LastHealthCheck   time.Time `json:"last_health_check" redis:"last_health_check"`
	TokensToday       int64     `json:"tokens_today"`
}

// Profiler persists model profiles in Redis. A nil *Profiler is valid and
// records nothing, which is how profiling is disabled.
type Profiler struct {
	rdb *redis.Client
}

func NewProfiler(rdb *redis.Client) *Profiler {
	if rdb == nil {
		return nil
	}
	return &Profiler{rdb: rdb}
}

func profileKey(modelID string) string {
	return fmt.Sprintf("profile:%s", modelID)
}

func dailyTokensKey(modelID string, day time.Time) string {
	return fmt.Sprintf("tokens:%s:%s", modelID, day.Format("2006-01-02"))
}

// GetProfile retrieves a model's profile, creating a default one if it doesn't exist.
func (p *Profiler) GetProfile(ctx context.Context, modelID string) (*ModelProfile, error) {
	if p == nil {
		return nil, fmt.Errorf("model profiling is disabled")
	}
	profileData, err := p.rdb.HGetAll(ctx, profileKey(modelID)).Result()
	if err != nil {
		return nil, err
	}
	if len(profileData) == 0 {
		return p.createDefaultProfile(ctx, modelID)
	}

	profile := parseProfile(modelID, profileData)
	profile.TokensToday, _ = p.rdb.Get(ctx, dailyTokensKey(modelID, time.Now())).Int64()
	return profile, nil
}

// parseProfile decodes the hash fields written by the record methods.
func parseProfile(modelID string, data map[string]string) *ModelProfile {
	profile := &ModelProfile{ModelID: modelID}
	profile.AvgLatencyMS, _ = strconv.ParseInt(data["avg_latency_ms"], 10, 64)
	profile.Status = data["status"]
	profile.ErrorRate, _ = strconv.ParseFloat(data["error_rate"], 64)
	profile.TotalSuccesses, _ = strconv.ParseInt(data["total_successes"], 10, 64)
	profile.TotalFailures, _ = strconv.ParseInt(data["total_failures"], 10, 64)
	profile.TotalInputTokens, _ = strconv.ParseInt(data["total_input_tokens"], 10, 64)
	profile.TotalOutputTokens, _ = strconv.ParseInt(data["total_output_tokens"], 10, 64)
	profile.LastErrorKind = data["last_error_kind"]
	profile.LastHealthCheck, _ = time.Parse(time.RFC3339Nano, data["last_health_check"])
	if profile.Status == "" {
		profile.Status = StatusOnline
	}
	return profile
}

func (p *Profiler) createDefaultProfile(ctx context.Context, modelID string) (*ModelProfile, error) {
	profile := &ModelProfile{
		ModelID:         modelID,
		Status:          StatusOnline,
		LastHealthCheck: time.Now(),
	}

	key := profileKey(modelID)
	_, err := p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "model_id", profile.ModelID)
		pipe.HSetNX(ctx, key, "status", profile.Status)
		pipe.HSetNX(ctx, key, "last_health_check", profile.LastHealthCheck.Format(time.RFC3339Nano))
		return nil
	})
	if err == nil {
		log.Printf("Created new profile for %s", modelID)
	}
	return profile, err
}

// errorRate is failures over all recorded outcomes.
func errorRate(successes, failures int64) float64 {
	total := successes + failures
	if total <= 0 {
		return 0
	}
	return float64(failures) / float64(total)
}

// movingAverage folds a new latency sample into the running average.
func movingAverage(current, sample int64) int64 {
	const alpha = 0.1
	if current == 0 {
		return sample
	}
	return int64(alpha*float64(sample) + (1.0-alpha)*float64(current))
}

// RecordSuccess folds one successful run into the model's profile.
func (p *Profiler) RecordSuccess(ctx context.Context, modelID string, latency time.Duration, usage api.Usage) {
	if p == nil {
		return
	}
	key := profileKey(modelID)

	err := p.rdb.Watch(ctx, func(tx *redis.Tx) error {
		currentLatencyStr, err := tx.HGet(ctx, key, "avg_latency_ms").Result()
		if err != nil && err != redis.Nil {
			return err
		}
		currentLatency, _ := strconv.ParseInt(currentLatencyStr, 10, 64)
		newLatency := movingAverage(currentLatency, latency.Milliseconds())
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "avg_latency_ms", newLatency)
			return nil
		})
		return err
	}, key)
	if err != nil {
		log.Printf("Error updating latency for %s: %v", modelID, err)
	}

	dayKey := dailyTokensKey(modelID, time.Now())
	pipe := p.rdb.Pipeline()
	successes := pipe.HIncrBy(ctx, key, "total_successes", 1)
	failures := pipe.HGet(ctx, key, "total_failures")
	pipe.HIncrBy(ctx, key, "total_input_tokens", int64(usage.PromptTokens))
	pipe.HIncrBy(ctx, key, "total_output_tokens", int64(usage.CompletionTokens))
	pipe.HSet(ctx, key, "model_id", modelID, "status", StatusOnline)
	pipe.IncrBy(ctx, dayKey, int64(usage.TotalTokens))
	pipe.Expire(ctx, dayKey, 48*time.Hour)

	// HGet on a missing field reports redis.Nil for the whole pipeline.
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		log.Printf("Error in success update pipeline for %s: %v", modelID, err)
		return
	}

	totalFailures, _ := strconv.ParseInt(failures.Val(), 10, 64)
	p.rdb.HSet(ctx, key, "error_rate", errorRate(successes.Val(), totalFailures))
}

// RecordFailure folds one failed run into the model's profile. Only
// model-side kinds mark the model degraded; a run that ended on its
// iteration limit says nothing about the model's health.
func (p *Profiler) RecordFailure(ctx context.Context, modelID string, kind errorsx.Kind) {
	if p == nil {
		return
	}
	key := profileKey(modelID)
	pipe := p.rdb.Pipeline()
	failures := pipe.HIncrBy(ctx, key, "total_failures", 1)
	successes := pipe.HGet(ctx, key, "total_successes")
	pipe.HSet(ctx, key, "model_id", modelID, "last_error_kind", string(kind))
	if kind == errorsx.KindModelUnavailable || kind == errorsx.KindRateLimited {
		pipe.HSet(ctx, key, "status", StatusDegraded)
	}

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		log.Printf("Error in failure update pipeline for %s: %v", modelID, err)
		return
	}

	totalSuccesses, _ := strconv.ParseInt(successes.Val(), 10, 64)
	p.rdb.HSet(ctx, key, "error_rate", errorRate(totalSuccesses, failures.Val()))
}

// RecordHealthCheck updates status based on a proactive health check. It makes sure
// a full profile exists first so the check never leaves a partial one.
func (p *Profiler) RecordHealthCheck(ctx context.Context, modelID string, isHealthy bool) {
	if p == nil {
		return
	}
	if _, err := p.GetProfile(ctx, modelID); err != nil {
		log.Printf("Error ensuring profile exists during health check for %s: %v", modelID, err)
	}

	status := StatusOffline
	if isHealthy {
		status = StatusOnline
	}
	err := p.rdb.HSet(ctx, profileKey(modelID),
		"status", status,
		"last_health_check", time.Now().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		log.Printf("Error updating health check for %s: %v", modelID, err)
	}
}
