// Package stats tracks process-lifetime run counters and reports them
// periodically, optionally mirroring each emission to redis.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"zipfuzz/internal/types"
)

type Reporter struct {
	logger      *zap.Logger
	redisClient *redis.Client
	runID       types.RunID

	iterations int
	crashes    int
	startTime  time.Time
}

type ReporterParams struct {
	fx.In
	Logger      *zap.Logger
	RedisClient *redis.Client `optional:"true"`
	RunID       types.RunID
}

func NewReporter(p ReporterParams) *Reporter {
	return &Reporter{
		logger:      p.Logger.With(zap.String("run_id", string(p.RunID))),
		redisClient: p.RedisClient,
		runID:       p.RunID,
	}
}

// Start resets the counters and begins the elapsed clock.
func (r *Reporter) Start() {
	r.iterations = 0
	r.crashes = 0
	r.startTime = time.Now()
}

func (r *Reporter) RecordIteration() { r.iterations++ }
func (r *Reporter) RecordCrash()     { r.crashes++ }

func (r *Reporter) Iterations() int { return r.iterations }
func (r *Reporter) Crashes() int    { return r.crashes }

// Emit logs the aggregate progress line and mirrors it to redis when
// configured.
func (r *Reporter) Emit(ctx context.Context) {
	elapsed := time.Since(r.startTime)
	rate := 0.0
	if elapsed > 0 {
		rate = float64(r.iterations) / elapsed.Seconds()
	}

	r.logger.Info("progress",
		zap.Int("iterations", r.iterations),
		zap.Int("crashes", r.crashes),
		zap.String("rate", fmt.Sprintf("%.1f iter/sec", rate)),
		zap.Duration("elapsed", elapsed.Round(100*time.Millisecond)))

	r.mirror(ctx, rate, elapsed)
}

// EmitFinal always runs, whatever way the run ended.
func (r *Reporter) EmitFinal(ctx context.Context) {
	r.Emit(ctx)
	r.logger.Info("fuzzing completed", zap.Int("total_crashes", r.crashes))
}

func (r *Reporter) mirror(ctx context.Context, rate float64, elapsed time.Duration) {
	if r.redisClient == nil {
		return
	}
	key := fmt.Sprintf("zipfuzz:stats:%s", r.runID)
	err := r.redisClient.HSet(ctx, key,
		"iterations", r.iterations,
		"crashes", r.crashes,
		"rate", fmt.Sprintf("%.1f", rate),
		"elapsed_seconds", fmt.Sprintf("%.1f", elapsed.Seconds()),
	).Err()
	if err != nil {
		r.logger.Warn("failed to mirror stats to redis", zap.Error(err))
	}
}
