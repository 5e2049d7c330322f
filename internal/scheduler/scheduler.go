// Package scheduler drives the fuzzing loop: mutate the seed, evaluate the
// candidate, archive crash-like results, and keep the run statistics.
package scheduler

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"zipfuzz/config"
	"zipfuzz/internal/crash"
	"zipfuzz/internal/mutate"
	"zipfuzz/internal/oracle"
	"zipfuzz/internal/stats"
	"zipfuzz/internal/types"
	"zipfuzz/internal/zipmodel"
	"zipfuzz/pkg/telemetry"
)

const (
	// CrashLimit stops the run early once this many crashes are archived,
	// to avoid redundant triage work.
	CrashLimit = 50

	// statsInterval is the iteration cadence of progress reports.
	statsInterval = 100
)

// State tracks the loop's lifecycle.
type State int

const (
	Idle State = iota
	Running
	StoppedEarlyLimit
	StoppedCompleted
	StoppedInterrupted
	StoppedError
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case StoppedEarlyLimit:
		return "stopped(early-limit)"
	case StoppedCompleted:
		return "stopped(completed)"
	case StoppedInterrupted:
		return "stopped(interrupted)"
	default:
		return "stopped(error)"
	}
}

// Oracle evaluates one candidate buffer.
type Oracle interface {
	Evaluate(ctx context.Context, iteration int, candidate []byte) (oracle.Verdict, *oracle.Diagnostics)
}

// Archiver persists one crash-like candidate.
type Archiver interface {
	Archive(iteration int, candidate []byte, diag *oracle.Diagnostics)
}

type Scheduler struct {
	seed      zipmodel.Seed
	engine    *mutate.Engine
	oracle    Oracle
	archiver  Archiver
	stats     *stats.Reporter
	telemetry telemetry.Telemetry
	logger    *zap.Logger

	budget int
	runID  types.RunID
	state  State
	done   chan struct{}

	shutdowner fx.Shutdowner
}

type SchedulerParams struct {
	fx.In

	Lc         fx.Lifecycle
	AppConfig  *config.AppConfig
	Seed       zipmodel.Seed
	Engine     *mutate.Engine
	Adapter    *oracle.Adapter
	Manager    *crash.Manager
	Stats      *stats.Reporter
	Telemetry  telemetry.Telemetry
	Logger     *zap.Logger
	RunID      types.RunID
	Shutdowner fx.Shutdowner
}

func NewScheduler(params SchedulerParams) *Scheduler {
	s := newScheduler(
		params.Seed,
		params.Engine,
		params.Adapter,
		params.Manager,
		params.Stats,
		params.Telemetry,
		params.Logger,
		params.AppConfig.Iterations,
		params.RunID,
	)
	s.shutdowner = params.Shutdowner

	runCtx, cancel := context.WithCancel(context.Background())

	params.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go s.start(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			<-s.done
			return nil
		},
	})
	return s
}

func newScheduler(seed zipmodel.Seed, engine *mutate.Engine, o Oracle, a Archiver,
	reporter *stats.Reporter, telem telemetry.Telemetry, logger *zap.Logger,
	budget int, runID types.RunID) *Scheduler {
	return &Scheduler{
		seed:      seed,
		engine:    engine,
		oracle:    o,
		archiver:  a,
		stats:     reporter,
		telemetry: telem,
		logger:    logger,
		budget:    budget,
		runID:     runID,
		state:     Idle,
		done:      make(chan struct{}),
	}
}

// State reports the loop state. Meaningful once Wait has returned.
func (s *Scheduler) State() State {
	return s.state
}

// Wait blocks until the loop has finished and final statistics are flushed.
func (s *Scheduler) Wait() {
	<-s.done
}

// start runs the whole fuzzing loop. Final statistics are emitted on every
// exit path, including interruption and internal errors.
func (s *Scheduler) start(ctx context.Context) {
	defer close(s.done)

	s.logger.Info("starting fuzzing run",
		zap.String("run_id", string(s.runID)),
		zap.Int("iterations", s.budget),
		zap.Int("seed_bytes", len(s.seed)))

	runCtx, span := s.telemetry.GetTracer().Start(ctx, "fuzzing run")
	s.state = Running
	s.stats.Start()

	defer func() {
		if r := recover(); r != nil {
			s.state = StoppedError
			s.logger.Error("fuzzing error", zap.Any("panic", r))
		}
		s.stats.EmitFinal(context.Background())
		span.SetAttributes(
			attribute.Int("fuzz.iterations", s.stats.Iterations()),
			attribute.Int("fuzz.crashes", s.stats.Crashes()),
			attribute.String("fuzz.state", s.state.String()),
		)
		span.End()
		s.logger.Info("fuzzing run finished", zap.Stringer("state", s.state))
		if s.shutdowner != nil {
			s.shutdowner.Shutdown()
		}
	}()

	s.run(runCtx)
}

func (s *Scheduler) run(ctx context.Context) {
	for i := 1; i <= s.budget; i++ {
		// interruption is honored at iteration boundaries only
		select {
		case <-ctx.Done():
			s.logger.Info("fuzzing interrupted")
			s.state = StoppedInterrupted
			return
		default:
		}

		candidate, strategy := s.engine.Mutate(s.seed)
		verdict, diag := s.oracle.Evaluate(ctx, i, candidate)
		s.stats.RecordIteration()

		crashed := verdict == oracle.CrashLike
		if crashed {
			s.stats.RecordCrash()
			s.logger.Debug("archiving crash-like candidate",
				zap.Int("iteration", i), zap.Stringer("strategy", strategy))
			s.archiver.Archive(i, candidate, diag)
		}

		if crashed || i%statsInterval == 0 {
			s.stats.Emit(ctx)
		}

		if s.stats.Crashes() >= CrashLimit {
			s.logger.Info("stopping early due to high crash count",
				zap.Int("crashes", s.stats.Crashes()))
			s.state = StoppedEarlyLimit
			return
		}
	}
	s.state = StoppedCompleted
}
