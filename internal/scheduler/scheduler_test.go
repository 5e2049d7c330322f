package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"zipfuzz/internal/mutate"
	"zipfuzz/internal/oracle"
	"zipfuzz/internal/stats"
	"zipfuzz/internal/zipmodel"
	"zipfuzz/pkg/telemetry"
)

type fakeOracle struct {
	verdict oracle.Verdict
	calls   int
}

func (f *fakeOracle) Evaluate(ctx context.Context, iteration int, candidate []byte) (oracle.Verdict, *oracle.Diagnostics) {
	f.calls++
	return f.verdict, &oracle.Diagnostics{ExitCode: 2}
}

type fakeArchiver struct {
	archived int
}

func (f *fakeArchiver) Archive(iteration int, candidate []byte, diag *oracle.Diagnostics) {
	f.archived++
}

func newTestScheduler(t *testing.T, budget int, o Oracle, a Archiver) (*Scheduler, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)

	seed, err := zipmodel.SynthesizeSeed()
	require.NoError(t, err)

	reporter := stats.NewReporter(stats.ReporterParams{Logger: logger, RunID: "test-run"})
	s := newScheduler(seed, mutate.NewEngine(logger), o, a,
		reporter, telemetry.Noop(), logger, budget, "test-run")
	return s, logs
}

func TestZeroBudgetStillEmitsFinalStats(t *testing.T) {
	o := &fakeOracle{verdict: oracle.Benign}
	a := &fakeArchiver{}
	s, logs := newTestScheduler(t, 0, o, a)

	s.start(context.Background())
	s.Wait()

	assert.Equal(t, StoppedCompleted, s.State())
	assert.Zero(t, o.calls)
	assert.Zero(t, a.archived)

	progress := logs.FilterMessage("progress").All()
	require.NotEmpty(t, progress)
	assert.Equal(t, int64(0), progress[0].ContextMap()["iterations"])
}

func TestBenignRunCompletesBudget(t *testing.T) {
	o := &fakeOracle{verdict: oracle.Benign}
	a := &fakeArchiver{}
	s, _ := newTestScheduler(t, 250, o, a)

	s.start(context.Background())

	assert.Equal(t, StoppedCompleted, s.State())
	assert.Equal(t, 250, o.calls)
	assert.Equal(t, 250, s.stats.Iterations())
	assert.Zero(t, a.archived)
}

func TestEarlyStopAtCrashLimit(t *testing.T) {
	o := &fakeOracle{verdict: oracle.CrashLike}
	a := &fakeArchiver{}
	s, _ := newTestScheduler(t, 10000, o, a)

	s.start(context.Background())

	assert.Equal(t, StoppedEarlyLimit, s.State())
	assert.Equal(t, CrashLimit, a.archived, "must archive exactly the crash limit, never more")
	assert.Equal(t, CrashLimit, s.stats.Crashes())
	assert.Equal(t, CrashLimit, s.stats.Iterations())
}

func TestInterruptionFlushesFinalStats(t *testing.T) {
	o := &fakeOracle{verdict: oracle.Benign}
	a := &fakeArchiver{}
	s, logs := newTestScheduler(t, 1000, o, a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.start(ctx)

	assert.Equal(t, StoppedInterrupted, s.State())
	assert.Zero(t, o.calls)
	assert.NotEmpty(t, logs.FilterMessage("progress").All())
	assert.NotEmpty(t, logs.FilterMessage("fuzzing completed").All())
}

func TestStatsEmittedOnEveryCrash(t *testing.T) {
	o := &fakeOracle{verdict: oracle.CrashLike}
	a := &fakeArchiver{}
	s, logs := newTestScheduler(t, 3, o, a)

	// budget below the crash limit: every iteration crashes and reports
	s.start(context.Background())

	assert.Equal(t, StoppedCompleted, s.State())
	// three per-crash emissions plus the final one
	assert.Len(t, logs.FilterMessage("progress").All(), 4)
}
