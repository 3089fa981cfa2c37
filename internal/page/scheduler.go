package page

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultRefresh matches how often the page regenerates its weather.
const DefaultRefresh = "@every 20m"

// Scheduler runs a load cycle on a cron schedule. A tick that fires while the previous
// cycle is still running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	loader  *Loader
	timeout time.Duration
	onLoad  func(Model)
}

// NewScheduler parses schedule (standard 5-field cron or a descriptor such as "@every 20m") and
// prepares a scheduler that hands each settled Model to onLoad. timeout bounds each cycle;
// zero means no bound.
func NewScheduler(schedule string, loader *Loader, timeout time.Duration, onLoad func(Model), logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cronLogger := zapCronLogger{logger: logger.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		loader:  loader,
		timeout: timeout,
		onLoad:  onLoad,
	}
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return nil, fmt.Errorf("parse refresh schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) runOnce() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	m := s.loader.Load(ctx)
	if s.onLoad != nil {
		s.onLoad(m)
	}
}

// Start begins firing on schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running cycle to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// zapCronLogger adapts zap to cron.Logger. Cron's routine scheduling chatter goes to debug.
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw("cron: "+msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
