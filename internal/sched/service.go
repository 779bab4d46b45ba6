package sched

import (
	"context"
	"sync"
	"time"

	"pantrywatch/internal/notify"
	"pantrywatch/internal/types"
	"pantrywatch/internal/window"
)

// WatchdogInterval is the fixed cadence of the missed-delivery watchdog.
const WatchdogInterval = 15 * time.Minute

// CheckRunner is the engine surface the scheduler drives.
type CheckRunner interface {
	RunCheck(ctx context.Context, r notify.Reason) error
	RunWatchdog(ctx context.Context) error
}

// Service ties the alarm registry to the engine: fired alarms dispatch check
// cycles, the watchdog re-arms itself every interval, and the morning kick
// re-arms for the next day after each fire. It satisfies the engine's
// AlarmScheduler dependency.
type Service struct {
	registry *Registry
	clock    types.Clock
	loc      *time.Location
	logger   types.Logger

	mu       sync.Mutex
	engine   CheckRunner
	ctx      context.Context
	watchdog *time.Timer
}

// NewService creates the scheduler service. Bind must be called with the
// engine before Start.
func NewService(clock types.Clock, loc *time.Location, logger types.Logger) *Service {
	s := &Service{
		clock:  clock,
		loc:    loc,
		logger: logger,
		ctx:    context.Background(),
	}
	s.registry = NewRegistry(s.dispatch, logger)
	return s
}

// Bind attaches the engine the fired alarms will drive. The registry and the
// engine reference each other, so wiring happens in two steps.
func (s *Service) Bind(engine CheckRunner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine = engine
}

// Start arms the recurring alarms: the morning kick at the next 07:00 and the
// watchdog on its fixed interval. ctx bounds every dispatched check cycle;
// cancelling it and calling Stop shuts the scheduler down.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.ScheduleMorningCheck()
	s.ScheduleWatchdog()
}

// Stop cancels all pending alarms.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.mu.Unlock()
	s.registry.Stop()
}

// Schedule arms a one-shot check alarm.
func (s *Service) Schedule(typ notify.AlarmType, path notify.Path, at time.Time) {
	s.registry.Schedule(typ, path, at)
}

// CancelResendAndSnooze clears the per-category and group retry alarms.
func (s *Service) CancelResendAndSnooze() {
	s.registry.CancelResendAndSnooze()
}

// ScheduleMorningCheck arms the daily kick at the next 07:00 local.
func (s *Service) ScheduleMorningCheck() {
	at := window.NextMorning(s.clock.Now(), s.loc)
	s.registry.Schedule(notify.AlarmDailyKick, notify.PathAuto, at)
}

// ScheduleWatchdog arms the next watchdog tick. The tick has its own slot,
// separate from any retry alarm carrying the watchdog type, so a blocked
// recovery check can never displace the watchdog itself.
func (s *Service) ScheduleWatchdog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchdog != nil {
		s.watchdog.Stop()
	}
	s.watchdog = time.AfterFunc(WatchdogInterval, s.watchdogTick)
}

func (s *Service) watchdogTick() {
	s.mu.Lock()
	engine := s.engine
	ctx := s.ctx
	s.mu.Unlock()

	if engine != nil && ctx.Err() == nil {
		if err := engine.RunWatchdog(ctx); err != nil {
			s.logger.Error("watchdog run failed", "error", err)
		}
	}
	s.ScheduleWatchdog()
}

// dispatch routes a fired alarm into the engine and re-arms the recurring
// alarms: the morning kick when it just fired, the watchdog after every
// dispatch so a crash inside a cycle never silences it for good.
func (s *Service) dispatch(typ notify.AlarmType, path notify.Path) {
	s.mu.Lock()
	engine := s.engine
	ctx := s.ctx
	s.mu.Unlock()

	if engine == nil || ctx.Err() != nil {
		return
	}

	var reason notify.Reason
	if path == notify.PathRetry {
		reason = notify.SnoozeReason(typ)
	} else {
		reason = notify.AutoReason(typ)
	}
	if err := engine.RunCheck(ctx, reason); err != nil {
		s.logger.Error("scheduled check failed", "type", string(typ), "path", path.String(), "error", err)
	}

	if typ == notify.AlarmDailyKick {
		s.ScheduleMorningCheck()
	}
	s.ScheduleWatchdog()
}
