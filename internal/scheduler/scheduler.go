package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"warden/internal/config"
	"warden/internal/discovery"
	"warden/internal/eventbus"
	"warden/internal/registry"
	"warden/internal/schedule"
	"warden/internal/storage"
	"warden/internal/timerbank"
	"warden/internal/workers"
	logx "warden/pkg/logx"
)

// State is a job's position in its lifecycle.
type State int

const (
	// Idle: registered, no timers armed, no worker.
	Idle State = iota
	// Scheduled: timers armed (or eligible), waiting to fire.
	Scheduled
	// Running: a worker is active.
	Running
	// Terminated: a one-shot schedule has fired and completed. Absorbing
	// unless the job is removed and re-added.
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Scheduler supervises named jobs: scheduling, worker lifecycle, events.
type Scheduler struct {
	mu   sync.Mutex
	opts config.Options

	log    logx.Logger
	logSvc *logx.Service

	bus   eventbus.Bus
	reg   *registry.Registry
	bank  *timerbank.Bank
	sup   *workers.Supervisor
	store storage.Store

	watcher *discovery.Watcher

	states   map[string]State
	runStart map[string]time.Time
	running  bool
}

// Option customizes construction.
type Option func(*builder)

type builder struct {
	runner workers.Runner
	log    *logx.Logger
	logSvc *logx.Service
	bus    eventbus.Bus
	store  storage.Store
}

// WithRunner injects the worker isolation strategy. Defaults to the
// subprocess runner.
func WithRunner(r workers.Runner) Option { return func(b *builder) { b.runner = r } }

// WithLogger injects a logger. The configuration's logger:false still
// wins and substitutes a no-op logger.
func WithLogger(l logx.Logger) Option { return func(b *builder) { b.log = &l } }

// WithLogService wires the log service so unobserved worker errors
// escalate through its rate-limited hook.
func WithLogService(svc *logx.Service) Option { return func(b *builder) { b.logSvc = svc } }

// WithBus injects an event bus (useful in tests).
func WithBus(bus eventbus.Bus) Option { return func(b *builder) { b.bus = bus } }

// WithStore injects a run-history store, overriding the configured one.
func WithStore(st storage.Store) Option { return func(b *builder) { b.store = st } }

// New validates opts, registers and resolves every configured job, and
// returns a constructed (not yet started) scheduler. All configuration
// and schedule validation errors surface here, never later.
func New(opts config.Options, options ...Option) (*Scheduler, error) {
	var b builder
	for _, o := range options {
		o(&b)
	}

	log := logx.NewConsole(opts.LogLevel)
	if b.log != nil {
		log = *b.log
	}
	if opts.LoggerDisabled {
		log = logx.Nop()
	}

	if len(opts.AcceptedExtensions) == 0 {
		return nil, errors.New(config.ErrAcceptedExtensions)
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Cron.Preset == "" {
		opts.Cron.Preset = schedule.DefaultPreset
	}

	bus := b.bus
	if bus == nil {
		bus = eventbus.New()
	}
	runner := b.runner
	if runner == nil {
		runner = workers.NewExecRunner()
	}

	s := &Scheduler{
		opts:     opts,
		log:      log,
		logSvc:   b.logSvc,
		bus:      bus,
		reg:      registry.New(),
		bank:     timerbank.New(),
		states:   map[string]State{},
		runStart: map[string]time.Time{},
	}

	s.sup = workers.NewSupervisor(runner, bus, log)
	s.sup.SetExitHook(s.onWorkerExit)
	if b.logSvc != nil {
		s.sup.SetEscalation(b.logSvc.Escalate)
	}

	if b.store != nil {
		s.store = b.store
	} else {
		st, err := storage.Open(storage.Config{
			Driver:      opts.HistoryDriver,
			Path:        opts.HistoryPath,
			BusyTimeout: opts.HistoryBusyTimeout,
			Keep:        opts.HistoryKeep,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("history store: %w", err)
		}
		s.store = st
	}

	if err := s.checkRoot(); err != nil {
		return nil, err
	}

	for i := range opts.Jobs {
		job, err := s.buildJob(opts.Jobs[i].JobConfig, opts.Jobs[i].BareName)
		if err != nil {
			return nil, fmt.Errorf("job #%d (%q): %w", i, opts.Jobs[i].Name, err)
		}
		if err := s.reg.Add(job); err != nil {
			return nil, fmt.Errorf("job #%d: %w", i, err)
		}
		s.states[job.Name] = Idle
	}

	return s, nil
}

// checkRoot performs the constructor-time discovery check. A
// non-directory root is fatal; an empty discovery result is the
// distinguished DiscoveryError, logged (not thrown) unless silenced.
func (s *Scheduler) checkRoot() error {
	if s.opts.Root == "" {
		return nil
	}
	if !s.opts.DoRootCheck {
		return nil
	}
	names, err := discovery.List(s.opts.Root, s.opts.AcceptedExtensions)
	if err != nil {
		return err
	}
	if len(names) == 0 && !s.opts.SilenceRootCheckError {
		s.log.Error("no discoverable jobs in root",
			logx.Code(discovery.CodeNoJobsFound),
			logx.String("root", s.opts.Root),
			logx.Err(discovery.ErrNoJobsFound))
	}
	return nil
}

// Close releases resources owned by the scheduler (history store, root
// watcher). It does not stop workers; call Stop first.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	w := s.watcher
	s.watcher = nil
	st := s.store
	s.store = nil
	s.mu.Unlock()

	var errs []error
	if w != nil {
		errs = append(errs, w.Close())
	}
	if st != nil {
		errs = append(errs, st.Close())
	}
	return errors.Join(errs...)
}
