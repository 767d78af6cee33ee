package scheduler

import (
	"fmt"
	"strings"
	"time"

	"warden/internal/config"
	"warden/internal/discovery"
	"warden/internal/registry"
	"warden/internal/schedule"
	"warden/internal/timerbank"
	logx "warden/pkg/logx"
)

// buildJob collapses one raw job config into a registry record: timing
// resolved to a descriptor, bare names resolved to job files, per-job
// overrides applied over scheduler-wide defaults.
func (s *Scheduler) buildJob(cfg config.JobConfig, bare bool) (*registry.Job, error) {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, fmt.Errorf("job has no name")
	}

	raw, err := cfg.Timing()
	if err != nil {
		return nil, err
	}
	desc, err := schedule.Resolve(raw, schedule.Defaults{
		Location:   s.opts.Location,
		HasSeconds: s.opts.HasSeconds,
		Cron:       s.opts.Cron,
		Timeout:    s.opts.DefaultTimeout,
		Interval:   s.opts.DefaultInterval,
	})
	if err != nil {
		return nil, err
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" && bare {
		// A bare name is a promise that a job file exists in the root.
		path, err = discovery.Resolve(s.opts.Root, name, s.opts.AcceptedExtensions)
		if err != nil {
			return nil, err
		}
	}

	closeAfter := s.opts.CloseWorkerAfter
	if cfg.CloseWorkerAfterMs != nil {
		if *cfg.CloseWorkerAfterMs < 0 {
			return nil, fmt.Errorf("closeWorkerAfterMs must be >= 0")
		}
		closeAfter = time.Duration(*cfg.CloseWorkerAfterMs) * time.Millisecond
	}
	removeCompleted := s.opts.RemoveCompleted
	if cfg.RemoveCompleted != nil {
		removeCompleted = *cfg.RemoveCompleted
	}

	return &registry.Job{
		Name:             name,
		Path:             path,
		Timing:           desc,
		WorkerData:       cfg.WorkerData,
		CloseWorkerAfter: closeAfter,
		RunImmediately:   cfg.RunImmediately,
		RemoveCompleted:  removeCompleted,
	}, nil
}

// Add registers a new job. A duplicate name fails. The job is not
// started; call Start(name) to arm it.
func (s *Scheduler) Add(cfg config.JobConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, err := s.buildJob(cfg, false)
	if err != nil {
		return fmt.Errorf("add job %q: %w", cfg.Name, err)
	}
	if err := s.reg.Add(job); err != nil {
		return err
	}
	s.states[job.Name] = Idle
	s.log.Debug("job added", logx.String("job", job.Name), logx.String("timing", job.Timing.String()))
	return nil
}

// Remove detaches a job. Its timers are cancelled; an active worker, if
// any, keeps running until it exits or is stopped explicitly. Removing an
// unknown name fails.
func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reg.Remove(name); err != nil {
		return err
	}
	s.bank.CancelJob(name)
	delete(s.states, name)
	s.log.Debug("job removed", logx.String("job", name))
	return nil
}

// watchAdd registers a job file that appeared in the root while watch
// mode is on, and arms it if the scheduler is running.
func (s *Scheduler) watchAdd(name, path string) {
	cfg := config.JobConfig{Name: name, Path: path}
	if s.opts.DefaultInterval > 0 {
		cfg.Interval = &config.TimingValue{Value: schedule.UseDefault()}
	}
	if err := s.Add(cfg); err != nil {
		s.log.Warn("watch: add failed", logx.String("job", name), logx.Err(err))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		if j, ok := s.reg.Get(name); ok {
			s.startLocked(j)
		}
	}
}

// watchRemove drops a job whose file disappeared from the root.
func (s *Scheduler) watchRemove(name string) {
	if err := s.Remove(name); err != nil {
		s.log.Debug("watch: remove skipped", logx.String("job", name), logx.Err(err))
	}
}

// armedLocked reports whether any timer is live for the job.
func (s *Scheduler) armedLocked(name string) bool {
	if _, ok := s.bank.Active(name, timerbank.Startup); ok {
		return true
	}
	_, ok := s.bank.Active(name, timerbank.Repeat)
	return ok
}
