package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"

	"warden/internal/config"
	"warden/internal/scheduler"
	logx "warden/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./warden.yaml", "path to config file (yaml or json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	file, err := config.Load(cfgPath)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	opts, err := file.Normalize()
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}

	svc, log := logx.New(logx.Config{
		Level:   opts.LogLevel,
		Console: opts.LogConsole,
		File:    logx.FileConfig{Enabled: opts.LogFile != "", Path: opts.LogFile},
	})
	defer svc.Close()

	// Worker errors nobody subscribed to surface on the systemd status
	// line, at most one update per second.
	svc.SetEscalation(1, func(job string, err error) {
		_, _ = daemon.SdNotify(false, fmt.Sprintf("STATUS=last worker error: %s: %v", job, err))
	})

	sched, err := scheduler.New(opts, scheduler.WithLogger(log), scheduler.WithLogService(svc))
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	defer sched.Close()

	if err := sched.Start(); err != nil {
		fmt.Println("fatal start:", err)
		os.Exit(1)
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	log.Info("warden started", logx.Int("jobs", sched.Len()))

	<-ctx.Done()
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), opts.StopTimeout)
	defer stopCancel()
	if err := sched.Stop(stopCtx); err != nil {
		log.Warn("shutdown incomplete", logx.Err(err))
	}
}
