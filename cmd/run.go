// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"grimm.is/tinmark/internal/api"
	"grimm.is/tinmark/internal/brand"
	"grimm.is/tinmark/internal/classify"
	"grimm.is/tinmark/internal/config"
	"grimm.is/tinmark/internal/conntrack"
	"grimm.is/tinmark/internal/dataplane"
	"grimm.is/tinmark/internal/firewall"
	"grimm.is/tinmark/internal/install"
	"grimm.is/tinmark/internal/logging"
	"grimm.is/tinmark/internal/metrics"
	"grimm.is/tinmark/internal/shaper"
)

// statsInterval is how often kernel counters are polled into gauges.
const statsInterval = 10 * time.Second

// RunDaemon runs the classifier in the foreground until SIGINT/SIGTERM.
func RunDaemon(configFile string) error {
	if configFile == "" {
		configFile = install.DefaultConfigPath()
	}
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := buildLogger(cfg)
	logger.Info("starting", "version", Version, "config", configFile, "wan", cfg.WANInterface)

	rules, err := classify.CompileRules(cfg.Rules)
	if err != nil {
		// Validate already compiled these; a failure here is a bug.
		return err
	}

	store, err := conntrack.NewStore(logger)
	if err != nil {
		return fmt.Errorf("conntrack: %w", err)
	}
	defer store.Close()

	m := metrics.NewMetrics()
	m.Register()

	engine := classify.NewEngine(rules, cfg.Thresholds(), store,
		classify.Restorer{Wash: cfg.Restore.Wash}, cfg.LocalPrefixes(), logger, m)

	// Kernel plumbing: qdisc hierarchy first, then the ruleset that
	// starts diverting packets. The queue rules use bypass, so traffic
	// keeps flowing between Apply and the readers coming up.
	shaperMgr := shaper.NewManager(logger)
	if cfg.Shaper.Enabled {
		if err := shaperMgr.Apply(shaper.Config{Interface: cfg.WANInterface, UploadKbit: cfg.UploadKbit}); err != nil {
			return fmt.Errorf("shaper: %w", err)
		}
		defer shaperMgr.Clear(cfg.WANInterface)
	}

	fwMgr := firewall.NewManager(logger)
	if err := fwMgr.Apply(firewall.QueueRules{
		WANInterface: cfg.WANInterface,
		EgressQueue:  cfg.Queue.Egress,
		IngressQueue: cfg.Queue.Ingress,
	}); err != nil {
		return fmt.Errorf("firewall: %w", err)
	}
	defer fwMgr.Teardown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	egress := dataplane.NewQueueReader(uint16(cfg.Queue.Egress), dataplane.Egress, engine, logger)
	if err := egress.Start(ctx); err != nil {
		return err
	}
	defer egress.Stop()

	ingress := dataplane.NewQueueReader(uint16(cfg.Queue.Ingress), dataplane.Ingress, engine, logger)
	if err := ingress.Start(ctx); err != nil {
		return err
	}
	defer ingress.Stop()

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(api.ServerOptions{
			Listen: cfg.API.Listen,
			Flows:  store,
			Status: statusFunc(cfg, egress, ingress, shaperMgr),
			Logger: logger,
		})
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("api server failed", "error", err)
			}
		}()
	}

	pidFile, err := writePIDFile()
	if err != nil {
		return err
	}
	defer os.Remove(pidFile)

	go pollStats(ctx, m, fwMgr, shaperMgr, cfg, logger)

	logger.Info("running",
		"egress_queue", cfg.Queue.Egress, "ingress_queue", cfg.Queue.Ingress,
		"rules", len(cfg.Rules))

	<-ctx.Done()
	logger.Info("shutting down")

	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		apiServer.Shutdown(shutdownCtx)
	}
	return nil
}

func buildLogger(cfg *config.Config) *logging.Logger {
	lc := logging.DefaultConfig()
	if cfg.LogLevel != "" {
		lc.Level = logging.ParseLevel(cfg.LogLevel)
	}
	if cfg.Syslog != nil && cfg.Syslog.Enabled {
		if w, err := logging.NewSyslogWriter(*cfg.Syslog); err == nil {
			lc.Output = io.MultiWriter(os.Stderr, w)
		}
	}
	return logging.New(lc)
}

func statusFunc(cfg *config.Config, egress, ingress *dataplane.QueueReader, shaperMgr *shaper.Manager) api.StatusFunc {
	started := time.Now()
	return func() any {
		doc := map[string]any{
			"status":         "running",
			"uptime_seconds": int(time.Since(started).Seconds()),
			"wan":            cfg.WANInterface,
			"upload_kbit":    cfg.UploadKbit,
			"download_kbit":  cfg.DownloadKbit,
			"egress":         egress.Stats(),
			"ingress":        ingress.Stats(),
		}
		if tins, err := shaperMgr.Stats(cfg.WANInterface); err == nil {
			doc["tins"] = tins
		}
		return doc
	}
}

// pollStats copies kernel-side counters into Prometheus gauges.
func pollStats(ctx context.Context, m *metrics.Metrics, fwMgr *firewall.Manager,
	shaperMgr *shaper.Manager, cfg *config.Config, logger *logging.Logger) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if counters, err := fwMgr.ReadCounters(); err == nil {
			for chain, cc := range counters {
				m.SetQueuedPackets(chain, cc.Packets)
			}
		}
		if tins, err := shaperMgr.Stats(cfg.WANInterface); err == nil {
			for _, ts := range tins {
				m.SetTinStats(ts.Tin, ts.Bytes, ts.Drops)
			}
		}
	}
}

func writePIDFile() (string, error) {
	runDir := install.GetRunDir()
	pidFile := filepath.Join(runDir, brand.LowerName+".pid")
	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write PID file: %w", err)
	}
	return pidFile, nil
}
