// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"grimm.is/tinmark/internal/brand"
	"grimm.is/tinmark/internal/config"
	"grimm.is/tinmark/internal/install"
)

// RunStart starts the daemon in the background.
func RunStart(configFile string) error {
	if configFile == "" {
		configFile = install.DefaultConfigPath()
	}

	// Pre-flight: fail here with a readable error instead of in the
	// detached child.
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		return fmt.Errorf("configuration file not found: %s\n\n"+
			"Create a minimal config:\n"+
			"  mkdir -p %s\n"+
			"  %s check --example > %s",
			configFile, install.DefaultConfigDir, brand.BinaryName,
			filepath.Join(install.DefaultConfigDir, brand.ConfigFileName))
	}
	if _, err := config.LoadFile(configFile); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	runDir := install.GetRunDir()
	pidFile := filepath.Join(runDir, brand.LowerName+".pid")

	if data, err := os.ReadFile(pidFile); err == nil {
		if pid, err := strconv.Atoi(string(data)); err == nil {
			if proc, err := os.FindProcess(pid); err == nil {
				if proc.Signal(syscall.Signal(0)) == nil {
					return fmt.Errorf("process already running (PID: %d)", pid)
				}
			}
		}
		Printer.Printf("Warning: removing stale PID file %s\n", pidFile)
		os.Remove(pidFile)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	logDir := install.DefaultLogDir
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logF, err := os.OpenFile(filepath.Join(logDir, brand.LowerName+".log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer logF.Close()

	child := exec.Command(exe, "run", "-config", configFile)
	child.Stdout = logF
	child.Stderr = logF
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := child.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	// Wait briefly for the child to write its PID file so an immediate
	// startup failure is reported here.
	for i := 0; i < 30; i++ {
		if _, err := os.Stat(pidFile); err == nil {
			Printer.Printf("%s started (PID: %d)\n", brand.Name, child.Process.Pid)
			return nil
		}
		if child.ProcessState != nil && child.ProcessState.Exited() {
			return fmt.Errorf("daemon exited during startup, check %s", filepath.Join(logDir, brand.LowerName+".log"))
		}
		time.Sleep(100 * time.Millisecond)
	}

	Printer.Printf("%s starting (PID: %d), no PID file yet\n", brand.Name, child.Process.Pid)
	return nil
}
