// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"fmt"

	"grimm.is/tinmark/internal/classify"
	"grimm.is/tinmark/internal/config"
	"grimm.is/tinmark/internal/install"
)

// exampleConfig is printed by `check --example` as a starting point.
const exampleConfig = `schema_version = "1.0"

wan_interface = "eth0"
upload_kbit   = 10000
download_kbit = 50000

rule "voip-phone" {
  hosts = ["192.168.1.50"]
  proto = "udp"
  dscp  = "EF"
}

rule "ssh" {
  ports = [22]
  dscp  = "CS4"
}

rule "backups" {
  hosts = ["192.168.1.200"]
  dscp  = "CS1"
}
`

// RunCheck validates a config file and prints a summary.
func RunCheck(configFile string, example bool) error {
	if example {
		Printer.Printf("%s", exampleConfig)
		return nil
	}

	if configFile == "" {
		configFile = install.DefaultConfigPath()
	}
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	th := cfg.Thresholds()
	Printer.Printf("Configuration OK: %s\n", configFile)
	Printer.Printf("  WAN interface: %s (%d/%d kbit up/down)\n",
		cfg.WANInterface, cfg.UploadKbit, cfg.DownloadKbit)
	Printer.Printf("  Demotion thresholds: %d bytes up, %d bytes down\n",
		th.UploadBytes, th.DownloadBytes)
	Printer.Printf("  Queues: egress %d, ingress %d\n", cfg.Queue.Egress, cfg.Queue.Ingress)
	Printer.Printf("  Rules (%d, first match wins):\n", len(cfg.Rules))
	for _, r := range cfg.Rules {
		dscp, _ := classify.ParseDSCP(r.DSCP)
		Printer.Printf("    %-16s -> %s (%s tin)\n", r.Name, r.DSCP, dscp.Tin())
	}
	if len(cfg.Rules) == 0 {
		Printer.Println("    (none; all traffic starts best-effort)")
	}
	return nil
}
