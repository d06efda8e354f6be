// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package config defines the HCL configuration surface and its
// validation. Configuration errors are detected at load time and prevent
// activation: the classifier never starts with partial rules.
package config

import (
	"net/netip"
	"time"

	"grimm.is/tinmark/internal/classify"
	"grimm.is/tinmark/internal/logging"
)

// CurrentSchemaVersion defines the current schema version of the configuration.
const CurrentSchemaVersion = "1.0"

// Config is the top-level configuration.
type Config struct {
	SchemaVersion string `hcl:"schema_version,optional" json:"schema_version,omitempty"`

	// WAN-facing interface the shaper and classifier attach to.
	WANInterface string `hcl:"wan_interface" json:"wan_interface"`

	// Shaped bandwidth in kbit/s. Both are required: the demotion
	// thresholds are derived from them.
	UploadKbit   int `hcl:"upload_kbit" json:"upload_kbit"`
	DownloadKbit int `hcl:"download_kbit" json:"download_kbit"`

	// Local subnets used to decide which endpoint originated a
	// connection. Defaults to the RFC 1918 ranges.
	LocalNetworks []string `hcl:"local_networks,optional" json:"local_networks,omitempty"`

	LogLevel string `hcl:"log_level,optional" json:"log_level,omitempty"`

	Demotion *DemotionConfig `hcl:"demotion,block" json:"demotion,omitempty"`
	Restore  *RestoreConfig  `hcl:"restore,block" json:"restore,omitempty"`
	Queue    *QueueConfig    `hcl:"queue,block" json:"queue,omitempty"`
	Shaper   *ShaperConfig   `hcl:"shaper,block" json:"shaper,omitempty"`
	API      *APIConfig      `hcl:"api,block" json:"api,omitempty"`

	// Ordered fixed classification rules; first match wins.
	Rules []classify.Rule `hcl:"rule,block" json:"rule,omitempty"`

	// Syslog remote logging
	Syslog *logging.SyslogConfig `hcl:"syslog,block" json:"syslog,omitempty"`
}

// DemotionConfig tunes the bulk-transfer heuristic. A connection that
// sustains full shaped bandwidth for the configured duration is demoted.
type DemotionConfig struct {
	UploadSeconds   int `hcl:"upload_seconds,optional" json:"upload_seconds,omitempty"`
	DownloadSeconds int `hcl:"download_seconds,optional" json:"download_seconds,omitempty"`
}

// RestoreConfig controls the mark restore path.
type RestoreConfig struct {
	// Wash stamps best effort instead of the cached tin, neutralizing
	// classification for debugging without clearing any marks.
	Wash bool `hcl:"wash,optional" json:"wash,omitempty"`
}

// QueueConfig selects the NFQUEUE numbers for the two packet paths.
type QueueConfig struct {
	Egress  int `hcl:"egress,optional" json:"egress,omitempty"`
	Ingress int `hcl:"ingress,optional" json:"ingress,omitempty"`
}

// ShaperConfig controls qdisc setup on the WAN interface.
type ShaperConfig struct {
	Enabled bool `hcl:"enabled,optional" json:"enabled"`
}

// APIConfig configures the local HTTP API.
type APIConfig struct {
	Enabled bool   `hcl:"enabled,optional" json:"enabled"`
	Listen  string `hcl:"listen,optional" json:"listen,omitempty"`
}

// Defaults
const (
	DefaultDemotionSeconds = 30
	DefaultEgressQueue     = 210
	DefaultIngressQueue    = 211
	DefaultAPIListen       = "127.0.0.1:8321"
)

var defaultLocalNetworks = []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}

// ApplyDefaults fills unset optional fields in place.
func (c *Config) ApplyDefaults() {
	if c.SchemaVersion == "" {
		c.SchemaVersion = CurrentSchemaVersion
	}
	if c.Demotion == nil {
		c.Demotion = &DemotionConfig{}
	}
	if c.Demotion.UploadSeconds == 0 {
		c.Demotion.UploadSeconds = DefaultDemotionSeconds
	}
	if c.Demotion.DownloadSeconds == 0 {
		c.Demotion.DownloadSeconds = DefaultDemotionSeconds
	}
	if c.Restore == nil {
		c.Restore = &RestoreConfig{}
	}
	if c.Queue == nil {
		c.Queue = &QueueConfig{}
	}
	if c.Queue.Egress == 0 {
		c.Queue.Egress = DefaultEgressQueue
	}
	if c.Queue.Ingress == 0 {
		c.Queue.Ingress = DefaultIngressQueue
	}
	if c.Shaper == nil {
		c.Shaper = &ShaperConfig{Enabled: true}
	}
	if c.API == nil {
		c.API = &APIConfig{Enabled: true}
	}
	if c.API.Listen == "" {
		c.API.Listen = DefaultAPIListen
	}
	if len(c.LocalNetworks) == 0 {
		c.LocalNetworks = append([]string(nil), defaultLocalNetworks...)
	}
}

// Thresholds derives the demotion byte limits from bandwidth and duration.
func (c *Config) Thresholds() classify.Thresholds {
	return classify.NewThresholds(c.UploadKbit, c.DownloadKbit,
		c.Demotion.UploadSeconds, c.Demotion.DownloadSeconds)
}

// LocalPrefixes parses the configured local subnets. Call after Validate.
func (c *Config) LocalPrefixes() []netip.Prefix {
	out := make([]netip.Prefix, 0, len(c.LocalNetworks))
	for _, n := range c.LocalNetworks {
		if p, err := netip.ParsePrefix(n); err == nil {
			out = append(out, p)
		}
	}
	return out
}

// DemotionDurations returns the per-direction durations.
func (c *Config) DemotionDurations() (up, down time.Duration) {
	return time.Duration(c.Demotion.UploadSeconds) * time.Second,
		time.Duration(c.Demotion.DownloadSeconds) * time.Second
}
