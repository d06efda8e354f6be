// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// AtomicApplier validates and applies nftables scripts through the nft
// binary. `nft -f` loads the whole script in one transaction, so a
// failed apply leaves the running ruleset unchanged.
type AtomicApplier struct {
	nftPath string
}

// NewAtomicApplier creates an applier using nft from PATH.
func NewAtomicApplier() *AtomicApplier {
	return &AtomicApplier{nftPath: "nft"}
}

// ValidateScript runs the script through `nft -c` without applying it.
func (a *AtomicApplier) ValidateScript(script string) error {
	return a.run(script, "-c", "-f")
}

// ApplyScript applies the script atomically.
func (a *AtomicApplier) ApplyScript(script string) error {
	return a.run(script, "-f")
}

func (a *AtomicApplier) run(script string, args ...string) error {
	f, err := os.CreateTemp("", "tinmark-nft-*.conf")
	if err != nil {
		return fmt.Errorf("failed to create temp script: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return fmt.Errorf("failed to write script: %w", err)
	}
	f.Close()

	cmd := exec.Command(a.nftPath, append(args, f.Name())...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("nft %v failed: %w: %s", args, err, string(out))
	}
	return nil
}

// DeleteTable removes a table and everything in it. Missing tables are
// not an error: teardown must be idempotent.
func (a *AtomicApplier) DeleteTable(family, name string) error {
	cmd := exec.Command(a.nftPath, "delete", "table", family, name)
	out, err := cmd.CombinedOutput()
	if err != nil {
		// "No such file or directory" from nft means the table is gone
		if strings.Contains(string(out), "No such file or directory") ||
			strings.Contains(string(out), "does not exist") {
			return nil
		}
		return fmt.Errorf("nft delete table failed: %w: %s", err, string(out))
	}
	return nil
}
