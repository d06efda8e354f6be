// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"strings"
	"testing"
)

func TestQueueScriptGeneration(t *testing.T) {
	sb, err := BuildQueueScript(QueueRules{
		WANInterface: "eth0",
		EgressQueue:  210,
		IngressQueue: 211,
	})
	if err != nil {
		t.Fatalf("BuildQueueScript error: %v", err)
	}
	script := sb.Build()

	if !strings.Contains(script, "add table inet tinmark") {
		t.Errorf("table definition missing. Got:\n%s", script)
	}
	if !strings.Contains(script, "type filter hook postrouting priority -150") {
		t.Errorf("egress chain missing. Got:\n%s", script)
	}
	if !strings.Contains(script, "oifname eth0 meta l4proto { tcp, udp } counter queue num 210 bypass") {
		t.Errorf("egress queue rule missing. Got:\n%s", script)
	}
	if !strings.Contains(script, "iifname eth0 meta l4proto { tcp, udp } counter queue num 211 bypass") {
		t.Errorf("ingress queue rule missing. Got:\n%s", script)
	}
}

func TestQueueScriptFlushesBeforeRules(t *testing.T) {
	sb, err := BuildQueueScript(QueueRules{WANInterface: "wan0", EgressQueue: 1, IngressQueue: 2})
	if err != nil {
		t.Fatal(err)
	}
	script := sb.Build()

	flushIdx := strings.Index(script, "flush chain inet tinmark egress")
	ruleIdx := strings.Index(script, "add rule inet tinmark egress")
	if flushIdx == -1 || ruleIdx == -1 {
		t.Fatalf("expected flush and rule lines. Got:\n%s", script)
	}
	if flushIdx > ruleIdx {
		t.Error("chains must be flushed before rules are re-added")
	}
}

func TestQueueScriptRejectsBadInterface(t *testing.T) {
	_, err := BuildQueueScript(QueueRules{WANInterface: `eth0"; drop table`, EgressQueue: 1, IngressQueue: 2})
	if err == nil {
		t.Error("expected invalid interface name to be rejected")
	}

	_, err = BuildQueueScript(QueueRules{EgressQueue: 1, IngressQueue: 2})
	if err == nil {
		t.Error("expected missing interface name to be rejected")
	}
}
