// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"fmt"

	"grimm.is/tinmark/internal/brand"
	"grimm.is/tinmark/internal/errors"
)

// QueueRules are the parameters of the classifier ruleset.
type QueueRules struct {
	WANInterface string
	EgressQueue  int
	IngressQueue int
}

// BuildQueueScript builds the mangle-stage ruleset that diverts WAN
// TCP/UDP traffic into the classifier's two NFQUEUEs. Both rules use
// queue bypass: if the daemon is not listening, packets flow through
// unclassified instead of being dropped.
func BuildQueueScript(qr QueueRules) (*ScriptBuilder, error) {
	if qr.WANInterface == "" {
		return nil, errors.New(errors.KindValidation, "wan interface is required")
	}
	if !identifierRegex.MatchString(qr.WANInterface) {
		return nil, errors.Errorf(errors.KindValidation, "invalid interface name %q", qr.WANInterface)
	}

	sb := NewScriptBuilder(brand.LowerName, "inet")
	sb.AddTable()

	// mangle priority (-150): runs before nat and filter stages, and
	// after conntrack has associated the packet with its flow, so the
	// classifier sees valid ct marks and byte counters.
	sb.AddChain("egress", "filter", "postrouting", -150, "accept")
	sb.AddChain("ingress", "filter", "prerouting", -150, "accept")

	sb.AddRule("egress",
		fmt.Sprintf(`oifname %s meta l4proto { tcp, udp } counter queue num %d bypass`,
			quote(qr.WANInterface), qr.EgressQueue),
		"classify and stamp outbound traffic")
	sb.AddRule("ingress",
		fmt.Sprintf(`iifname %s meta l4proto { tcp, udp } counter queue num %d bypass`,
			quote(qr.WANInterface), qr.IngressQueue),
		"restore tin mark on inbound traffic")

	return sb, nil
}
