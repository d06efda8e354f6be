// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package classify

import (
	"net/netip"
	"strings"

	"grimm.is/tinmark/internal/errors"
)

// Rule is one static classification rule from the configuration.
// Order is significant: the first matching rule wins.
type Rule struct {
	Name     string   `hcl:"name,label" json:"name"`
	Hosts    []string `hcl:"hosts,optional" json:"hosts,omitempty"` // IPs or CIDRs
	Ports    []int    `hcl:"ports,optional" json:"ports,omitempty"`
	Protocol string   `hcl:"proto,optional" json:"proto,omitempty"` // tcp, udp, empty = any
	DSCP     string   `hcl:"dscp" json:"dscp"`                      // target codepoint, e.g. "ef", "cs1"
}

const (
	protoTCP = 6
	protoUDP = 17
)

// compiledRule is a Rule with its match fields resolved for the hot path.
type compiledRule struct {
	name     string
	prefixes []netip.Prefix
	ports    map[uint16]struct{}
	proto    uint8 // 0 = any
	tin      DSCP
}

// RuleSet is the compiled, immutable fixed-classification rule list.
type RuleSet struct {
	rules []compiledRule
}

// CompileRules validates and compiles the configured rules.
// Any malformed rule fails the whole set: classification must not
// activate with a partially loaded configuration.
func CompileRules(rules []Rule) (*RuleSet, error) {
	rs := &RuleSet{rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		cr := compiledRule{name: r.Name}

		tin, err := ParseDSCP(r.DSCP)
		if err != nil {
			return nil, errors.Wrapf(err, errors.KindValidation, "rule %d (%s)", i, r.Name)
		}
		cr.tin = tin

		switch strings.ToLower(r.Protocol) {
		case "":
			cr.proto = 0
		case "tcp":
			cr.proto = protoTCP
		case "udp":
			cr.proto = protoUDP
		default:
			return nil, errors.Errorf(errors.KindValidation,
				"rule %d (%s): unsupported protocol %q", i, r.Name, r.Protocol)
		}

		for _, h := range r.Hosts {
			p, err := parseHost(h)
			if err != nil {
				return nil, errors.Wrapf(err, errors.KindValidation, "rule %d (%s): host %q", i, r.Name, h)
			}
			cr.prefixes = append(cr.prefixes, p)
		}

		if len(r.Ports) > 0 {
			cr.ports = make(map[uint16]struct{}, len(r.Ports))
			for _, port := range r.Ports {
				if port < 1 || port > 65535 {
					return nil, errors.Errorf(errors.KindValidation,
						"rule %d (%s): port %d out of range", i, r.Name, port)
				}
				cr.ports[uint16(port)] = struct{}{}
			}
		}

		if len(cr.prefixes) == 0 && cr.ports == nil && cr.proto == 0 {
			return nil, errors.Errorf(errors.KindValidation,
				"rule %d (%s): no match criteria", i, r.Name)
		}

		rs.rules = append(rs.rules, cr)
	}
	return rs, nil
}

func parseHost(h string) (netip.Prefix, error) {
	if strings.Contains(h, "/") {
		return netip.ParsePrefix(h)
	}
	addr, err := netip.ParseAddr(h)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Classify returns the tin for a new connection: the target of the first
// matching rule, or CS0 when nothing matches. Deterministic for a given
// key, so racing first packets cannot disagree on the result.
func (rs *RuleSet) Classify(key ConnKey) DSCP {
	for i := range rs.rules {
		if rs.rules[i].matches(key) {
			return rs.rules[i].tin
		}
	}
	return CS0
}

// Len returns the number of compiled rules.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// matches checks a rule against either endpoint of the tuple. Host and port
// matching is orientation-independent because the same connection may be
// observed with the local endpoint on either side.
func (r *compiledRule) matches(key ConnKey) bool {
	if r.proto != 0 && r.proto != key.Proto {
		return false
	}
	if len(r.prefixes) > 0 && !r.matchesHost(key.SrcIP) && !r.matchesHost(key.DstIP) {
		return false
	}
	if r.ports != nil {
		_, src := r.ports[key.SrcPort]
		_, dst := r.ports[key.DstPort]
		if !src && !dst {
			return false
		}
	}
	return true
}

func (r *compiledRule) matchesHost(addr netip.Addr) bool {
	for _, p := range r.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
