// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package firewall generates and applies the nftables ruleset that feeds
// packets into the classifier's queues. The ruleset is rendered as a
// single script and handed to `nft -f`, so an apply either fully succeeds
// or leaves the previous ruleset untouched.
package firewall

import (
	"fmt"
	"regexp"
	"strings"
)

// ScriptBuilder builds nftables scripts for atomic application. Objects
// are output in dependency order (tables, chains, then rules), because
// nftables requires objects to be defined before they are referenced.
type ScriptBuilder struct {
	tableName  string
	family     string
	tables     []string
	chains     []string
	rules      map[string][]string // rules keyed by chain name
	chainOrder []string
}

// NewScriptBuilder creates a new script builder for a specific table and
// family. Common families are "inet" (IPv4+IPv6), "ip" and "ip6".
func NewScriptBuilder(tableName, family string) *ScriptBuilder {
	return &ScriptBuilder{
		tableName: tableName,
		family:    family,
		rules:     make(map[string][]string),
	}
}

func (sb *ScriptBuilder) AddTable() {
	sb.tables = append(sb.tables, fmt.Sprintf("add table %s %s", sb.family, quote(sb.tableName)))
}

func (sb *ScriptBuilder) AddChain(name, typeName, hook string, priority int, policy string, comment ...string) {
	var cmd string
	if typeName != "" {
		cmd = fmt.Sprintf("add chain %s %s %s { type %s hook %s priority %d; policy %s;",
			sb.family, quote(sb.tableName), quote(name), typeName, hook, priority, policy)
	} else {
		cmd = fmt.Sprintf("add chain %s %s %s {", sb.family, quote(sb.tableName), quote(name))
	}
	if len(comment) > 0 {
		cmd += fmt.Sprintf(" comment %q;", comment[0])
	}
	cmd += " }"
	sb.chains = append(sb.chains, cmd)
	sb.chainOrder = append(sb.chainOrder, name)
}

func (sb *ScriptBuilder) AddRule(chain, rule string, comment ...string) {
	if len(comment) > 0 && comment[0] != "" && !strings.Contains(rule, "comment \"") {
		rule += fmt.Sprintf(" comment %q", comment[0])
	}
	cmd := fmt.Sprintf("add rule %s %s %s %s",
		sb.family, quote(sb.tableName), quote(chain), rule)
	sb.rules[chain] = append(sb.rules[chain], cmd)
}

// Build renders the script. Chains are flushed before rules are re-added
// so repeated applies don't duplicate rules: "add chain" is a no-op for
// existing chains, but "add rule" appends.
func (sb *ScriptBuilder) Build() string {
	var lines []string
	lines = append(lines, sb.tables...)
	lines = append(lines, sb.chains...)
	for _, chain := range sb.chainOrder {
		lines = append(lines, fmt.Sprintf("flush chain %s %s %s",
			sb.family, quote(sb.tableName), quote(chain)))
	}
	for _, chain := range sb.chainOrder {
		lines = append(lines, sb.rules[chain]...)
	}
	return strings.Join(lines, "\n") + "\n"
}

var identifierRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_-]*$`)

func quote(s string) string {
	if identifierRegex.MatchString(s) {
		return s
	}
	return fmt.Sprintf("%q", s)
}
