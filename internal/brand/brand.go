// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package brand centralizes product naming so paths, log tags, and the
// nftables table name stay consistent across the tree.
package brand

const (
	// Name is the product display name.
	Name = "Tinmark"
	// LowerName is used for paths, pid files, and the nft table name.
	LowerName = "tinmark"
	// BinaryName is the installed binary name.
	BinaryName = "tinmark"
	// ConfigFileName is the default configuration file name.
	ConfigFileName = "tinmark.hcl"
)
