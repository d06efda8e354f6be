// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"fmt"
	"io"
	"os"
)

// CLIPrinter writes user-facing CLI output. Separate from the logger so
// daemon log output and interactive output don't interleave.
type CLIPrinter struct {
	out io.Writer
}

// Printer is the default CLI printer.
var Printer = &CLIPrinter{out: os.Stdout}

func (p *CLIPrinter) Printf(format string, args ...any) {
	fmt.Fprintf(p.out, format, args...)
}

func (p *CLIPrinter) Println(args ...any) {
	fmt.Fprintln(p.out, args...)
}
