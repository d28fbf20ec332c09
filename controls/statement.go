// Package controls derives typed control rules from the native [CONTROLS]
// statements of a water network. Parsing and classification are pure
// functions over explicit inputs; problems are collected as diagnostics
// rather than aborting the whole pass.
package controls

import (
	"math"
	"strconv"
	"strings"

	"github.com/hydrolab/waterloop/network"
)

// A RawStatement is one tokenized [CONTROLS] line before classification.
// Supported grammar, case-insensitive:
//
//	LINK <link> OPEN|CLOSED IF NODE <node> BELOW|ABOVE <threshold> [PRIORITY <n>]
type RawStatement struct {
	LinkID     string
	Action     string // "OPEN" or "CLOSED"
	NodeID     string
	Comparator string // "BELOW" or "ABOVE"
	Threshold  float64
	Priority   int

	// Line is the source line in the INP file, Index the position among the
	// successfully parsed statements.
	Line  int
	Index int
}

// ParseStatements tokenizes the [CONTROLS] section. Lines that do not match
// the grammar produce a diagnostic and are skipped; all well-formed lines
// are still returned.
func ParseStatements(lines []network.Line) ([]RawStatement, []Diagnostic) {
	var stmts []RawStatement
	var diags []Diagnostic

	for _, line := range lines {
		stmt, diag, ok := parseStatement(line)
		if !ok {
			diags = append(diags, diag)
			continue
		}

		stmt.Index = len(stmts)
		stmts = append(stmts, stmt)
	}

	return stmts, diags
}

func parseStatement(line network.Line) (RawStatement, Diagnostic, bool) {
	fields := strings.Fields(line.Text)
	if len(fields) < 7 {
		return RawStatement{},
			malformed(line.Num, "want at least 7 tokens, got %d", len(fields)),
			false
	}

	stmt := RawStatement{Line: line.Num}

	if !strings.EqualFold(fields[0], "LINK") {
		return RawStatement{},
			malformed(line.Num, "unknown keyword %q, want LINK", fields[0]),
			false
	}
	stmt.LinkID = fields[1]

	action := strings.ToUpper(fields[2])
	if action != "OPEN" && action != "CLOSED" {
		return RawStatement{},
			malformed(line.Num, "unknown action %q, want OPEN or CLOSED", fields[2]),
			false
	}
	stmt.Action = action

	if !strings.EqualFold(fields[3], "IF") || !strings.EqualFold(fields[4], "NODE") {
		return RawStatement{},
			malformed(line.Num, "missing IF NODE clause"),
			false
	}
	stmt.NodeID = fields[5]

	comparator := strings.ToUpper(fields[6])
	if comparator != "BELOW" && comparator != "ABOVE" {
		return RawStatement{},
			malformed(line.Num,
				"unknown comparator %q, want BELOW or ABOVE", fields[6]),
			false
	}
	stmt.Comparator = comparator

	if len(fields) < 8 {
		return RawStatement{},
			malformed(line.Num, "missing threshold value"),
			false
	}

	threshold, err := strconv.ParseFloat(fields[7], 64)
	if err != nil || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return RawStatement{},
			malformed(line.Num, "threshold %q is not a finite number", fields[7]),
			false
	}
	stmt.Threshold = threshold

	rest := fields[8:]
	if len(rest) > 0 {
		if !strings.EqualFold(rest[0], "PRIORITY") || len(rest) != 2 {
			return RawStatement{},
				malformed(line.Num, "trailing tokens %q", strings.Join(rest, " ")),
				false
		}

		priority, err := strconv.Atoi(rest[1])
		if err != nil {
			return RawStatement{},
				malformed(line.Num, "priority %q is not an integer", rest[1]),
				false
		}
		stmt.Priority = priority
	}

	return stmt, Diagnostic{}, true
}
