package network

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

var sectionLinkKinds = map[string]LinkKind{
	"PIPES":  LinkKindPipe,
	"PUMPS":  LinkKindPump,
	"VALVES": LinkKindValve,
}

var sectionNodeKinds = map[string]NodeKind{
	"JUNCTIONS":  NodeKindJunction,
	"TANKS":      NodeKindTank,
	"RESERVOIRS": NodeKindReservoir,
}

// ParseFile reads an INP file from disk and parses it into a Model.
func ParseFile(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening INP file: %w", err)
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return m, nil
}

// Parse reads an INP-format network description. Component sections fill the
// kind tables, the [CONTROLS] section is collected verbatim, and every other
// section is skipped. Comments start with a semicolon.
func Parse(r io.Reader) (*Model, error) {
	m := &Model{
		links: make(map[string]LinkKind),
		nodes: make(map[string]NodeKind),
	}

	scanner := bufio.NewScanner(r)
	section := ""
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := stripComment(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") {
			section = sectionName(line)
			continue
		}

		switch {
		case section == "CONTROLS":
			m.controls = append(m.controls, Line{Num: lineNum, Text: line})
		case sectionLinkKinds[section] != LinkKindUnknown:
			m.links[firstToken(line)] = sectionLinkKinds[section]
		case sectionNodeKinds[section] != NodeKindUnknown:
			m.nodes[firstToken(line)] = sectionNodeKinds[section]
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading INP input: %w", err)
	}

	return m, nil
}

func stripComment(line string) string {
	if i := strings.Index(line, ";"); i >= 0 {
		line = line[:i]
	}

	return strings.TrimSpace(line)
}

func sectionName(line string) string {
	name := strings.TrimPrefix(line, "[")
	if i := strings.Index(name, "]"); i >= 0 {
		name = name[:i]
	}

	return strings.ToUpper(strings.TrimSpace(name))
}

func firstToken(line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	return fields[0]
}
