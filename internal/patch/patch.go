package patch

import (
	"regexp"
	"strings"

	"github.com/matijazezelj/tfdescsan/internal/mapping"
)

// Result is the outcome of patching one declaration file.
type Result struct {
	Text          string
	Discrepancies []Discrepancy
	Changed       bool
}

var (
	headerRe   = regexp.MustCompile(`^\s*(variable|output)\s+"([^"]+)"`)
	descLineRe = regexp.MustCompile(`^\s*description\s*=\s*`)
	descExprRe = regexp.MustCompile(`description\s*=\s*`)
)

const defaultIndent = "  "

// Apply scans the declaration text for variable and output blocks, compares
// each block's description against the mapping (with the cloud appendix
// applied), and returns the patched text plus all discrepancies found. The
// original line array is kept and only changed lines are touched, so every
// byte outside a patched description line survives verbatim.
func Apply(table *mapping.Table, text string, cloud mapping.Cloud) Result {
	p := &patcher{
		table:   table,
		cloud:   cloud,
		lines:   splitLines(text),
		inserts: make(map[int][]string),
	}
	p.scan()
	return Result{
		Text:          p.assemble(),
		Discrepancies: p.discrepancies,
		Changed:       p.changed,
	}
}

type patcher struct {
	table   *mapping.Table
	cloud   mapping.Cloud
	lines   []string
	inserts map[int][]string // extra lines emitted after the keyed index

	discrepancies []Discrepancy
	changed       bool
}

// scan walks the file once, tracking brace depth so declaration headers are
// only recognized at the top level.
func (p *patcher) scan() {
	depth := 0
	for i := 0; i < len(p.lines); i++ {
		line := p.lines[i]
		if depth == 0 && !isComment(line) {
			if m := headerRe.FindStringSubmatch(line); m != nil {
				i = p.scanBlock(i, m[2])
				continue
			}
		}
		depth += braceDelta(maskLine(line))
		if depth < 0 {
			depth = 0
		}
	}
}

// scanBlock processes one declaration block starting at index start and
// returns the index of the block's last line.
func (p *patcher) scanBlock(start int, name string) int {
	opened := false
	openerIdx := -1
	inlineBody := false
	depth := 0
	end := len(p.lines) - 1
	descIdx := -1

	for j := start; j < len(p.lines); j++ {
		masked := maskLine(p.lines[j])
		depthAtStart := depth
		depth += braceDelta(masked)

		if !opened {
			if k := strings.IndexByte(masked, '{'); k >= 0 {
				opened = true
				openerIdx = j
				body := masked[k+1:]
				if c := strings.IndexByte(body, '}'); c >= 0 {
					body = body[:c]
				}
				inlineBody = strings.TrimSpace(body) != ""
			} else if j > start {
				// The opener must sit on the header line or the next one.
				break
			}
		} else if depthAtStart == 1 && descIdx < 0 && descLineRe.MatchString(p.lines[j]) {
			descIdx = j
		}

		if opened && depth <= 0 {
			end = j
			break
		}
	}

	if !opened {
		// No opening brace on the header line or the one after it. Nothing to
		// patch; resume the scan on the next line.
		p.report(Discrepancy{Kind: KindUnsupported, Variable: name, Line: start + 1})
		return start
	}

	entry, mapped := p.table.Get(name)
	headerLine := start + 1

	if inlineBody && (openerIdx == end || descExprRe.MatchString(maskLine(p.lines[openerIdx]))) {
		p.patchInline(openerIdx, name, entry, mapped)
		return end
	}

	if descIdx >= 0 {
		p.patchDescription(descIdx, name, entry, mapped)
		return end
	}

	if !mapped {
		p.report(Discrepancy{Kind: KindMissingMapping, Variable: name, Line: headerLine})
		return end
	}

	expected := entry.Expected(p.cloud)
	if openerIdx >= 0 {
		p.insertDescription(openerIdx, end, expected)
		p.report(Discrepancy{Kind: KindMissingDescription, Variable: name, Line: headerLine, Expected: expected})
	}
	return end
}

// patchDescription handles a block with a dedicated description line.
func (p *patcher) patchDescription(idx int, name string, entry mapping.Entry, mapped bool) {
	line := p.lines[idx]
	loc := descLineRe.FindStringIndex(line)
	rest := line[loc[1]:]

	payload, after, ok := splitQuoted(rest)
	if strings.HasPrefix(rest, "<<") || !ok {
		p.report(Discrepancy{Kind: KindUnsupported, Variable: name, Line: idx + 1})
		return
	}

	current := decodeString(payload)
	if !mapped {
		p.report(Discrepancy{Kind: KindMissingMapping, Variable: name, Line: idx + 1, Current: current})
		return
	}

	expected := entry.Expected(p.cloud)
	if current == expected {
		return
	}

	p.lines[idx] = line[:loc[1]] + `"` + escapeString(expected) + `"` + after
	p.changed = true
	p.report(Discrepancy{Kind: KindTextMismatch, Variable: name, Line: idx + 1, Current: current, Expected: expected})
}

// patchInline handles blocks whose body sits on the opener line. A
// description assignment found there is compared and replaced in place; any
// other inline layout can't be patched line-by-line and is reported as
// unsupported when the mapping would require a change.
func (p *patcher) patchInline(idx int, name string, entry mapping.Entry, mapped bool) {
	line := p.lines[idx]
	masked := maskLine(line)

	loc := descExprRe.FindStringIndex(masked)
	if loc == nil {
		if mapped {
			p.report(Discrepancy{Kind: KindUnsupported, Variable: name, Line: idx + 1})
		} else {
			p.report(Discrepancy{Kind: KindMissingMapping, Variable: name, Line: idx + 1})
		}
		return
	}

	rest := line[loc[1]:]
	payload, after, ok := splitQuoted(rest)
	if !ok {
		p.report(Discrepancy{Kind: KindUnsupported, Variable: name, Line: idx + 1})
		return
	}

	current := decodeString(payload)
	if !mapped {
		p.report(Discrepancy{Kind: KindMissingMapping, Variable: name, Line: idx + 1, Current: current})
		return
	}

	expected := entry.Expected(p.cloud)
	if current == expected {
		return
	}

	p.lines[idx] = line[:loc[1]] + `"` + escapeString(expected) + `"` + after
	p.changed = true
	p.report(Discrepancy{Kind: KindTextMismatch, Variable: name, Line: idx + 1, Current: current, Expected: expected})
}

// insertDescription adds a description line right after the block opener,
// copying the indentation of the first attribute line in the block. An empty
// one-line block is expanded into a multi-line block first.
func (p *patcher) insertDescription(openerIdx, end int, expected string) {
	line := p.lines[openerIdx]
	masked := maskLine(line)
	bracePos := strings.IndexByte(masked, '{')

	if closePos := strings.IndexByte(masked, '}'); closePos > bracePos {
		p.expandEmptyBlock(openerIdx, bracePos, closePos, expected)
		return
	}

	indent := p.bodyIndent(openerIdx+1, end)
	eol := lineEnding(line)
	if eol == "" {
		// Opener is the last line of the file without a terminator.
		eol = "\n"
		p.lines[openerIdx] = line + eol
	}

	p.inserts[openerIdx] = append(p.inserts[openerIdx],
		indent+`description = "`+escapeString(expected)+`"`+eol)
	p.changed = true
}

// expandEmptyBlock turns `variable "x" {}` into a three-line block holding
// the new description.
func (p *patcher) expandEmptyBlock(idx, bracePos, closePos int, expected string) {
	line := p.lines[idx]
	eol := lineEnding(line)
	tail := trimEnding(line[closePos+1:])

	headerIndent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	innerEOL := eol
	if innerEOL == "" {
		innerEOL = "\n"
	}

	p.lines[idx] = line[:bracePos+1] + innerEOL
	p.inserts[idx] = append(p.inserts[idx],
		headerIndent+defaultIndent+`description = "`+escapeString(expected)+`"`+innerEOL,
		headerIndent+"}"+tail+eol)
	p.changed = true
}

// bodyIndent returns the leading whitespace of the first non-blank body line,
// or the default indent when the block has no indented attribute lines.
func (p *patcher) bodyIndent(from, end int) string {
	for k := from; k < end && k < len(p.lines); k++ {
		content := trimEnding(p.lines[k])
		if strings.TrimSpace(content) == "" {
			continue
		}
		ws := content[:len(content)-len(strings.TrimLeft(content, " \t"))]
		if ws != "" {
			return ws
		}
	}
	return defaultIndent
}

func (p *patcher) report(d Discrepancy) {
	p.discrepancies = append(p.discrepancies, d)
}

func (p *patcher) assemble() string {
	var b strings.Builder
	for i, line := range p.lines {
		b.WriteString(line)
		for _, ins := range p.inserts[i] {
			b.WriteString(ins)
		}
	}
	return b.String()
}

// splitLines splits text into lines keeping each terminator attached, so
// reassembly is byte-exact for both LF and CRLF files.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}

func isComment(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//")
}
