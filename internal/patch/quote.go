package patch

import "strings"

// splitQuoted parses a double-quoted string at the start of s. It returns
// the raw payload (escapes intact), the remainder after the closing quote,
// and whether a closing quote was found before end of input.
func splitQuoted(s string) (payload, rest string, ok bool) {
	if s == "" || s[0] != '"' {
		return "", "", false
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return s[1:i], s[i+1:], true
		case '\n', '\r':
			return "", "", false
		}
	}
	return "", "", false
}

// decodeString undoes the two escapes that affect payload comparison.
// Other escape sequences are left as written.
func decodeString(raw string) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) && (raw[i+1] == '"' || raw[i+1] == '\\') {
			i++
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}

// escapeString makes a description safe to embed in a double-quoted value.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// maskLine blanks out quoted strings and truncates at a comment marker so
// brace counting ignores braces inside strings and comments.
func maskLine(line string) string {
	var b strings.Builder
	inString := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if inString {
			if c == '\\' {
				b.WriteString("  ")
				i++
				continue
			}
			if c == '"' {
				inString = false
				b.WriteByte('"')
				continue
			}
			b.WriteByte(' ')
			continue
		}
		switch {
		case c == '"':
			inString = true
			b.WriteByte('"')
		case c == '#':
			return b.String()
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return b.String()
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// braceDelta returns the net brace nesting change of a masked line.
func braceDelta(masked string) int {
	return strings.Count(masked, "{") - strings.Count(masked, "}")
}

// lineEnding returns the terminator of a line ("\r\n", "\n", or "").
func lineEnding(line string) string {
	if strings.HasSuffix(line, "\r\n") {
		return "\r\n"
	}
	if strings.HasSuffix(line, "\n") {
		return "\n"
	}
	return ""
}

// trimEnding strips the line terminator, if any.
func trimEnding(line string) string {
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
}
