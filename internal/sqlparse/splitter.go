package sqlparse

import "strings"

// Splitter state. Procedure bodies and string literals suspend
// statement-delimiter handling; everything else splits on semicolons.
type state int

const (
	stateNormal state = iota
	stateProcedure
	stateString
)

const (
	procedureMarker = "CREATE OR REPLACE PROCEDURE"
	bodyTerminator  = "$$;"
)

// Split parses SQL text into individual executable statements, in order.
// Comments are stripped first, then the text is scanned line by line:
// a line containing CREATE OR REPLACE PROCEDURE starts a procedure body
// that runs until a line ending in $$; and is emitted as one statement;
// outside procedure bodies the accumulated buffer is split on semicolons,
// except inside single-quoted string literals. Statements are trimmed and
// empty ones dropped. Split never fails; malformed SQL surfaces later as
// an execution error.
func Split(sql string) []string {
	text := StripComments(sql)

	var statements []string
	var current strings.Builder
	st := stateNormal

	for _, line := range strings.Split(text, "\n") {
		if st == stateNormal && strings.Contains(strings.ToUpper(line), procedureMarker) {
			st = stateProcedure
		}

		if st == stateProcedure {
			current.WriteString(line)
			current.WriteString("\n")
			if endsProcedureBody(line) {
				if stmt := strings.TrimSpace(current.String()); stmt != "" {
					// collapse any extra trailing semicolons back to the
					// canonical $$; terminator
					statements = append(statements, strings.TrimRight(stmt, ";")+";")
				}
				current.Reset()
				st = stateNormal
			}
			continue
		}

		for i := 0; i < len(line); i++ {
			ch := line[i]
			switch st {
			case stateNormal:
				if ch == ';' {
					if stmt := strings.TrimSpace(current.String()); stmt != "" {
						statements = append(statements, stmt)
					}
					current.Reset()
					continue
				}
				if ch == '\'' {
					st = stateString
				}
			case stateString:
				if ch == '\'' {
					// '' is an escaped quote, not a terminator
					if i+1 < len(line) && line[i+1] == '\'' {
						current.WriteByte(ch)
						i++
					} else {
						st = stateNormal
					}
				}
			}
			current.WriteByte(ch)
		}
		current.WriteString("\n")
	}

	if stmt := strings.TrimSpace(current.String()); stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}

// endsProcedureBody reports whether a line closes a procedure body.
// The conventional terminator is a line ending in $$; but extra trailing
// semicolons are tolerated so that re-splitting an emitted statement with
// a delimiter appended stays stable.
func endsProcedureBody(line string) bool {
	trimmed := strings.TrimRight(line, " \t\r")
	if strings.HasSuffix(trimmed, bodyTerminator) {
		return true
	}
	unterminated := strings.TrimRight(trimmed, ";")
	return len(unterminated) < len(trimmed) && strings.HasSuffix(unterminated, "$$")
}

// StripComments removes line comments (-- to end of line, newline kept)
// and non-nested block comments (replaced by a single space so adjacent
// tokens do not merge). Comment markers inside single-quoted string
// literals are left alone. An unterminated block comment consumes the
// rest of the input.
func StripComments(sql string) string {
	var out strings.Builder
	out.Grow(len(sql))

	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]

		if inString {
			out.WriteByte(ch)
			if ch == '\'' {
				if i+1 < len(sql) && sql[i+1] == '\'' {
					out.WriteByte(sql[i+1])
					i++
				} else {
					inString = false
				}
			}
			continue
		}

		switch {
		case ch == '\'':
			inString = true
			out.WriteByte(ch)
		case ch == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			if i < len(sql) {
				out.WriteByte('\n')
			}
		case ch == '/' && i+1 < len(sql) && sql[i+1] == '*':
			i += 2
			for i+1 < len(sql) && !(sql[i] == '*' && sql[i+1] == '/') {
				i++
			}
			if i+1 < len(sql) {
				i++ // position on the closing '/'
				out.WriteByte(' ')
			} else {
				i = len(sql)
			}
		default:
			out.WriteByte(ch)
		}
	}

	return out.String()
}
