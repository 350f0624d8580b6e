package gdbmi

import (
	"fmt"
	"strconv"
	"strings"
)

// ProtocolError is an error result record (^error) of the gdb machine
// interface, or a record that could not be interpreted.
type ProtocolError struct {
	context string
	cmd     string
	msg     string
}

func (err *ProtocolError) Error() string {
	cmd := err.cmd
	if len(cmd) > 40 {
		cmd = cmd[:40] + "..."
	}
	if err.msg == "" {
		return fmt.Sprintf("malformed response during %s for command %s", err.context, cmd)
	}
	return fmt.Sprintf("%s during %s for command %s", err.msg, err.context, cmd)
}

const promptLine = "(gdb)"

// isPrompt reports whether line is the MI ready prompt.
func isPrompt(line string) bool {
	return strings.TrimSpace(line) == promptLine
}

// resultRecord returns the payload of a result record ("done",
// "running,...", "error,msg=...") if line is the result record for
// the request identified by token.
func resultRecord(line, token string) (string, bool) {
	line = strings.TrimPrefix(line, token)
	if len(line) == 0 || line[0] != '^' {
		return "", false
	}
	return line[1:], true
}

// miString extracts the value of a key="value" field from an MI
// record. Nested tuples are not tracked: the first occurrence of the
// key at a field boundary wins, which is enough for the handful of
// fields qstep reads (msg, value, number, reason, addr, bkptno,
// signal-name, exit-code).
func miString(rec, key string) string {
	needle := key + `="`
	for from := 0; ; {
		i := strings.Index(rec[from:], needle)
		if i < 0 {
			return ""
		}
		i += from
		if i > 0 && rec[i-1] != ',' && rec[i-1] != '{' && rec[i-1] != '[' {
			from = i + len(needle)
			continue
		}
		return scanQuoted(rec[i+len(needle):])
	}
}

// scanQuoted reads a C-quoted string payload up to its closing quote.
func scanQuoted(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			if i+1 < len(s) {
				i++
				switch s[i] {
				case 'n':
					b.WriteByte('\n')
				case 't':
					b.WriteByte('\t')
				default:
					b.WriteByte(s[i])
				}
			}
		case '"':
			return b.String()
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// unquoteConsole decodes the payload of a console stream record
// ("~...") into the text gdb printed.
func unquoteConsole(payload string) string {
	payload = strings.TrimSpace(payload)
	if len(payload) < 2 || payload[0] != '"' {
		return payload
	}
	return scanQuoted(payload[1:])
}

// parseExitStatus decodes the exit-code field of a *stopped record.
// The machine interface prints it in octal.
func parseExitStatus(v string) int {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 8, 32)
	if err != nil {
		return 0
	}
	return int(n)
}
