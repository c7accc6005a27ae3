package generator

import "strings"

// completePartialJSON closes a truncated JSON document. Everything after the
// last complete value is dropped and the open containers are closed in order.
// It reports false when the input is not a truncated object or array.
func completePartialJSON(s string) (string, bool) {
	type cut struct {
		pos   int
		stack string
	}

	var (
		stack     []byte
		expectKey []bool
		inString  bool
		escaped   bool
		isKey     bool
		inLiteral bool
		last      = cut{pos: -1}
	)

	mark := func(pos int) {
		last = cut{pos: pos, stack: string(stack)}
	}
	endLiteral := func(pos int) {
		if inLiteral {
			inLiteral = false
			mark(pos)
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				if !isKey {
					mark(i + 1)
				}
			}
			continue
		}

		switch c {
		case '"':
			inString = true
			isKey = len(stack) > 0 && stack[len(stack)-1] == '{' && expectKey[len(expectKey)-1]
		case '{', '[':
			stack = append(stack, c)
			expectKey = append(expectKey, c == '{')
			mark(i + 1)
		case '}', ']':
			endLiteral(i)
			if len(stack) == 0 {
				return "", false
			}
			stack = stack[:len(stack)-1]
			expectKey = expectKey[:len(expectKey)-1]
			if len(stack) == 0 {
				// Complete document; nothing to repair.
				return "", false
			}
			mark(i + 1)
		case ',':
			endLiteral(i)
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				expectKey[len(expectKey)-1] = true
			}
		case ':':
			if len(expectKey) > 0 {
				expectKey[len(expectKey)-1] = false
			}
		case ' ', '\t', '\r', '\n':
			endLiteral(i)
		default:
			if len(stack) == 0 {
				return "", false
			}
			inLiteral = true
		}
	}

	if len(stack) == 0 || last.pos < 0 {
		return "", false
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(s[:last.pos], " \t\r\n,"))
	for i := len(last.stack) - 1; i >= 0; i-- {
		if last.stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String(), true
}
