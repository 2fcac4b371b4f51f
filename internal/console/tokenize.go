package console

import "strings"

// tokenize splits a console line into words. Single or double quotes group
// words and a backslash escapes the next byte.
//
//	add "write report" --at 9:15pm --for 45m
func tokenize(s string) []string {
	var (
		out   []string
		buf   strings.Builder
		quote byte
		esc   bool
		open  bool // a token is in progress, possibly empty ("")
	)
	flush := func() {
		if open {
			out = append(out, buf.String())
			buf.Reset()
			open = false
		}
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case esc:
			buf.WriteByte(ch)
			esc = false
		case ch == '\\':
			esc, open = true, true
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				buf.WriteByte(ch)
			}
		case ch == '"' || ch == '\'':
			quote, open = ch, true
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		default:
			buf.WriteByte(ch)
			open = true
		}
	}
	flush()
	return out
}

// splitFlags separates --key value / --key=value pairs from positionals.
// A --key followed by another flag or nothing is recorded as "true".
func splitFlags(args []string) (pos []string, flags map[string]string) {
	flags = map[string]string{}
	for i := 0; i < len(args); i++ {
		a := args[i]
		if !strings.HasPrefix(a, "--") || len(a) == 2 {
			pos = append(pos, a)
			continue
		}
		key := a[2:]
		if eq := strings.IndexByte(key, '='); eq >= 0 {
			flags[key[:eq]] = key[eq+1:]
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "--") {
			flags[key] = args[i+1]
			i++
			continue
		}
		flags[key] = "true"
	}
	return pos, flags
}
