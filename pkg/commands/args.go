package commands

import (
	"strings"
	"unicode"
)

// SplitArgs splits s on whitespace. A token starting with a double quote
// runs to the next double quote and is returned without the quotes; an
// unterminated quote runs to the end of s. Quotes inside a token are literal.
func SplitArgs(s string) []string {
	args := []string{}
	runes := []rune(s)

	for i := 0; i < len(runes); {
		if unicode.IsSpace(runes[i]) {
			i++
			continue
		}

		if runes[i] == '"' {
			end := i + 1
			for end < len(runes) && runes[end] != '"' {
				end++
			}
			args = append(args, string(runes[i+1:end]))
			i = end + 1
			continue
		}

		end := i
		for end < len(runes) && !unicode.IsSpace(runes[end]) {
			end++
		}
		args = append(args, string(runes[i:end]))
		i = end
	}

	return args
}

// splitCommand separates the command name from the rest of the message
// body (after the prefix). The name ends at the first whitespace.
func splitCommand(body string) (name, rest string) {
	idx := strings.IndexFunc(body, unicode.IsSpace)
	if idx < 0 {
		return body, ""
	}
	return body[:idx], body[idx:]
}
