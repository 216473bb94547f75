package command

import (
	"strings"
	"unicode"
)

// Command is one parsed slash line.
type Command struct {
	Name string
	// Args are the words after the name. Double or single quotes around a
	// word keep its spaces, as in /mv "idée 1.md".
	Args []string
	Raw  string
	// Remainder is the text after the name, unquoted when it is a single
	// quoted argument.
	Remainder string
}

// Parse returns the command on a line that starts with "/".
func Parse(input string) (Command, bool) {
	trimmed := strings.TrimLeft(input, " \t")
	if !strings.HasPrefix(trimmed, "/") {
		return Command{}, false
	}
	raw := strings.TrimSpace(trimmed[1:])
	name, rest := cutWord(raw)
	cmd := Command{Name: strings.ToLower(name), Args: splitArgs(rest), Raw: raw, Remainder: rest}
	if isQuoted(rest) {
		cmd.Remainder = rest[1 : len(rest)-1]
	}
	return cmd, true
}

// textAfter returns the text following the first n arguments, for
// commands that end with free text.
func (c Command) textAfter(n int) string {
	_, rest := cutWord(c.Raw)
	for ; n > 0 && rest != ""; n-- {
		_, rest = cutArg(rest)
	}
	if isQuoted(rest) {
		return rest[1 : len(rest)-1]
	}
	return rest
}

func cutWord(s string) (string, string) {
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i:])
}

// cutArg splits the first argument off s. A quote only opens at the start
// of an argument and only closes before a space, so l'épée stays one word.
func cutArg(s string) (string, string) {
	if q := s[0]; q == '"' || q == '\'' {
		if end := closingQuote(s[1:], q); end >= 0 {
			return s[1 : 1+end], strings.TrimSpace(s[2+end:])
		}
	}
	return cutWord(s)
}

func closingQuote(s string, q byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == q && (i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\t') {
			return i
		}
	}
	return -1
}

func splitArgs(s string) []string {
	args := []string{}
	for s != "" {
		var arg string
		arg, s = cutArg(s)
		args = append(args, arg)
	}
	return args
}

func isQuoted(s string) bool {
	if len(s) < 2 || (s[0] != '"' && s[0] != '\'') {
		return false
	}
	return closingQuote(s[1:], s[0]) == len(s)-2
}
