package block

import "strings"

// Language is a fence language tag.
type Language string

const (
	Shell  Language = "shell"
	Bash   Language = "bash"
	Sh     Language = "sh"
	Zsh    Language = "zsh"
	Python Language = "python"
	Py     Language = "py"
)

// Languages lists every recognized tag in display order.
var Languages = []Language{Shell, Bash, Sh, Zsh, Python, Py}

// Recognized reports whether l is one of the runnable tags.
func (l Language) Recognized() bool {
	for _, known := range Languages {
		if l == known {
			return true
		}
	}
	return false
}

// Scripting reports whether l runs through an interpreter rather than a shell.
func (l Language) Scripting() bool {
	return l == Python || l == Py
}

// Directive is the parsed fence info string: ```<lang>[<sep><name>].
type Directive struct {
	Language Language
	Terminal string // empty when no name follows the tag
}

// ParseDirective tokenizes a fence info string (the text after the opening
// backticks). It returns false when the language is not recognized or the
// remainder is not a valid terminal directive.
func ParseDirective(info string) (Directive, bool) {
	s := infoScanner{src: strings.TrimRight(info, " \t\r")}

	lang := Language(s.take(isLetter))
	if !lang.Recognized() {
		return Directive{}, false
	}

	sep := s.separator()
	name := s.take(isNameByte)
	if !s.done() {
		return Directive{}, false
	}
	if name != "" && !sep {
		// "sh-x" is an unknown tag, not "sh" named "-x".
		return Directive{}, false
	}
	return Directive{Language: lang, Terminal: name}, true
}

// infoScanner walks a fence info string one token at a time.
type infoScanner struct {
	src string
	pos int
}

func (s *infoScanner) done() bool { return s.pos >= len(s.src) }

func (s *infoScanner) take(accept func(byte) bool) string {
	start := s.pos
	for s.pos < len(s.src) && accept(s.src[s.pos]) {
		s.pos++
	}
	return s.src[start:s.pos]
}

// separator consumes "," and/or blanks in any of the forms ",", " ", ", ".
func (s *infoScanner) separator() bool {
	start := s.pos
	s.take(isBlank)
	if s.pos < len(s.src) && s.src[s.pos] == ',' {
		s.pos++
	}
	s.take(isBlank)
	return s.pos > start
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isBlank(c byte) bool { return c == ' ' || c == '\t' }

func isNameByte(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_' || c == '-'
}
