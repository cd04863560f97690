// Package block finds runnable fenced code blocks in markdown text.
//
// Only fence boundaries are recognized; headings, lists and other markdown
// structure are ignored. Blocks are recomputed from the text on every call.
package block

import "strings"

const fence = "```"

// Range is a byte span [Start, End] of a block in its document, fences included.
type Range struct {
	Start int
	End   int
}

// Contains reports whether offset lies in r. Both ends are inclusive so a
// cursor sitting on either fence still selects the block.
func (r Range) Contains(offset int) bool {
	return r.Start <= offset && offset <= r.End
}

// Block is one runnable fenced block.
type Block struct {
	Code     string
	Language Language
	Terminal string // terminal-name directive, empty for the document default
	Range    Range
	Line     int // zero-based line of the opening fence
}

// FindAll returns every runnable block in document order.
func FindAll(text string) []Block {
	var blocks []Block
	sc := lineScanner{text: text}
	for {
		b, ok, more := sc.next()
		if ok {
			blocks = append(blocks, b)
		}
		if !more {
			return blocks
		}
	}
}

// FindAt returns the runnable block whose range contains offset.
func FindAt(text string, offset int) (Block, bool) {
	sc := lineScanner{text: text}
	for {
		b, ok, more := sc.next()
		if ok && b.Range.Contains(offset) {
			return b, true
		}
		if ok && b.Range.Start > offset {
			return Block{}, false
		}
		if !more {
			return Block{}, false
		}
	}
}

// OffsetAt converts a zero-based line and column into a byte offset,
// clamping both to the text.
func OffsetAt(text string, line, col int) int {
	offset := 0
	for i := 0; i < line; i++ {
		nl := strings.IndexByte(text[offset:], '\n')
		if nl < 0 {
			return len(text)
		}
		offset += nl + 1
	}
	end := len(text)
	if nl := strings.IndexByte(text[offset:], '\n'); nl >= 0 {
		end = offset + nl
	}
	if col < 0 {
		col = 0
	}
	if offset+col > end {
		return end
	}
	return offset + col
}

// lineScanner walks the text line by line, consuming one fenced region per
// call to next so that body lines are never parsed twice.
type lineScanner struct {
	text string
	pos  int
	line int
}

// readLine returns the line at pos without its terminator, the offset of
// the following line, and whether a newline terminated it.
func (s *lineScanner) readLine(pos int) (string, int, bool) {
	nl := strings.IndexByte(s.text[pos:], '\n')
	if nl < 0 {
		return s.text[pos:], len(s.text), false
	}
	return s.text[pos : pos+nl], pos + nl + 1, true
}

// next scans up to and including the next fenced region. ok reports whether
// that region is a runnable block; more is false once the text is exhausted.
func (s *lineScanner) next() (b Block, ok bool, more bool) {
	for s.pos < len(s.text) {
		start, startLine := s.pos, s.line
		content, after, terminated := s.readLine(s.pos)
		s.pos, s.line = after, s.line+1

		opener := strings.TrimLeft(content, " \t")
		if !strings.HasPrefix(opener, fence) || !terminated {
			continue
		}
		info := strings.TrimSuffix(opener[len(fence):], "\r")
		if strings.Contains(info, "`") {
			// Inline code spans such as ```x``` on one line are not fences.
			continue
		}

		closeStart, closeEnd, closeLines, found := s.findClose(after)
		if !found {
			// Unclosed fence: treat it as plain text and keep scanning.
			continue
		}
		s.pos, s.line = closeEnd, s.line+closeLines

		d, valid := ParseDirective(info)
		code := body(s.text[after:closeStart])
		if !valid || strings.TrimSpace(code) == "" {
			return Block{}, false, s.pos < len(s.text)
		}
		end := closeStart + strings.Index(s.text[closeStart:], fence) + len(fence)
		return Block{
			Code:     code,
			Language: d.Language,
			Terminal: d.Terminal,
			Range:    Range{Start: start, End: end},
			Line:     startLine,
		}, true, s.pos < len(s.text)
	}
	return Block{}, false, false
}

// findClose looks for the closing fence line starting at pos. It returns the
// closing line's start offset, the offset after it, the number of lines
// consumed including the closing line, and whether one was found.
func (s *lineScanner) findClose(pos int) (int, int, int, bool) {
	lines := 0
	for pos < len(s.text) {
		content, after, _ := s.readLine(pos)
		lines++
		if strings.TrimSpace(content) == fence {
			return pos, after, lines, true
		}
		pos = after
	}
	return 0, 0, 0, false
}

// body strips the newline that precedes the closing fence.
func body(raw string) string {
	raw = strings.TrimSuffix(raw, "\n")
	return strings.TrimSuffix(raw, "\r")
}
