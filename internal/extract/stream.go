package extract

import (
	"encoding/hex"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// kerning adjustments in TJ arrays wider than this (thousandths of an em)
// are rendered as a word gap.
const tjGap = 200

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokString
	tokArray
	tokName
	tokOperator
)

type token struct {
	kind  tokenKind
	text  string
	num   float64
	items []token
}

// DecodeStream renders the text operators of a page content stream as
// plain text. Vertical moves start a new line, horizontal moves insert a
// tab so column layouts survive for table detection.
func DecodeStream(data []byte) string {
	var (
		out      strings.Builder
		operands []token
		line     strings.Builder
	)

	flush := func() {
		text := strings.TrimRight(line.String(), " \t")
		line.Reset()
		if strings.TrimSpace(text) == "" {
			return
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(strings.TrimLeft(text, " \t"))
	}

	separate := func(sep byte) {
		if line.Len() == 0 {
			return
		}
		s := line.String()
		last := s[len(s)-1]
		if last == ' ' || last == '\t' {
			return
		}
		line.WriteByte(sep)
	}

	s := &scanner{data: data}
	for {
		tok, ok := s.next()
		if !ok {
			break
		}
		if tok.kind != tokOperator {
			operands = append(operands, tok)
			continue
		}

		switch tok.text {
		case "Tj":
			if t, ok := lastOf(operands, tokString); ok {
				line.WriteString(t.text)
			}
		case "TJ":
			if t, ok := lastOf(operands, tokArray); ok {
				for _, item := range t.items {
					switch item.kind {
					case tokString:
						line.WriteString(item.text)
					case tokNumber:
						if item.num < -tjGap {
							separate(' ')
						}
					}
				}
			}
		case "'", `"`:
			flush()
			if t, ok := lastOf(operands, tokString); ok {
				line.WriteString(t.text)
			}
		case "Td", "TD":
			if len(operands) >= 2 {
				tx, ty := operands[len(operands)-2].num, operands[len(operands)-1].num
				switch {
				case ty != 0:
					flush()
				case tx > 0:
					separate('\t')
				}
			}
		case "T*", "Tm", "ET":
			flush()
		}
		operands = operands[:0]
	}
	flush()

	return out.String()
}

func lastOf(tokens []token, kind tokenKind) (token, bool) {
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].kind == kind {
			return tokens[i], true
		}
	}
	return token{}, false
}

type scanner struct {
	data []byte
	pos  int
}

func (s *scanner) next() (token, bool) {
	s.skipSpace()
	if s.pos >= len(s.data) {
		return token{}, false
	}

	c := s.data[s.pos]
	switch {
	case c == '(':
		return token{kind: tokString, text: decodeText(s.literal())}, true
	case c == '<' && s.peek(1) == '<':
		s.pos += 2
		return token{kind: tokOperator, text: "<<"}, true
	case c == '>' && s.peek(1) == '>':
		s.pos += 2
		return token{kind: tokOperator, text: ">>"}, true
	case c == '<':
		return token{kind: tokString, text: decodeText(s.hexString())}, true
	case c == '[':
		s.pos++
		return token{kind: tokArray, items: s.array()}, true
	case c == ']':
		s.pos++
		return token{kind: tokOperator, text: "]"}, true
	case c == '/':
		start := s.pos
		s.pos++
		s.word()
		return token{kind: tokName, text: string(s.data[start:s.pos])}, true
	case c == '-' || c == '+' || c == '.' || (c >= '0' && c <= '9'):
		start := s.pos
		s.pos++
		s.word()
		n, err := strconv.ParseFloat(string(s.data[start:s.pos]), 64)
		if err != nil {
			return token{kind: tokOperator, text: string(s.data[start:s.pos])}, true
		}
		return token{kind: tokNumber, num: n}, true
	default:
		start := s.pos
		s.pos++
		if c != '\'' && c != '"' {
			s.word()
		}
		return token{kind: tokOperator, text: string(s.data[start:s.pos])}, true
	}
}

func (s *scanner) array() []token {
	var items []token
	for {
		s.skipSpace()
		if s.pos >= len(s.data) {
			return items
		}
		if s.data[s.pos] == ']' {
			s.pos++
			return items
		}
		tok, ok := s.next()
		if !ok {
			return items
		}
		items = append(items, tok)
	}
}

func (s *scanner) literal() []byte {
	s.pos++
	depth := 1
	var buf []byte
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= len(s.data) {
				return buf
			}
			buf = s.escape(buf)
		case '(':
			depth++
			buf = append(buf, c)
		case ')':
			depth--
			if depth == 0 {
				return buf
			}
			buf = append(buf, c)
		default:
			buf = append(buf, c)
		}
	}
	return buf
}

func (s *scanner) escape(buf []byte) []byte {
	c := s.data[s.pos]
	s.pos++
	switch c {
	case 'n':
		return append(buf, '\n')
	case 'r':
		return append(buf, '\r')
	case 't':
		return append(buf, '\t')
	case 'b':
		return append(buf, '\b')
	case 'f':
		return append(buf, '\f')
	case '\r', '\n':
		if c == '\r' && s.peek(0) == '\n' {
			s.pos++
		}
		return buf
	}

	if c < '0' || c > '7' {
		return append(buf, c)
	}

	val := int(c - '0')
	for range 2 {
		d := s.peek(0)
		if d < '0' || d > '7' {
			break
		}
		val = val*8 + int(d-'0')
		s.pos++
	}
	return append(buf, byte(val))
}

func (s *scanner) hexString() []byte {
	s.pos++
	var digits []byte
	for s.pos < len(s.data) && s.data[s.pos] != '>' {
		c := s.data[s.pos]
		if isHex(c) {
			digits = append(digits, c)
		}
		s.pos++
	}
	s.pos++
	if len(digits)%2 == 1 {
		digits = append(digits, '0')
	}
	out, err := hex.DecodeString(string(digits))
	if err != nil {
		return nil
	}
	return out
}

func (s *scanner) word() {
	for s.pos < len(s.data) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.data) {
		c := s.data[s.pos]
		if c == '%' {
			for s.pos < len(s.data) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		if !isSpace(c) {
			return
		}
		s.pos++
	}
}

func (s *scanner) peek(offset int) byte {
	if s.pos+offset < len(s.data) {
		return s.data[s.pos+offset]
	}
	return 0
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n' || c == '\f' || c == 0
}

func isDelimiter(c byte) bool {
	return isSpace(c) || strings.IndexByte("()<>[]{}/%", c) >= 0
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// decodeText interprets PDF string bytes as UTF-16BE (with BOM), UTF-8, or
// single-byte Latin-1, in that order.
func decodeText(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFE && b[1] == 0xFF {
		b = b[2:]
		units := make([]uint16, 0, len(b)/2)
		for i := 0; i+1 < len(b); i += 2 {
			units = append(units, uint16(b[i])<<8|uint16(b[i+1]))
		}
		return string(utf16.Decode(units))
	}
	if utf8.Valid(b) {
		return string(b)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}
