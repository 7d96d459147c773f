package scanner

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
)

type TokenType int

const (
	TokenDict    TokenType = iota // '<<'
	TokenArray                    // '['
	TokenName                     // '/Name'
	TokenString                   // literal or hex string
	TokenNumber                   // numeric value
	TokenBoolean                  // true/false
	TokenNull                     // null
	TokenRef                      // indirect ref '5 0 R'
	TokenStream                   // 'stream' keyword plus its payload
	TokenKeyword                  // other keywords (obj, endobj, >>, ], etc.)
)

// Token is one lexical item. Str holds names and keywords, Bytes holds
// string and stream payloads, Int/Gen hold integers and reference parts.
type Token struct {
	Type  TokenType
	Pos   int64
	Str   string
	Bytes []byte
	Int   int64
	Gen   int64
	Float float64
	IsInt bool
	Hex   bool
	Bool  bool
}

func (t Token) String() string {
	switch t.Type {
	case TokenName:
		return "/" + t.Str
	case TokenNumber:
		if t.IsInt {
			return strconv.FormatInt(t.Int, 10)
		}
		return strconv.FormatFloat(t.Float, 'f', -1, 64)
	case TokenRef:
		return fmt.Sprintf("%d %d R", t.Int, t.Gen)
	case TokenString:
		return fmt.Sprintf("(%q)", t.Bytes)
	case TokenStream:
		return fmt.Sprintf("stream[%d]", len(t.Bytes))
	default:
		return t.Str
	}
}

type Config struct {
	MaxStringLength int64
	MaxStreamLength int64
}

var ErrStreamTooLong = errors.New("stream too long")

// Scanner tokenizes an in-memory PDF byte slice.
type Scanner struct {
	data          []byte
	pos           int64
	cfg           Config
	nextStreamLen int64
}

func New(data []byte, cfg Config) *Scanner {
	return &Scanner{data: data, cfg: cfg, nextStreamLen: -1}
}

func (s *Scanner) Position() int64 { return s.pos }

func (s *Scanner) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return fmt.Errorf("seek %d out of range", offset)
	}
	s.pos = offset
	return nil
}

// SetNextStreamLength supplies the /Length of the stream about to be read.
// A negative value makes the scanner search for endstream.
func (s *Scanner) SetNextStreamLength(n int64) { s.nextStreamLen = n }

// Data exposes the underlying buffer.
func (s *Scanner) Data() []byte { return s.data }

func (s *Scanner) Next() (Token, error) {
	s.skipWSAndComments()
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDict, Str: "<<", Pos: start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenKeyword, Str: ">>", Pos: start}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArray, Str: "[", Pos: start}, nil
	case ']', '{', '}':
		s.pos++
		return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isDigitStart(c) {
		return s.scanNumberOrRef()
	}
	return s.scanKeyword()
}

func (s *Scanner) skipWSAndComments() {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && !isEOL(s.data[s.pos]) {
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *Scanner) peek(n int64) byte {
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *Scanner) scanName() (Token, error) {
	start := s.pos
	s.pos++ // skip '/'
	var out bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if isDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) && isHex(s.data[s.pos+1]) && isHex(s.data[s.pos+2]) {
			out.WriteByte(fromHex(s.data[s.pos+1])<<4 | fromHex(s.data[s.pos+2]))
			s.pos += 3
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: start}, nil
}

func (s *Scanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++ // skip '('
	var buf bytes.Buffer
	depth := 1
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= int64(len(s.data)) {
				continue
			}
			esc := s.data[s.pos]
			s.pos++
			switch {
			case esc == '\r':
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case esc == '\n':
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				for k := 0; k < 2 && s.pos < int64(len(s.data)); k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
			}
			continue
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start}, nil
			}
		}
		buf.WriteByte(c)
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, fmt.Errorf("literal string at %d too long", start)
		}
	}
	return Token{}, fmt.Errorf("unterminated literal string at %d", start)
}

func (s *Scanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++ // skip '<'
	var nibbles []byte
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			if len(nibbles)%2 == 1 {
				nibbles = append(nibbles, '0')
			}
			out := make([]byte, len(nibbles)/2)
			for i := range out {
				out[i] = fromHex(nibbles[2*i])<<4 | fromHex(nibbles[2*i+1])
			}
			return Token{Type: TokenString, Bytes: out, Hex: true, Pos: start}, nil
		}
		if isWhitespace(c) {
			continue
		}
		if !isHex(c) {
			return Token{}, fmt.Errorf("invalid hex digit %q at %d", c, s.pos-1)
		}
		nibbles = append(nibbles, c)
	}
	return Token{}, fmt.Errorf("unterminated hex string at %d", start)
}

func (s *Scanner) scanNumber() (Token, bool) {
	start := s.pos
	end := start
	for end < int64(len(s.data)) && !isDelimiter(s.data[end]) {
		end++
	}
	lit := string(s.data[start:end])
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		s.pos = end
		return Token{Type: TokenNumber, Int: i, IsInt: true, Pos: start}, true
	}
	if f, err := strconv.ParseFloat(lit, 64); err == nil {
		s.pos = end
		return Token{Type: TokenNumber, Float: f, Pos: start}, true
	}
	return Token{}, false
}

// scanNumberOrRef reads a number and, when the next two tokens are an
// integer and the keyword R, folds all three into a reference.
func (s *Scanner) scanNumberOrRef() (Token, error) {
	start := s.pos
	tok, ok := s.scanNumber()
	if !ok {
		return s.scanKeyword()
	}
	if !tok.IsInt || tok.Int < 0 {
		return tok, nil
	}
	save := s.pos
	s.skipWSAndComments()
	if s.pos < int64(len(s.data)) && s.data[s.pos] >= '0' && s.data[s.pos] <= '9' {
		gen, ok := s.scanNumber()
		if ok && gen.IsInt {
			s.skipWSAndComments()
			if s.pos < int64(len(s.data)) && s.data[s.pos] == 'R' &&
				(s.pos+1 >= int64(len(s.data)) || isDelimiter(s.data[s.pos+1])) {
				s.pos++
				return Token{Type: TokenRef, Int: tok.Int, Gen: gen.Int, Pos: start}, nil
			}
		}
	}
	s.pos = save
	return tok, nil
}

func (s *Scanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) && !isDelimiter(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		s.pos++
	}
	word := string(s.data[start:s.pos])
	switch word {
	case "true", "false":
		return Token{Type: TokenBoolean, Str: word, Bool: word == "true", Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Str: word, Pos: start}, nil
	case "stream":
		return s.scanStream(start)
	}
	return Token{Type: TokenKeyword, Str: word, Pos: start}, nil
}

// scanStream consumes the stream payload after the 'stream' keyword and the
// trailing 'endstream'.
func (s *Scanner) scanStream(start int64) (Token, error) {
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\r' {
		s.pos++
	}
	if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
		s.pos++
	}
	dataStart := s.pos
	needle := []byte("endstream")
	length := s.nextStreamLen
	s.nextStreamLen = -1
	if length >= 0 && dataStart+length <= int64(len(s.data)) {
		if s.cfg.MaxStreamLength > 0 && length > s.cfg.MaxStreamLength {
			return Token{}, ErrStreamTooLong
		}
		end := dataStart + length
		rest := bytes.TrimLeft(s.data[end:], "\r\n \t")
		if bytes.HasPrefix(rest, needle) {
			payload := append([]byte(nil), s.data[dataStart:end]...)
			s.pos = int64(len(s.data)-len(rest)) + int64(len(needle))
			return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
		}
		// Declared length is wrong: fall back to scanning.
	}
	idx := bytes.Index(s.data[dataStart:], needle)
	if idx < 0 {
		return Token{}, fmt.Errorf("stream at %d has no endstream", start)
	}
	end := dataStart + int64(idx)
	if end > dataStart && s.data[end-1] == '\n' {
		end--
	}
	if end > dataStart && s.data[end-1] == '\r' {
		end--
	}
	if s.cfg.MaxStreamLength > 0 && end-dataStart > s.cfg.MaxStreamLength {
		return Token{}, ErrStreamTooLong
	}
	payload := append([]byte(nil), s.data[dataStart:end]...)
	s.pos = dataStart + int64(idx) + int64(len(needle))
	return Token{Type: TokenStream, Bytes: payload, Pos: start}, nil
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

func isWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

func isEOL(c byte) bool { return c == '\r' || c == '\n' }

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	default:
		return isWhitespace(c)
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}
