package core

import (
	"bufio"
	"bytes"
	"io"
)

// TokenType classifies tokens produced by the Lexer.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenInteger
	TokenReal
	TokenString // literal and hex strings, already decoded to raw bytes
	TokenName
	TokenArrayOpen
	TokenArrayClose
	TokenDictOpen
	TokenDictClose
	TokenKeyword // obj, endobj, stream, R, true, null, xref, trailer, ...
	TokenComment
	TokenJunk // an unexpected byte, isolated so scanning can continue
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenInteger:
		return "Integer"
	case TokenReal:
		return "Real"
	case TokenString:
		return "String"
	case TokenName:
		return "Name"
	case TokenArrayOpen:
		return "ArrayOpen"
	case TokenArrayClose:
		return "ArrayClose"
	case TokenDictOpen:
		return "DictOpen"
	case TokenDictClose:
		return "DictClose"
	case TokenKeyword:
		return "Keyword"
	case TokenComment:
		return "Comment"
	case TokenJunk:
		return "Junk"
	}
	return "Unknown"
}

// Token is a single lexical unit. Pos is the byte offset of the
// token's first byte, counted from where the Lexer started reading.
type Token struct {
	Type  TokenType
	Value []byte
	Pos   int64
}

// Lexer tokenizes PDF syntax from an io.Reader. A Lexer is cheap to
// construct, so random-access callers make one per region of interest
// (the reader seeks to an xref offset or object offset and lexes from
// there).
//
// The lexer is deliberately permissive: bytes that cannot start any
// token become TokenJunk and scanning continues. Only a string left
// open at end of input is an error.
type Lexer struct {
	r   *bufio.Reader
	pos int64
}

// NewLexer creates a Lexer reading from r. Position 0 is r's current
// position.
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{r: bufio.NewReaderSize(r, 4096)}
}

// Pos returns the offset of the next unread byte.
func (l *Lexer) Pos() int64 { return l.pos }

func (l *Lexer) readByte() (byte, error) {
	c, err := l.r.ReadByte()
	if err == nil {
		l.pos++
	}
	return c, err
}

func (l *Lexer) unreadByte() {
	if l.r.UnreadByte() == nil {
		l.pos--
	}
}

func (l *Lexer) peekByte() (byte, error) {
	b, err := l.r.Peek(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// isWhitespace reports whether c is PDF whitespace: NUL, tab, LF,
// FF, CR, or space.
func isWhitespace(c byte) bool {
	switch c {
	case 0x00, 0x09, 0x0A, 0x0C, 0x0D, 0x20:
		return true
	}
	return false
}

// isDelimiter reports whether c is a PDF delimiter character.
func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(c byte) bool {
	return !isWhitespace(c) && !isDelimiter(c)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func hexValue(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// NextToken returns the next token. At end of input it returns a
// TokenEOF token with a nil error; a non-nil error is returned only
// for unrecoverable input (unterminated strings).
func (l *Lexer) NextToken() (Token, error) {
	c, err := l.skipWhitespace()
	if err != nil {
		return Token{Type: TokenEOF, Pos: l.pos}, nil
	}

	start := l.pos - 1

	switch {
	case c == '%':
		return l.readComment(start)
	case c == '(':
		return l.readLiteralString(start)
	case c == '<':
		next, err := l.peekByte()
		if err == nil && next == '<' {
			l.readByte()
			return Token{Type: TokenDictOpen, Value: []byte("<<"), Pos: start}, nil
		}
		return l.readHexString(start)
	case c == '>':
		next, err := l.peekByte()
		if err == nil && next == '>' {
			l.readByte()
			return Token{Type: TokenDictClose, Value: []byte(">>"), Pos: start}, nil
		}
		return Token{Type: TokenJunk, Value: []byte{c}, Pos: start}, nil
	case c == '[':
		return Token{Type: TokenArrayOpen, Value: []byte{c}, Pos: start}, nil
	case c == ']':
		return Token{Type: TokenArrayClose, Value: []byte{c}, Pos: start}, nil
	case c == '/':
		return l.readName(start)
	case isDigit(c) || c == '+' || c == '-' || c == '.':
		return l.readNumber(c, start)
	case isRegular(c):
		return l.readKeyword(c, start)
	}

	// ')', '{', '}' and anything else with no token to start.
	return Token{Type: TokenJunk, Value: []byte{c}, Pos: start}, nil
}

// skipWhitespace consumes whitespace and returns the first
// non-whitespace byte.
func (l *Lexer) skipWhitespace() (byte, error) {
	for {
		c, err := l.readByte()
		if err != nil {
			return 0, err
		}
		if !isWhitespace(c) {
			return c, nil
		}
	}
}

func (l *Lexer) readComment(start int64) (Token, error) {
	var buf bytes.Buffer
	for {
		c, err := l.readByte()
		if err != nil || c == '\n' || c == '\r' {
			break
		}
		buf.WriteByte(c)
	}
	return Token{Type: TokenComment, Value: buf.Bytes(), Pos: start}, nil
}

func (l *Lexer) readLiteralString(start int64) (Token, error) {
	var buf bytes.Buffer
	depth := 1
	for {
		c, err := l.readByte()
		if err != nil {
			return Token{}, &LexError{Pos: start, Msg: "unterminated literal string"}
		}
		switch c {
		case '\\':
			if err := l.readStringEscape(&buf, start); err != nil {
				return Token{}, err
			}
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Value: buf.Bytes(), Pos: start}, nil
			}
			buf.WriteByte(c)
		case '\r':
			// CR and CRLF inside a string both read back as LF.
			if next, err := l.peekByte(); err == nil && next == '\n' {
				l.readByte()
			}
			buf.WriteByte('\n')
		default:
			buf.WriteByte(c)
		}
	}
}

func (l *Lexer) readStringEscape(buf *bytes.Buffer, start int64) error {
	c, err := l.readByte()
	if err != nil {
		return &LexError{Pos: start, Msg: "unterminated literal string"}
	}
	switch c {
	case 'n':
		buf.WriteByte('\n')
	case 'r':
		buf.WriteByte('\r')
	case 't':
		buf.WriteByte('\t')
	case 'b':
		buf.WriteByte('\b')
	case 'f':
		buf.WriteByte('\f')
	case '(', ')', '\\':
		buf.WriteByte(c)
	case '\r':
		// Backslash-EOL is a line continuation; nothing is emitted.
		if next, err := l.peekByte(); err == nil && next == '\n' {
			l.readByte()
		}
	case '\n':
	default:
		if c >= '0' && c <= '7' {
			val := int(c - '0')
			for i := 0; i < 2; i++ {
				next, err := l.peekByte()
				if err != nil || next < '0' || next > '7' {
					break
				}
				l.readByte()
				val = val*8 + int(next-'0')
			}
			buf.WriteByte(byte(val))
		} else {
			// Unknown escape: the backslash is dropped.
			buf.WriteByte(c)
		}
	}
	return nil
}

func (l *Lexer) readHexString(start int64) (Token, error) {
	var buf bytes.Buffer
	var hi byte
	havehi := false
	for {
		c, err := l.readByte()
		if err != nil {
			return Token{}, &LexError{Pos: start, Msg: "unterminated hex string"}
		}
		if c == '>' {
			if havehi {
				// Odd digit count: final digit is padded with 0.
				buf.WriteByte(hi << 4)
			}
			return Token{Type: TokenString, Value: buf.Bytes(), Pos: start}, nil
		}
		v, ok := hexValue(c)
		if !ok {
			// Whitespace is expected here; anything else is skipped
			// so one bad byte does not lose the string.
			continue
		}
		if havehi {
			buf.WriteByte(hi<<4 | v)
			havehi = false
		} else {
			hi = v
			havehi = true
		}
	}
}

func (l *Lexer) readName(start int64) (Token, error) {
	var buf bytes.Buffer
	for {
		c, err := l.readByte()
		if err != nil {
			break
		}
		if !isRegular(c) {
			l.unreadByte()
			break
		}
		if c == '#' {
			h1, err1 := l.peekByte()
			if v1, ok := hexValue(h1); err1 == nil && ok {
				l.readByte()
				h2, err2 := l.peekByte()
				if v2, ok2 := hexValue(h2); err2 == nil && ok2 {
					l.readByte()
					buf.WriteByte(v1<<4 | v2)
					continue
				}
				buf.WriteByte('#')
				buf.WriteByte(h1)
				continue
			}
		}
		buf.WriteByte(c)
	}
	return Token{Type: TokenName, Value: buf.Bytes(), Pos: start}, nil
}

func (l *Lexer) readNumber(first byte, start int64) (Token, error) {
	var buf bytes.Buffer
	buf.WriteByte(first)
	isReal := first == '.'
	for {
		c, err := l.readByte()
		if err != nil {
			break
		}
		if isDigit(c) {
			buf.WriteByte(c)
			continue
		}
		if c == '.' && !isReal {
			isReal = true
			buf.WriteByte(c)
			continue
		}
		l.unreadByte()
		break
	}
	val := buf.Bytes()
	// A lone sign or dot is not a number.
	if len(val) == 1 && !isDigit(val[0]) {
		return Token{Type: TokenJunk, Value: val, Pos: start}, nil
	}
	if isReal {
		return Token{Type: TokenReal, Value: val, Pos: start}, nil
	}
	return Token{Type: TokenInteger, Value: val, Pos: start}, nil
}

func (l *Lexer) readKeyword(first byte, start int64) (Token, error) {
	var buf bytes.Buffer
	buf.WriteByte(first)
	for {
		c, err := l.readByte()
		if err != nil {
			break
		}
		if !isRegular(c) {
			l.unreadByte()
			break
		}
		buf.WriteByte(c)
	}
	return Token{Type: TokenKeyword, Value: buf.Bytes(), Pos: start}, nil
}

// ReadBytes reads exactly n bytes of raw data, bypassing
// tokenization. Used for stream payloads.
func (l *Lexer) ReadBytes(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(l.r, buf)
	l.pos += int64(read)
	if err != nil {
		return buf[:read], err
	}
	return buf, nil
}

// SkipEOL consumes a single end-of-line sequence (CRLF, LF, or CR)
// if one is present. The payload of a stream begins after the EOL
// that follows the stream keyword.
func (l *Lexer) SkipEOL() {
	c, err := l.peekByte()
	if err != nil {
		return
	}
	if c == '\r' {
		l.readByte()
		if next, err := l.peekByte(); err == nil && next == '\n' {
			l.readByte()
		}
		return
	}
	if c == '\n' {
		l.readByte()
	}
}

// TryKeyword consumes leading whitespace and then the keyword kw if
// it is the next thing in the input, reporting whether it matched.
// On a non-match nothing is consumed: skipped whitespace is pushed
// back, so callers that fall into a recovery scan see the input
// byte-for-byte. Stream payloads can legitimately end in whitespace,
// and dropping it here would corrupt the recovered payload.
func (l *Lexer) TryKeyword(kw []byte) bool {
	var skipped []byte
	miss := func() bool {
		l.PushBack(skipped)
		return false
	}
	for {
		c, err := l.peekByte()
		if err != nil {
			return miss()
		}
		if !isWhitespace(c) {
			break
		}
		l.readByte()
		skipped = append(skipped, c)
	}
	peeked, err := l.r.Peek(len(kw) + 1)
	if err != nil {
		// Short input: the keyword may still fit exactly.
		if len(peeked) < len(kw) {
			return miss()
		}
	}
	if !bytes.Equal(peeked[:len(kw)], kw) {
		return miss()
	}
	if len(peeked) > len(kw) && isRegular(peeked[len(kw)]) {
		return miss()
	}
	l.ReadBytes(len(kw))
	return true
}

// ReadThrough reads until marker is found, returning the bytes before
// it and consuming the marker itself. io.EOF is returned (with the
// bytes read so far) when the input ends before the marker appears.
func (l *Lexer) ReadThrough(marker []byte) ([]byte, error) {
	var buf bytes.Buffer
	for {
		c, err := l.readByte()
		if err != nil {
			return buf.Bytes(), io.EOF
		}
		buf.WriteByte(c)
		if buf.Len() >= len(marker) && bytes.HasSuffix(buf.Bytes(), marker) {
			data := buf.Bytes()
			return data[:len(data)-len(marker)], nil
		}
	}
}

// PushBack prepends data to the unread input. The stream-length
// recovery path uses this to return over-read bytes to the token
// stream.
func (l *Lexer) PushBack(data []byte) {
	if len(data) == 0 {
		return
	}
	l.r = bufio.NewReaderSize(io.MultiReader(bytes.NewReader(data), l.r), 4096)
	l.pos -= int64(len(data))
}
