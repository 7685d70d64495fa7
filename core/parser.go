package core

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// ReferenceResolver resolves indirect references encountered during
// parsing. The parser needs one when a stream's /Length is itself an
// indirect object. reader.Reader implements it.
type ReferenceResolver interface {
	Resolve(ref IndirectRef) (Object, error)
}

// Parser assembles tokens into PDF objects. Construct one per parse
// site: the document reader seeks to a byte offset and parses a single
// indirect object from there.
type Parser struct {
	lexer    *Lexer
	resolver ReferenceResolver
	base     int64 // absolute file offset of the lexer's position 0

	// Tokens pushed back during lookahead, most recent last.
	pushed []Token
}

// NewParser creates a Parser reading from r.
func NewParser(r io.Reader) *Parser {
	return NewParserAt(r, 0)
}

// NewParserAt creates a Parser whose input begins at the given
// absolute file offset. The offset only affects positions reported in
// errors and recorded on streams.
func NewParserAt(r io.Reader, offset int64) *Parser {
	return &Parser{lexer: NewLexer(r), base: offset}
}

// SetResolver installs the resolver used for indirect /Length values.
func (p *Parser) SetResolver(res ReferenceResolver) {
	p.resolver = res
}

func (p *Parser) nextToken() (Token, error) {
	if n := len(p.pushed); n > 0 {
		tok := p.pushed[n-1]
		p.pushed = p.pushed[:n-1]
		return tok, nil
	}
	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return Token{}, err
		}
		if tok.Type == TokenComment {
			continue
		}
		return tok, nil
	}
}

func (p *Parser) pushToken(tok Token) {
	p.pushed = append(p.pushed, tok)
}

func (p *Parser) errAt(tok Token, format string, args ...interface{}) error {
	return &ParseError{Pos: p.base + tok.Pos, Msg: fmt.Sprintf(format, args...)}
}

// ParseObject parses the next complete object from the input.
func (p *Parser) ParseObject() (Object, error) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	return p.parseFrom(tok)
}

func (p *Parser) parseFrom(tok Token) (Object, error) {
	switch tok.Type {
	case TokenEOF:
		return nil, p.errAt(tok, "unexpected end of input")
	case TokenInteger:
		return p.parseNumeric(tok)
	case TokenReal:
		f, err := strconv.ParseFloat(string(tok.Value), 64)
		if err != nil {
			return nil, p.errAt(tok, "invalid real %q", tok.Value)
		}
		return Real(f), nil
	case TokenString:
		return String(tok.Value), nil
	case TokenName:
		return Name(tok.Value), nil
	case TokenArrayOpen:
		return p.parseArray()
	case TokenDictOpen:
		return p.parseDictOrStream()
	case TokenKeyword:
		switch string(tok.Value) {
		case "true":
			return Bool(true), nil
		case "false":
			return Bool(false), nil
		case "null":
			return Null{}, nil
		}
		return nil, p.errAt(tok, "unexpected keyword %q", tok.Value)
	}
	return nil, p.errAt(tok, "unexpected input %q", tok.Value)
}

// parseNumeric handles the three-token "N G R" lookahead: an integer
// is only an integer once the next two tokens rule out a reference.
func (p *Parser) parseNumeric(tok Token) (Object, error) {
	n, err := strconv.ParseInt(string(tok.Value), 10, 64)
	if err != nil {
		return nil, p.errAt(tok, "invalid integer %q", tok.Value)
	}

	second, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	if second.Type == TokenInteger {
		third, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		if third.Type == TokenKeyword && bytes.Equal(third.Value, []byte("R")) {
			gen, err := strconv.Atoi(string(second.Value))
			if err != nil {
				return nil, p.errAt(second, "invalid generation %q", second.Value)
			}
			return IndirectRef{Number: int(n), Generation: gen}, nil
		}
		p.pushToken(third)
	}
	p.pushToken(second)
	return Int(n), nil
}

func (p *Parser) parseArray() (Object, error) {
	arr := Array{}
	for {
		tok, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenArrayClose:
			return arr, nil
		case TokenEOF:
			return nil, p.errAt(tok, "unterminated array")
		case TokenJunk:
			// Skip stray bytes inside arrays; damaged producers
			// leave them behind and the elements around them are
			// still good.
			continue
		}
		elem, err := p.parseFrom(tok)
		if err != nil {
			return nil, err
		}
		arr = append(arr, elem)
	}
}

func (p *Parser) parseDictOrShallow() (Dict, error) {
	dict := Dict{}
	for {
		tok, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case TokenDictClose:
			return dict, nil
		case TokenEOF:
			return nil, p.errAt(tok, "unterminated dictionary")
		case TokenJunk:
			continue
		case TokenName:
			value, err := p.ParseObject()
			if err != nil {
				return nil, err
			}
			dict[string(tok.Value)] = value
		default:
			return nil, p.errAt(tok, "dictionary key must be a name, got %q", tok.Value)
		}
	}
}

// parseDictOrStream parses a dictionary and, if the stream keyword
// follows, the stream payload attached to it.
func (p *Parser) parseDictOrStream() (Object, error) {
	dict, err := p.parseDictOrShallow()
	if err != nil {
		return nil, err
	}

	tok, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	if tok.Type == TokenKeyword && bytes.Equal(tok.Value, []byte("stream")) {
		return p.parseStream(dict, tok)
	}
	p.pushToken(tok)
	return dict, nil
}

var endstreamMarker = []byte("endstream")

// parseStream reads a stream payload. The declared /Length sizes the
// read; when the bytes after the payload are not the endstream keyword
// the length was wrong, and the real boundary is found by scanning for
// the literal keyword instead. A missing or unresolvable /Length goes
// straight to the scan.
func (p *Parser) parseStream(dict Dict, kw Token) (Object, error) {
	length, haveLength := p.streamLength(dict)

	p.lexer.SkipEOL()
	payloadOffset := p.base + p.lexer.Pos()

	if haveLength {
		data, err := p.lexer.ReadBytes(int(length))
		if err != nil {
			return nil, p.errAt(kw, "stream payload truncated at end of input")
		}
		if p.lexer.TryKeyword(endstreamMarker) {
			dict.Set("Length", Int(len(data)))
			return &Stream{Dict: dict, Data: data, Offset: payloadOffset}, nil
		}
		// Declared length disagrees with the file. The marker is
		// either inside what was read or further ahead.
		if idx := bytes.Index(data, endstreamMarker); idx >= 0 {
			p.lexer.PushBack(data[idx+len(endstreamMarker):])
			payload := trimStreamEOL(data[:idx])
			dict.Set("Length", Int(len(payload)))
			return &Stream{Dict: dict, Data: payload, Offset: payloadOffset}, nil
		}
		extra, err := p.lexer.ReadThrough(endstreamMarker)
		if err != nil {
			return nil, p.errAt(kw, "missing endstream keyword")
		}
		payload := trimStreamEOL(append(data, extra...))
		dict.Set("Length", Int(len(payload)))
		return &Stream{Dict: dict, Data: payload, Offset: payloadOffset}, nil
	}

	data, err := p.lexer.ReadThrough(endstreamMarker)
	if err != nil {
		return nil, p.errAt(kw, "missing endstream keyword")
	}
	payload := trimStreamEOL(data)
	dict.Set("Length", Int(len(payload)))
	return &Stream{Dict: dict, Data: payload, Offset: payloadOffset}, nil
}

// streamLength resolves the declared /Length, following one level of
// indirection through the installed resolver.
func (p *Parser) streamLength(dict Dict) (int64, bool) {
	switch v := dict.Get("Length").(type) {
	case Int:
		if v >= 0 {
			return int64(v), true
		}
	case IndirectRef:
		if p.resolver == nil {
			return 0, false
		}
		obj, err := p.resolver.Resolve(v)
		if err != nil {
			return 0, false
		}
		if n, ok := obj.(Int); ok && n >= 0 {
			return int64(n), true
		}
	}
	return 0, false
}

// trimStreamEOL removes the single EOL that separates payload bytes
// from the endstream keyword. Only applied on the scan path; an exact
// /Length already excludes it.
func trimStreamEOL(data []byte) []byte {
	if n := len(data); n > 0 {
		if data[n-1] == '\n' {
			if n > 1 && data[n-2] == '\r' {
				return data[:n-2]
			}
			return data[:n-1]
		}
		if data[n-1] == '\r' {
			return data[:n-1]
		}
	}
	return data
}

// ParseIndirectObject parses a full "N G obj ... endobj" definition.
// A missing endobj keyword is tolerated; the next object's header
// re-synchronizes parsing anyway.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	numTok, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	if numTok.Type != TokenInteger {
		return nil, p.errAt(numTok, "expected object number, got %q", numTok.Value)
	}
	num, err := strconv.Atoi(string(numTok.Value))
	if err != nil {
		return nil, p.errAt(numTok, "invalid object number %q", numTok.Value)
	}

	genTok, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	if genTok.Type != TokenInteger {
		return nil, p.errAt(genTok, "expected generation number, got %q", genTok.Value)
	}
	gen, err := strconv.Atoi(string(genTok.Value))
	if err != nil {
		return nil, p.errAt(genTok, "invalid generation number %q", genTok.Value)
	}

	objTok, err := p.nextToken()
	if err != nil {
		return nil, err
	}
	if objTok.Type != TokenKeyword || !bytes.Equal(objTok.Value, []byte("obj")) {
		return nil, p.errAt(objTok, "expected obj keyword, got %q", objTok.Value)
	}

	obj, err := p.ParseObject()
	if err != nil {
		return nil, err
	}

	end, err := p.nextToken()
	if err == nil && !(end.Type == TokenKeyword && bytes.Equal(end.Value, []byte("endobj"))) {
		p.pushToken(end)
	}

	return &IndirectObject{
		Ref:    IndirectRef{Number: num, Generation: gen},
		Object: obj,
	}, nil
}
