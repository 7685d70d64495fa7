package core

import (
	"bytes"
	"fmt"
)

// ObjectStream gives access to the objects packed inside an /ObjStm
// container (PDF 1.5+). The header region of the decoded payload
// lists N (number, offset) pairs; offsets are relative to /First.
//
// Decoding and header parsing happen lazily on first access, so a
// document full of object streams only pays for the containers it
// actually resolves through.
type ObjectStream struct {
	stream *Stream
	count  int
	first  int

	loaded  bool
	loadErr error
	data    []byte
	offsets []objStmOffset
}

type objStmOffset struct {
	number int
	offset int
}

// NewObjectStream validates the container dictionary and wraps the
// stream. The payload is not decoded yet.
func NewObjectStream(stream *Stream) (*ObjectStream, error) {
	if typ, _ := stream.Dict.GetName("Type"); typ != "ObjStm" {
		return nil, &ParseError{Msg: "object stream has wrong /Type"}
	}
	count, ok := stream.Dict.GetInt("N")
	if !ok || count < 0 {
		return nil, &ParseError{Msg: "object stream missing /N"}
	}
	first, ok := stream.Dict.GetInt("First")
	if !ok || first < 0 {
		return nil, &ParseError{Msg: "object stream missing /First"}
	}
	return &ObjectStream{
		stream: stream,
		count:  int(count),
		first:  int(first),
	}, nil
}

// Count returns the declared number of packed objects.
func (o *ObjectStream) Count() int { return o.count }

// load decodes the payload and parses the header pair table.
func (o *ObjectStream) load() error {
	if o.loaded {
		return o.loadErr
	}
	o.loaded = true

	data, err := o.stream.Decode()
	if err != nil {
		o.loadErr = err
		return err
	}
	if o.first > len(data) {
		o.loadErr = &ParseError{Msg: "object stream /First beyond payload"}
		return o.loadErr
	}
	o.data = data

	parser := NewParser(bytes.NewReader(data[:o.first]))
	offsets := make([]objStmOffset, 0, o.count)
	for i := 0; i < o.count; i++ {
		numObj, err := parser.ParseObject()
		if err != nil {
			break
		}
		offObj, err := parser.ParseObject()
		if err != nil {
			break
		}
		num, ok1 := numObj.(Int)
		off, ok2 := offObj.(Int)
		if !ok1 || !ok2 {
			break
		}
		offsets = append(offsets, objStmOffset{number: int(num), offset: int(off)})
	}
	o.offsets = offsets
	return nil
}

// GetByIndex parses the object at the given position in the
// container.
func (o *ObjectStream) GetByIndex(index int) (Object, error) {
	if err := o.load(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(o.offsets) {
		return nil, &ParseError{Msg: fmt.Sprintf("object stream index %d out of range", index)}
	}
	start := o.first + o.offsets[index].offset
	if start < 0 || start > len(o.data) {
		return nil, &ParseError{Msg: "object stream offset beyond payload"}
	}
	parser := NewParser(bytes.NewReader(o.data[start:]))
	return parser.ParseObject()
}

// GetByNumber parses the packed object with the given object number.
func (o *ObjectStream) GetByNumber(num int) (Object, error) {
	if err := o.load(); err != nil {
		return nil, err
	}
	for i, pair := range o.offsets {
		if pair.number == num {
			return o.GetByIndex(i)
		}
	}
	return nil, &ParseError{Msg: fmt.Sprintf("object %d not in object stream", num)}
}

// NumberAt returns the object number stored at the given index.
func (o *ObjectStream) NumberAt(index int) (int, bool) {
	if err := o.load(); err != nil {
		return 0, false
	}
	if index < 0 || index >= len(o.offsets) {
		return 0, false
	}
	return o.offsets[index].number, true
}
