package core

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ObjectType identifies the concrete type behind an Object value.
type ObjectType int

const (
	TypeNull ObjectType = iota
	TypeBool
	TypeInt
	TypeReal
	TypeString
	TypeName
	TypeArray
	TypeDict
	TypeStream
	TypeIndirectRef
)

var objectTypeNames = [...]string{
	TypeNull:        "Null",
	TypeBool:        "Bool",
	TypeInt:         "Int",
	TypeReal:        "Real",
	TypeString:      "String",
	TypeName:        "Name",
	TypeArray:       "Array",
	TypeDict:        "Dict",
	TypeStream:      "Stream",
	TypeIndirectRef: "IndirectRef",
}

func (t ObjectType) String() string {
	if t >= 0 && int(t) < len(objectTypeNames) {
		return objectTypeNames[t]
	}
	return "Unknown"
}

// Object is the interface satisfied by every PDF object variant.
// Consumers discriminate with a type switch or by calling Type.
type Object interface {
	Type() ObjectType
	String() string
}

// Null represents the PDF null object. Unresolvable references resolve
// to Null rather than producing an error.
type Null struct{}

func (Null) Type() ObjectType { return TypeNull }
func (Null) String() string   { return "null" }

// Bool represents a PDF boolean.
type Bool bool

func (b Bool) Type() ObjectType { return TypeBool }
func (b Bool) String() string   { return strconv.FormatBool(bool(b)) }

// Int represents a PDF integer.
type Int int64

func (i Int) Type() ObjectType { return TypeInt }
func (i Int) String() string   { return strconv.FormatInt(int64(i), 10) }

// Real represents a PDF real number.
type Real float64

func (r Real) Type() ObjectType { return TypeReal }
func (r Real) String() string   { return strconv.FormatFloat(float64(r), 'f', -1, 64) }

// String represents a PDF string object. Both literal (...) and
// hexadecimal <...> forms decode to the same raw byte sequence; the
// written form is not preserved.
type String []byte

func (s String) Type() ObjectType { return TypeString }

func (s String) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(')')
	return b.String()
}

// Name represents a PDF name object. The value excludes the leading
// slash and has #xx escapes already decoded.
type Name string

func (n Name) Type() ObjectType { return TypeName }
func (n Name) String() string   { return "/" + string(n) }

// Array represents a PDF array.
type Array []Object

func (a Array) Type() ObjectType { return TypeArray }

func (a Array) String() string {
	parts := make([]string, len(a))
	for i, obj := range a {
		parts[i] = obj.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// GetDict returns the element at index i if it is a Dict.
func (a Array) GetDict(i int) (Dict, bool) {
	if i < 0 || i >= len(a) {
		return nil, false
	}
	d, ok := a[i].(Dict)
	return d, ok
}

// GetInt returns the element at index i if it is an Int.
func (a Array) GetInt(i int) (int64, bool) {
	if i < 0 || i >= len(a) {
		return 0, false
	}
	n, ok := a[i].(Int)
	return int64(n), ok
}

// Dict represents a PDF dictionary. Keys are stored without the
// leading slash.
type Dict map[string]Object

func (d Dict) Type() ObjectType { return TypeDict }

func (d Dict) String() string {
	keys := d.SortedKeys()
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, "/"+k+" "+d[k].String())
	}
	return "<<" + strings.Join(parts, " ") + ">>"
}

// Get returns the value for key, or nil if the key is absent.
func (d Dict) Get(key string) Object {
	if d == nil {
		return nil
	}
	return d[key]
}

// Has reports whether key is present.
func (d Dict) Has(key string) bool {
	_, ok := d[key]
	return ok
}

// Set stores value under key, allocating nothing for the caller to
// worry about beyond the map itself.
func (d Dict) Set(key string, value Object) {
	d[key] = value
}

// Keys returns the dictionary keys in map order.
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	return keys
}

// SortedKeys returns the dictionary keys in lexicographic order.
// Callers that need deterministic iteration use this.
func (d Dict) SortedKeys() []string {
	keys := d.Keys()
	sort.Strings(keys)
	return keys
}

// GetName returns the value for key if it is a Name.
func (d Dict) GetName(key string) (Name, bool) {
	n, ok := d.Get(key).(Name)
	return n, ok
}

// GetInt returns the value for key if it is an Int.
func (d Dict) GetInt(key string) (int64, bool) {
	n, ok := d.Get(key).(Int)
	return int64(n), ok
}

// GetNumber returns the value for key if it is an Int or a Real.
func (d Dict) GetNumber(key string) (float64, bool) {
	return NumberValue(d.Get(key))
}

// GetBool returns the value for key if it is a Bool.
func (d Dict) GetBool(key string) (bool, bool) {
	b, ok := d.Get(key).(Bool)
	return bool(b), ok
}

// GetString returns the value for key if it is a String.
func (d Dict) GetString(key string) (String, bool) {
	s, ok := d.Get(key).(String)
	return s, ok
}

// GetArray returns the value for key if it is an Array.
func (d Dict) GetArray(key string) (Array, bool) {
	a, ok := d.Get(key).(Array)
	return a, ok
}

// GetDict returns the value for key if it is a Dict.
func (d Dict) GetDict(key string) (Dict, bool) {
	sub, ok := d.Get(key).(Dict)
	return sub, ok
}

// GetStream returns the value for key if it is a *Stream.
func (d Dict) GetStream(key string) (*Stream, bool) {
	s, ok := d.Get(key).(*Stream)
	return s, ok
}

// GetIndirectRef returns the value for key if it is an IndirectRef.
func (d Dict) GetIndirectRef(key string) (IndirectRef, bool) {
	ref, ok := d.Get(key).(IndirectRef)
	return ref, ok
}

// Stream represents a PDF stream: a dictionary plus the raw payload
// bytes exactly as they appear in the file. Offset is the absolute
// byte position of the first payload byte, recorded so encrypted
// regions can be reported without decoding them.
//
// Decode (stream.go) runs the payload through its Filter chain and
// memoizes the result.
type Stream struct {
	Dict   Dict
	Data   []byte
	Offset int64

	decoded   []byte
	decodeErr error
	ran       bool
}

func (s *Stream) Type() ObjectType { return TypeStream }

func (s *Stream) String() string {
	return fmt.Sprintf("stream(%s, %d bytes)", s.Dict.String(), len(s.Data))
}

// Length returns the declared /Length if it is a direct integer.
// An indirect /Length has already been resolved by the parser, so a
// missing value here means the dictionary itself was malformed.
func (s *Stream) Length() (int64, bool) {
	return s.Dict.GetInt("Length")
}

// FilterNames returns the stream's filter chain in application order.
// A single Name and an Array of Names are both accepted; other shapes
// yield an empty chain.
func (s *Stream) FilterNames() []string {
	switch f := s.Dict.Get("Filter").(type) {
	case Name:
		return []string{string(f)}
	case Array:
		names := make([]string, 0, len(f))
		for _, obj := range f {
			if n, ok := obj.(Name); ok {
				names = append(names, string(n))
			}
		}
		return names
	}
	return nil
}

// IndirectRef identifies an indirect object by number and generation.
type IndirectRef struct {
	Number     int
	Generation int
}

func (r IndirectRef) Type() ObjectType { return TypeIndirectRef }

func (r IndirectRef) String() string {
	return fmt.Sprintf("%d %d R", r.Number, r.Generation)
}

// IndirectObject pairs a parsed object with the identity declared in
// its "N G obj" header.
type IndirectObject struct {
	Ref    IndirectRef
	Object Object
}

func (o IndirectObject) String() string {
	return fmt.Sprintf("%d %d obj %s", o.Ref.Number, o.Ref.Generation, o.Object.String())
}

// NumberValue extracts a float64 from an Int or Real object.
func NumberValue(obj Object) (float64, bool) {
	switch n := obj.(type) {
	case Int:
		return float64(n), true
	case Real:
		return float64(n), true
	}
	return 0, false
}

// IntValue extracts an int64 from an Int object, truncating a Real.
func IntValue(obj Object) (int64, bool) {
	switch n := obj.(type) {
	case Int:
		return int64(n), true
	case Real:
		return int64(n), true
	}
	return 0, false
}
