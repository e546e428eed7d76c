// Package jsondoc parses JSON while keeping object key order, so reviewer notes
// and assessment files can be re-indented or flattened without shuffling fields.
package jsondoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Object is a JSON object that remembers the order keys first appeared in.
type Object struct {
	Keys   []string
	Values map[string]any
}

func NewObject() *Object {
	return &Object{Values: map[string]any{}}
}

// Set stores v under key. A repeated key keeps its first position and the last value.
func (o *Object) Set(key string, v any) {
	if _, ok := o.Values[key]; !ok {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = v
}

func (o *Object) Get(key string) (any, bool) {
	v, ok := o.Values[key]
	return v, ok
}

func (o *Object) Len() int { return len(o.Keys) }

// Parse decodes a single JSON value. Objects become *Object, arrays []any,
// numbers json.Number and the rest string, bool or nil.
func Parse(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := parseValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse json: trailing data after value")
	}
	return v, nil
}

// ParseObject is Parse for documents that must be a JSON object.
func ParseObject(data []byte) (*Object, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("parse json: top-level value is %T, want object", v)
	}
	return obj, nil
}

func parseValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse json: unexpected end of input")
		}
		return nil, fmt.Errorf("parse json: %w", err)
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch delim {
	case '{':
		obj := NewObject()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("parse json: %w", err)
			}
			key, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("parse json: object key %v is not a string", kt)
			}
			v, err := parseValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return obj, nil
	case '[':
		arr := []any{}
		for dec.More() {
			v, err := parseValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("parse json: unexpected delimiter %q", delim)
	}
}

// Indent renders v with one indent unit per nesting level, ": " after keys and
// non-ASCII text left unescaped.
func Indent(v any, indent string) string {
	var b strings.Builder
	writeIndented(&b, v, indent, 0)
	return b.String()
}

// Compact renders v on one line.
func Compact(v any) string {
	var b strings.Builder
	writeCompact(&b, v)
	return b.String()
}

func writeIndented(b *strings.Builder, v any, indent string, level int) {
	switch x := v.(type) {
	case *Object:
		if x.Len() == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{\n")
		for i, k := range x.Keys {
			b.WriteString(strings.Repeat(indent, level+1))
			writeString(b, k)
			b.WriteString(": ")
			writeIndented(b, x.Values[k], indent, level+1)
			if i < len(x.Keys)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat(indent, level))
		b.WriteByte('}')
	case []any:
		if len(x) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteString("[\n")
		for i, item := range x {
			b.WriteString(strings.Repeat(indent, level+1))
			writeIndented(b, item, indent, level+1)
			if i < len(x)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat(indent, level))
		b.WriteByte(']')
	default:
		writeScalar(b, v)
	}
}

func writeCompact(b *strings.Builder, v any) {
	switch x := v.(type) {
	case *Object:
		b.WriteByte('{')
		for i, k := range x.Keys {
			if i > 0 {
				b.WriteString(", ")
			}
			writeString(b, k)
			b.WriteString(": ")
			writeCompact(b, x.Values[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			writeCompact(b, item)
		}
		b.WriteByte(']')
	default:
		writeScalar(b, v)
	}
}

func writeScalar(b *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if x {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case json.Number:
		b.WriteString(FormatNumber(x))
	case string:
		writeString(b, x)
	default:
		raw, err := json.Marshal(x)
		if err != nil {
			writeString(b, fmt.Sprint(x))
			return
		}
		b.Write(raw)
	}
}

// FormatNumber renders n the way Python's json module re-serializes it.
// Integers keep their digits. Other numbers use the shortest round-trip form,
// with an exponent below 1e-4 or from 1e16 up, and always carry a fraction or exponent.
func FormatNumber(n json.Number) string {
	lit := n.String()
	if !strings.ContainsAny(lit, ".eE") {
		if lit == "-0" {
			return "0"
		}
		return lit
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		if math.IsInf(f, 1) {
			return "Infinity"
		}
		if math.IsInf(f, -1) {
			return "-Infinity"
		}
		return lit
	}
	e := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return e
	}
	fixed := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(fixed, ".") {
		fixed += ".0"
	}
	return fixed
}

// writeString quotes s escaping only quotes, backslashes and control characters.
// Everything else, U+2028 and U+2029 included, is written as is.
func writeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}
