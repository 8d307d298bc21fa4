package netcdfproc

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"
)

const jsonIndent = "    "

// MarshalIndent renders rec as JSON indented by four spaces, with keys in
// insertion order, non-ASCII characters escaped and floats written in
// their shortest round-trip form ("1.0", "1e-05", "NaN", "Infinity").
// The text matches what Python's json.dumps(rec, indent=4) produces.
func MarshalIndent(rec *GroupRecord) ([]byte, error) {
	e := &encoder{}
	if err := e.group(rec, 0); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

type encoder struct {
	buf bytes.Buffer
}

// field is one key of a JSON object being written.
type field struct {
	key   string
	write func(depth int) error
}

func (e *encoder) object(fields []field, depth int) error {
	if len(fields) == 0 {
		e.buf.WriteString("{}")
		return nil
	}
	e.buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			e.buf.WriteByte(',')
		}
		e.newline(depth + 1)
		e.quote(f.key)
		e.buf.WriteString(": ")
		if err := f.write(depth + 1); err != nil {
			return err
		}
	}
	e.newline(depth)
	e.buf.WriteByte('}')
	return nil
}

func (e *encoder) newline(depth int) {
	e.buf.WriteByte('\n')
	e.buf.WriteString(strings.Repeat(jsonIndent, depth))
}

func (e *encoder) group(rec *GroupRecord, depth int) error {
	return e.object([]field{
		{keySubgroups, func(d int) error { return e.groups(&rec.Subgroups, d) }},
		{keyGlobalAttributes, func(d int) error { return e.values(&rec.GlobalAttributes, d) }},
		{keyVariables, func(d int) error { return e.variables(&rec.Variables, d) }},
		{keyData, func(d int) error { return e.data(&rec.Data, d) }},
	}, depth)
}

func (e *encoder) groups(m *Map[*GroupRecord], depth int) error {
	fields := make([]field, 0, m.Len())
	for _, k := range m.keys {
		g := m.values[k]
		fields = append(fields, field{k, func(d int) error { return e.group(g, d) }})
	}
	return e.object(fields, depth)
}

func (e *encoder) variables(m *Map[*VariableRecord], depth int) error {
	fields := make([]field, 0, m.Len())
	for _, k := range m.keys {
		v := m.values[k]
		fields = append(fields, field{k, func(d int) error { return e.values(v.Fields(), d) }})
	}
	return e.object(fields, depth)
}

func (e *encoder) data(m *Map[Data], depth int) error {
	fields := make([]field, 0, m.Len())
	for _, k := range m.keys {
		var v any
		switch x := m.values[k].(type) {
		case Inline:
			v = x.Array
		case CSVRef:
			v = x.Path
		}
		fields = append(fields, field{k, func(d int) error { return e.value(v, d) }})
	}
	return e.object(fields, depth)
}

func (e *encoder) values(m *Map[any], depth int) error {
	fields := make([]field, 0, m.Len())
	for _, k := range m.keys {
		v := m.values[k]
		fields = append(fields, field{k, func(d int) error { return e.value(v, d) }})
	}
	return e.object(fields, depth)
}

// value coerces v and writes it.
func (e *encoder) value(v any, depth int) error {
	c, err := Coerce(v)
	if err != nil {
		return err
	}
	e.plain(c, depth)
	return nil
}

// plain writes a value produced by Coerce.
func (e *encoder) plain(v any, depth int) {
	switch x := v.(type) {
	case nil:
		e.buf.WriteString("null")
	case bool:
		e.buf.WriteString(strconv.FormatBool(x))
	case int64:
		e.buf.WriteString(strconv.FormatInt(x, 10))
	case uint64:
		e.buf.WriteString(strconv.FormatUint(x, 10))
	case float64:
		e.buf.WriteString(formatFloat(x))
	case string:
		e.quote(x)
	case []any:
		if len(x) == 0 {
			e.buf.WriteString("[]")
			return
		}
		e.buf.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				e.buf.WriteByte(',')
			}
			e.newline(depth + 1)
			e.plain(item, depth+1)
		}
		e.newline(depth)
		e.buf.WriteByte(']')
	default:
		panic(fmt.Sprintf("netcdfproc: %T is not a coerced value", v))
	}
}

// quote writes s quoted, escaping everything outside printable ASCII.
func (e *encoder) quote(s string) {
	e.buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			e.buf.WriteString(`\"`)
		case '\\':
			e.buf.WriteString(`\\`)
		case '\n':
			e.buf.WriteString(`\n`)
		case '\r':
			e.buf.WriteString(`\r`)
		case '\t':
			e.buf.WriteString(`\t`)
		case '\b':
			e.buf.WriteString(`\b`)
		case '\f':
			e.buf.WriteString(`\f`)
		default:
			switch {
			case r >= ' ' && r <= '~':
				e.buf.WriteRune(r)
			case r > 0xFFFF:
				r1, r2 := utf16.EncodeRune(r)
				fmt.Fprintf(&e.buf, `\u%04x\u%04x`, r1, r2)
			default:
				fmt.Fprintf(&e.buf, `\u%04x`, r)
			}
		}
	}
	e.buf.WriteByte('"')
}

// formatFloat writes f the way Python's float repr does, with the
// non-finite spellings JSON encoders accept.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return pythonFloat(f, 64)
}
