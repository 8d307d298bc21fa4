package netcdfproc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cast"

	"github.com/Grismar/netcdfproc/netcdf"
)

// WriteCSV writes a one- or two-dimensional array as comma-separated text
// with the same layout as numpy.savetxt(w, a, fmt=format, delimiter=","):
// a one-dimensional array is written one value per line, a
// two-dimensional array one row per line.
//
// format is a printf-style format. With a single conversion it applies to
// every cell and cells are joined by commas. With one conversion per
// column it formats a whole row. Integer conversions (d, i, u) truncate
// floats, float conversions (e, f, g) widen integers and s prints the
// shortest representation of a number.
func WriteCSV(w io.Writer, a *netcdf.Array, format string) error {
	var rows, cols int
	switch a.Rank() {
	case 1:
		rows, cols = a.Shape[0], 1
	case 2:
		rows, cols = a.Shape[0], a.Shape[1]
	default:
		return fmt.Errorf("expected 1D or 2D array, got %dD array instead", a.Rank())
	}

	row, err := parseRowFormat(format, cols)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	var line strings.Builder
	for r := 0; r < rows; r++ {
		line.Reset()
		for c := 0; c < cols; c++ {
			if c > 0 && row.joined {
				line.WriteByte(',')
			}
			spec := row.spec(c)
			line.WriteString(spec.prefix)
			s, err := spec.format(a, r*cols+c)
			if err != nil {
				return err
			}
			line.WriteString(s)
			line.WriteString(spec.suffix)
		}
		line.WriteString(row.tail)
		line.WriteByte('\n')
		if _, err := bw.WriteString(line.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// rowFormat is a parsed CSV format: one conversion per column, or a single
// conversion repeated for every cell.
type rowFormat struct {
	specs  []conversion
	tail   string
	joined bool
}

func (f *rowFormat) spec(col int) conversion {
	if f.joined {
		return f.specs[0]
	}
	return f.specs[col]
}

// conversion is one %-directive with the literal text before it.
type conversion struct {
	prefix, suffix string
	flags          string
	width          string
	precision      string
	verb           byte
}

func parseRowFormat(format string, cols int) (*rowFormat, error) {
	specs, tail, err := parseConversions(format)
	if err != nil {
		return nil, err
	}
	switch {
	case len(specs) == 1:
		specs[0].suffix = tail
		return &rowFormat{specs: specs, joined: true}, nil
	case len(specs) == cols:
		return &rowFormat{specs: specs, tail: tail}, nil
	}
	return nil, fmt.Errorf("fmt has wrong number of %% formats: %s", format)
}

// parseConversions splits format into conversions, each carrying the
// literal text that precedes it, and the trailing literal text. "%%" is a
// literal percent sign.
func parseConversions(format string) ([]conversion, string, error) {
	var specs []conversion
	var lit strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			lit.WriteByte(format[i])
			continue
		}
		i++
		if i < len(format) && format[i] == '%' {
			lit.WriteByte('%')
			continue
		}
		c := conversion{prefix: lit.String()}
		lit.Reset()

		start := i
		for i < len(format) && strings.IndexByte("-+ #0", format[i]) >= 0 {
			i++
		}
		c.flags = format[start:i]
		start = i
		for i < len(format) && format[i] >= '0' && format[i] <= '9' {
			i++
		}
		c.width = format[start:i]
		if i < len(format) && format[i] == '.' {
			i++
			start = i
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				i++
			}
			c.precision = "." + format[start:i]
			if c.precision == "." {
				c.precision = ".0"
			}
		}
		for i < len(format) && strings.IndexByte("hlL", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			return nil, "", errors.New("incomplete format")
		}
		c.verb = format[i]
		if strings.IndexByte("diuoxXeEfFgGcrsa", c.verb) < 0 {
			return nil, "", fmt.Errorf("unsupported format character '%c' (0x%x) at index %d", c.verb, c.verb, i)
		}
		specs = append(specs, c)
	}
	return specs, lit.String(), nil
}

// format renders element i of a.
func (c conversion) format(a *netcdf.Array, i int) (string, error) {
	v := a.Value(i)
	if !a.IsNumeric() {
		return c.text(a, v)
	}
	switch c.verb {
	case 'd', 'i', 'u':
		n, err := c.integer(v)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%"+c.flags+c.width+c.precision+"d", n), nil
	case 'o', 'x', 'X', 'c':
		if !isInteger(v) {
			return "", &TypeError{Msg: fmt.Sprintf("%%%c format: an integer is required, not float", c.verb)}
		}
		verb, flags := c.verb, c.flags
		if verb == 'o' && strings.Contains(flags, "#") {
			verb, flags = 'O', strings.ReplaceAll(flags, "#", "")
		}
		n, _ := cast.ToInt64E(v)
		if u, ok := v.(uint64); ok && u > math.MaxInt64 {
			return fmt.Sprintf("%"+flags+c.width+c.precision+string(verb), u), nil
		}
		if verb == 'c' {
			return fmt.Sprintf("%"+flags+c.width+"c", rune(n)), nil
		}
		return fmt.Sprintf("%"+flags+c.width+c.precision+string(verb), n), nil
	case 'e', 'E', 'f', 'F', 'g', 'G':
		x, err := cast.ToFloat64E(v)
		if err != nil {
			return "", err
		}
		return c.float(x), nil
	default:
		return c.pad(shortest(v)), nil
	}
}

// integer truncates v toward zero.
func (c conversion) integer(v any) (any, error) {
	if u, ok := v.(uint64); ok {
		return u, nil
	}
	if isInteger(v) {
		return cast.ToInt64E(v)
	}
	x, err := cast.ToFloat64E(v)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(x) {
		return nil, errors.New("cannot convert float NaN to integer")
	}
	if math.IsInf(x, 0) {
		return nil, errors.New("cannot convert float infinity to integer")
	}
	return int64(math.Trunc(x)), nil
}

func (c conversion) float(x float64) string {
	if !math.IsNaN(x) && !math.IsInf(x, 0) {
		prec := c.precision
		if prec == "" {
			prec = ".6"
		}
		verb := c.verb
		if verb == 'F' {
			verb = 'f'
		}
		return fmt.Sprintf("%"+c.flags+c.width+prec+string(verb), x)
	}
	s := "nan"
	switch {
	case math.IsInf(x, -1):
		s = "-inf"
	case math.IsInf(x, 1):
		s = "inf"
	}
	if s[0] != '-' {
		if strings.Contains(c.flags, "+") {
			s = "+" + s
		} else if strings.Contains(c.flags, " ") {
			s = " " + s
		}
	}
	if c.verb >= 'A' && c.verb <= 'Z' {
		s = strings.ToUpper(s)
	}
	return c.pad(s)
}

// text renders a string or character cell, which only %s accepts.
func (c conversion) text(a *netcdf.Array, v any) (string, error) {
	if c.verb != 's' && c.verb != 'r' && c.verb != 'a' {
		return "", &TypeError{Msg: fmt.Sprintf("Mismatch between array dtype (%s) and format specifier (%%%c)", a.Type, c.verb)}
	}
	switch x := v.(type) {
	case netcdf.Char:
		return c.pad("b'" + string(rune(x)) + "'"), nil
	case string:
		return c.pad(x), nil
	}
	return c.pad(fmt.Sprint(v)), nil
}

// pad applies the width and the left-justify flag to s.
func (c conversion) pad(s string) string {
	if c.width == "" {
		return s
	}
	if strings.Contains(c.flags, "-") {
		return fmt.Sprintf("%-"+c.width+"s", s)
	}
	return fmt.Sprintf("%"+c.width+"s", s)
}

func isInteger(v any) bool {
	switch v.(type) {
	case int8, int16, int32, int64, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// shortest formats a number the way Python's str does.
func shortest(v any) string {
	switch x := v.(type) {
	case float32:
		return pythonFloat(float64(x), 32)
	case float64:
		return pythonFloat(x, 64)
	}
	return fmt.Sprint(v)
}

// pythonFloat returns the shortest digits that round-trip at the given
// precision, in positional notation for exponents from -4 to 15 with at
// least one fractional digit and in scientific notation otherwise.
func pythonFloat(x float64, bits int) string {
	switch {
	case math.IsNaN(x):
		return "nan"
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	}
	sci := strconv.FormatFloat(x, 'e', -1, bits)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return sci
	}
	s := strconv.FormatFloat(x, 'f', -1, bits)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
