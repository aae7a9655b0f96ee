package inference

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Format selects how the single output line is encoded.
type Format string

const (
	// FormatPyDict prints the native mapping representation, e.g.
	// {'value': '7.0'}. Worker nodes written against the original fixture
	// parse this form.
	FormatPyDict Format = "pydict"
	// FormatJSON prints {"value": "7.0"}.
	FormatJSON Format = "json"
)

// ErrorPrefix starts every error line message.
const ErrorPrefix = "Error processing request: "

// ParseFormat validates a format name. The empty string selects fallback.
func ParseFormat(name string, fallback Format) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return fallback, nil
	case FormatPyDict, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q", name)
	}
}

// FormatValue renders v the way Python's float repr does: the shortest
// round-tripping digits, always with a fractional part, and scientific
// notation outside [1e-4, 1e16).
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case v == 0:
		if math.Signbit(v) {
			return "-0.0"
		}
		return "0.0"
	}

	abs := math.Abs(v)
	if abs >= 1e16 || abs < 1e-4 {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Render encodes a successful inference as one line, without the trailing
// newline.
func Render(inf Inference, format Format) (string, error) {
	value := FormatValue(inf.Value)
	switch format {
	case FormatPyDict:
		return "{" + pyRepr("value") + ": " + pyRepr(value) + "}", nil
	case FormatJSON:
		return `{"value": ` + pyJSONString(value) + "}", nil
	default:
		return "", fmt.Errorf("unknown output format %q", string(format))
	}
}

// RenderError encodes err as the JSON error line.
func RenderError(err error) string {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return `{"error": ` + pyJSONString(ErrorPrefix+msg) + "}"
}

// pyRepr quotes s as a Python str literal: single quotes unless s contains a
// single quote and no double quote.
func pyRepr(s string) string {
	quote := byte('\'')
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		quote = '"'
	}

	var b strings.Builder
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == rune(quote) || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, `\x%02x`, r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

// pyJSONString encodes s as a JSON string with ASCII-only output, matching
// Python's json.dumps defaults. HTML characters are left as is.
func pyJSONString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		switch {
		case r == '"':
			b.WriteString(`\"`)
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\b':
			b.WriteString(`\b`)
		case r == '\f':
			b.WriteString(`\f`)
		case r < 0x20:
			fmt.Fprintf(&b, `\u%04x`, r)
		case r < utf8.RuneSelf:
			b.WriteRune(r)
		case r > 0xffff:
			r -= 0x10000
			fmt.Fprintf(&b, `\u%04x\u%04x`, 0xd800+(r>>10), 0xdc00+(r&0x3ff))
		default:
			fmt.Fprintf(&b, `\u%04x`, r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
