package lineprotocol

import (
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Line Protocol Format (InfluxDB):
// "measurement,tag=value,tag=value field=1.5,field=2 1600000000"

// Point holds a single sample as it is written to the sink
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]float64
	Time        int64
}

// MaxLineLength is the longest line Parse accepts
const MaxLineLength = 64 * 1024

var ErrInvalidFormat = errors.New("invalid format")
var ErrTooLong = errors.New("input exceeds maximum length")
var ErrNoFields = errors.New("point has no fields")

var (
	// backslashes are doubled so a trailing one does not escape the separator,
	// line breaks would end the line
	measurementEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`, ",", `\,`, " ", `\ `)
	keyEscaper         = strings.NewReplacer(`\`, `\\`, "\n", `\n`, "\r", `\r`, ",", `\,`, "=", `\=`, " ", `\ `)
)

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p Point) write(sb *strings.Builder) {
	sb.WriteString(measurementEscaper.Replace(p.Measurement))

	// the sink rejects empty tag keys and values
	for _, k := range sortedKeys(p.Tags) {
		v := p.Tags[k]
		if k == "" || v == "" {
			continue
		}
		sb.WriteByte(',')
		sb.WriteString(keyEscaper.Replace(k))
		sb.WriteByte('=')
		sb.WriteString(keyEscaper.Replace(v))
	}

	sb.WriteByte(' ')

	for i, k := range sortedKeys(p.Fields) {
		if i != 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(keyEscaper.Replace(k))
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(p.Fields[k], 'g', -1, 64))
	}

	sb.WriteByte(' ')
	sb.WriteString(strconv.FormatInt(p.Time, 10))
}

// String formats the point as a single line without trailing newline.
// Tags and fields are sorted by key.
func (p Point) String() string {
	var sb strings.Builder
	p.write(&sb)
	return sb.String()
}

// Validate checks if the point can be written to the sink
func (p Point) Validate() error {
	if p.Measurement == "" {
		return ErrInvalidFormat
	}
	if len(p.Fields) == 0 {
		return ErrNoFields
	}
	for _, v := range p.Fields {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidFormat
		}
	}
	return nil
}

// Encode formats a list of points as a request body, one line per point
func Encode(points []Point) []byte {
	var sb strings.Builder
	for i := range points {
		points[i].write(&sb)
		sb.WriteByte('\n')
	}
	return []byte(sb.String())
}

// splitUnescaped splits s at every sep that is not preceded by a backslash
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// unescape removes the backslash in front of separators and backslashes,
// any other backslash is kept
func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '\\', ',', '=', ' ':
				i++
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func parseKVP(text string) (string, string, bool) {
	parts := splitUnescaped(text, '=')
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return unescape(parts[0]), parts[1], true
}

func parseValue(text string) (float64, error) {
	// integer and unsigned fields carry a type suffix
	if strings.HasSuffix(text, "i") || strings.HasSuffix(text, "u") {
		v, err := strconv.ParseInt(text[:len(text)-1], 10, 64)
		return float64(v), err
	}
	return strconv.ParseFloat(text, 64)
}

// Parse parses a single line. Only numeric fields are supported.
// When the timestamp is missing, the current time is used.
func Parse(line string) (Point, error) {
	if len(line) > MaxLineLength {
		return Point{}, ErrTooLong
	}

	line = strings.TrimRight(line, "\r\n")

	sections := splitUnescaped(line, ' ')
	if len(sections) != 2 && len(sections) != 3 {
		return Point{}, ErrInvalidFormat
	}

	head := splitUnescaped(sections[0], ',')

	p := Point{
		Measurement: unescape(head[0]),
		Tags:        make(map[string]string, len(head)-1),
		Fields:      make(map[string]float64),
	}

	if p.Measurement == "" {
		return Point{}, ErrInvalidFormat
	}

	for _, tag := range head[1:] {
		k, v, ok := parseKVP(tag)
		if !ok {
			return Point{}, ErrInvalidFormat
		}
		p.Tags[k] = unescape(v)
	}

	for _, field := range splitUnescaped(sections[1], ',') {
		k, v, ok := parseKVP(field)
		if !ok {
			return Point{}, ErrInvalidFormat
		}
		value, err := parseValue(v)
		if err != nil {
			return Point{}, ErrInvalidFormat
		}
		p.Fields[k] = value
	}

	if len(sections) == 2 {
		p.Time = time.Now().Unix()
		return p, nil
	}

	var err error
	p.Time, err = strconv.ParseInt(sections[2], 10, 64)
	if err != nil {
		return Point{}, err
	}

	return p, nil
}
