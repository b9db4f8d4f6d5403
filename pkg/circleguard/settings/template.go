package settings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"
)

var (
	ErrUnknownField = errors.New("unknown template field")
	ErrBadTemplate  = errors.New("malformed template")
)

// Format renders a message template. Placeholders are {name} or
// {name:spec}; time values take a strftime spec ({ts:%X}), numbers take a
// precision spec ({similarity:.1f}). "{{" and "}}" are literal braces.
func Format(template string, fields map[string]any) (string, error) {
	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed '{' at %d", ErrBadTemplate, i)
			}
			field := template[i+1 : i+1+end]
			out, err := formatField(field, fields)
			if err != nil {
				return "", err
			}
			b.WriteString(out)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				i++
			}
			b.WriteByte('}')
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}

func formatField(field string, fields map[string]any) (string, error) {
	name, spec, _ := strings.Cut(field, ":")
	v, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
	}

	switch val := v.(type) {
	case time.Time:
		if spec == "" {
			return val.Format(time.DateTime), nil
		}
		return strftime.Format(spec, val), nil
	case float64:
		return formatFloat(val, spec)
	case float32:
		return formatFloat(float64(val), spec)
	case int:
		if spec != "" {
			return formatFloat(float64(val), spec)
		}
		return strconv.Itoa(val), nil
	}
	if spec != "" {
		return "", fmt.Errorf("%w: spec %q on non-numeric field %q", ErrBadTemplate, spec, name)
	}
	return fmt.Sprint(v), nil
}

// formatFloat handles ".Nf" and "" specs.
func formatFloat(v float64, spec string) (string, error) {
	if spec == "" {
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	}
	if !strings.HasPrefix(spec, ".") || !strings.HasSuffix(spec, "f") {
		return "", fmt.Errorf("%w: unsupported spec %q", ErrBadTemplate, spec)
	}
	prec, err := strconv.Atoi(spec[1 : len(spec)-1])
	if err != nil || prec < 0 {
		return "", fmt.Errorf("%w: unsupported spec %q", ErrBadTemplate, spec)
	}
	return strconv.FormatFloat(v, 'f', prec, 64), nil
}
