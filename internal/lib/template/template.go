// Package template expands DASH SegmentTemplate
// identifiers into segment file names.
package template

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	idRepresentation = "RepresentationID"
	idNumber         = "Number"
	idTime           = "Time"
	idBandwidth      = "Bandwidth"
)

// Vars holds identifier values for one segment.
type Vars struct {
	RepresentationID string
	Number           int64
	Time             int64
	Bandwidth        int64
}

// UsesTime reports whether tmpl contains $Time$ identifier.
// Such template needs an exact segment timeline.
func UsesTime(tmpl string) bool {
	return strings.Contains(tmpl, "$"+idTime+"$") || strings.Contains(tmpl, "$"+idTime+"%")
}

// UsesNumber reports whether tmpl contains $Number$ identifier.
func UsesNumber(tmpl string) bool {
	return strings.Contains(tmpl, "$"+idNumber+"$") || strings.Contains(tmpl, "$"+idNumber+"%")
}

// Expand substitutes identifiers in tmpl.
//
// Supports width formatting ($Number%05d$) and "$$" escape.
func Expand(tmpl string, v Vars) (string, error) {
	var b strings.Builder

	rest := tmpl
	for {
		open := strings.IndexByte(rest, '$')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		b.WriteString(rest[:open])
		rest = rest[open+1:]

		end := strings.IndexByte(rest, '$')
		if end < 0 {
			return "", fmt.Errorf("template %q: unterminated identifier", tmpl)
		}
		ident := rest[:end]
		rest = rest[end+1:]

		if ident == "" {
			b.WriteByte('$')
			continue
		}

		s, err := expandIdent(ident, v)
		if err != nil {
			return "", fmt.Errorf("template %q: %w", tmpl, err)
		}
		b.WriteString(s)
	}
}

func expandIdent(ident string, v Vars) (string, error) {
	name, format, hasFormat := strings.Cut(ident, "%")

	var value int64
	switch name {
	case idRepresentation:
		if hasFormat {
			return "", fmt.Errorf("format is not allowed for $%s$", idRepresentation)
		}
		return v.RepresentationID, nil
	case idNumber:
		value = v.Number
	case idTime:
		value = v.Time
	case idBandwidth:
		value = v.Bandwidth
	default:
		return "", fmt.Errorf("unknown identifier $%s$", ident)
	}

	if !hasFormat {
		return strconv.FormatInt(value, 10), nil
	}

	// only %0[width]d is allowed by ISO/IEC 23009-1
	if !strings.HasSuffix(format, "d") {
		return "", fmt.Errorf("bad format %%%s", format)
	}
	width, err := strconv.Atoi(strings.TrimPrefix(strings.TrimSuffix(format, "d"), "0"))
	if err != nil && format != "d" {
		return "", fmt.Errorf("bad format %%%s", format)
	}

	s := strconv.FormatInt(value, 10)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s, nil
}
