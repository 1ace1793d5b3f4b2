package parser

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/suda/leno/pkg/types"
)

// Format selects how lines are rewritten.
type Format int32

const (
	FormatNone Format = iota
	FormatLogfmt
	FormatNginx
)

// ParseFormat maps a configuration value to a Format. The empty string
// selects FormatNone.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "none":
		return FormatNone, nil
	case "logfmt":
		return FormatLogfmt, nil
	case "nginx":
		return FormatNginx, nil
	default:
		return FormatNone, fmt.Errorf("parser: unknown line format %q: want none|logfmt|nginx", s)
	}
}

func (f Format) String() string {
	switch f {
	case FormatLogfmt:
		return "logfmt"
	case FormatNginx:
		return "nginx"
	default:
		return "none"
	}
}

// Transform rewrites line according to f. ok is false when the line did not
// match f, in which case line is returned unchanged.
func (f Format) Transform(line types.Line) (types.Line, bool) {
	switch f {
	case FormatLogfmt:
		if out, ok := Logfmt(line); ok {
			return out, true
		}
	case FormatNginx:
		if out, ok := Nginx(line); ok {
			return out, true
		}
	case FormatNone:
		return line, true
	}
	return line, false
}

// Selector holds the active Format and may be switched while lines flow,
// e.g. on configuration reload.
type Selector struct {
	f atomic.Int32
}

// NewSelector returns a Selector starting at f.
func NewSelector(f Format) *Selector {
	s := &Selector{}
	s.Set(f)
	return s
}

// Set switches the active format.
func (s *Selector) Set(f Format) { s.f.Store(int32(f)) }

// Format returns the active format.
func (s *Selector) Format() Format { return Format(s.f.Load()) }

// Transform rewrites line with the active format. On a miss it returns line
// unchanged and false.
func (s *Selector) Transform(line types.Line) (types.Line, bool) {
	return s.Format().Transform(line)
}

// coerce converts a textual value to bool, int or float64 when it parses as
// one, and leaves it a string otherwise.
func coerce(v string) any {
	switch v {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	return v
}
