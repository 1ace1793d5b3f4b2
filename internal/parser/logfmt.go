package parser

import (
	"encoding/json"
	"strings"

	"github.com/go-logfmt/logfmt"

	"github.com/suda/leno/pkg/types"
)

// Logfmt converts a logfmt line into a JSON object. It reports false when the
// line holds no key/value pairs or cannot be decoded.
func Logfmt(line types.Line) (types.Line, bool) {
	dec := logfmt.NewDecoder(strings.NewReader(string(line)))
	obj := make(map[string]any)

	for dec.ScanRecord() {
		for dec.ScanKeyval() {
			obj[string(dec.Key())] = coerce(string(dec.Value()))
		}
	}
	if dec.Err() != nil || len(obj) == 0 {
		return "", false
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return "", false
	}
	return types.Line(b), true
}
