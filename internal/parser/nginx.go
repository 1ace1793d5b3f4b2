package parser

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/satyrius/gonx"

	"github.com/suda/leno/pkg/types"
)

// ingressFormat is the default log format of the nginx-ingress controller, a
// superset of the combined format.
const ingressFormat = `$remote_addr - $remote_user [$time_local] "$request" ` +
	`$status $body_bytes_sent "$http_referer" "$http_user_agent" ` +
	`$request_length $request_time [$proxy_upstream_name] ` +
	`[$proxy_alternative_upstream_name] $upstream_addr ` +
	`$upstream_response_length $upstream_response_time ` +
	`$upstream_status $req_id`

// combinedFormat is nginx's standard combined log format.
const combinedFormat = `$remote_addr - $remote_user [$time_local] "$request" ` +
	`$status $body_bytes_sent "$http_referer" "$http_user_agent"`

const timeLocalLayout = "02/Jan/2006:15:04:05 -0700"

var (
	ingressParser  = gonx.NewParser(ingressFormat)
	combinedParser = gonx.NewParser(combinedFormat)
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindFloat
)

// nginxField maps one gonx field onto an output key.
type nginxField struct {
	key   string
	field string
	kind  fieldKind
}

var nginxFields = []nginxField{
	{"remote_addr", "remote_addr", kindString},
	{"remote_user", "remote_user", kindString},
	{"time_local", "time_local", kindString},
	{"request", "request", kindString},
	{"status", "status", kindInt},
	{"body_bytes", "body_bytes_sent", kindInt},
	{"http_referer", "http_referer", kindString},
	{"http_user_agent", "http_user_agent", kindString},
	{"request_length", "request_length", kindInt},
	{"request_time", "request_time", kindFloat},
	{"upstream_name", "proxy_upstream_name", kindString},
	{"upstream_alt_name", "proxy_alternative_upstream_name", kindString},
	{"upstream_addr", "upstream_addr", kindString},
	{"upstream_response_length", "upstream_response_length", kindInt},
	{"upstream_response_time", "upstream_response_time", kindString},
	{"upstream_status", "upstream_status", kindInt},
	{"request_id", "req_id", kindString},
}

// Nginx converts an nginx access log line into a JSON object. The
// nginx-ingress format is tried first, then the combined format. Empty and
// "-" values are omitted.
func Nginx(line types.Line) (types.Line, bool) {
	entry, err := ingressParser.ParseString(string(line))
	if err != nil {
		entry, err = combinedParser.ParseString(string(line))
		if err != nil {
			return "", false
		}
	}

	obj := make(map[string]any)
	for _, f := range nginxFields {
		v, err := entry.Field(f.field)
		if err != nil || v == "" || v == "-" {
			continue
		}
		switch f.kind {
		case kindInt:
			if n, err := strconv.Atoi(v); err == nil {
				obj[f.key] = n
			}
		case kindFloat:
			if n, err := strconv.ParseFloat(v, 64); err == nil {
				obj[f.key] = n
			}
		default:
			obj[f.key] = v
		}
	}

	if raw, ok := obj["time_local"].(string); ok {
		if t, err := time.Parse(timeLocalLayout, raw); err == nil {
			obj["time"] = t.UTC().Format(time.RFC3339)
		}
	}
	if req, ok := obj["request"].(string); ok {
		if parts := strings.SplitN(req, " ", 3); len(parts) == 3 {
			obj["method"] = parts[0]
			obj["path"] = parts[1]
			obj["http_version"] = parts[2]
		}
	}

	b, err := json.Marshal(obj)
	if err != nil {
		return "", false
	}
	return types.Line(b), true
}
