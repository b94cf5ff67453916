package matomo

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// trackerAPIVersion is the Matomo tracking HTTP API version, sent as apiv.
const trackerAPIVersion = "1"

// requestFacts is the snapshot of a request/response exchange that the
// payload build works from. Request-side facts are collected before the
// handler runs; status, elapsed time, and panic value are filled in after.
type requestFacts struct {
	method     string
	path       string
	query      string
	scheme     string
	host       string
	userAgent  string
	acceptLang string
	referer    string
	clientIP   string

	status     int
	elapsedMs  float64
	panicValue any
}

// factsFromRequest extracts the trackable facts from an inbound request.
// Proxy headers win over the connection-level values: X-Forwarded-Server for
// the host, X-Forwarded-For for the client IP.
func factsFromRequest(r *http.Request) requestFacts {
	facts := requestFacts{
		method:     strings.ToUpper(r.Method),
		path:       r.URL.Path,
		query:      r.URL.RawQuery,
		scheme:     "http",
		host:       r.Host,
		userAgent:  r.Header.Get("User-Agent"),
		acceptLang: r.Header.Get("Accept-Language"),
		referer:    r.Header.Get("Referer"),
		clientIP:   clientIP(r),
	}
	if r.TLS != nil {
		facts.scheme = "https"
	}
	if fwd := r.Header.Get("X-Forwarded-Server"); fwd != "" {
		facts.host = fwd
	}
	// A chain of proxies yields a comma-separated list; use the first entry.
	if i := strings.Index(facts.host, ","); i >= 0 {
		facts.host = strings.TrimSpace(facts.host[:i])
	}
	return facts
}

// clientIP prefers the first X-Forwarded-For entry, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.Index(fwd, ","); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// buildPayload assembles the flat tracking payload for a single exchange. It
// is a pure function of its inputs. Sources are merged in increasing
// precedence: required fields, observed request facts, the routeDetails entry
// matching the path, then the per-request state snapshot.
func buildPayload(cfg *config, facts requestFacts, state map[string]any) (url.Values, error) {
	payload := url.Values{}
	payload.Set("idsite", strconv.Itoa(cfg.siteID))
	payload.Set("rec", "1")
	payload.Set("apiv", trackerAPIVersion)
	payload.Set("send_image", "0")
	payload.Set("action_name", facts.path)
	payload.Set("url", trackedURL(cfg, facts))
	payload.Set("gt_ms", formatFloat(facts.elapsedMs))
	if facts.userAgent != "" {
		payload.Set("ua", facts.userAgent)
	}
	if facts.acceptLang != "" {
		payload.Set("lang", facts.acceptLang)
	}
	if facts.referer != "" {
		payload.Set("urlref", facts.referer)
	}
	// Client IP tracking requires the API access token; without it the
	// observed IP is deliberately left out of the payload.
	if cfg.accessToken != "" && facts.clientIP != "" {
		payload.Set("token_auth", cfg.accessToken)
		payload.Set("cip", facts.clientIP)
	}
	if facts.panicValue != nil {
		payload.Set("ca", "1")
		payload.Set("cra", fmt.Sprint(facts.panicValue))
	}

	cvar := map[string]any{
		"http_status_code": facts.status,
		"http_method":      facts.method,
	}

	for key, value := range cfg.routeDetails[facts.path] {
		if err := setPayloadValue(payload, key, value); err != nil {
			return nil, err
		}
	}
	for key, value := range state {
		if key == "cvar" {
			sub, ok := value.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("state cvar must be a map[string]any, got %T", value)
			}
			for k, v := range sub {
				cvar[k] = v
			}
			continue
		}
		if err := setPayloadValue(payload, key, value); err != nil {
			return nil, err
		}
	}

	encoded, err := sonic.MarshalString(cvar)
	if err != nil {
		return nil, fmt.Errorf("serialize cvar: %w", err)
	}
	payload.Set("cvar", encoded)

	return payload, nil
}

// trackedURL reconstructs the URL reported to the collector. The scheme is
// forced to https when the middleware is configured to assume it.
func trackedURL(cfg *config, facts requestFacts) string {
	scheme := facts.scheme
	if cfg.assumeHTTPS {
		scheme = "https"
	}
	u := url.URL{
		Scheme:   scheme,
		Host:     facts.host,
		Path:     facts.path,
		RawQuery: facts.query,
	}
	return u.String()
}

// setPayloadValue stringifies a tracking field override into the payload.
// Nested values are only legal under the reserved cvar key; anywhere else
// they indicate a misconfigured routeDetails entry or state write.
func setPayloadValue(payload url.Values, key string, value any) error {
	switch v := value.(type) {
	case string:
		payload.Set(key, v)
	case bool:
		payload.Set(key, strconv.FormatBool(v))
	case int:
		payload.Set(key, strconv.Itoa(v))
	case int64:
		payload.Set(key, strconv.FormatInt(v, 10))
	case float32:
		payload.Set(key, formatFloat(float64(v)))
	case float64:
		payload.Set(key, formatFloat(v))
	default:
		return fmt.Errorf("tracking field %q: unsupported value type %T", key, value)
	}
	return nil
}

// formatFloat renders a float without trailing zeroes.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
