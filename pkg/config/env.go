package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is the prefix every configuration variable carries.
const EnvPrefix = "OPSFORGE_"

// envReader reads typed values from the process environment. Parse
// failures are recorded and surfaced once by Err, so Load reports the
// first bad variable with its full name.
type envReader struct {
	err error
}

func (e *envReader) key(name string) string {
	return EnvPrefix + name
}

// Err returns the first parse failure seen, if any.
func (e *envReader) Err() error {
	return e.err
}

func (e *envReader) fail(name string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("invalid value for %s: %w", e.key(name), err)
	}
}

// String returns the variable's value, or def when unset or empty.
func (e *envReader) String(name, def string) string {
	if v := os.Getenv(e.key(name)); v != "" {
		return v
	}
	return def
}

// Int parses the variable as a base-10 integer.
func (e *envReader) Int(name string, def int) int {
	v := os.Getenv(e.key(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, err)
		return def
	}
	return n
}

// Bool parses the variable with strconv.ParseBool semantics.
func (e *envReader) Bool(name string, def bool) bool {
	v := os.Getenv(e.key(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, err)
		return def
	}
	return b
}

// Float parses the variable as a float64.
func (e *envReader) Float(name string, def float64) float64 {
	v := os.Getenv(e.key(name))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(name, err)
		return def
	}
	return f
}

// Duration parses the variable with time.ParseDuration.
func (e *envReader) Duration(name string, def time.Duration) time.Duration {
	v := os.Getenv(e.key(name))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, err)
		return def
	}
	return d
}

// StringSlice splits the variable on sep, trimming whitespace and
// dropping empty elements.
func (e *envReader) StringSlice(name, sep string, def []string) []string {
	v := os.Getenv(e.key(name))
	if v == "" {
		return def
	}
	parts := strings.Split(v, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

// serviceNameFromEnv maps OPSFORGE_SERVICE_ASSET_SERVICE_URL to
// asset-service. Returns false for variables outside the scheme.
func serviceNameFromEnv(key string) (string, bool) {
	const prefix = EnvPrefix + "SERVICE_"
	const suffix = "_URL"

	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
		return "", false
	}
	name := strings.TrimSuffix(strings.TrimPrefix(key, prefix), suffix)
	if name == "" {
		return "", false
	}
	return strings.ToLower(strings.ReplaceAll(name, "_", "-")), true
}

// scanServiceURLs collects static service URLs from the environment.
func scanServiceURLs() map[string]string {
	services := make(map[string]string)
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" {
			continue
		}
		if name, ok := serviceNameFromEnv(key); ok {
			services[name] = value
		}
	}
	return services
}
