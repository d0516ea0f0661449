package config

import (
	"bufio"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"gopkg.in/yaml.v3"
)

// Configuration keys understood by magic.
const (
	KeyDist         = "dist"
	KeySrc          = "src"
	KeyAssets       = "assets"
	KeySystems      = "systems"
	KeyEntry        = "entry"
	KeyBundler      = "bundler"
	KeyTarget       = "target"
	KeyMinify       = "minify"
	KeyHost         = "host"
	KeyPort         = "port"
	KeyBuildTimeout = "build_timeout"
)

// DefaultFileName is the config file looked up in the project directory.
const DefaultFileName = "magic.config"

// canonicalOrder is the order in which Dump writes the project layout keys.
var canonicalOrder = []string{KeyDist, KeySrc, KeyAssets, KeySystems}

// Values is a flat, string-keyed configuration mapping.
type Values map[string]string

// Defaults returns the values used when no config file is present.
func Defaults() Values {
	return Values{
		KeyDist:         "public",
		KeySrc:          "src",
		KeyAssets:       "assets",
		KeySystems:      "systems",
		KeyEntry:        "index.ts",
		KeyBundler:      "esbuild",
		KeyTarget:       "browser",
		KeyMinify:       "true",
		KeyHost:         "localhost",
		KeyPort:         "3000",
		KeyBuildTimeout: "0",
	}
}

// Clone returns an independent copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for key, value := range v {
		out[key] = value
	}
	return out
}

// Get returns the value for key, or "" if unset.
func (v Values) Get(key string) string {
	return v[key]
}

// Bool parses key as a boolean. Unset or malformed values yield false.
func (v Values) Bool(key string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(v[key]))
	return err == nil && b
}

// Int parses key as an integer. Unset or malformed values yield 0.
func (v Values) Int(key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v[key]))
	if err != nil {
		return 0
	}
	return n
}

// Duration parses key either as a Go duration ("30s") or as a whole number
// of seconds ("30"). Unset or malformed values yield 0.
func (v Values) Duration(key string) time.Duration {
	d, err := parseDuration(v[key])
	if err != nil {
		return 0
	}
	return d
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(raw)
}

// Keys returns the keys of v in canonical order: the project layout keys
// first, then every other key sorted.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v))
	seen := make(map[string]bool, len(canonicalOrder))
	for _, key := range canonicalOrder {
		if _, ok := v[key]; ok {
			keys = append(keys, key)
			seen[key] = true
		}
	}

	rest := make([]string, 0, len(v))
	for key := range v {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)

	return append(keys, rest...)
}

// Dump renders v in the "key value" line format, one entry per line.
func Dump(v Values) string {
	var b strings.Builder
	for _, key := range v.Keys() {
		b.WriteString(key)
		b.WriteByte(' ')
		b.WriteString(v[key])
		b.WriteByte('\n')
	}
	return b.String()
}

// ParseLines reads the "key value" line format. The first whitespace
// separates the key from the value; blank lines and lines starting with '#'
// are ignored. Later keys override earlier ones.
func ParseLines(data string) Values {
	values := make(Values)

	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value := line, ""
		if i := strings.IndexFunc(line, unicode.IsSpace); i >= 0 {
			key, value = line[:i], line[i+1:]
		}
		values[key] = strings.TrimSpace(value)
	}

	return values
}

// parseYAML reads a flat YAML mapping. Scalar values are stringified; nested
// mappings and sequences are rejected.
func parseYAML(data []byte) (Values, error) {
	raw := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	values := make(Values, len(raw))
	for key, value := range raw {
		switch value.(type) {
		case map[string]interface{}, []interface{}:
			return nil, fmt.Errorf("key %q: nested values are not supported", key)
		case nil:
			values[key] = ""
		default:
			values[key] = fmt.Sprint(value)
		}
	}
	return values, nil
}

func dumpYAML(v Values) ([]byte, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range v.Keys() {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			&yaml.Node{Kind: yaml.ScalarNode, Value: v[key]},
		)
	}
	return yaml.Marshal(node)
}
