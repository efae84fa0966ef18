package i18n

import (
	"embed"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var embedded embed.FS

// LoadEmbedded parses the catalogs shipped with the binary. The file name
// (without extension) is the language code.
func LoadEmbedded() (map[string]map[string]string, error) {
	entries, err := embedded.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read embedded locales: %w", err)
	}
	tables := make(map[string]map[string]string, len(entries))
	for _, e := range entries {
		data, err := embedded.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		table, err := ParseTable(data)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		tables[strings.TrimSuffix(e.Name(), path.Ext(e.Name()))] = table
	}
	return tables, nil
}

// ParseTable flattens one nested YAML document into dot-joined keys.
func ParseTable(data []byte) (map[string]string, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make(map[string]string)
	flatten("", raw, out)
	return out, nil
}

// ParseBundle parses a multi-language YAML document whose top-level keys are
// language codes, as stored in the S3 overlay object.
func ParseBundle(data []byte) (map[string]map[string]string, error) {
	var raw map[string]map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	tables := make(map[string]map[string]string, len(raw))
	for lang, tree := range raw {
		table := make(map[string]string)
		flatten("", tree, table)
		tables[lang] = table
	}
	return tables, nil
}

// Merge overlays src onto dst, key by key.
func Merge(dst, src map[string]map[string]string) map[string]map[string]string {
	if dst == nil {
		dst = make(map[string]map[string]string, len(src))
	}
	for lang, table := range src {
		if dst[lang] == nil {
			dst[lang] = make(map[string]string, len(table))
		}
		for k, v := range table {
			dst[lang][k] = v
		}
	}
	return dst
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case string:
			out[key] = val
		case nil:
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}
