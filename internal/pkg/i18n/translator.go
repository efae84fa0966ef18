package i18n

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// DefaultLanguage is used when no language option is given.
const DefaultLanguage = "en"

// placeholderRe matches named placeholders in the form {name}.
var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Translator resolves translation keys against per-language tables.
// Tables are never mutated after New returns, so a Translator is safe for
// concurrent use without locking.
type Translator struct {
	tables      map[string]map[string]string
	defaultLang string
	logger      *slog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithDefaultLanguage sets the fallback language.
func WithDefaultLanguage(lang string) Option {
	return func(t *Translator) {
		if lang != "" {
			t.defaultLang = lang
		}
	}
}

// WithLogger sets the logger used for missing-placeholder warnings.
func WithLogger(l *slog.Logger) Option {
	return func(t *Translator) {
		if l != nil {
			t.logger = l
		}
	}
}

// New builds a Translator over tables (language → key → template).
// The tables are copied.
func New(tables map[string]map[string]string, opts ...Option) *Translator {
	t := &Translator{
		tables:      make(map[string]map[string]string, len(tables)),
		defaultLang: DefaultLanguage,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	for lang, table := range tables {
		cp := make(map[string]string, len(table))
		for k, v := range table {
			cp[k] = v
		}
		t.tables[strings.ToLower(lang)] = cp
	}
	return t
}

// DefaultLanguage returns the fallback language.
func (t *Translator) DefaultLanguage() string { return t.defaultLang }

// SupportedLanguages returns the languages that have a table, sorted.
func (t *Translator) SupportedLanguages() []string {
	langs := make([]string, 0, len(t.tables))
	for lang := range t.tables {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

// Has reports whether key exists in lang's table or in the default table.
func (t *Translator) Has(key, lang string) bool {
	_, ok := t.lookup(key, lang)
	return ok
}

func (t *Translator) lookup(key, lang string) (string, bool) {
	if table, ok := t.tables[strings.ToLower(lang)]; ok {
		if tmpl, ok := table[key]; ok {
			return tmpl, true
		}
	}
	if table, ok := t.tables[t.defaultLang]; ok {
		if tmpl, ok := table[key]; ok {
			return tmpl, true
		}
	}
	return "", false
}

// Translate returns the template for key in lang (falling back to the
// default language, then to key itself) with params interpolated.
// If the template references a placeholder missing from params, the
// template is returned uninterpolated and a warning is logged.
func (t *Translator) Translate(key, lang string, params map[string]string) string {
	tmpl, ok := t.lookup(key, lang)
	if !ok {
		return key
	}
	out, err := interpolate(tmpl, params)
	if err != nil {
		t.logger.Warn("translation interpolation failed",
			"key", key, "lang", lang, "err", err)
		return tmpl
	}
	return out
}

// TranslateNotification resolves a title and body pair in one language.
func (t *Translator) TranslateNotification(lang, titleKey, bodyKey string, params map[string]string) (title, body string) {
	return t.Translate(titleKey, lang, params), t.Translate(bodyKey, lang, params)
}

// ResolveLanguage returns the first candidate whose base language has a
// table ("fr-CA" resolves to "fr"), or the default language.
func (t *Translator) ResolveLanguage(candidates ...string) string {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, ok := t.tables[strings.ToLower(c)]; ok {
			return strings.ToLower(c)
		}
		tag, err := language.Parse(c)
		if err != nil {
			continue
		}
		base, _ := tag.Base()
		if _, ok := t.tables[base.String()]; ok {
			return base.String()
		}
	}
	return t.defaultLang
}

func interpolate(tmpl string, params map[string]string) (string, error) {
	var missing []string
	out := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := params[name]; ok {
			return v
		}
		missing = append(missing, name)
		return m
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("missing params: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
