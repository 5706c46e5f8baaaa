// ABOUTME: Message catalogs for operator-facing text, loaded from embedded TOML
// ABOUTME: Negotiates the locale with x/text/language and falls back to English then the key

package i18n

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
)

//go:embed catalogs/*.toml
var catalogFS embed.FS

// Fallback is the locale used when a key is missing elsewhere.
const Fallback = "en"

type catalog struct {
	messages map[string]string
	months   []string
}

// Bundle holds every catalog and the locale matcher.
type Bundle struct {
	catalogs map[string]*catalog
	locales  []string
	matcher  language.Matcher
}

// NewBundle loads the embedded catalogs. defaultLocale wins when nothing
// in a request matches.
func NewBundle(defaultLocale string) (*Bundle, error) {
	entries, err := catalogFS.ReadDir("catalogs")
	if err != nil {
		return nil, fmt.Errorf("reading catalogs: %w", err)
	}

	b := &Bundle{catalogs: make(map[string]*catalog)}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".toml")
		data, err := catalogFS.ReadFile(path.Join("catalogs", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading catalog %s: %w", name, err)
		}
		cat, err := parseCatalog(data)
		if err != nil {
			return nil, fmt.Errorf("parsing catalog %s: %w", name, err)
		}
		b.catalogs[name] = cat
	}

	if _, ok := b.catalogs[Fallback]; !ok {
		return nil, fmt.Errorf("missing %s catalog", Fallback)
	}
	if _, ok := b.catalogs[defaultLocale]; !ok {
		return nil, fmt.Errorf("unknown default locale %q", defaultLocale)
	}

	// The matcher prefers the first tag on a tie, so the default goes first.
	b.locales = []string{defaultLocale}
	var rest []string
	for name := range b.catalogs {
		if name != defaultLocale {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	b.locales = append(b.locales, rest...)

	tags := make([]language.Tag, len(b.locales))
	for i, l := range b.locales {
		tags[i] = language.Make(l)
	}
	b.matcher = language.NewMatcher(tags)
	return b, nil
}

func parseCatalog(data []byte) (*catalog, error) {
	var tree map[string]any
	if _, err := toml.Decode(string(data), &tree); err != nil {
		return nil, err
	}

	cat := &catalog{messages: make(map[string]string)}
	flatten("", tree, cat)
	return cat, nil
}

func flatten(prefix string, node map[string]any, cat *catalog) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			cat.messages[key] = val
		case map[string]any:
			flatten(key, val, cat)
		case []any:
			if key == "time.months" {
				for _, m := range val {
					if s, ok := m.(string); ok {
						cat.months = append(cat.months, s)
					}
				}
			}
		}
	}
}

// Locales lists the available locales, default first.
func (b *Bundle) Locales() []string {
	return append([]string(nil), b.locales...)
}

// Match picks the best locale for the given preferences. Each preference
// may be a tag or a full Accept-Language header value.
func (b *Bundle) Match(prefs ...string) string {
	_, idx := language.MatchStrings(b.matcher, prefs...)
	if idx < 0 || idx >= len(b.locales) {
		return b.locales[0]
	}
	return b.locales[idx]
}

// Printer returns a Printer for the best match of prefs.
func (b *Bundle) Printer(prefs ...string) *Printer {
	locale := b.Match(prefs...)
	return &Printer{
		locale:   locale,
		catalog:  b.catalogs[locale],
		fallback: b.catalogs[Fallback],
	}
}

// Printer translates keys for one locale.
type Printer struct {
	locale   string
	catalog  *catalog
	fallback *catalog
}

// Locale returns the printer's locale.
func (p *Printer) Locale() string {
	return p.locale
}

// T translates key, formatting args with fmt verbs from the catalog entry.
// A missing key renders as the key itself.
func (p *Printer) T(key string, args ...any) string {
	msg, ok := p.catalog.messages[key]
	if !ok {
		msg, ok = p.fallback.messages[key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Month returns the abbreviated month name.
func (p *Printer) Month(m time.Month) string {
	months := p.catalog.months
	if len(months) != 12 {
		months = p.fallback.months
	}
	if len(months) != 12 {
		return m.String()[:3]
	}
	return months[m-1]
}

// DateTime renders an abbreviated month and day followed by clock.
func (p *Printer) DateTime(t time.Time, clock string) string {
	return p.T("time.date_time", p.Month(t.Month()), t.Day(), clock)
}

// Date renders an abbreviated month, day and year.
func (p *Printer) Date(t time.Time) string {
	return p.T("time.date", p.Month(t.Month()), t.Day(), t.Year())
}
