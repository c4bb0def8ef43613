package i18n

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Localizer handles translation lookups
type Localizer struct {
	lang string
	data map[string]interface{}
}

var (
	localizers = map[string]*Localizer{}
	supported  []language.Tag
	matcher    language.Matcher
)

func init() {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		panic(fmt.Sprintf("i18n: reading embedded locales: %v", err))
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	// English first so it is the matcher's fallback
	sort.SliceStable(names, func(i, j int) bool { return names[i] == "en" && names[j] != "en" })

	for _, lang := range names {
		l, err := load(lang)
		if err != nil {
			panic(fmt.Sprintf("i18n: %v", err))
		}
		localizers[lang] = l
		supported = append(supported, language.Make(lang))
	}
	matcher = language.NewMatcher(supported)
}

func load(lang string) (*Localizer, error) {
	name := path.Join("locales", lang+".json")
	content, err := localeFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read locale file %s: %w", name, err)
	}
	var data map[string]interface{}
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("failed to parse locale file %s: %w", name, err)
	}
	return &Localizer{lang: lang, data: data}, nil
}

// New returns the localizer for lang, falling back to English.
func New(lang string) *Localizer {
	if l, ok := localizers[lang]; ok {
		return l
	}
	return localizers["en"]
}

// Supported lists the embedded languages, English first.
func Supported() []string {
	out := make([]string, len(supported))
	for i, t := range supported {
		out[i] = t.String()
	}
	return out
}

// T translates a key path like "backend.auth.invalid_credentials"
func (l *Localizer) T(key string) string {
	return l.TWithData(key, nil)
}

// TWithData translates a key with template data for interpolation
func (l *Localizer) TWithData(key string, data map[string]string) string {
	parts := strings.Split(key, ".")
	current := l.data

	for i, part := range parts {
		if i == len(parts)-1 {
			if val, ok := current[part].(string); ok {
				return interpolate(val, data)
			}
			break
		}
		next, ok := current[part].(map[string]interface{})
		if !ok {
			break
		}
		current = next
	}

	// unknown keys are returned verbatim
	return key
}

// interpolate replaces {{key}} placeholders with values from data
func interpolate(text string, data map[string]string) string {
	for key, value := range data {
		text = strings.ReplaceAll(text, "{{"+key+"}}", value)
	}
	return text
}

// Lang returns the current language
func (l *Localizer) Lang() string {
	return l.lang
}

// T is a convenience function for the English localizer
func T(key string) string {
	return New("en").T(key)
}

// TWithData is a convenience function for the English localizer
func TWithData(key string, data map[string]string) string {
	return New("en").TWithData(key, data)
}
