// Package i18n holds the localized texts of user-facing notifications.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var locales embed.FS

const DefaultLang = "en"

// Translator resolves localized strings using dot-separated keys.
type Translator interface {
	T(key string) string
	// Format resolves key and substitutes {placeholder} tokens from args.
	Format(key string, args map[string]string) string
	Lang() string
}

// Catalog stores all available translations.
type Catalog struct {
	translations map[string]map[string]string
	defaultLang  string
}

// Load reads the catalog compiled into the binary.
func Load(defaultLang string) (*Catalog, error) {
	return LoadFS(locales, "locales", defaultLang)
}

// MustDefault returns the compiled-in catalog with English as the fallback.
func MustDefault() *Catalog {
	c, err := Load(DefaultLang)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFS loads every YAML file under root in fsys.
func LoadFS(fsys fs.FS, root, defaultLang string) (*Catalog, error) {
	catalog, err := parseDir(fsys, root)
	if err != nil {
		return nil, err
	}

	if defaultLang == "" {
		defaultLang = DefaultLang
	}
	defaultLang = normalize(defaultLang)

	if _, ok := catalog[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q is missing", defaultLang)
	}

	return &Catalog{translations: catalog, defaultLang: defaultLang}, nil
}

// Translator returns a translator for lang, falling back to the default language.
func (c *Catalog) Translator(lang string) Translator {
	if c == nil {
		return translator{}
	}

	norm := normalize(lang)
	if norm == "" || c.translations[norm] == nil {
		norm = c.defaultLang
	}

	return translator{
		lang:         norm,
		fallback:     c.defaultLang,
		translations: c.translations,
	}
}

func (c *Catalog) Languages() []string {
	if c == nil {
		return nil
	}

	languages := make([]string, 0, len(c.translations))
	for lang := range c.translations {
		languages = append(languages, lang)
	}
	return languages
}

type translator struct {
	lang         string
	fallback     string
	translations map[string]map[string]string
}

func (t translator) Lang() string {
	return t.lang
}

// T returns the key itself when no language defines it.
func (t translator) T(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}

	if value := t.lookup(t.lang, key); value != "" {
		return value
	}
	if value := t.lookup(t.fallback, key); value != "" {
		return value
	}

	return key
}

func (t translator) Format(key string, args map[string]string) string {
	text := t.T(key)
	if len(args) == 0 {
		return text
	}

	pairs := make([]string, 0, len(args)*2)
	for name, value := range args {
		pairs = append(pairs, "{"+name+"}", value)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func (t translator) lookup(lang, key string) string {
	if lang == "" || t.translations == nil {
		return ""
	}

	return t.translations[lang][key]
}

func parseDir(fsys fs.FS, root string) (map[string]map[string]string, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("i18n: read dir %s: %w", root, err)
	}

	catalog := make(map[string]map[string]string)
	var processed bool

	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		processed = true

		file := path.Join(root, entry.Name())
		fileCatalog, err := parseFile(fsys, file)
		if err != nil {
			return nil, err
		}

		for lang, translations := range fileCatalog {
			if _, ok := catalog[lang]; !ok {
				catalog[lang] = make(map[string]string)
			}
			for key, value := range translations {
				catalog[lang][key] = value
			}
		}
	}

	if !processed {
		return nil, fmt.Errorf("i18n: no yaml files found in %s", root)
	}

	return catalog, nil
}

func isYAML(name string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func parseFile(fsys fs.FS, file string) (map[string]map[string]string, error) {
	data, err := fs.ReadFile(fsys, file)
	if err != nil {
		return nil, fmt.Errorf("i18n: read file %s: %w", file, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return map[string]map[string]string{}, nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("i18n: parse file %s: %w", file, err)
	}

	catalog := make(map[string]map[string]string)
	for lang, value := range raw {
		langKey := normalize(lang)
		nested, ok := value.(map[string]any)
		if langKey == "" || !ok {
			continue
		}

		flattened := make(map[string]string)
		flatten("", nested, flattened)
		if len(flattened) > 0 {
			catalog[langKey] = flattened
		}
	}

	return catalog, nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for key, value := range in {
		if key == "" {
			continue
		}

		nextKey := key
		if prefix != "" {
			nextKey = prefix + "." + key
		}

		switch v := value.(type) {
		case string:
			out[nextKey] = v
		case map[string]any:
			flatten(nextKey, v, out)
		}
	}
}

func normalize(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}
