// Package i18n renders user-facing messages for domain errors. Catalogs are
// embedded YAML files keyed by error code; French is the default locale.
package i18n

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"
	"text/template"

	"collab-tracker-backend/pkg/apperrors"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

//go:embed locales/*.yaml
var localeFS embed.FS

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog maps error codes to message templates for one locale.
type Catalog struct {
	tag      language.Tag
	messages map[string]string
}

// Bundle holds every loaded catalog and the matcher used to pick one.
type Bundle struct {
	catalogs map[language.Tag]*Catalog
	tags     []language.Tag
	matcher  language.Matcher
}

var (
	defaultOnce   sync.Once
	defaultBundle *Bundle
)

// Default returns the process-wide bundle built from the embedded catalogs.
func Default() *Bundle {
	defaultOnce.Do(func() {
		b, err := LoadFromFS(localeFS)
		if err != nil {
			panic(fmt.Sprintf("load embedded locales: %v", err))
		}
		defaultBundle = b
	})
	return defaultBundle
}

// LoadFromFS loads locales/*.yaml from fsys. The French catalog, when
// present, is the fallback.
func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locales: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale catalogs found")
	}
	sort.Strings(paths)

	b := &Bundle{catalogs: map[language.Tag]*Catalog{}}
	for _, p := range paths {
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var f catalogFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		tag, err := language.Parse(f.Locale)
		if err != nil {
			return nil, fmt.Errorf("%s: bad locale %q: %w", p, f.Locale, err)
		}
		b.catalogs[tag] = &Catalog{tag: tag, messages: f.Messages}
		b.tags = append(b.tags, tag)
	}

	// The first tag handed to the matcher is its fallback.
	sort.SliceStable(b.tags, func(i, j int) bool { return b.tags[i] == language.French && b.tags[j] != language.French })
	b.matcher = language.NewMatcher(b.tags)
	return b, nil
}

// Match picks the best supported locale for an Accept-Language header value.
func (b *Bundle) Match(acceptLanguage string) language.Tag {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return b.tags[0]
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return b.tags[0]
	}
	_, idx, _ := b.matcher.Match(tags...)
	return b.tags[idx]
}

// Catalog returns the catalog for tag, falling back to the default locale.
func (b *Bundle) Catalog(tag language.Tag) *Catalog {
	if c, ok := b.catalogs[tag]; ok {
		return c
	}
	_, idx, _ := b.matcher.Match(tag)
	return b.catalogs[b.tags[idx]]
}

// Localize renders the user-facing message for err. Errors outside the
// taxonomy get the generic store failure message so internals never leak.
func (b *Bundle) Localize(tag language.Tag, err error) string {
	c := b.Catalog(tag)
	de, ok := apperrors.As(err)
	if !ok {
		return c.Format(string(apperrors.CodeStoreFailure), nil)
	}
	return c.Format(string(de.Code), de.Metadata)
}

// Locale returns the BCP 47 tag of the catalog.
func (c *Catalog) Locale() string {
	return c.tag.String()
}

// Format renders the message template for code. Unknown codes render as the
// code itself.
func (c *Catalog) Format(code string, metadata map[string]string) string {
	tmpl, ok := c.messages[code]
	if !ok {
		return code
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	t, err := template.New("msg").Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return tmpl
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, metadata); err != nil {
		return tmpl
	}
	return buf.String()
}
