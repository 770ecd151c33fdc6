// Package i18n carries the portal's message catalog and per-request locale
// selection.
package i18n

import (
	"context"
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var (
	// PortugueseBR is the product's primary locale.
	PortugueseBR = language.BrazilianPortuguese
	// English is the secondary locale.
	English = language.English
)

// Bundle owns the catalog and the locale matcher.
type Bundle struct {
	catalog   *catalog.Builder
	supported []language.Tag
	matcher   language.Matcher
}

// New builds the catalog with defaultLocale preferred when the request
// expresses no usable preference.
func New(defaultLocale string) (*Bundle, error) {
	def, err := language.Parse(defaultLocale)
	if err != nil {
		return nil, err
	}
	supported := []language.Tag{PortugueseBR, English}
	_, idx, _ := language.NewMatcher(supported).Match(def)
	if idx != 0 {
		supported[0], supported[idx] = supported[idx], supported[0]
	}

	b := catalog.NewBuilder(catalog.Fallback(supported[0]))
	for key, e := range messages {
		if err := b.SetString(PortugueseBR, key, e.pt); err != nil {
			return nil, err
		}
		if err := b.SetString(English, key, e.en); err != nil {
			return nil, err
		}
	}
	return &Bundle{
		catalog:   b,
		supported: supported,
		matcher:   language.NewMatcher(supported),
	}, nil
}

// Default is the locale used when nothing matches.
func (b *Bundle) Default() language.Tag {
	return b.supported[0]
}

// Match picks a supported locale for an Accept-Language header value.
func (b *Bundle) Match(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return b.Default()
	}
	_, idx, conf := b.matcher.Match(tags...)
	if conf == language.No {
		return b.Default()
	}
	return b.supported[idx]
}

// Localizer formats messages for one locale.
func (b *Bundle) Localizer(tag language.Tag) *Localizer {
	return &Localizer{
		Tag:     tag,
		printer: message.NewPrinter(tag, message.Catalog(b.catalog)),
	}
}

// Middleware stores a Localizer for the request's preferred locale in the
// context.
func (b *Bundle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loc := b.Localizer(b.Match(r.Header.Get("Accept-Language")))
		w.Header().Set("Content-Language", loc.Tag.String())
		next.ServeHTTP(w, r.WithContext(WithLocalizer(r.Context(), loc)))
	})
}

// Localizer is a message printer bound to a locale.
type Localizer struct {
	Tag     language.Tag
	printer *message.Printer
}

// T renders key with args.
func (l *Localizer) T(key string, args ...any) string {
	if l == nil {
		return key
	}
	return l.printer.Sprintf(key, args...)
}

type localizerKey struct{}

// WithLocalizer stores loc in ctx.
func WithLocalizer(ctx context.Context, loc *Localizer) context.Context {
	return context.WithValue(ctx, localizerKey{}, loc)
}

var fallback *Localizer

func init() {
	b, err := New(PortugueseBR.String())
	if err != nil {
		panic(err)
	}
	fallback = b.Localizer(b.Default())
}

// FromContext returns the request Localizer, falling back to Brazilian
// Portuguese when none was installed.
func FromContext(ctx context.Context) *Localizer {
	if loc, ok := ctx.Value(localizerKey{}).(*Localizer); ok && loc != nil {
		return loc
	}
	return fallback
}
