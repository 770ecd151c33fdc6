package view

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cooarq/cooarq-portal/internal/i18n"
	"github.com/cooarq/cooarq-portal/internal/shared"
	"github.com/cooarq/cooarq-portal/web"
)

// Engine renders HTML templates.
type Engine struct {
	pages map[string]*template.Template
}

// TemplateData contains values shared across templates.
type TemplateData struct {
	Title       string
	CSRFToken   string
	Flash       *shared.FlashMessage
	CurrentPath string
	// RefreshAfter, when positive, makes the page navigate to RefreshTo.
	RefreshAfter time.Duration
	RefreshTo    string
	Loc          *i18n.Localizer
	Data         any
}

// T translates key for the request locale.
func (d TemplateData) T(key string, args ...any) string {
	return d.Loc.T(key, args...)
}

// Lang is the value of the html lang attribute.
func (d TemplateData) Lang() string {
	if d.Loc == nil {
		return i18n.PortugueseBR.String()
	}
	return d.Loc.Tag.String()
}

// RefreshSeconds is RefreshAfter rounded up to whole seconds.
func (d TemplateData) RefreshSeconds() int {
	secs := int(d.RefreshAfter / time.Second)
	if d.RefreshAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// NewEngine parses the embedded templates. Each page is parsed into its own
// copy of the layouts and partials so pages can define the same blocks.
func NewEngine() (*Engine, error) {
	return newEngine(web.Templates)
}

func newEngine(fsys fs.FS) (*Engine, error) {
	funcMap := template.FuncMap{
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02/01/2006 15:04")
		},
		"lower": strings.ToLower,
		"title": func(v any) string {
			return cases.Title(language.Und).String(fmt.Sprint(v))
		},
	}
	base, err := template.New("root").Funcs(funcMap).ParseFS(fsys, "templates/layouts/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, err
	}
	pages, err := fs.Glob(fsys, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	e := &Engine{pages: make(map[string]*template.Template, len(pages))}
	for _, p := range pages {
		tpl, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := tpl.ParseFS(fsys, p); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		e.pages["pages/"+path.Base(p)] = tpl
	}
	return e, nil
}

// RenderStatus executes the layout for page name with TemplateData and
// writes it with status. Output is buffered so a template error never
// produces a half-written page.
func (e *Engine) RenderStatus(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}
	tpl, ok := e.pages[name]
	if !ok {
		return fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
