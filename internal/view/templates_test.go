package view

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cooarq/cooarq-portal/internal/i18n"
	"github.com/cooarq/cooarq-portal/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderStatusErrorPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)
	bundle, err := i18n.New("pt-BR")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.RenderStatus(rec, http.StatusForbidden, "pages/error.html", TemplateData{
		Title: "Acesso negado",
		Loc:   bundle.Localizer(i18n.English),
		Flash: &shared.FlashMessage{Kind: "error", Message: "<b>nope</b>"},
		Data:  map[string]any{"Status": 403, "Message": "forbidden"},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `<html lang="en">`)
	assert.Contains(t, body, "<title>Acesso negado · CooArq</title>")
	assert.Contains(t, body, "&lt;b&gt;nope&lt;/b&gt;")
	assert.Contains(t, body, "All rights reserved.")
	assert.NotContains(t, body, "http-equiv")
}

func TestRenderUnknownPage(t *testing.T) {
	engine, err := NewEngine()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	assert.Error(t, engine.RenderStatus(rec, http.StatusOK, "pages/missing.html", TemplateData{}))
	assert.Zero(t, rec.Body.Len())

	var nilEngine *Engine
	assert.Error(t, nilEngine.RenderStatus(rec, http.StatusOK, "pages/error.html", TemplateData{}))
}

func TestRefreshSeconds(t *testing.T) {
	cases := []struct {
		after time.Duration
		want  int
	}{
		{0, 0},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{3 * time.Second, 3},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TemplateData{RefreshAfter: tc.after}.RefreshSeconds(), tc.after.String())
	}
}

func TestLangDefaultsToPortuguese(t *testing.T) {
	assert.Equal(t, "pt-BR", TemplateData{}.Lang())
}

func TestTitleFunc(t *testing.T) {
	engine, err := newEngine(testFS())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	require.NoError(t, engine.RenderStatus(rec, http.StatusOK, "pages/title.html", TemplateData{Data: "gerente de vendas"}))
	assert.Equal(t, "Gerente De Vendas|", rec.Body.String())
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"templates/layouts/base.html":  {Data: []byte(`{{define "layout"}}{{template "content" .}}|{{end}}`)},
		"templates/partials/none.html": {Data: []byte(`{{define "partial"}}{{end}}`)},
		"templates/pages/title.html":   {Data: []byte(`{{define "content"}}{{title .Data}}{{end}}`)},
	}
}
