package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchAcceptLanguage(t *testing.T) {
	b, err := New("pt-BR")
	require.NoError(t, err)

	assert.Equal(t, PortugueseBR, b.Match(""))
	assert.Equal(t, PortugueseBR, b.Match("pt-PT,pt;q=0.9"))
	assert.Equal(t, English, b.Match("en-US,en;q=0.8"))
	assert.Equal(t, PortugueseBR, b.Match("ja"))
}

func TestDefaultLocaleSwitch(t *testing.T) {
	b, err := New("en")
	require.NoError(t, err)
	assert.Equal(t, English, b.Default())
	assert.Equal(t, English, b.Match("ja"))

	_, err = New("not a tag!")
	assert.Error(t, err)
}

func TestTranslate(t *testing.T) {
	b, err := New("pt-BR")
	require.NoError(t, err)

	pt := b.Localizer(PortugueseBR)
	en := b.Localizer(English)
	assert.Equal(t, "E-mail ou senha incorretos. Verifique suas credenciais.", pt.T("auth.error.invalid_credentials"))
	assert.Equal(t, "Incorrect email or password. Check your credentials.", en.T("auth.error.invalid_credentials"))
	assert.Equal(t, "Erro ao fazer login com google", pt.T("auth.error.social", "google"))
	assert.Equal(t, "Bem-vindo, Ana!", pt.T("dashboard.welcome", "Ana"))
}

func TestEveryKeyHasBothLocales(t *testing.T) {
	for key, e := range messages {
		assert.NotEmpty(t, e.pt, key)
		assert.NotEmpty(t, e.en, key)
	}
}

func TestMiddlewareInstallsLocalizer(t *testing.T) {
	b, err := New("pt-BR")
	require.NoError(t, err)

	var got string
	h := b.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context()).T("dashboard.sign_out")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en-GB")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "Sign out", got)
	assert.Equal(t, "en", rec.Header().Get("Content-Language"))
}

func TestFromContextFallback(t *testing.T) {
	assert.Equal(t, "Sair", FromContext(context.Background()).T("dashboard.sign_out"))
	var nilLoc *Localizer
	assert.Equal(t, "x.y", nilLoc.T("x.y"))
}
