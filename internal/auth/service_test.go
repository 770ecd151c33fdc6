package auth_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cooarq/cooarq-portal/internal/auth"
	"github.com/cooarq/cooarq-portal/internal/backend"
	"github.com/cooarq/cooarq-portal/internal/backend/memory"
	"github.com/cooarq/cooarq-portal/internal/rbac"
)

func TestLoginRejectsMalformedInputWithoutBackendCall(t *testing.T) {
	cases := []struct {
		name string
		form auth.LoginForm
		key  string
	}{
		{"bad email", auth.LoginForm{Email: "ana.example.com", Password: "Segura1!x"}, "auth.error.invalid_email"},
		{"missing tld", auth.LoginForm{Email: "ana@example", Password: "Segura1!x"}, "auth.error.invalid_email"},
		{"empty password", auth.LoginForm{Email: "ana@example.com"}, "auth.error.password_required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			out := h.service.Login(t.Context(), newSession(t), tc.form)
			require.NotNil(t, out.Error)
			assert.Equal(t, tc.key, out.Error.Key)
			assert.Empty(t, out.Redirect)
			assert.Zero(t, h.auth.calls.Load())
		})
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	h := newHarness(t)
	h.seed(t, memory.Seed{Email: "ana@example.com", Password: "Segura1!x"})
	sess := newSession(t)

	out := h.service.Login(t.Context(), sess, auth.LoginForm{Email: "ana@example.com", Password: "errada"})
	require.NotNil(t, out.Error)
	assert.Equal(t, "auth.error.invalid_credentials", out.Error.Key)
	assert.Nil(t, h.store.GetSession(sess))
	assert.Equal(t, []failure{{op: "sign in", kind: "invalid_credentials"}}, h.recordedFailures())
}

func TestLoginShowsBackendTextVerbatim(t *testing.T) {
	h := newHarness(t)
	h.auth.signInErr = &backend.Error{Kind: backend.KindRateLimited, Status: http.StatusTooManyRequests, Message: "For security purposes, you can only request this after 10 seconds."}

	out := h.service.Login(t.Context(), newSession(t), auth.LoginForm{Email: "ana@example.com", Password: "x"})
	require.NotNil(t, out.Error)
	assert.Equal(t, "For security purposes, you can only request this after 10 seconds.", out.Error.Raw)
}

func TestLoginNetworkFailureIsUnexpected(t *testing.T) {
	h := newHarness(t)
	h.auth.signInErr = backend.NetworkError("sign in", assert.AnError)

	out := h.service.Login(t.Context(), newSession(t), auth.LoginForm{Email: "ana@example.com", Password: "x"})
	require.NotNil(t, out.Error)
	assert.Equal(t, "auth.error.login_unexpected", out.Error.Key)
	assert.Equal(t, []failure{{op: "sign in", kind: "network"}}, h.recordedFailures())
}

func TestLoginEstablishesSession(t *testing.T) {
	h := newHarness(t)
	id := h.seed(t, memory.Seed{
		Email:    "ana@example.com",
		Password: "Segura1!x",
		FullName: "Ana Souza",
		Grants:   []rbac.Grant{{Module: rbac.ModuleCRM, CanRead: true, CanWrite: true}},
	})
	sess := newSession(t)

	out := h.service.Login(t.Context(), sess, auth.LoginForm{Email: " ana@example.com ", Password: "Segura1!x", RememberMe: true})
	require.Nil(t, out.Error)
	assert.Equal(t, "/", out.Redirect)
	assert.Equal(t, auth.ModeLogin, out.Flow.Mode)
	assert.Equal(t, id, sess.User())
	assert.True(t, sess.Persistent())

	st := h.store.State(sess)
	require.True(t, st.SignedIn())
	require.NotNil(t, st.Profile)
	assert.Equal(t, "Ana Souza", st.Profile.FullName)
	assert.True(t, h.store.HasPermission(sess, rbac.ModuleCRM, rbac.ActionWrite))
	assert.False(t, h.store.HasPermission(sess, rbac.ModuleCRM, rbac.ActionDelete))
	assert.Equal(t, []auth.EventKind{auth.EventSignedIn, auth.EventProfileLoaded}, h.eventKinds())
}

func TestLoginUnconfirmedAccount(t *testing.T) {
	h := newHarness(t)
	sess := newSession(t)
	moveTo(t, h, sess, auth.ModeRegister)
	out := h.service.Register(t.Context(), sess, auth.RegisterForm{
		Email: "novo@example.com", Password: "Segura1!x", ConfirmPassword: "Segura1!x", AcceptTerms: true,
	})
	require.Nil(t, out.Error)

	other := newSession(t)
	out = h.service.Login(t.Context(), other, auth.LoginForm{Email: "novo@example.com", Password: "Segura1!x"})
	require.NotNil(t, out.Error)
	assert.Empty(t, out.Error.Key)
	assert.Equal(t, "Email not confirmed", out.Error.Raw, "backend text is shown as returned")
}

func TestLoginOutsideLoginMode(t *testing.T) {
	h := newHarness(t)
	sess := newSession(t)
	moveTo(t, h, sess, auth.ModeRegister)

	out := h.service.Login(t.Context(), sess, auth.LoginForm{Email: "ana@example.com", Password: "x"})
	require.NotNil(t, out.Error)
	assert.Equal(t, "auth.error.invalid_request", out.Error.Key)
	assert.Zero(t, h.auth.calls.Load())
}

func TestRegisterValidation(t *testing.T) {
	valid := auth.RegisterForm{
		FullName:        "Ana Souza",
		Email:           "ana@example.com",
		Password:        "Segura1!x",
		ConfirmPassword: "Segura1!x",
		AcceptTerms:     true,
	}
	cases := []struct {
		name   string
		mutate func(*auth.RegisterForm)
		key    string
	}{
		{"bad email", func(f *auth.RegisterForm) { f.Email = "ana" }, "auth.error.invalid_email"},
		{"mismatch", func(f *auth.RegisterForm) { f.ConfirmPassword = "Segura1!y" }, "auth.error.password_mismatch"},
		{"weak", func(f *auth.RegisterForm) { f.Password, f.ConfirmPassword = "abcdefgh", "abcdefgh" }, "auth.error.weak_password"},
		{"terms", func(f *auth.RegisterForm) { f.AcceptTerms = false }, "auth.error.terms_required"},
		{"email before terms", func(f *auth.RegisterForm) { f.Email = ""; f.AcceptTerms = false }, "auth.error.invalid_email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			sess := newSession(t)
			moveTo(t, h, sess, auth.ModeRegister)
			form := valid
			tc.mutate(&form)

			out := h.service.Register(t.Context(), sess, form)
			require.NotNil(t, out.Error)
			assert.Equal(t, tc.key, out.Error.Key)
			assert.Equal(t, auth.ModeRegister, out.Flow.Mode)
			assert.Zero(t, h.auth.calls.Load())
			assert.Empty(t, h.mem.Outbox())
		})
	}
}

func TestRegisterMovesToVerifyEmail(t *testing.T) {
	h := newHarness(t)
	sess := newSession(t)
	moveTo(t, h, sess, auth.ModeRegister)

	out := h.service.Register(t.Context(), sess, auth.RegisterForm{
		FullName:        "  Ana Souza ",
		Email:           "ana@example.com",
		Phone:           "11 99999-0000",
		Password:        "Segura1!x",
		ConfirmPassword: "Segura1!x",
		AcceptTerms:     true,
		Newsletter:      true,
	})
	require.Nil(t, out.Error)
	require.NotNil(t, out.Success)
	assert.Equal(t, "auth.success.registered", out.Success.Key)
	assert.Empty(t, out.Redirect)
	assert.Equal(t, auth.ModeVerifyEmail, out.Flow.Mode)
	assert.Equal(t, "ana@example.com", out.Flow.Email)
	assert.Equal(t, out.Flow, h.service.Flow(sess))
	assert.Nil(t, h.store.GetSession(sess))

	outbox := h.mem.Outbox()
	require.Len(t, outbox, 1)
	assert.Equal(t, "signup", outbox[0].Kind)
	assert.NotEmpty(t, h.repo.TakeVerifier(sess), "the PKCE verifier is kept for the callback")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.seed(t, memory.Seed{Email: "ana@example.com", Password: "Segura1!x"})
	sess := newSession(t)
	moveTo(t, h, sess, auth.ModeRegister)

	out := h.service.Register(t.Context(), sess, auth.RegisterForm{
		Email: "ana@example.com", Password: "Segura1!x", ConfirmPassword: "Segura1!x", AcceptTerms: true,
	})
	require.NotNil(t, out.Error)
	assert.Equal(t, "auth.error.already_registered", out.Error.Key)
	assert.Equal(t, auth.ModeRegister, out.Flow.Mode)
}

func TestRegisterWithAutoConfirmSignsIn(t *testing.T) {
	h := newHarness(t, withAutoConfirm())
	sess := newSession(t)
	moveTo(t, h, sess, auth.ModeRegister)

	out := h.service.Register(t.Context(), sess, auth.RegisterForm{
		FullName: "Ana Souza", Email: "ana@example.com", Password: "Segura1!x", ConfirmPassword: "Segura1!x", AcceptTerms: true,
	})
	require.Nil(t, out.Error)
	assert.Equal(t, "/", out.Redirect)
	assert.NotNil(t, h.store.GetSession(sess))
	assert.Equal(t, auth.ModeLogin, h.service.Flow(sess).Mode)
}

func TestSwitchModeNeverEntersVerifyEmail(t *testing.T) {
	h := newHarness(t)
	sess := newSession(t)
	moveTo(t, h, sess, auth.ModeRegister)

	flow, err := h.service.SwitchMode(sess, auth.ModeVerifyEmail)
	assert.ErrorIs(t, err, auth.ErrInvalidTransition)
	assert.Equal(t, auth.ModeRegister, flow.Mode)

	_, err = h.service.SwitchMode(sess, auth.ModeForgotPassword)
	assert.ErrorIs(t, err, auth.ErrInvalidTransition)
	assert.Equal(t, auth.ModeRegister, h.service.Flow(sess).Mode)
}

func TestForgotPasswordAndResend(t *testing.T) {
	h := newHarness(t)
	h.seed(t, memory.Seed{Email: "rita@example.com", Password: "Original1!"})
	before := len(h.mem.Outbox())
	sess := newSession(t)

	out := h.service.ResendRecovery(t.Context(), sess)
	require.NotNil(t, out.Error, "nothing to resend before the first request")

	moveTo(t, h, sess, auth.ModeForgotPassword)
	out = h.service.ForgotPassword(t.Context(), sess, auth.EmailForm{Email: "rita"})
	require.NotNil(t, out.Error)
	assert.Equal(t, "auth.error.invalid_email", out.Error.Key)

	out = h.service.ForgotPassword(t.Context(), sess, auth.EmailForm{Email: "rita@example.com"})
	require.Nil(t, out.Error)
	assert.Equal(t, "auth.success.recovery_sent", out.Success.Key)
	assert.True(t, out.Flow.EmailSent)

	out = h.service.ResendRecovery(t.Context(), sess)
	require.Nil(t, out.Error)
	assert.Equal(t, "auth.success.recovery_resent", out.Success.Key)

	outbox := h.mem.Outbox()[before:]
	require.Len(t, outbox, 2)
	for _, m := range outbox {
		assert.Equal(t, "recovery", m.Kind)
		assert.Equal(t, "rita@example.com", m.To)
	}

	moveTo(t, h, sess, auth.ModeLogin)
	assert.False(t, h.service.Flow(sess).EmailSent, "leaving the mode resets the sent state")
}

func TestForgotPasswordUnknownEmailLooksSuccessful(t *testing.T) {
	h := newHarness(t)
	sess := newSession(t)
	moveTo(t, h, sess, auth.ModeForgotPassword)

	out := h.service.ForgotPassword(t.Context(), sess, auth.EmailForm{Email: "ninguem@example.com"})
	require.Nil(t, out.Error)
	assert.Equal(t, "auth.success.recovery_sent", out.Success.Key)
	assert.Empty(t, h.mem.Outbox())
}

func TestResendVerification(t *testing.T) {
	h := newHarness(t)
	sess := newSession(t)

	out := h.service.ResendVerification(t.Context(), sess)
	require.NotNil(t, out.Error)
	assert.Equal(t, "auth.error.invalid_request", out.Error.Key)

	moveTo(t, h, sess, auth.ModeRegister)
	out = h.service.Register(t.Context(), sess, auth.RegisterForm{
		Email: "ana@example.com", Password: "Segura1!x", ConfirmPassword: "Segura1!x", AcceptTerms: true,
	})
	require.Nil(t, out.Error)

	out = h.service.ResendVerification(t.Context(), sess)
	require.Nil(t, out.Error)
	assert.Equal(t, "auth.success.verification_resent", out.Success.Key)
	assert.Len(t, h.mem.Outbox(), 2)
}

func TestSignOutClearsEvenWhenRevokeFails(t *testing.T) {
	h := newHarness(t)
	h.seed(t, memory.Seed{Email: "ana@example.com", Password: "Segura1!x"})
	sess := newSession(t)
	out := h.service.Login(t.Context(), sess, auth.LoginForm{Email: "ana@example.com", Password: "Segura1!x"})
	require.Nil(t, out.Error)

	h.auth.signOutErr = backend.NetworkError("logout", assert.AnError)
	err := h.service.SignOut(t.Context(), sess)
	assert.Error(t, err)
	assert.Nil(t, h.store.GetSession(sess))
	assert.Empty(t, sess.User())
	assert.Equal(t, auth.ModeLogin, h.service.Flow(sess).Mode)
	assert.Contains(t, h.eventKinds(), auth.EventSignedOut)
}

func TestSignOutWhenSignedOutIsNoop(t *testing.T) {
	h := newHarness(t)
	assert.NoError(t, h.service.SignOut(t.Context(), newSession(t)))
	assert.Empty(t, h.eventKinds())
}

func TestSocialStart(t *testing.T) {
	h := newHarness(t)
	sess := newSession(t)

	out := h.service.SocialStart(t.Context(), sess, "myspace")
	require.NotNil(t, out.Error)
	assert.Equal(t, "auth.error.social", out.Error.Key)
	assert.Equal(t, []any{"myspace"}, out.Error.Args)

	out = h.service.SocialStart(t.Context(), sess, "google")
	require.Nil(t, out.Error)
	assert.True(t, strings.HasPrefix(out.Redirect, "http://portal.test/auth/callback?code="))
}

func TestCompleteOAuth(t *testing.T) {
	h := newHarness(t)
	sess := newSession(t)

	assert.Equal(t, auth.CallbackAuthError, h.service.CompleteOAuth(t.Context(), sess, url.Values{"error": {"access_denied"}}))
	assert.Equal(t, auth.CallbackAuthError, h.service.CompleteOAuth(t.Context(), sess, url.Values{}))
	assert.Equal(t, auth.CallbackAuthError, h.service.CompleteOAuth(t.Context(), sess, url.Values{"code": {"unknown"}}))

	out := h.service.SocialStart(t.Context(), sess, "apple")
	require.Nil(t, out.Error)
	target, err := url.Parse(out.Redirect)
	require.NoError(t, err)

	assert.Equal(t, auth.CallbackHome, h.service.CompleteOAuth(t.Context(), sess, target.Query()))
	identity := h.store.GetSession(sess)
	require.NotNil(t, identity)
	assert.Equal(t, "apple-user@example.com", identity.Email)

	// An already signed-in browser landing without parameters goes home.
	assert.Equal(t, auth.CallbackHome, h.service.CompleteOAuth(t.Context(), sess, url.Values{}))
}

func TestCompleteOAuthRejectsCodeWithoutVerifier(t *testing.T) {
	h := newHarness(t)
	out := h.service.SocialStart(t.Context(), newSession(t), "google")
	require.Nil(t, out.Error)
	target, err := url.Parse(out.Redirect)
	require.NoError(t, err)

	other := newSession(t)
	assert.Equal(t, auth.CallbackAuthError, h.service.CompleteOAuth(t.Context(), other, target.Query()))
	assert.Nil(t, h.store.GetSession(other))
}

func TestAdoptRecoveryWithOpaqueTokenPair(t *testing.T) {
	h := newHarness(t, withoutJWTSecret())
	h.auth.opaque["abc"] = backend.Identity{ID: "u-abc", Email: "rita@example.com"}
	sess := newSession(t)

	assert.False(t, h.service.CanResetPassword(sess))
	err := h.service.AdoptRecovery(t.Context(), sess, url.Values{"access_token": {"abc"}, "refresh_token": {"def"}, "type": {"recovery"}})
	require.NoError(t, err)
	assert.True(t, h.service.CanResetPassword(sess))

	st := h.store.State(sess)
	assert.Equal(t, "abc", st.Tokens.AccessToken)
	assert.Equal(t, "def", st.Tokens.RefreshToken)
	assert.Equal(t, "u-abc", st.Identity.ID)
	assert.Equal(t, []auth.EventKind{auth.EventSignedIn, auth.EventPasswordRecovery}, h.eventKinds())
}

func TestAdoptRecoveryRejectsForgedTokensWhenVerifying(t *testing.T) {
	h := newHarness(t)
	h.auth.opaque["abc"] = backend.Identity{ID: "u-abc"}
	sess := newSession(t)

	err := h.service.AdoptRecovery(t.Context(), sess, url.Values{"access_token": {"abc"}, "refresh_token": {"def"}})
	assert.Error(t, err)
	assert.False(t, h.service.CanResetPassword(sess))
}

func TestResetPassword(t *testing.T) {
	h := newHarness(t)
	h.seed(t, memory.Seed{Email: "rita@example.com", Password: "Original1!"})
	sess := newSession(t)

	form := auth.NewPasswordForm{Password: "NovaSenha1!", ConfirmPassword: "NovaSenha1!"}
	out := h.service.ResetPassword(t.Context(), sess, form)
	require.NotNil(t, out.Error)
	assert.Equal(t, "auth.error.reset_link_invalid", out.Error.Key)

	moveTo(t, h, sess, auth.ModeForgotPassword)
	require.Nil(t, h.service.ForgotPassword(t.Context(), sess, auth.EmailForm{Email: "rita@example.com"}).Error)
	outbox := h.mem.Outbox()
	link, err := url.Parse(outbox[len(outbox)-1].Link)
	require.NoError(t, err)
	require.NoError(t, h.service.AdoptRecovery(t.Context(), sess, link.Query()))

	out = h.service.ResetPassword(t.Context(), sess, auth.NewPasswordForm{Password: "NovaSenha1!", ConfirmPassword: "NovaSenha2!"})
	require.NotNil(t, out.Error)
	assert.Equal(t, "auth.error.password_mismatch", out.Error.Key)

	out = h.service.ResetPassword(t.Context(), sess, form)
	require.Nil(t, out.Error)
	assert.Equal(t, "auth.success.password_changed", out.Success.Key)
	assert.Equal(t, "/", out.Redirect)

	_, err = h.mem.SignInWithPassword(t.Context(), "rita@example.com", "NovaSenha1!")
	assert.NoError(t, err)
	_, err = h.mem.SignInWithPassword(t.Context(), "rita@example.com", "Original1!")
	assert.Error(t, err)
}

func TestRecoveryLinkUnderImplicitFlow(t *testing.T) {
	h := newHarness(t, withImplicitFlow())
	h.seed(t, memory.Seed{Email: "rita@example.com", Password: "Original1!"})
	sess := newSession(t)

	moveTo(t, h, sess, auth.ModeForgotPassword)
	require.Nil(t, h.service.ForgotPassword(t.Context(), sess, auth.EmailForm{Email: "rita@example.com"}).Error)
	outbox := h.mem.Outbox()
	link, err := url.Parse(outbox[len(outbox)-1].Link)
	require.NoError(t, err)
	assert.Empty(t, link.Query().Get("code"))
	assert.NotEmpty(t, link.Query().Get("access_token"))
	assert.NotEmpty(t, link.Query().Get("refresh_token"))

	other := newSession(t)
	require.NoError(t, h.service.AdoptRecovery(t.Context(), other, link.Query()))
	assert.True(t, h.service.CanResetPassword(other))
	kinds := h.eventKinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, auth.EventSignedIn, kinds[0])
	assert.Equal(t, auth.EventPasswordRecovery, kinds[len(kinds)-1])

	out := h.service.ResetPassword(t.Context(), other, auth.NewPasswordForm{Password: "NovaSenha1!", ConfirmPassword: "NovaSenha1!"})
	require.Nil(t, out.Error)
	_, err = h.mem.SignInWithPassword(t.Context(), "rita@example.com", "NovaSenha1!")
	assert.NoError(t, err)
}
