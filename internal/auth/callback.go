package auth

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/cooarq/cooarq-portal/internal/backend"
	"github.com/cooarq/cooarq-portal/internal/shared"
)

// Redirect targets of the OAuth callback.
const (
	CallbackHome            = "/"
	CallbackAuthError       = "/?error=auth_error"
	CallbackUnexpectedError = "/?error=unexpected_error"
)

// CompleteOAuth finishes a provider or email-confirmation redirect and
// returns where to send the browser. It never retries.
func (s *Service) CompleteOAuth(ctx context.Context, sess *shared.Session, query url.Values) string {
	if e := query.Get("error"); e != "" {
		s.logger.Warn("oauth callback error",
			slog.String("error", e),
			slog.String("description", query.Get("error_description")))
		return CallbackAuthError
	}

	session, err := s.sessionFromURL(ctx, sess, query)
	if err != nil {
		s.logFailure("oauth callback", err)
		if backend.KindOf(err) == backend.KindNetwork {
			return CallbackUnexpectedError
		}
		return CallbackAuthError
	}
	if session == nil {
		if s.store.GetSession(sess) != nil {
			return CallbackHome
		}
		return CallbackAuthError
	}
	if err := s.store.Establish(ctx, sess, session, EventSignedIn); err != nil {
		s.logger.Error("establish session from callback", slog.Any("error", err))
		return CallbackUnexpectedError
	}
	_ = s.repo.SaveFlow(sess, NewFlow())
	return CallbackHome
}

// AdoptRecovery establishes the session carried by a recovery link, either
// as an access/refresh token pair or as a PKCE code. A link without either
// is a no-op.
func (s *Service) AdoptRecovery(ctx context.Context, sess *shared.Session, query url.Values) error {
	session, err := s.sessionFromURL(ctx, sess, query)
	if err != nil {
		s.logFailure("recovery link", err)
		return err
	}
	if session == nil {
		return nil
	}
	if err := s.store.Establish(ctx, sess, session, EventSignedIn); err != nil {
		return err
	}
	s.client.Publish(backend.Change{Event: backend.EventPasswordRecovery, UserID: session.User.ID})
	return nil
}

// CanResetPassword reports whether the new-password form is usable.
func (s *Service) CanResetPassword(sess *shared.Session) bool {
	return s.store.GetSession(sess) != nil
}

// ResetPassword sets a new password for the session established by the
// recovery link.
func (s *Service) ResetPassword(ctx context.Context, sess *shared.Session, form NewPasswordForm) Outcome {
	out := Outcome{Flow: s.repo.LoadFlow(sess)}
	st := s.store.State(sess)
	if !st.SignedIn() {
		out.Error = NoticeKey("auth.error.reset_link_invalid")
		return out
	}
	if n := s.validator.Check(form); n != nil {
		out.Error = n
		return out
	}
	if _, err := s.client.UpdatePassword(ctx, st.Tokens.AccessToken, form.Password); err != nil {
		s.logFailure("update password", err)
		out.Error = translate(err, "auth.error.reset_unexpected")
		return out
	}
	out.Success = NoticeKey("auth.success.password_changed")
	out.Redirect = "/"
	return out
}

// sessionFromURL reads a session handed over in the redirect URL. A nil
// session with a nil error means the URL carried nothing.
func (s *Service) sessionFromURL(ctx context.Context, sess *shared.Session, query url.Values) (*backend.Session, error) {
	if code := query.Get("code"); code != "" {
		return s.client.ExchangeCode(ctx, code, s.repo.TakeVerifier(sess))
	}
	if !s.client.Options().DetectSessionInURL {
		return nil, nil
	}
	access, refresh := query.Get("access_token"), query.Get("refresh_token")
	if access == "" || refresh == "" {
		return nil, nil
	}
	return s.client.SetSession(ctx, access, refresh)
}
