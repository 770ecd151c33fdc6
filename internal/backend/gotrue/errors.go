package gotrue

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cooarq/cooarq-portal/internal/backend"
)

// errorPayload covers the three error shapes the auth API has used over
// time: OAuth style, the current {code,error_code,msg} and a bare message.
type errorPayload struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (p errorPayload) text() string {
	for _, s := range []string{p.Msg, p.ErrorDescription, p.Message, p.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

var codeKinds = map[string]backend.Kind{
	"invalid_credentials":        backend.KindInvalidCredentials,
	"user_already_exists":        backend.KindAlreadyRegistered,
	"email_exists":               backend.KindAlreadyRegistered,
	"email_not_confirmed":        backend.KindEmailNotConfirmed,
	"session_not_found":          backend.KindSessionMissing,
	"session_expired":            backend.KindSessionMissing,
	"refresh_token_not_found":    backend.KindSessionMissing,
	"refresh_token_already_used": backend.KindSessionMissing,
	"bad_jwt":                    backend.KindSessionMissing,
	"no_authorization":           backend.KindSessionMissing,
	"user_not_found":             backend.KindNotFound,
	"weak_password":              backend.KindWeakPassword,
	"over_request_rate_limit":    backend.KindRateLimited,
	"over_email_send_rate_limit": backend.KindRateLimited,
}

func classify(status int, body []byte) *backend.Error {
	var p errorPayload
	_ = json.Unmarshal(body, &p)
	msg := p.text()
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := &backend.Error{Kind: backend.KindService, Code: p.ErrorCode, Status: status, Message: msg}
	if kind, ok := codeKinds[p.ErrorCode]; ok {
		e.Kind = kind
		return e
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "invalid login credentials"):
		e.Kind = backend.KindInvalidCredentials
	case strings.Contains(lower, "already registered"):
		e.Kind = backend.KindAlreadyRegistered
	case strings.Contains(lower, "email not confirmed"):
		e.Kind = backend.KindEmailNotConfirmed
	case strings.Contains(lower, "session missing"), strings.Contains(lower, "invalid refresh token"):
		e.Kind = backend.KindSessionMissing
	case status == http.StatusTooManyRequests:
		e.Kind = backend.KindRateLimited
	}
	return e
}
