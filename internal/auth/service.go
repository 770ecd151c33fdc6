package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/cooarq/cooarq-portal/internal/backend"
	"github.com/cooarq/cooarq-portal/internal/shared"
)

// ServiceConfig holds the absolute redirect targets handed to the backend.
type ServiceConfig struct {
	CallbackURL string
	ResetURL    string
	// FailureHook, when set, observes every failed backend call.
	FailureHook func(op, kind string)
}

// Outcome is the result of a flow action.
type Outcome struct {
	Flow    Flow
	Error   *Notice
	Success *Notice
	// Redirect, when set, is where the browser goes next.
	Redirect string
}

// Service drives the sign-in flow: it validates input, calls the backend
// and moves the flow between modes.
type Service struct {
	store     *Store
	client    *backend.Client
	repo      Repository
	validator *Validator
	logger    *slog.Logger
	cfg       ServiceConfig
}

// NewService constructs a Service.
func NewService(store *Store, client *backend.Client, repo Repository, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		client:    client,
		repo:      repo,
		validator: NewValidator(),
		logger:    logger,
		cfg:       cfg,
	}
}

// Flow returns the browser's current flow.
func (s *Service) Flow(sess *shared.Session) Flow {
	return s.repo.LoadFlow(sess)
}

// SwitchMode performs a user-initiated mode change. verify-email is only
// reachable through a successful registration.
func (s *Service) SwitchMode(sess *shared.Session, target Mode) (Flow, error) {
	flow := s.repo.LoadFlow(sess)
	if target == ModeVerifyEmail {
		return flow, ErrInvalidTransition
	}
	if err := flow.Transition(target); err != nil {
		return flow, err
	}
	return flow, s.repo.SaveFlow(sess, flow)
}

// Login signs the browser session in.
func (s *Service) Login(ctx context.Context, sess *shared.Session, form LoginForm) Outcome {
	flow := s.repo.LoadFlow(sess)
	out := Outcome{Flow: flow}
	if err := flow.Require(ModeLogin); err != nil {
		out.Error = NoticeKey("auth.error.invalid_request")
		return out
	}
	form.Email = strings.TrimSpace(form.Email)
	if n := s.validator.Check(form); n != nil {
		out.Error = n
		return out
	}
	if err := s.store.SignIn(ctx, sess, form.Email, form.Password); err != nil {
		s.logFailure("sign in", err)
		out.Error = translate(err, "auth.error.login_unexpected")
		return out
	}
	sess.SetPersistent(form.RememberMe)
	out.Flow = NewFlow()
	if err := s.repo.SaveFlow(sess, out.Flow); err != nil {
		s.logger.Error("save flow", slog.Any("error", err))
	}
	out.Redirect = "/"
	return out
}

// Register creates an account. Unless the backend confirms accounts
// automatically, the flow moves to verify-email.
func (s *Service) Register(ctx context.Context, sess *shared.Session, form RegisterForm) Outcome {
	flow := s.repo.LoadFlow(sess)
	out := Outcome{Flow: flow}
	if err := flow.Require(ModeRegister); err != nil {
		out.Error = NoticeKey("auth.error.invalid_request")
		return out
	}
	form.Email = strings.TrimSpace(form.Email)
	form.FullName = strings.TrimSpace(form.FullName)
	if n := s.validator.Check(form); n != nil {
		out.Error = n
		return out
	}

	metadata := map[string]any{"full_name": form.FullName, "phone": strings.TrimSpace(form.Phone)}
	if form.Newsletter {
		metadata["newsletter"] = true
	}
	res, verifier, err := s.client.SignUp(ctx, backend.SignUpRequest{
		Email:      form.Email,
		Password:   form.Password,
		Metadata:   metadata,
		RedirectTo: s.cfg.CallbackURL,
	})
	if err != nil {
		s.logFailure("sign up", err)
		out.Error = translate(err, "auth.error.register_unexpected")
		return out
	}

	if res.Session != nil {
		if err := s.store.Establish(ctx, sess, res.Session, EventSignedIn); err != nil {
			s.logger.Error("establish session after sign up", slog.Any("error", err))
			out.Error = NoticeKey("auth.error.register_unexpected")
			return out
		}
		out.Flow = NewFlow()
		_ = s.repo.SaveFlow(sess, out.Flow)
		out.Redirect = "/"
		return out
	}

	s.repo.PutVerifier(sess, verifier)
	if err := flow.Transition(ModeVerifyEmail); err != nil {
		s.logger.Error("flow transition", slog.Any("error", err))
	}
	flow.Email = form.Email
	if err := s.repo.SaveFlow(sess, flow); err != nil {
		s.logger.Error("save flow", slog.Any("error", err))
	}
	out.Flow = flow
	out.Success = NoticeKey("auth.success.registered")
	return out
}

// ForgotPassword asks the backend to email recovery instructions.
func (s *Service) ForgotPassword(ctx context.Context, sess *shared.Session, form EmailForm) Outcome {
	flow := s.repo.LoadFlow(sess)
	out := Outcome{Flow: flow}
	if err := flow.Require(ModeForgotPassword); err != nil {
		out.Error = NoticeKey("auth.error.invalid_request")
		return out
	}
	form.Email = strings.TrimSpace(form.Email)
	if n := s.validator.Check(form); n != nil {
		out.Error = n
		return out
	}
	if err := s.sendRecovery(ctx, sess, form.Email); err != nil {
		s.logFailure("recover", err)
		out.Error = translate(err, "auth.error.recovery_unexpected")
		return out
	}
	flow.Email = form.Email
	flow.EmailSent = true
	if err := s.repo.SaveFlow(sess, flow); err != nil {
		s.logger.Error("save flow", slog.Any("error", err))
	}
	out.Flow = flow
	out.Success = NoticeKey("auth.success.recovery_sent")
	return out
}

// ResendRecovery sends the recovery email again to the address of the
// previous ForgotPassword.
func (s *Service) ResendRecovery(ctx context.Context, sess *shared.Session) Outcome {
	flow := s.repo.LoadFlow(sess)
	out := Outcome{Flow: flow}
	if flow.Require(ModeForgotPassword) != nil || !flow.EmailSent || !ValidEmail(flow.Email) {
		out.Error = NoticeKey("auth.error.invalid_request")
		return out
	}
	if err := s.sendRecovery(ctx, sess, flow.Email); err != nil {
		s.logFailure("resend recovery", err)
		out.Error = translate(err, "auth.error.resend")
		return out
	}
	out.Success = NoticeKey("auth.success.recovery_resent")
	return out
}

// ResendVerification sends the signup confirmation email again.
func (s *Service) ResendVerification(ctx context.Context, sess *shared.Session) Outcome {
	flow := s.repo.LoadFlow(sess)
	out := Outcome{Flow: flow}
	if flow.Require(ModeVerifyEmail) != nil || !ValidEmail(flow.Email) {
		out.Error = NoticeKey("auth.error.invalid_request")
		return out
	}
	if err := s.client.Resend(ctx, backend.ResendSignup, flow.Email, s.cfg.CallbackURL); err != nil {
		s.logFailure("resend verification", err)
		out.Error = translate(err, "auth.error.resend")
		return out
	}
	out.Success = NoticeKey("auth.success.verification_resent")
	return out
}

// SocialStart returns the provider URL to send the browser to.
func (s *Service) SocialStart(_ context.Context, sess *shared.Session, provider string) Outcome {
	out := Outcome{Flow: s.repo.LoadFlow(sess)}
	p, ok := backend.ParseProvider(provider)
	if !ok {
		out.Error = NoticeKey("auth.error.social", provider)
		return out
	}
	target, verifier, err := s.client.AuthorizeURL(p, s.cfg.CallbackURL)
	if err != nil {
		s.logFailure("authorize url", err)
		if backend.KindOf(err) == backend.KindNetwork {
			out.Error = NoticeKey("auth.error.social_unexpected")
		} else {
			out.Error = NoticeKey("auth.error.social", string(p))
		}
		return out
	}
	s.repo.PutVerifier(sess, verifier)
	out.Redirect = target
	return out
}

// SignOut clears the browser session's identity and resets the flow. The
// returned error only reports the remote revoke.
func (s *Service) SignOut(ctx context.Context, sess *shared.Session) error {
	err := s.store.SignOut(ctx, sess)
	_ = s.repo.SaveFlow(sess, NewFlow())
	return err
}

func (s *Service) sendRecovery(ctx context.Context, sess *shared.Session, email string) error {
	verifier, err := s.client.ResetPasswordForEmail(ctx, email, s.cfg.ResetURL)
	if err != nil {
		return err
	}
	s.repo.PutVerifier(sess, verifier)
	return nil
}

func (s *Service) logFailure(op string, err error) {
	if s.cfg.FailureHook != nil {
		s.cfg.FailureHook(op, backend.KindOf(err).String())
	}
	if backend.KindOf(err) == backend.KindNetwork {
		s.logger.Error("backend unreachable", slog.String("op", op), slog.Any("error", err))
		return
	}
	s.logger.Info("backend rejected request", slog.String("op", op), slog.String("kind", backend.KindOf(err).String()))
}

// translate maps a backend failure to the message shown on the flow page.
// Invalid credentials and duplicate registration get their own messages and
// transport failures the unexpected message. Anything else is shown with the
// backend's own text.
func translate(err error, unexpectedKey string) *Notice {
	var be *backend.Error
	if !errors.As(err, &be) {
		return NoticeKey(unexpectedKey)
	}
	switch be.Kind {
	case backend.KindInvalidCredentials:
		return NoticeKey("auth.error.invalid_credentials")
	case backend.KindAlreadyRegistered:
		return NoticeKey("auth.error.already_registered")
	case backend.KindNetwork:
		return NoticeKey(unexpectedKey)
	}
	if msg := be.Error(); msg != "" {
		return &Notice{Raw: msg}
	}
	return NoticeKey(unexpectedKey)
}
