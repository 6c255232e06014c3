package flows

import "context"

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Session.Codec != nil && s.deps.Session.Store != nil
}

func (s Service) Login(ctx context.Context, email, password string) LoginResult {
	return RunLogin(ctx, email, password, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, userID, refreshToken string) RefreshResult {
	return RunRefresh(ctx, userID, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, userID string) error {
	return RunLogout(ctx, userID, s.deps.Logout)
}

func (s Service) IssueEmailVerification(userID, email string) (string, error) {
	return RunIssueEmailVerification(userID, email, s.deps.EmailVerification)
}

func (s Service) RequestEmailVerification(ctx context.Context, userID, email string) RequestVerificationResult {
	return RunRequestEmailVerification(ctx, userID, email, s.deps.EmailVerification)
}

func (s Service) ConsumeEmailVerification(ctx context.Context, token string) ConsumeVerificationResult {
	return RunConsumeEmailVerification(ctx, token, s.deps.EmailVerification)
}

func (s Service) SocialLogin(ctx context.Context, provider, code, redirectURI string) SocialLoginResult {
	return RunSocialLogin(ctx, provider, code, redirectURI, s.deps.Social)
}
