package flows

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each request method to the matching flow.
type Deps struct {
	Session           SessionDeps
	Login             LoginDeps
	Refresh           RefreshDeps
	Logout            LogoutDeps
	EmailVerification EmailVerificationDeps
	Social            SocialLoginDeps
}
