package testutil

const (
	APIBaseURL          = "/api/v1"
	HealthCheckEndpoint = APIBaseURL + "/health"
	SignupEndpoint      = APIBaseURL + "/auth/signup"
	LoginEndpoint       = APIBaseURL + "/auth/login"
	RefreshEndpoint     = APIBaseURL + "/auth/refresh"
	LogoutEndpoint      = APIBaseURL + "/auth/logout"
	LogoutAllEndpoint   = APIBaseURL + "/auth/logout/all"
	MeEndpoint          = APIBaseURL + "/auth/me"
	GoogleEndpoint      = APIBaseURL + "/auth/google"
	GoogleCallbackURL   = APIBaseURL + "/auth/google/callback"
)
