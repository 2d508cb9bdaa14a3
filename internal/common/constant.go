package common

// Cookie names used by the HTTP boundary to carry tokens between the
// browser and the service.
const (
	AccessTokenCookieName  = "access_token"
	RefreshTokenCookieName = "refresh_token"
)
