package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rmaia/authd/internal/common"
	"github.com/rmaia/authd/internal/server/models"
	"github.com/rmaia/authd/internal/server/services"
)

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name"     binding:"required"`
	Email    string `json:"email"    binding:"required,email"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func userBody(u *models.User) gin.H {
	return gin.H{
		"id":       u.ID,
		"username": u.Username,
		"name":     u.Name,
		"email":    u.Email,
	}
}

// setSessionCookies stores the token pair the way browsers expect it: the
// refresh token is scoped to the /refresh-token path so it is only ever sent
// to the exchange and revoke endpoints.
func setSessionCookies(c *gin.Context, pair *services.TokenPair) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.RefreshTokenCookieName, pair.RefreshToken, 0, "/refresh-token", "", false, true)
	c.SetCookie(common.AccessTokenCookieName, pair.AccessToken, 0, "/", "", false, true)
}

func clearSessionCookies(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.RefreshTokenCookieName, "", -1, "/refresh-token", "", false, true)
	c.SetCookie(common.AccessTokenCookieName, "", -1, "/", "", false, true)
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	user, err := s.users.Register(c.Request.Context(), req.Username, req.Password, req.Name, req.Email)
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"message": "Username or email already taken"})
			return
		}
		s.logger.Error(c.Request.Context(), "registration failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	s.logger.Info(c.Request.Context(), "user registered", "username", user.Username)
	c.JSON(http.StatusCreated, userBody(user))
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	pair, user, err := s.users.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid username or password"})
			return
		}
		s.logger.Error(c.Request.Context(), "login failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	setSessionCookies(c, pair)
	c.JSON(http.StatusOK, userBody(user))
}

// stateCookieName holds the anti-forgery state between the login redirect
// and the provider callback. Scoped to /auth/google; SameSite=Lax so it
// survives the redirect back from the provider.
const stateCookieName = "oauth_state"

func (s *Server) googleLogin(c *gin.Context) {
	state, err := common.MakeRandHexString(16)
	if err != nil {
		s.logger.Error(c.Request.Context(), "state generation failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, state, 600, "/auth/google", "", false, true)
	c.Redirect(http.StatusFound, s.identity.AuthURL(state))
}

func (s *Server) googleCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing authorization code"})
		return
	}

	state := c.Query("state")
	saved, err := c.Cookie(stateCookieName)
	if err != nil || state == "" || state != saved {
		s.logger.Debug(c.Request.Context(), "external login rejected", "reason", "state mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{"message": "failed to authenticate with Google"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, "", -1, "/auth/google", "", false, true)

	identity, err := s.identity.Exchange(c.Request.Context(), code)
	if err != nil {
		s.logger.Debug(c.Request.Context(), "external login rejected", "reason", err.Error())
		c.JSON(http.StatusUnauthorized, gin.H{"message": "failed to authenticate with Google"})
		return
	}

	pair, user, err := s.users.LoginExternal(c.Request.Context(), identity)
	if err != nil {
		s.logger.Error(c.Request.Context(), "external login failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	setSessionCookies(c, pair)
	c.JSON(http.StatusOK, gin.H{"token": pair.AccessToken, "user": userBody(user)})
}

// presentedRefreshToken reads the refresh token from the cookie, falling
// back to the request body for non-browser clients.
func presentedRefreshToken(c *gin.Context) string {
	if v, err := c.Cookie(common.RefreshTokenCookieName); err == nil && v != "" {
		return v
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (s *Server) refresh(c *gin.Context) {
	refreshToken := presentedRefreshToken(c)
	if refreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Refresh token not found"})
		return
	}

	access, err := s.sessions.Exchange(c.Request.Context(), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrSessionNotFound),
			errors.Is(err, common.ErrTokenExpired),
			errors.Is(err, common.ErrInvalidToken):
			s.logger.Debug(c.Request.Context(), "exchange rejected", "reason", err.Error())
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid refresh token"})
		default:
			s.logger.Error(c.Request.Context(), "exchange failed", "error", err.Error())
			c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		}
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(common.AccessTokenCookieName, access, 0, "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{"access_token": access})
}

func (s *Server) revoke(c *gin.Context) {
	refreshToken := presentedRefreshToken(c)
	if refreshToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Refresh token not found"})
		return
	}

	revoked, err := s.sessions.Revoke(c.Request.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrSessionNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid refresh token"})
			return
		}
		s.logger.Error(c.Request.Context(), "revoke failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	clearSessionCookies(c)
	s.logger.Info(c.Request.Context(), "session revoked", "user_id", revoked.UserID)
	c.JSON(http.StatusOK, gin.H{"message": "refresh token revoked"})
}

func (s *Server) currentUser(c *gin.Context) {
	userID := c.GetString(ctxUserIDKey)

	user, err := s.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		s.logger.Error(c.Request.Context(), "user lookup failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	c.JSON(http.StatusOK, userBody(user))
}

// userIDParam validates the :id path parameter. The id column is a uuid, so
// anything else can only ever be a miss.
func userIDParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return "", false
	}
	return id, true
}

func (s *Server) getUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	user, err := s.users.GetUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		s.logger.Error(c.Request.Context(), "user lookup failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	c.JSON(http.StatusOK, userBody(user))
}

func (s *Server) deleteUser(c *gin.Context) {
	id, ok := userIDParam(c)
	if !ok {
		return
	}

	user, err := s.users.DeleteUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
			return
		}
		s.logger.Error(c.Request.Context(), "user delete failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	s.logger.Info(c.Request.Context(), "user deleted", "user_id", user.ID)
	c.JSON(http.StatusOK, userBody(user))
}

func (s *Server) protected(c *gin.Context) {
	c.String(http.StatusOK, "Allowed to see!")
}
