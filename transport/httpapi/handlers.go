package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MrEthical07/authcore"
)

type handler struct {
	auth   Auth
	logger *slog.Logger
}

type signupRequest struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username"`
	Password string `json:"password" binding:"required"`
	UserType string `json:"user_type"`
}

func (h *handler) signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	res, err := h.auth.Signup(c.Request.Context(), authcore.SignupInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		UserType: req.UserType,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if res.VerificationErr != nil {
		h.logger.WarnContext(c.Request.Context(), "signup verification send failed",
			"user_id", res.UserID, "kind", authcore.ErrorKindOf(res.VerificationErr))
	}

	c.JSON(http.StatusCreated, gin.H{
		"user_id":           res.UserID,
		"email":             res.Email,
		"user_type":         res.UserType,
		"verification_sent": res.VerificationErr == nil,
	})
}

type sendVerificationRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Email  string `json:"email" binding:"required"`
}

func (h *handler) sendVerification(c *gin.Context) {
	var req sendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := h.auth.RequestEmailVerification(c.Request.Context(), req.UserID, req.Email); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sent": true})
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *handler) verifyEmail(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := h.auth.ConsumeEmailVerification(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": res.UserID, "email": res.Email})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenBody(pair))
}

// refreshRequest carries no bearer: the access token is usually expired by
// the time a client refreshes. An empty UserID selects the token's subject.
type refreshRequest struct {
	UserID  string `json:"user_id"`
	Refresh string `json:"refresh" binding:"required"`
}

func (h *handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	pair, err := h.auth.Refresh(c.Request.Context(), req.UserID, req.Refresh)
	if err != nil {
		writeError(c, err)
		return
	}
	body := gin.H{"access": pair.AccessToken}
	if pair.RefreshToken != "" {
		body["refresh"] = pair.RefreshToken
	}
	c.JSON(http.StatusOK, body)
}

func (h *handler) logout(c *gin.Context) {
	id, ok := AuthResultFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": authcore.KindMalformed})
		return
	}
	if err := h.auth.Logout(c.Request.Context(), id.UserID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) me(c *gin.Context) {
	id, ok := AuthResultFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": authcore.KindMalformed})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":   id.UserID,
		"email":     id.Email,
		"user_type": id.UserType,
		"active":    id.Active,
	})
}

type socialLoginRequest struct {
	Code        string `json:"code" binding:"required"`
	RedirectURI string `json:"redirect_uri"`
}

func (h *handler) socialLogin(c *gin.Context) {
	var req socialLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	res, err := h.auth.SocialLogin(c.Request.Context(), c.Param("provider"), req.Code, req.RedirectURI)
	if err != nil {
		writeError(c, err)
		return
	}
	body := tokenBody(res.TokenPair)
	body["provider"] = res.Provider
	body["created"] = res.Created
	c.JSON(http.StatusOK, body)
}

func tokenBody(pair authcore.TokenPair) gin.H {
	return gin.H{
		"user_id":   pair.UserID,
		"user_type": pair.UserType,
		"access":    pair.AccessToken,
		"refresh":   pair.RefreshToken,
	}
}
