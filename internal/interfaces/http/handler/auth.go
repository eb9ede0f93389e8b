package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vectorcraft/tuner/internal/infrastructure/auth"
	"github.com/vectorcraft/tuner/internal/interfaces/http/middleware"
)

// AuthHandler handles operator authentication HTTP requests
type AuthHandler struct {
	BaseHandler
	jwtService  *auth.JWTService
	revocations auth.RevocationStore
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(jwtService *auth.JWTService, revocations auth.RevocationStore) *AuthHandler {
	return &AuthHandler{
		jwtService:  jwtService,
		revocations: revocations,
	}
}

// ===================== Request/Response DTOs =====================

// LoginRequest defines operator login credentials
// @Description Operator login credentials
type LoginRequest struct {
	Username string `json:"username" binding:"required" example:"admin"`
	Password string `json:"password" binding:"required" example:"changeme"`
}

// TokenResponse represents an issued access token
// @Description Issued access token with expiry
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type" example:"Bearer"`
}

// LoginResponse represents a successful login
// @Description Successful login response
type LoginResponse struct {
	Token    TokenResponse `json:"token"`
	Username string        `json:"username" example:"admin"`
}

// LogoutResponse represents a successful logout
// @Description Successful logout response
type LogoutResponse struct {
	Message string `json:"message" example:"Logged out successfully"`
}

// ===================== Endpoints =====================

// Login godoc
// @Summary      Operator login
// @Description  Authenticates the operator credential and issues an access token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} dto.Response{data=LoginResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body")
		return
	}

	issued, err := h.jwtService.Authenticate(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.Unauthorized(c, "Invalid username or password")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, LoginResponse{
		Token: TokenResponse{
			AccessToken: issued.AccessToken,
			ExpiresAt:   issued.ExpiresAt,
			TokenType:   issued.TokenType,
		},
		Username: req.Username,
	})
}

// Logout godoc
// @Summary      Operator logout
// @Description  Invalidates the presented token for the remainder of its lifetime
// @Tags         auth
// @Accept       json
// @Produce      json
// @Success      200 {object} dto.Response{data=LogoutResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Authentication required")
		return
	}

	if h.revocations != nil && claims.ID != "" {
		ttl := h.jwtService.AccessTokenExpiration()
		if claims.ExpiresAt != nil {
			ttl = time.Until(claims.ExpiresAt.Time)
		}
		if ttl > 0 {
			if err := h.revocations.Revoke(c.Request.Context(), claims.ID, ttl); err != nil {
				h.HandleError(c, err)
				return
			}
		}
	}

	h.Success(c, LogoutResponse{
		Message: "Logged out successfully",
	})
}
