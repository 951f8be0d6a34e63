package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"shadowtrade/internal/middleware"
)

// AuthHandler handles operator authentication. There is a single operator
// identity whose bcrypt password hash comes from configuration; no user
// records live in the database.
type AuthHandler struct {
	passwordHash string
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(passwordHash string) *AuthHandler {
	return &AuthHandler{passwordHash: passwordHash}
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token string `json:"token"`
}

// Login handles operator login
// POST /api/auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return BadRequestResponse(c, "Invalid request payload")
	}

	if req.Password == "" {
		return BadRequestResponse(c, "Password is required")
	}

	if h.passwordHash == "" {
		return UnauthorizedResponse(c, "Operator login is not configured")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(h.passwordHash), []byte(req.Password)); err != nil {
		return UnauthorizedResponse(c, "Invalid credentials")
	}

	token, err := middleware.GenerateJWT("operator")
	if err != nil {
		return InternalServerErrorResponse(c, "Failed to generate token", err)
	}

	// Set HTTP-only cookie
	cookie := &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		SameSite: http.SameSiteStrictMode,
		MaxAge:   86400, // 24 hours
	}
	c.SetCookie(cookie)

	return SuccessResponse(c, LoginResponse{Token: token})
}

// Logout handles operator logout
// POST /api/auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	// Clear the cookie
	cookie := &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1, // Delete cookie
	}
	c.SetCookie(cookie)

	return SuccessMessageResponse(c, "Logged out", nil)
}
