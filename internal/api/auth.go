package api

import (
	"net/http" // HTTP status codes
	"regexp"   // Regular expressions

	"inspection_system/internal/domain"  // Importing domain models
	"inspection_system/internal/service" // Account service
	"inspection_system/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin" // Gin web framework
)

// Request and Response structs
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`                              // Username must be provided
	Email    string `json:"email" binding:"required,email"`                           // Email used for checkout
	Password string `json:"password" binding:"required"`                              // Password must be provided
	Role     string `json:"role" binding:"omitempty,oneof=customer dealer inspector"` // Self-service roles only
}

// Request struct for login
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Response struct for authentication
type AuthResponse struct {
	Token string      `json:"token"` // JWT token
	Role  domain.Role `json:"role"`  // Role encoded in the token
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z]+$`)

// isValidUsername checks if the username contains only alphabetic characters
func isValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// isValidPassword checks if the password length is between 8 and 15 characters
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 15 // Return true if length is valid
}

// RegisterHandler creates a user and provisions their wallet
func RegisterHandler(accounts *service.Accounts) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		// Validate username and password
		if !isValidUsername(req.Username) {
			fail(c, http.StatusBadRequest, string(domain.KindValidation), "Username must be alphabetic only", nil)
			return
		}
		if !isValidPassword(req.Password) {
			fail(c, http.StatusBadRequest, string(domain.KindValidation), "Password must be 8-15 characters", nil)
			return
		}
		user, err := accounts.Register(c.Request.Context(), service.RegisterInput{
			Username: req.Username,
			Email:    req.Email,
			Password: req.Password,
			Role:     domain.Role(req.Role),
		})
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusCreated, "User registered successfully", gin.H{
			"id":        user.ID,
			"username":  user.Username,
			"role":      user.Role,
			"wallet_id": user.Wallet.ID,
		})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(accounts *service.Accounts, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if !bindJSON(c, &req) {
			return
		}
		user, err := accounts.Authenticate(c.Request.Context(), req.Username, req.Password)
		if err != nil {
			fail(c, http.StatusUnauthorized, "invalid_credentials", "Invalid credentials", nil)
			return
		}
		// Generate JWT token
		token, err := utils.GenerateJWT(user.ID, string(user.Role), jwtSecret)
		if err != nil {
			respondError(c, err)
			return
		}
		ok(c, http.StatusOK, "Login successful", AuthResponse{Token: token, Role: user.Role})
	}
}
