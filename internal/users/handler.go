package users

import (
	"context"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"

	"visatrack/internal/shared/server/middleware"
	"visatrack/internal/shared/server/respond"
	"visatrack/internal/shared/telemetry"
)

// Handler exposes signup, login and the profile echo.
type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes mounts the account routes on the given group. The auth
// routes are exempt from the bearer check; /me is not.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/signup", h.signup)
	rg.POST("/auth/login", h.login)
	rg.GET("/me", h.me)
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type userResponse struct {
	UserID     string     `json:"user_id"`
	Email      string     `json:"email"`
	FullName   string     `json:"full_name"`
	VisaType   string     `json:"visa_type"`
	LoginCount int        `json:"login_count"`
	LastLogin  *time.Time `json:"last_login,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	IsActive   bool       `json:"is_active"`
}

func toUserResponse(u User) userResponse {
	return userResponse{
		UserID:     u.UserID,
		Email:      u.Email,
		FullName:   u.FullName,
		VisaType:   u.VisaType,
		LoginCount: u.LoginCount,
		LastLogin:  u.LastLogin,
		CreatedAt:  u.CreatedAt,
		IsActive:   u.IsActive,
	}
}

type signupPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	VisaType string `json:"visa_type"`
}

func (h *Handler) signup(c *gin.Context) {
	var payload signupPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			respond.Error(c, http.StatusBadRequest, ErrorCodeMissingBody, "Request body is required", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, ErrorCodeInvalidJSON, "Invalid JSON in request body", nil)
		return
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	fullName := strings.TrimSpace(payload.FullName)
	visaType := strings.TrimSpace(payload.VisaType)
	if visaType == "" {
		visaType = "F-1"
	}

	if email == "" || payload.Password == "" || fullName == "" {
		respond.Error(c, http.StatusBadRequest, ErrorCodeMissingFields, "Email, password, and full name are required", nil)
		return
	}
	if !emailPattern.MatchString(email) {
		respond.Error(c, http.StatusBadRequest, ErrorCodeInvalidEmail, "Invalid email format", nil)
		return
	}
	if msg, ok := checkPassword(payload.Password); !ok {
		respond.Error(c, http.StatusBadRequest, ErrorCodeWeakPassword, msg, nil)
		return
	}
	if !allowedVisa(visaType) {
		respond.Error(c, http.StatusBadRequest, ErrorCodeInvalidVisaType,
			"Visa type must be one of: "+strings.Join(allowedVisaTypes, ", "), nil)
		return
	}

	user, err := h.Svc.Signup(requestContext(c), SignupParams{
		Email:    email,
		Password: payload.Password,
		FullName: fullName,
		VisaType: visaType,
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			respond.Error(c, http.StatusConflict, ErrorCodeUserExists, "User with this email already exists", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeDatabase, "Error creating user account", nil)
		return
	}

	respond.JSONMessage(c, http.StatusCreated, gin.H{"user": toUserResponse(user)}, "User created successfully")
}

type loginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var payload loginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			respond.Error(c, http.StatusBadRequest, ErrorCodeMissingBody, "Request body is required", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, ErrorCodeInvalidJSON, "Invalid JSON in request body", nil)
		return
	}

	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" || payload.Password == "" {
		respond.Error(c, http.StatusBadRequest, ErrorCodeMissingCredentials, "Email and password are required", nil)
		return
	}

	user, firstLogin, err := h.Svc.Login(requestContext(c), email, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			respond.Error(c, http.StatusUnauthorized, ErrorCodeInvalidCredentials, "Invalid email or password", nil)
		case errors.Is(err, ErrDisabled):
			respond.Error(c, http.StatusForbidden, ErrorCodeAccountDisabled, "This account has been disabled", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, ErrorCodeDatabase, "Error accessing user data", nil)
		}
		return
	}

	respond.JSONMessage(c, http.StatusOK, gin.H{
		"user":           toUserResponse(user),
		"is_first_login": firstLogin,
	}, "Login successful")
}

func (h *Handler) me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	user, err := h.Svc.Profile(requestContext(c), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, ErrorCodeUserNotFound, "User not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, ErrorCodeDatabase, "Error accessing user data", nil)
		return
	}

	respond.OK(c, gin.H{"user": toUserResponse(user)})
}

func checkPassword(password string) (string, bool) {
	switch {
	case len(password) < 8:
		return "Password must be at least 8 characters long", false
	case !strings.ContainsFunc(password, unicode.IsUpper):
		return "Password must contain at least one uppercase letter", false
	case !strings.ContainsFunc(password, unicode.IsLower):
		return "Password must contain at least one lowercase letter", false
	case !strings.ContainsFunc(password, unicode.IsDigit):
		return "Password must contain at least one number", false
	}
	return "", true
}

// requestContext carries the middleware request ID into the service layer.
func requestContext(c *gin.Context) context.Context {
	return telemetry.WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}
