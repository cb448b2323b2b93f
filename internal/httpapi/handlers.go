package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"delivery-dispatch/internal/audit"
	"delivery-dispatch/internal/auth"
	"delivery-dispatch/internal/calls"
	"delivery-dispatch/internal/reporting"
	"delivery-dispatch/internal/workers"
	"delivery-dispatch/pkg/logger"
	"delivery-dispatch/pkg/security"
)

// OrderIDSource mints order ids for manual status changes.
type OrderIDSource interface {
	Next() (string, error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Workers   workers.Repository
	Calls     calls.Repository
	Tokens    *auth.Manager
	Revoker   auth.Revoker
	Limiter   LoginLimiter
	Passwords security.Hasher
	Audit     *audit.Service
	Reports   *reporting.Service
	OrderIDs  OrderIDSource

	Version string
	Now     func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Mount registers the worker API on r. requireAuth guards account routes;
// optionalAuth only populates identity when a token is present.
func (h *Handlers) Mount(r gin.IRouter, requireAuth, optionalAuth gin.HandlerFunc) {
	api := r.Group("/api")

	api.GET("/health", h.Health)
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/refresh", h.Refresh)
	api.GET("/check-session", optionalAuth, h.CheckSession)

	protected := api.Group("")
	protected.Use(requireAuth)
	{
		protected.POST("/logout", h.Logout)
		protected.GET("/dashboard", h.Dashboard)
		protected.POST("/update-status", h.UpdateStatus)
		protected.GET("/profile", h.Profile)
		protected.PUT("/update-profile", h.UpdateProfile)
		protected.POST("/change-password", h.ChangePassword)
		protected.GET("/call-logs", h.CallLogs)
	}
}

// fail aborts with a JSON error. A non-nil cause is attached to the gin
// context so the request log carries it.
func fail(c *gin.Context, status int, msg string, cause error) {
	if cause != nil {
		_ = c.Error(cause)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func (h *Handlers) currentWorker(c *gin.Context) (int64, bool) {
	id, err := auth.WorkerID(c.Request.Context())
	if err != nil {
		fail(c, http.StatusUnauthorized, "Authentication required", nil)
		return 0, false
	}
	return id, true
}

/* ===================== ACCOUNT ===================== */

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Phone    string `json:"phone" validate:"required,in_phone"`
	Password string `json:"password" validate:"required,min=6"`
	Email    string `json:"email" validate:"omitempty,max=120,in_email"`
}

var registerMessages = map[string]string{
	"name":     "Name is required",
	"phone":    "Invalid phone number format. Use +91XXXXXXXXXX",
	"password": "Password must be at least 6 characters long",
	"email":    "Invalid email format",
}

func (h *Handlers) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Password = strings.TrimSpace(req.Password)
	req.Email = strings.TrimSpace(req.Email)

	if err := validate.Struct(req); err != nil {
		fail(c, http.StatusBadRequest, validationMessage(err, registerMessages, "Invalid registration data"), nil)
		return
	}

	hash, err := h.Passwords.Hash(req.Password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooShort) || errors.Is(err, security.ErrPasswordTooLong) {
			fail(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Registration failed. Please try again.", err)
		return
	}

	w, err := h.Workers.Create(c.Request.Context(), workers.NewWorker{
		Name:         req.Name,
		Phone:        req.Phone,
		Email:        workers.NormalizeEmail(req.Email),
		PasswordHash: hash,
	})
	switch {
	case errors.Is(err, workers.ErrPhoneTaken):
		fail(c, http.StatusBadRequest, "Phone number already registered", nil)
		return
	case errors.Is(err, workers.ErrEmailTaken):
		fail(c, http.StatusBadRequest, "Email already registered", nil)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "Registration failed. Please try again.", err)
		return
	}

	logger.FromGin(c).Info("worker registered", "worker_id", w.ID)
	h.Audit.Record(c.Request.Context(), w.ID, audit.EventTypeRegister, c.ClientIP(), "worker registered", nil)

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         "Registration successful",
		"delivery_worker": w,
	})
}

type loginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	req.Phone = strings.TrimSpace(req.Phone)
	req.Password = strings.TrimSpace(req.Password)
	if err := validate.Struct(req); err != nil {
		fail(c, http.StatusBadRequest, "Phone number and password are required", nil)
		return
	}

	ctx := c.Request.Context()
	if h.Limiter != nil {
		allowed, err := h.Limiter.AllowLogin(ctx, c.ClientIP(), req.Phone)
		if err != nil {
			// Fail open: throttling must not lock every worker out when Redis is down.
			logger.FromGin(c).Warn("login rate limit unavailable", "err", err)
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(h.Limiter.Window().Seconds())))
			fail(c, http.StatusTooManyRequests, "Too many login attempts. Please try again later.", nil)
			return
		}
	}

	w, err := h.Workers.GetByPhone(ctx, req.Phone)
	if err != nil && !errors.Is(err, workers.ErrNotFound) {
		fail(c, http.StatusInternalServerError, "Login failed. Please try again.", err)
		return
	}
	if err != nil || !w.IsActive {
		fail(c, http.StatusUnauthorized, "Invalid phone number or password", nil)
		return
	}
	ok, err := h.Passwords.Verify(req.Password, w.PasswordHash)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Login failed. Please try again.", err)
		return
	}
	if !ok {
		fail(c, http.StatusUnauthorized, "Invalid phone number or password", nil)
		return
	}

	pair, err := h.Tokens.IssuePair(h.now(), w.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Login failed. Please try again.", err)
		return
	}

	logger.FromGin(c).Info("worker logged in", "worker_id", w.ID)
	h.Audit.Record(ctx, w.ID, audit.EventTypeLogin, c.ClientIP(), "worker logged in", nil)

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         "Login successful",
		"delivery_worker": w,
		"tokens":          pair,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued.
func (h *Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || validate.Struct(req) != nil {
		fail(c, http.StatusBadRequest, "Refresh token is required", nil)
		return
	}

	ctx := c.Request.Context()
	now := h.now()
	claims, err := h.Tokens.Verify(req.RefreshToken, auth.TokenTypeRefresh, now)
	if err != nil {
		fail(c, http.StatusUnauthorized, "Invalid refresh token", nil)
		return
	}
	if h.Revoker != nil {
		revoked, err := h.Revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			fail(c, http.StatusInternalServerError, "Token refresh failed", err)
			return
		}
		if revoked {
			fail(c, http.StatusUnauthorized, "Invalid refresh token", nil)
			return
		}
	}

	w, err := h.Workers.Get(ctx, claims.WorkerID)
	if err != nil && !errors.Is(err, workers.ErrNotFound) {
		fail(c, http.StatusInternalServerError, "Token refresh failed", err)
		return
	}
	if err != nil || !w.IsActive {
		fail(c, http.StatusUnauthorized, "Invalid refresh token", nil)
		return
	}

	if h.Revoker != nil {
		if err := h.Revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
			fail(c, http.StatusInternalServerError, "Token refresh failed", err)
			return
		}
	}
	pair, err := h.Tokens.IssuePair(now, w.ID)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Token refresh failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tokens": pair})
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Logout revokes the access token on the request and, when supplied, the
// refresh token issued with it.
func (h *Handlers) Logout(c *gin.Context) {
	id, ok := h.currentWorker(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var req logoutRequest
	_ = c.ShouldBindJSON(&req)

	if h.Revoker != nil {
		if jti, exp, ok := auth.TokenID(ctx); ok {
			if err := h.Revoker.Revoke(ctx, jti, exp); err != nil {
				fail(c, http.StatusInternalServerError, "Logout failed", err)
				return
			}
		}
		if req.RefreshToken != "" {
			claims, err := h.Tokens.Verify(req.RefreshToken, auth.TokenTypeRefresh, h.now())
			if err == nil && claims.WorkerID == id {
				if err := h.Revoker.Revoke(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
					fail(c, http.StatusInternalServerError, "Logout failed", err)
					return
				}
			}
		}
	}

	logger.FromGin(c).Info("worker logged out", "worker_id", id)
	h.Audit.Record(ctx, id, audit.EventTypeLogout, c.ClientIP(), "worker logged out", nil)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

// CheckSession never fails: an absent, invalid or stale token reports
// authenticated=false.
func (h *Handlers) CheckSession(c *gin.Context) {
	id, err := auth.WorkerID(c.Request.Context())
	if err == nil {
		w, err := h.Workers.Get(c.Request.Context(), id)
		if err == nil && w.IsActive {
			c.JSON(http.StatusOK, gin.H{"authenticated": true, "delivery_worker": w})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": false})
}
