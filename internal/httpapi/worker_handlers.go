package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"delivery-dispatch/internal/audit"
	"delivery-dispatch/internal/auth"
	"delivery-dispatch/internal/workers"
	"delivery-dispatch/pkg/logger"
	"delivery-dispatch/pkg/pagination"
	"delivery-dispatch/pkg/security"
)

const recentCallsLimit = 5

// Dashboard returns the worker with their most recent calls and refreshes
// deliveries_today from today's call records.
func (h *Handlers) Dashboard(c *gin.Context) {
	id, ok := h.currentWorker(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	w, err := h.Workers.Get(ctx, id)
	if err != nil && !errors.Is(err, workers.ErrNotFound) {
		fail(c, http.StatusInternalServerError, "Failed to fetch dashboard data", err)
		return
	}
	if err != nil || !w.IsActive {
		if h.Revoker != nil {
			if jti, exp, ok := auth.TokenID(ctx); ok {
				if rerr := h.Revoker.Revoke(ctx, jti, exp); rerr != nil {
					logger.FromGin(c).Warn("revoke token of inactive worker failed", "worker_id", id, "err", rerr)
				}
			}
		}
		fail(c, http.StatusNotFound, "Delivery worker not found or inactive", nil)
		return
	}

	recent, err := h.Calls.ListForWorker(ctx, id, pagination.Params{Page: 1, PerPage: recentCallsLimit})
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch dashboard data", err)
		return
	}

	if h.Reports != nil {
		n, err := h.Reports.DeliveriesToday(ctx, id, h.now())
		if err != nil {
			fail(c, http.StatusInternalServerError, "Failed to fetch dashboard data", err)
			return
		}
		if n != w.DeliveriesToday {
			if err := h.Workers.SetDeliveriesToday(ctx, id, n); err != nil {
				fail(c, http.StatusInternalServerError, "Failed to fetch dashboard data", err)
				return
			}
			w.DeliveriesToday = n
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"delivery_worker": w,
		"recent_calls":    recent.Items,
	})
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=free occupied"`
}

// UpdateStatus is the manual availability toggle. Going occupied without an
// allocated call mints an order id so the worker row stays consistent.
func (h *Handlers) UpdateStatus(c *gin.Context) {
	id, ok := h.currentWorker(c)
	if !ok {
		return
	}
	var req updateStatusRequest
	_ = c.ShouldBindJSON(&req)
	if err := validate.Struct(req); err != nil {
		fail(c, http.StatusBadRequest, `Invalid status. Use "free" or "occupied"`, nil)
		return
	}
	ctx := c.Request.Context()
	status := workers.Status(req.Status)

	w, err := h.Workers.Get(ctx, id)
	switch {
	case errors.Is(err, workers.ErrNotFound):
		fail(c, http.StatusNotFound, "Delivery worker not found", nil)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "Failed to update status", err)
		return
	}

	previous := w.Status
	switch {
	case status == workers.StatusFree:
		err = h.Workers.MarkFree(ctx, id)
	case w.Status != workers.StatusOccupied:
		var orderID string
		if h.OrderIDs == nil {
			err = errors.New("order id source not configured")
			break
		}
		orderID, err = h.OrderIDs.Next()
		if err != nil {
			break
		}
		// Conditional write: a webhook claim that landed since the read
		// keeps its order id.
		var won bool
		won, err = h.Workers.TryClaim(ctx, id, orderID)
		if err == nil && !won {
			logger.FromGin(c).Info("worker claimed concurrently, keeping existing assignment", "worker_id", id)
		}
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update status", err)
		return
	}

	w, err = h.Workers.Get(ctx, id)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to update status", err)
		return
	}

	logger.FromGin(c).Info("worker status updated", "worker_id", id, "from", previous, "to", w.Status)
	h.Audit.Record(ctx, id, audit.EventTypeStatusChange, c.ClientIP(), "status updated",
		map[string]any{"from": previous, "to": w.Status})

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         fmt.Sprintf("Status updated to %s", w.Status),
		"delivery_worker": w,
	})
}

func (h *Handlers) Profile(c *gin.Context) {
	id, ok := h.currentWorker(c)
	if !ok {
		return
	}
	w, err := h.Workers.Get(c.Request.Context(), id)
	switch {
	case errors.Is(err, workers.ErrNotFound):
		fail(c, http.StatusNotFound, "Delivery worker not found", nil)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "Failed to fetch profile", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "delivery_worker": w})
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// UpdateProfile applies name and email changes. A blank name is ignored and a
// blank email clears it.
func (h *Handlers) UpdateProfile(c *gin.Context) {
	id, ok := h.currentWorker(c)
	if !ok {
		return
	}
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	ctx := c.Request.Context()

	if _, err := h.Workers.Get(ctx, id); err != nil {
		if errors.Is(err, workers.ErrNotFound) {
			fail(c, http.StatusNotFound, "Delivery worker not found", nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to update profile", err)
		return
	}

	var upd workers.ProfileUpdate
	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			if validate.Var(name, "max=100") != nil {
				fail(c, http.StatusBadRequest, "Name is too long", nil)
				return
			}
			upd.Name = &name
		}
	}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		if validate.Var(email, "omitempty,max=120,in_email") != nil {
			fail(c, http.StatusBadRequest, "Invalid email format", nil)
			return
		}
		if email != "" {
			taken, err := h.Workers.EmailTaken(ctx, email, id)
			if err != nil {
				fail(c, http.StatusInternalServerError, "Failed to update profile", err)
				return
			}
			if taken {
				fail(c, http.StatusBadRequest, "Email already taken", nil)
				return
			}
		}
		upd.Email = &email
	}

	w, err := h.Workers.UpdateProfile(ctx, id, upd)
	switch {
	case errors.Is(err, workers.ErrEmailTaken):
		fail(c, http.StatusBadRequest, "Email already taken", nil)
		return
	case errors.Is(err, workers.ErrNotFound):
		fail(c, http.StatusNotFound, "Delivery worker not found", nil)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "Failed to update profile", err)
		return
	}

	h.Audit.Record(ctx, id, audit.EventTypeProfileUpdate, c.ClientIP(), "profile updated", nil)

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"message":         "Profile updated successfully",
		"delivery_worker": w,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

func (h *Handlers) ChangePassword(c *gin.Context) {
	id, ok := h.currentWorker(c)
	if !ok {
		return
	}
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid JSON body", nil)
		return
	}
	req.CurrentPassword = strings.TrimSpace(req.CurrentPassword)
	req.NewPassword = strings.TrimSpace(req.NewPassword)
	if req.CurrentPassword == "" || req.NewPassword == "" {
		fail(c, http.StatusBadRequest, "Current password and new password are required", nil)
		return
	}
	if err := validate.Struct(req); err != nil {
		fail(c, http.StatusBadRequest, "New password must be at least 6 characters long", nil)
		return
	}
	ctx := c.Request.Context()

	w, err := h.Workers.Get(ctx, id)
	switch {
	case errors.Is(err, workers.ErrNotFound):
		fail(c, http.StatusNotFound, "Delivery worker not found", nil)
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, "Failed to change password", err)
		return
	}

	match, err := h.Passwords.Verify(req.CurrentPassword, w.PasswordHash)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to change password", err)
		return
	}
	if !match {
		fail(c, http.StatusBadRequest, "Current password is incorrect", nil)
		return
	}

	hash, err := h.Passwords.Hash(req.NewPassword)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooLong) {
			fail(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		fail(c, http.StatusInternalServerError, "Failed to change password", err)
		return
	}
	if err := h.Workers.UpdatePassword(ctx, id, hash); err != nil {
		fail(c, http.StatusInternalServerError, "Failed to change password", err)
		return
	}

	logger.FromGin(c).Info("worker password changed", "worker_id", id)
	h.Audit.Record(ctx, id, audit.EventTypePasswordChange, c.ClientIP(), "password changed", nil)

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password changed successfully"})
}

// CallLogs pages the worker's call history, newest first. Malformed page
// parameters fall back to defaults.
func (h *Handlers) CallLogs(c *gin.Context) {
	id, ok := h.currentWorker(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.Query("page"))
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	p := pagination.Normalize(page, perPage)

	res, err := h.Calls.ListForWorker(c.Request.Context(), id, p)
	if err != nil {
		fail(c, http.StatusInternalServerError, "Failed to fetch call logs", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"call_logs":    res.Items,
		"total":        res.Total,
		"pages":        res.Pages,
		"current_page": res.Page,
	})
}
