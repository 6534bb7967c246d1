package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rizalap/digishop/internal/dispatch"
	"github.com/rizalap/digishop/internal/orders"
	"github.com/rizalap/digishop/internal/ratelimit"
	"github.com/rizalap/digishop/internal/service"
	"github.com/rizalap/digishop/internal/validation"
)

// limiter action key for order creation.
const actionCreateOrder = "create_order"

const defaultListLimit = 50

// HandlerConfig groups dependencies for the order routes.
type HandlerConfig struct {
	Service *service.Orders
	Limiter *ratelimit.Limiter
	Metrics *dispatch.Metrics
	Log     *logrus.Logger
}

// RegisterOrderRoutes registers the order API.
func RegisterOrderRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()

	authed := r.Group("/", Identity(cfg.Log))

	authed.POST("/orders", func(c *gin.Context) {
		// admission gate runs before any binding or state change
		if res := cfg.Limiter.Check(actionCreateOrder, c.ClientIP()); !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(res.RetryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"message":     "too many requests, try again later",
				"retry_after": res.RetryAfter,
			})
			return
		}

		var req validation.CreateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}

		requested := make([]service.RequestedLine, 0, len(req.Lines))
		for _, l := range req.Lines {
			requested = append(requested, service.RequestedLine{ProductID: l.ProductID, Quantity: l.Quantity})
		}

		order, err := cfg.Service.PlaceOrder(c.Request.Context(), callerFrom(c), requested)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, order)
	})

	authed.GET("/orders", func(c *gin.Context) {
		limit := defaultListLimit
		if raw := c.Query("limit"); raw != "" {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				limit = n
			}
		}
		list, err := cfg.Service.List(c.Request.Context(), callerFrom(c), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": list})
	})

	authed.GET("/orders/:id", func(c *gin.Context) {
		order, err := cfg.Service.Get(c.Request.Context(), callerFrom(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	authed.PATCH("/orders/:id/status", func(c *gin.Context) {
		var req validation.UpdateStatusRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		order, err := cfg.Service.SetStatus(c.Request.Context(), callerFrom(c), c.Param("id"), req.Status)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	authed.PATCH("/orders/:id/cancel-request", func(c *gin.Context) {
		var req validation.CancelOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		order, err := cfg.Service.RequestCancellation(c.Request.Context(), callerFrom(c), c.Param("id"), req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	authed.PATCH("/orders/:id/cancel-request/confirm", func(c *gin.Context) {
		order, err := cfg.Service.ConfirmCancellation(c.Request.Context(), callerFrom(c), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, order)
	})

	authed.DELETE("/orders/:id", func(c *gin.Context) {
		if err := cfg.Service.Delete(c.Request.Context(), callerFrom(c), c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "order deleted"})
	})

	authed.GET("/admin/events/recent", func(c *gin.Context) {
		if !callerFrom(c).IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"message": "admin only"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": cfg.Metrics.Recent()})
	})
}

// respondError maps the error taxonomy onto HTTP statuses: validation
// 400, missing 404, forbidden 403, state-machine policy violations
// 409, anything else a 500 with the detail kept out of the response.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orders.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
	case errors.Is(err, orders.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "not found"})
	case errors.Is(err, orders.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"message": "forbidden"})
	case errors.Is(err, orders.ErrCancelConfirmed), errors.Is(err, orders.ErrCancelNotRequested):
		c.JSON(http.StatusConflict, gin.H{"message": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
	}
}
