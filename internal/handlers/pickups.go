package handlers

import (
	"context"
	"net/http"

	"github.com/chachabrian/wastepickup-backend/internal/dispatch"
	"github.com/chachabrian/wastepickup-backend/internal/middleware"
	"github.com/chachabrian/wastepickup-backend/internal/models"
	"github.com/chachabrian/wastepickup-backend/internal/store"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
)

// DriverDirectory resolves the vehicle snapshot recorded on a claim
type DriverDirectory interface {
	Snapshot(ctx context.Context, userID string) (models.DriverInfo, error)
}

type createPickupRequest struct {
	Latitude  *float64             `json:"latitude"`
	Longitude *float64             `json:"longitude"`
	Address   *string              `json:"address"`
	Category  models.WasteCategory `json:"category"`
	Level     models.WasteLevel    `json:"level"`
	UploadRef *string              `json:"uploadRef"`
}

// CreatePickup lets a customer request an on-demand pickup
func CreatePickup(coord *dispatch.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := middleware.GetPrincipal(c)

		var req createPickupRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		p, err := coord.Create(c.Request.Context(), principal, dispatch.CreateInput{
			Latitude:  req.Latitude,
			Longitude: req.Longitude,
			Address:   req.Address,
			Category:  req.Category,
			Level:     req.Level,
			UploadRef: req.UploadRef,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "Pickup requested. Searching for a driver.",
			"pickup":  p.Payload(coord.Now()),
		})
	}
}

// GetPickup returns one request to its owner, any driver or an admin
func GetPickup(coord *dispatch.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := middleware.GetPrincipal(c)

		p, err := coord.Get(c.Request.Context(), c.Param("id"), principal)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"pickup": p.Payload(coord.Now())})
	}
}

// GetPendingPickups lists what the calling driver can still claim
func GetPendingPickups(coord *dispatch.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := middleware.GetPrincipal(c)

		list, err := coord.ListPending(c.Request.Context(), principal)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"pickups": payloads(list, coord)})
	}
}

// GetMyPickups lists the caller's own requests
func GetMyPickups(coord *dispatch.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := middleware.GetPrincipal(c)

		list, err := coord.ListMine(c.Request.Context(), principal)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"pickups": payloads(list, coord)})
	}
}

// AcceptPickup claims a request for the calling driver
func AcceptPickup(coord *dispatch.Coordinator, drivers DriverDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := middleware.GetPrincipal(c)
		ctx := c.Request.Context()

		snapshot, err := drivers.Snapshot(ctx, principal.ID)
		if errors.Is(err, store.ErrDriverNotFound) {
			err = dispatch.ErrDriverNotFound
		}
		if err != nil {
			respondError(c, err)
			return
		}

		p, err := coord.Accept(ctx, c.Param("id"), principal, snapshot)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Pickup accepted",
			"pickup":  p.Payload(coord.Now()),
		})
	}
}

// CancelPickup cancels on behalf of the owner or an admin
func CancelPickup(coord *dispatch.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := middleware.GetPrincipal(c)

		p, err := coord.Cancel(c.Request.Context(), c.Param("id"), principal)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Pickup cancelled",
			"pickup":  p.Payload(coord.Now()),
		})
	}
}

// CompletePickup is called by the assigned driver after collection
func CompletePickup(coord *dispatch.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := middleware.GetPrincipal(c)

		p, err := coord.Complete(c.Request.Context(), c.Param("id"), principal)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Pickup completed",
			"pickup":  p.Payload(coord.Now()),
		})
	}
}

// RejectPickup is the admin review step
func RejectPickup(coord *dispatch.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, _ := middleware.GetPrincipal(c)

		p, err := coord.Reject(c.Request.Context(), c.Param("id"), principal)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Pickup rejected",
			"pickup":  p.Payload(coord.Now()),
		})
	}
}

func payloads(list []models.PickupRequest, coord *dispatch.Coordinator) []models.PickupPayload {
	now := coord.Now()
	out := make([]models.PickupPayload, 0, len(list))
	for i := range list {
		out = append(out, list[i].Payload(now))
	}
	return out
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, dispatch.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Pickup not found"})
	case errors.Is(err, dispatch.ErrDriverNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Driver profile not found"})
	case errors.Is(err, dispatch.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to act on this pickup"})
	case errors.Is(err, dispatch.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Pickup already accepted by another driver"})
	case errors.Is(err, dispatch.ErrInvalidState), errors.Is(err, dispatch.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
