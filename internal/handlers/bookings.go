package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agrologix/agrologix-backend/internal/lifecycle"
	"github.com/agrologix/agrologix-backend/internal/models"
)

type createBookingRequest struct {
	VehicleID    string  `json:"vehicleId" binding:"required"`
	ProductName  string  `json:"productName"`
	Quantity     float64 `json:"quantity"`
	Source       string  `json:"source"`
	Destination  string  `json:"destination"`
	DeliveryDate string  `json:"deliveryDate" binding:"required"`
}

// parseDeliveryDate accepts a plain date (what an HTML date input sends) or
// a full RFC 3339 timestamp. A timestamp counts as the calendar date it
// names in its own offset.
func parseDeliveryDate(raw string) (time.Time, error) {
	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		return d, nil
	}
	if d, err := time.Parse(time.RFC3339, raw); err == nil {
		y, m, day := d.Date()
		return time.Date(y, m, day, 0, 0, 0, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w: deliveryDate must be YYYY-MM-DD", models.ErrValidation)
}

// CreateBooking handles the creation of a new booking
func CreateBooking(lc *lifecycle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createBookingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		date, err := parseDeliveryDate(req.DeliveryDate)
		if err != nil {
			respondError(c, err)
			return
		}

		booking, err := lc.CreateBooking(c.Request.Context(), c.GetString("userId"), models.BookingInput{
			VehicleID:    req.VehicleID,
			ProductName:  req.ProductName,
			Quantity:     req.Quantity,
			Source:       req.Source,
			Destination:  req.Destination,
			DeliveryDate: date,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, booking)
	}
}

// parseStatusFilter reads ?status=Accepted,Delivered.
func parseStatusFilter(c *gin.Context) ([]models.BookingStatus, error) {
	raw := c.Query("status")
	if raw == "" {
		return nil, nil
	}
	var out []models.BookingStatus
	for _, part := range strings.Split(raw, ",") {
		s, ok := models.ParseBookingStatus(strings.TrimSpace(part))
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", models.ErrValidation, part)
		}
		out = append(out, s)
	}
	return out, nil
}

// GetFarmerBookings lists the caller's own bookings.
func GetFarmerBookings(lc *lifecycle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses, err := parseStatusFilter(c)
		if err != nil {
			respondError(c, err)
			return
		}
		bookings, err := lc.ListBookingsByFarmer(c.Request.Context(), c.GetString("userId"), statuses...)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bookings)
	}
}

// GetProviderBookings lists bookings made against the caller's vehicles.
func GetProviderBookings(lc *lifecycle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses, err := parseStatusFilter(c)
		if err != nil {
			respondError(c, err)
			return
		}
		bookings, err := lc.ListBookingsByProvider(c.Request.Context(), c.GetString("userId"), statuses...)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, bookings)
	}
}

func GetBooking(lc *lifecycle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		booking, err := lc.GetBooking(c.Request.Context(), c.Param("id"), c.GetString("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, booking)
	}
}

// UpdateBookingStatus applies {"status": "..."} to a booking.
func UpdateBookingStatus(lc *lifecycle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Status string `json:"status" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}
		applyTransition(c, lc, models.BookingStatus(strings.TrimSpace(input.Status)))
	}
}

// TransitionBooking serves the fixed-target routes (accept, reject, ...).
func TransitionBooking(lc *lifecycle.Coordinator, target models.BookingStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		applyTransition(c, lc, target)
	}
}

func applyTransition(c *gin.Context, lc *lifecycle.Coordinator, target models.BookingStatus) {
	booking, err := lc.ApplyTransition(
		c.Request.Context(),
		c.Param("id"),
		target,
		c.GetString("userId"),
		models.UserType(c.GetString("userType")),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}
