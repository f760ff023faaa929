package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/agrologix/agrologix-backend/internal/lifecycle"
	"github.com/agrologix/agrologix-backend/internal/models"
)

func CreateVehicle(lc *lifecycle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.VehicleInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		vehicle, err := lc.CreateVehicle(c.Request.Context(), c.GetString("userId"), input)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, vehicle)
	}
}

// GetAvailableVehicles lists every vehicle a farmer can book right now.
func GetAvailableVehicles(lc *lifecycle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicles, err := lc.ListAvailableVehicles(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vehicles)
	}
}

func GetMyVehicles(lc *lifecycle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicles, err := lc.ListVehiclesByProvider(c.Request.Context(), c.GetString("userId"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vehicles)
	}
}

func SetVehicleMaintenance(lc *lifecycle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			InMaintenance *bool `json:"inMaintenance" binding:"required"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		vehicle, err := lc.SetVehicleMaintenance(c.Request.Context(), c.Param("id"), c.GetString("userId"), *input.InMaintenance)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, vehicle)
	}
}

func DeleteVehicle(lc *lifecycle.Coordinator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := lc.DeleteVehicle(c.Request.Context(), c.Param("id"), c.GetString("userId")); err != nil {
			respondError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
