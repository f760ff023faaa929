package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agrologix/agrologix-backend/internal/models"
)

// GetProfile retrieves the user's profile
func GetProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user models.User
		if err := db.WithContext(c.Request.Context()).First(&user, "id = ?", c.GetString("userId")).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found", "code": models.ErrorCode(models.ErrNotFound)})
			return
		}

		c.JSON(http.StatusOK, userResponse(&user))
	}
}

// UpdateProfile changes the display fields shown on bookings.
func UpdateProfile(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userId")

		var input struct {
			Name  *string `json:"name"`
			Phone *string `json:"phone"`
		}
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, err)
			return
		}

		updates := map[string]interface{}{}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "name cannot be empty", "code": models.ErrorCode(models.ErrValidation)})
				return
			}
			updates["name"] = name
		}
		if input.Phone != nil {
			updates["phone"] = strings.TrimSpace(*input.Phone)
		}

		db = db.WithContext(c.Request.Context())
		if len(updates) > 0 {
			res := db.Model(&models.User{}).Where("id = ?", userID).Updates(updates)
			if res.Error != nil {
				respondError(c, res.Error)
				return
			}
			if res.RowsAffected == 0 {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found", "code": models.ErrorCode(models.ErrNotFound)})
				return
			}
		}

		var user models.User
		if err := db.First(&user, "id = ?", userID).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found", "code": models.ErrorCode(models.ErrNotFound)})
			return
		}
		c.JSON(http.StatusOK, userResponse(&user))
	}
}
