package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/agrologix/agrologix-backend/internal/lifecycle"
	"github.com/agrologix/agrologix-backend/internal/middleware"
	"github.com/agrologix/agrologix-backend/internal/models"
	"github.com/agrologix/agrologix-backend/internal/services"
)

type RouterDeps struct {
	DB          *gorm.DB
	Lifecycle   *lifecycle.Coordinator
	Hub         *services.Hub
	JWTSecret   string
	CORSOrigins []string
	Log         *zap.Logger
}

func NewRouter(d RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(d.Log))

	config := cors.DefaultConfig()
	config.AllowOrigins = d.CORSOrigins
	if len(config.AllowOrigins) == 0 || (len(config.AllowOrigins) == 1 && config.AllowOrigins[0] == "*") {
		config.AllowOrigins = nil
		config.AllowAllOrigins = true
	}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	r.Use(cors.New(config))

	r.GET("/healthz", Health(d.DB))

	auth := middleware.AuthMiddleware(d.JWTSecret)
	farmerOnly := middleware.RequireRole(models.UserTypeFarmer)
	providerOnly := middleware.RequireRole(models.UserTypeProvider)

	api := r.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", Register(d.DB, d.JWTSecret))
			authRoutes.POST("/login", Login(d.DB, d.JWTSecret))
		}

		api.GET("/ws", auth, WebSocketHandler(d.Hub))

		protected := api.Group("/")
		protected.Use(auth)
		{
			users := protected.Group("/users")
			{
				users.GET("/profile", GetProfile(d.DB))
				users.PUT("/profile", UpdateProfile(d.DB))
			}

			bookings := protected.Group("/bookings")
			{
				bookings.POST("", farmerOnly, CreateBooking(d.Lifecycle))
				bookings.GET("/farmer", farmerOnly, GetFarmerBookings(d.Lifecycle))
				bookings.GET("/provider", providerOnly, GetProviderBookings(d.Lifecycle))
				bookings.GET("/:id", GetBooking(d.Lifecycle))
				bookings.PATCH("/:id/status", UpdateBookingStatus(d.Lifecycle))
				bookings.POST("/:id/accept", TransitionBooking(d.Lifecycle, models.BookingStatusAccepted))
				bookings.POST("/:id/reject", TransitionBooking(d.Lifecycle, models.BookingStatusRejected))
				bookings.POST("/:id/cancel", TransitionBooking(d.Lifecycle, models.BookingStatusCancelled))
				bookings.POST("/:id/deliver", TransitionBooking(d.Lifecycle, models.BookingStatusDelivered))
			}

			vehicles := protected.Group("/vehicles")
			{
				vehicles.GET("", GetAvailableVehicles(d.Lifecycle))
				vehicles.POST("", providerOnly, CreateVehicle(d.Lifecycle))
				vehicles.GET("/mine", providerOnly, GetMyVehicles(d.Lifecycle))
				vehicles.PUT("/:id/maintenance", providerOnly, SetVehicleMaintenance(d.Lifecycle))
				vehicles.DELETE("/:id", providerOnly, DeleteVehicle(d.Lifecycle))
			}
		}
	}

	return r
}
