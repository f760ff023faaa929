package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/agrologix/agrologix-backend/internal/models"
)

func RunMigrations(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.User{},
		&models.Vehicle{},
		&models.Booking{},
	)
	if err != nil {
		return err
	}

	// sqlite cannot add constraints to an existing table.
	if db.Dialector.Name() != "postgres" {
		return nil
	}

	checks := []struct {
		table, column, name string
		values              []string
	}{
		{"users", "user_type", "users_user_type_check",
			[]string{string(models.UserTypeFarmer), string(models.UserTypeProvider)}},
		{"vehicles", "status", "vehicles_status_check", vehicleStatusValues()},
		{"bookings", "status", "bookings_status_check", bookingStatusValues()},
	}
	for _, c := range checks {
		if err := db.Exec(fmt.Sprintf(`ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s`, c.table, c.name)).Error; err != nil {
			return err
		}
		stmt := fmt.Sprintf(`ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s IN (%s))`,
			c.table, c.name, c.column, quoteList(c.values))
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}

	return nil
}

func bookingStatusValues() []string {
	out := make([]string, 0, len(models.BookingStatuses))
	for _, s := range models.BookingStatuses {
		out = append(out, string(s))
	}
	return out
}

func vehicleStatusValues() []string {
	out := make([]string, 0, len(models.VehicleStatuses))
	for _, s := range models.VehicleStatuses {
		out = append(out, string(s))
	}
	return out
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return strings.Join(quoted, ", ")
}
