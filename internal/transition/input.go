package transition

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/agrologix/agrologix-backend/internal/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateBookingInput rejects malformed booking details. The delivery date is
// compared as a calendar day (UTC) against now.
func ValidateBookingInput(in models.BookingInput, now time.Time) error {
	if err := validate.Struct(in); err != nil {
		return describe(err)
	}
	if CalendarDay(in.DeliveryDate).Before(CalendarDay(now)) {
		return fmt.Errorf("%w: deliveryDate %s is in the past",
			models.ErrValidation, in.DeliveryDate.Format(time.DateOnly))
	}
	return nil
}

// ValidateVehicleInput rejects malformed vehicle details.
func ValidateVehicleInput(in models.VehicleInput) error {
	if err := validate.Struct(in); err != nil {
		return describe(err)
	}
	return nil
}

// CalendarDay truncates t to midnight UTC of its UTC date.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "gt":
			msgs = append(msgs, fe.Field()+" must be greater than "+fe.Param())
		case "gte":
			msgs = append(msgs, fe.Field()+" must be at least "+fe.Param())
		case "lte", "max":
			msgs = append(msgs, fe.Field()+" must be at most "+fe.Param())
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return fmt.Errorf("%w: %s", models.ErrValidation, strings.Join(msgs, "; "))
}
