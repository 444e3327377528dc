// Package validation checks and normalises what employees submit: the
// post-ride form and the employee identifier used to open a session view.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/example/share-commute/internal/models"
)

const (
	MinSeats = 1
	MaxSeats = 7
)

// RideForm is the payload of the post-ride form.
type RideForm struct {
	VehicleType string `json:"vehicle_type" validate:"required,oneof=Bike Car"`
	VehicleNo   string `json:"vehicle_no" validate:"required,min=4,max=10,vehicleno"`
	VacantSeats int    `json:"vacant_seats" validate:"required,min=1,max=7"`
	Time        string `json:"time" validate:"required,clock"`
	PickupPoint string `json:"pickup_point" validate:"required,min=5,max=25,place"`
	Destination string `json:"destination" validate:"required,min=5,max=25,place,nefield=PickupPoint"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors collects every rejected field of one submission.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return strings.Join(msgs, "; ")
}

var (
	vehicleNoPattern = regexp.MustCompile(`^[A-Z0-9 -]*$`)
	placePattern     = regexp.MustCompile(`^[a-zA-Z0-9 ]*$`)
	spaces           = regexp.MustCompile(`\s{2,}`)

	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "vehicleno", func(fl validator.FieldLevel) bool {
		return vehicleNoPattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "place", func(fl validator.FieldLevel) bool {
		return placePattern.MatchString(fl.Field().String())
	})
	mustRegister(v, "clock", func(fl validator.FieldLevel) bool {
		_, err := models.ParseClock(fl.Field().String())
		return err == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s: %v", tag, err))
	}
}

// Normalize applies the input clean-up the form performs while typing.
func (f RideForm) Normalize() RideForm {
	f.VehicleType = normalizeVehicleType(f.VehicleType)
	f.VehicleNo = strings.ToUpper(collapseSpaces(f.VehicleNo))
	f.Time = strings.TrimSpace(f.Time)
	f.PickupPoint = capitalizeWords(collapseSpaces(f.PickupPoint))
	f.Destination = capitalizeWords(collapseSpaces(f.Destination))
	return f
}

// ValidateRide normalises f and checks it against the form rules. The ride
// time must fall between now and the end of today.
func ValidateRide(f RideForm, now time.Time) (RideForm, error) {
	f = f.Normalize()
	var out Errors
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return f, err
		}
		for _, fe := range verrs {
			out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
		}
	}
	if c, err := models.ParseClock(f.Time); err == nil {
		if c < models.ClockOf(now) || c > models.EndOfDay {
			out = append(out, FieldError{Field: "time", Message: "Please choose a time between now and the end of today."})
		}
	}
	if len(out) > 0 {
		return f, out
	}
	return f, nil
}

// Ride converts a validated form into a ride owned by employeeID.
func (f RideForm) Ride(employeeID string) (models.Ride, error) {
	c, err := models.ParseClock(f.Time)
	if err != nil {
		return models.Ride{}, err
	}
	return models.Ride{
		EmployeeID:  employeeID,
		VehicleType: models.VehicleType(f.VehicleType),
		VehicleNo:   f.VehicleNo,
		VacantSeats: f.VacantSeats,
		Time:        c,
		PickupPoint: f.PickupPoint,
		Destination: f.Destination,
	}, nil
}

// EmployeeID trims raw and requires at least three characters.
func EmployeeID(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if err := validate.Var(id, "required,min=3"); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
			return "", Errors{{Field: "employee_id", Message: "Please enter Employee ID."}}
		}
		return "", Errors{{Field: "employee_id", Message: "Employee ID must be at least 3 characters."}}
	}
	return id, nil
}

var labels = map[string]string{
	"vehicle_type": "Vehicle type",
	"vehicle_no":   "Vehicle number",
	"vacant_seats": "Vacant seats",
	"time":         "Time",
	"pickup_point": "Pickup point",
	"destination":  "Destination",
}

func message(fe validator.FieldError) string {
	label := labels[fe.Field()]
	if label == "" {
		label = fe.Field()
	}
	if fe.Field() == "vacant_seats" {
		return fmt.Sprintf("Vacant seats must be between %d and %d.", MinSeats, MaxSeats)
	}
	switch fe.Tag() {
	case "required":
		return label + " is required."
	case "oneof":
		return label + " must be Bike or Car."
	case "min":
		return fmt.Sprintf("%s must be at least %s characters.", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters.", label, fe.Param())
	case "vehicleno":
		return label + " may only contain capital letters, digits, spaces and hyphens."
	case "place":
		return label + " may only contain letters, digits and spaces."
	case "clock":
		return label + " must be given as HH:MM."
	case "nefield":
		return "Pickup point and destination must be different."
	default:
		return label + " is invalid."
	}
}

func normalizeVehicleType(v string) string {
	v = strings.TrimSpace(v)
	for _, vt := range []models.VehicleType{models.VehicleBike, models.VehicleCar} {
		if strings.EqualFold(v, string(vt)) {
			return string(vt)
		}
	}
	return v
}

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// capitalizeWords lowercases s and upper-cases the first character of each word.
func capitalizeWords(s string) string {
	rs := []rune(strings.ToLower(s))
	for i, r := range rs {
		if i == 0 || !isWord(rs[i-1]) {
			rs[i] = unicode.ToUpper(r)
		}
	}
	return string(rs)
}

func isWord(r rune) bool { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }
