package validators

import (
	"errors"
	"fmt"
	"strings"

	"ridehail/internal/models"
	"ridehail/internal/utils"

	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterValidation("object_id", validateObjectID)
	validate.RegisterValidation("coordinates_lat", validateLatitude)
	validate.RegisterValidation("coordinates_lng", validateLongitude)
	validate.RegisterValidation("rating_value", validateRatingValue)
	validate.RegisterValidation("ride_status", validateRideStatus)

	validate.RegisterStructValidation(validateCoordinates, models.Coordinates{})
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Value   string `json:"value"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	var messages []string
	for _, err := range v {
		messages = append(messages, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return strings.Join(messages, "; ")
}

// AppError converts the field errors into a VALIDATION_ERROR. It returns nil
// when there are no errors.
func (v ValidationErrors) AppError() error {
	if len(v) == 0 {
		return nil
	}
	details := make(map[string]string, len(v))
	for _, err := range v {
		details[err.Field] = err.Message
	}
	return utils.NewValidationError(v.Error(), details)
}

// ValidateStruct validates a struct and returns detailed errors
func ValidateStruct(s interface{}) ValidationErrors {
	var validationErrors ValidationErrors

	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return ValidationErrors{{Field: "payload", Tag: "invalid", Message: err.Error()}}
	}

	for _, fe := range fieldErrors {
		validationErrors = append(validationErrors, ValidationError{
			Field:   fe.Namespace(),
			Tag:     fe.Tag(),
			Value:   fmt.Sprintf("%v", fe.Value()),
			Message: getErrorMessage(fe),
		})
	}

	return validationErrors
}

// Validate is ValidateStruct returning a tagged error.
func Validate(s interface{}) error {
	return ValidateStruct(s).AppError()
}

func getErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", err.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", err.Field(), err.Param())
	case "object_id":
		return "Invalid ID format"
	case "coordinates", "coordinates_lat", "coordinates_lng":
		return "Invalid GPS coordinates"
	case "rating_value":
		return fmt.Sprintf("Rating must be between %.1f and %.1f", utils.MinRating, utils.MaxRating)
	case "ride_status":
		return "Unknown ride status"
	default:
		return fmt.Sprintf("Validation failed for %s", err.Field())
	}
}

func validateObjectID(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, err := primitive.ObjectIDFromHex(value)
	return err == nil
}

func validateLatitude(fl validator.FieldLevel) bool {
	lat := fl.Field().Float()
	return lat >= -90 && lat <= 90
}

func validateLongitude(fl validator.FieldLevel) bool {
	lng := fl.Field().Float()
	return lng >= -180 && lng <= 180
}

// validateCoordinates rejects the zero point, which is what a payload with
// missing coordinates decodes to.
func validateCoordinates(sl validator.StructLevel) {
	c := sl.Current().Interface().(models.Coordinates)
	if c.Latitude == 0 && c.Longitude == 0 {
		sl.ReportError(c.Latitude, "Latitude", "Latitude", "coordinates", "")
	}
}

func validateRatingValue(fl validator.FieldLevel) bool {
	rating := fl.Field().Float()
	return rating >= utils.MinRating && rating <= utils.MaxRating
}

func validateRideStatus(fl validator.FieldLevel) bool {
	return models.RideStatus(fl.Field().String()).IsValid()
}
