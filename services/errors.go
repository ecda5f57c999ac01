package services

import (
	"errors"

	"reminder-mailer/config"
)

// MissingRecipientMessage is stored on records that arrive without a recipient.
const MissingRecipientMessage = "Missing 'to' field"

// ValidationError reports a record that lacks a required field.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Kind labels the failure for metrics.
func (e *ValidationError) Kind() string { return "validation" }

// DeliveryError wraps a failed SMTP submission.
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string { return "delivery error: " + e.Err.Error() }

func (e *DeliveryError) Unwrap() error { return e.Err }

// Kind labels the failure for metrics.
func (e *DeliveryError) Kind() string { return "delivery" }

// ErrorKind classifies err as validation, configuration or delivery.
// Anything else is reported as unknown.
func ErrorKind(err error) string {
	var (
		validationErr *ValidationError
		configErr     *config.ConfigurationError
		deliveryErr   *DeliveryError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &validationErr):
		return validationErr.Kind()
	case errors.As(err, &configErr):
		return configErr.Kind()
	case errors.As(err, &deliveryErr):
		return deliveryErr.Kind()
	default:
		return "unknown"
	}
}
