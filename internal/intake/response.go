package intake

import (
	"errors"
	"net/http"

	"github.com/Zachkp/portfolio/internal/mailer"
	"github.com/Zachkp/portfolio/internal/submission"
)

// Result is the JSON body returned to the contact form.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

const (
	MsgSuccess          = "Thank you for your message! I'll get back to you soon."
	MsgMissingFields    = "Please fill in all required fields: name, email, subject and message."
	MsgInvalidEmail     = "Please enter a valid email address."
	MsgUnavailable      = "The contact service is temporarily unavailable. Please try again later."
	MsgPersistence      = "Sorry, your message could not be saved. Please try again later."
	MsgDeliveryAuth     = "Your message was saved, but the notification email could not be sent (mail authentication failed)."
	MsgDeliveryConnect  = "Your message was saved, but the mail server could not be reached."
	MsgDeliveryOther    = "Your message was saved, but the notification email could not be sent."
	MsgStorageCorrupt   = "Stored submissions could not be read."
	MsgUnexpectedFailed = "Failed to send message. Please try again."
)

// Respond maps the outcome of Submit or List to an HTTP status and body.
// Error details never leave this function.
func Respond(err error) (int, Result) {
	if err == nil {
		return http.StatusOK, Result{Success: true, Message: MsgSuccess}
	}

	var validationErr *ValidationError
	var configErr *ConfigurationError
	var persistErr *PersistenceError
	var deliveryErr *DeliveryError

	switch {
	case errors.As(err, &validationErr):
		if validationErr.Reason == ReasonInvalidEmail {
			return http.StatusBadRequest, Result{Message: MsgInvalidEmail}
		}
		return http.StatusBadRequest, Result{Message: MsgMissingFields}
	case errors.As(err, &configErr):
		return http.StatusServiceUnavailable, Result{Message: MsgUnavailable}
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError, Result{Message: MsgPersistence}
	case errors.As(err, &deliveryErr):
		switch deliveryErr.Kind {
		case mailer.KindAuth:
			return http.StatusBadGateway, Result{Message: MsgDeliveryAuth}
		case mailer.KindConnection:
			return http.StatusBadGateway, Result{Message: MsgDeliveryConnect}
		default:
			return http.StatusBadGateway, Result{Message: MsgDeliveryOther}
		}
	case errors.Is(err, submission.ErrStorageCorrupt):
		return http.StatusInternalServerError, Result{Message: MsgStorageCorrupt}
	default:
		return http.StatusInternalServerError, Result{Message: MsgUnexpectedFailed}
	}
}
