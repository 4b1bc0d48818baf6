package models

import (
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// DraftState is the booking workflow state of a draft.
type DraftState string

const (
	StateDetails DraftState = "details"
	StatePayment DraftState = "payment"
	StateSuccess DraftState = "success"
)

// CanTransition reports whether the workflow allows moving from s to next.
// Success is terminal for an attempt; a new attempt starts a new draft.
func (s DraftState) CanTransition(next DraftState) bool {
	switch s {
	case StateDetails:
		return next == StatePayment
	case StatePayment:
		return next == StateSuccess || next == StateDetails
	default:
		return false
	}
}

const (
	PaymentMethodCard    = "card"
	PaymentMethodCredits = "credits"
)

// BookingDraft is the transient state of one booking attempt. It lives in
// Redis with a TTL and is discarded on success or expiry, never persisted.
type BookingDraft struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	UserEmail     string     `json:"user_email"`
	UserName      string     `json:"user_name"`
	EventID       string     `json:"event_id"`
	TicketType    string     `json:"ticket_type"`
	PaymentMethod string     `json:"payment_method"`
	Amount        float64    `json:"amount"`
	State         DraftState `json:"state"`
	TicketID      string     `json:"ticket_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ContactDetails are the attendee fields collected on the details step.
type ContactDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (d *ContactDetails) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Email = strings.TrimSpace(d.Email)
}

func (d ContactDetails) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&d.Email, validation.Required, is.Email),
	)
}

var (
	cardNumberPattern = regexp.MustCompile(`^\d{13,19}$`)
	expiryPattern     = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
	cvvPattern        = regexp.MustCompile(`^\d{3,4}$`)
)

// CardDetails are the payment form fields. Formatting applied by the UI
// (spaces in the card number) is cosmetic and stripped before validation.
type CardDetails struct {
	HolderName string `json:"cardholder_name"`
	Number     string `json:"card_number"`
	Expiry     string `json:"expiry_date"` // MM/YY
	CVV        string `json:"cvv"`
}

func (c *CardDetails) Normalize() {
	c.Number = strings.ReplaceAll(c.Number, " ", "")
	c.HolderName = strings.TrimSpace(c.HolderName)
}

func (c CardDetails) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.HolderName, validation.Required, validation.Length(2, 100)),
		validation.Field(&c.Number,
			validation.Required,
			validation.Match(cardNumberPattern).Error("must be 13 to 19 digits"),
			validation.By(checkLuhn),
		),
		validation.Field(&c.Expiry,
			validation.Required,
			validation.Match(expiryPattern).Error("must be MM/YY"),
		),
		validation.Field(&c.CVV,
			validation.Required,
			validation.Match(cvvPattern).Error("must be 3 or 4 digits"),
		),
	)
}

func checkLuhn(value interface{}) error {
	number, _ := value.(string)
	sum := 0
	double := false
	for i := len(number) - 1; i >= 0; i-- {
		d := number[i]
		if d < '0' || d > '9' {
			return errors.New("must contain only digits")
		}
		n := int(d - '0')
		if double {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		double = !double
	}
	if sum%10 != 0 {
		return errors.New("invalid card number")
	}
	return nil
}
