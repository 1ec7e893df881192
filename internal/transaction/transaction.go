package transaction

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Transaction is the canonical raw input record. Timestamps stay as strings
// until the feature builder parses them so a malformed value surfaces as a
// ParseError for that one request.
type Transaction struct {
	UserID        int64   `json:"user_id"`
	SignupTime    string  `json:"signup_time" validate:"required"`
	PurchaseTime  string  `json:"purchase_time" validate:"required"`
	PurchaseValue float64 `json:"purchase_value" validate:"gte=0"`
	DeviceID      string  `json:"device_id"`
	Source        string  `json:"source"`
	Browser       string  `json:"browser"`
	Sex           string  `json:"sex"`
	Age           int     `json:"age" validate:"gt=0"`
	IPAddress     string  `json:"ip_address"`
	Country       string  `json:"transaction_country,omitempty"`

	// Banking variant; zero means absent.
	Amount float64 `json:"Amount,omitempty" validate:"gte=0"`
	Time   float64 `json:"Time,omitempty" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural constraints of the record.
func (t *Transaction) Validate() error {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q (got %v)", fe.Field(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid transaction: %s", strings.Join(msgs, "; "))
}
