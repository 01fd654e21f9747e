package orders

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentModeUnbilled marks an order that has not been billed yet. Any other
// payment mode on an unbilled order moves it to the billed collection.
const PaymentModeUnbilled = "Unbilled"

var (
	ErrNotFound        = errors.New("order not found")
	ErrInvalid         = errors.New("invalid order")
	ErrMigrationFailed = errors.New("order migration failed")
)

// Order is the shape shared by unbilled and billed orders.
type Order struct {
	ID           string          `json:"_id,omitempty"`
	SerialNo     string          `json:"serialNo,omitempty"`
	Name         string          `json:"name"`
	Age          *int            `json:"age,omitempty"`
	Gender       *string         `json:"gender,omitempty"`
	Phone        *string         `json:"phone,omitempty"`
	ReferredBy   string          `json:"referredBy"`
	Category     string          `json:"category"`
	Subcategory  string          `json:"subcategory"`
	PaymentMode  string          `json:"paymentMode"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	Discount     decimal.Decimal `json:"discount"`
	FinalPayment decimal.Decimal `json:"finalPayment"`
	Remarks      *string         `json:"remarks,omitempty"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Validate normalizes whitespace in the descriptive fields and checks the
// fields every order needs. PaymentMode is kept as sent, since only the exact
// sentinel keeps an order unbilled. Errors wrap ErrInvalid.
func (o *Order) Validate() error {
	o.Name = strings.TrimSpace(o.Name)
	o.Category = strings.TrimSpace(o.Category)

	switch {
	case o.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case o.Category == "":
		return fmt.Errorf("%w: category is required", ErrInvalid)
	case strings.TrimSpace(o.PaymentMode) == "":
		return fmt.Errorf("%w: paymentMode is required", ErrInvalid)
	case o.Age != nil && (*o.Age < 0 || *o.Age > 150):
		return fmt.Errorf("%w: age must be between 0 and 150", ErrInvalid)
	case o.TotalAmount.IsNegative():
		return fmt.Errorf("%w: totalAmount must not be negative", ErrInvalid)
	case o.Discount.IsNegative():
		return fmt.Errorf("%w: discount must not be negative", ErrInvalid)
	case o.FinalPayment.IsNegative():
		return fmt.Errorf("%w: finalPayment must not be negative", ErrInvalid)
	case o.TotalAmount.IsPositive() && o.Discount.GreaterThan(o.TotalAmount):
		return fmt.Errorf("%w: discount exceeds totalAmount", ErrInvalid)
	}
	return nil
}

// IsUnbilled reports whether the order keeps the unbilled payment mode.
func (o *Order) IsUnbilled() bool {
	return o.PaymentMode == PaymentModeUnbilled
}

// Clone returns a deep copy.
func (o *Order) Clone() *Order {
	cp := *o
	cp.Age = clonePtr(o.Age)
	cp.Gender = clonePtr(o.Gender)
	cp.Phone = clonePtr(o.Phone)
	cp.Remarks = clonePtr(o.Remarks)
	return &cp
}

// BilledPayload is the record submitted to the billed collection for a moved
// order. Identity and timestamps are cleared whatever their input values so
// the billed store assigns its own.
func (o *Order) BilledPayload() *Order {
	p := o.Clone()
	p.ID = ""
	p.SerialNo = ""
	p.CreatedAt = time.Time{}
	p.UpdatedAt = time.Time{}
	return p
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// View is an order as shown on the desk, with the referring doctor resolved.
type View struct {
	*Order
	DoctorName string `json:"doctorName"`
}
