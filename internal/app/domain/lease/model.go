package lease

import "time"

// Status is the lifecycle state of a lease.
type Status string

const (
	// StatusInitiated: created by the seller, deposit not yet paid.
	StatusInitiated Status = "initiated"
	// StatusActive: buyer paid the deposit; monthly dues may be recorded.
	StatusActive Status = "active"
	// StatusCompleted: all monthly dues paid; the land is released.
	StatusCompleted Status = "completed"
)

// Payment is one settled month in the lease ledger. Month is 1-based and
// months settle strictly in order.
type Payment struct {
	Month  int       `json:"month"`
	Amount float64   `json:"amount"`
	PaidAt time.Time `json:"paid_at"`
}

// Lease is the agreement between a land owner (seller) and an interested
// party (buyer). SellerApproved is true from creation since the seller is
// the initiator; BuyerApproved flips when the deposit is paid. Version
// guards every read-modify-write against concurrent updates.
type Lease struct {
	ID             string    `json:"id"`
	LandID         string    `json:"land_id"`
	BuyerID        string    `json:"buyer_id"`
	SellerID       string    `json:"seller_id"`
	Deposit        float64   `json:"deposit"`
	MonthlyDue     float64   `json:"monthly_due"`
	TotalMonths    int       `json:"total_months"`
	Status         Status    `json:"status"`
	SellerApproved bool      `json:"seller_approved"`
	BuyerApproved  bool      `json:"buyer_approved"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	Payments       []Payment `json:"payments"`
	Version        int64     `json:"version"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PaidMonths reports how many months have settled.
func (l Lease) PaidMonths() int {
	return len(l.Payments)
}

// NextMonth is the next month due, or zero when the ledger is full.
func (l Lease) NextMonth() int {
	if len(l.Payments) >= l.TotalMonths {
		return 0
	}
	return len(l.Payments) + 1
}
