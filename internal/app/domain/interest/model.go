package interest

import (
	"time"

	"github.com/Gogul11/oriyam/internal/app/domain/user"
)

// Interest is a prospective lessee's expression of intent against a parcel.
// At most one interest exists per (land, user) pair.
type Interest struct {
	ID               string    `json:"id"`
	LandID           string    `json:"land_id"`
	UserID           string    `json:"user_id"`
	MonthlyBudget    float64   `json:"monthly_budget"`
	RentPeriodMonths int       `json:"rent_period_months"`
	Reason           string    `json:"reason"`
	CreatedAt        time.Time `json:"created_at"`
}

// WithSubmitter joins an interest with the submitter's public profile, for
// the land-owner view.
type WithSubmitter struct {
	Interest
	Submitter user.Profile `json:"submitter"`
}

// WithLand joins an interest with the land's headline fields, for the
// submitter's own view.
type WithLand struct {
	Interest
	LandTitle     string `json:"land_title"`
	LandAvailable bool   `json:"land_available"`
}
