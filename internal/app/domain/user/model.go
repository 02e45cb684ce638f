package user

import "time"

// User is a registered marketplace identity. The password is stored only as
// a bcrypt hash; government ID plus its type identify the holder uniquely.
type User struct {
	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	Mobile           string    `json:"mobile"`
	PasswordHash     string    `json:"-"`
	Age              int       `json:"age"`
	GovernmentID     string    `json:"government_id"`
	GovernmentIDType string    `json:"government_id_type"`
	DateOfBirth      string    `json:"date_of_birth"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Profile is the public subset of a user returned to other callers.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
}

// PublicProfile strips credential and identity-document fields.
func (u User) PublicProfile() Profile {
	return Profile{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Mobile:   u.Mobile,
	}
}
