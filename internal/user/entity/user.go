package entity

import "time"

// Role tags a user record. Exactly one per record.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

func (r Role) Valid() bool { return r == RoleUser || r == RoleAgent }

// TimeLayout is the ISO-8601 layout used for createdAt/updatedAt.
const TimeLayout = time.RFC3339Nano

// User is a record in the `users` collection.
// Occupation and Company are only set for RoleUser.
type User struct {
	ID                string  `bson:"_id,omitempty" db:"id" json:"id"`
	FirstName         string  `bson:"firstName" db:"first_name" json:"firstName"`
	LastName          string  `bson:"lastName" db:"last_name" json:"lastName"`
	Email             string  `bson:"email" db:"email" json:"email"`
	Phone             string  `bson:"phone" db:"phone" json:"phone"`
	Address           string  `bson:"address" db:"address" json:"address"`
	NICNumber         string  `bson:"nicNumber" db:"nic_number" json:"nicNumber"`
	UserType          Role    `bson:"userType" db:"user_type" json:"userType"`
	PasswordHash      string  `bson:"passwordHash" db:"password_hash" json:"-"`
	MustResetPassword bool    `bson:"mustResetPassword" db:"must_reset_password" json:"mustResetPassword"`
	Occupation        *string `bson:"occupation,omitempty" db:"occupation" json:"occupation,omitempty"`
	Company           *string `bson:"company,omitempty" db:"company" json:"company,omitempty"`
	CreatedAt         string  `bson:"createdAt" db:"created_at" json:"createdAt"`
	UpdatedAt         string  `bson:"updatedAt" db:"updated_at" json:"updatedAt"`
}

// PublicView is what login returns and what the session carries: the record
// minus the credential and the non-identity fields.
type PublicView struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	UserType  Role   `json:"userType"`
	NICNumber string `json:"nicNumber"`
	Phone     string `json:"phone"`
}

func (u *User) Public() PublicView {
	return PublicView{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		UserType:  u.UserType,
		NICNumber: u.NICNumber,
		Phone:     u.Phone,
	}
}
