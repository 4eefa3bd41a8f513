package entity

// Status of a credential notification.
type Status string

// A message is sending while one attempt holds it: registration creates it
// that way, and the relay claims pending messages into it before rotating.
const (
	StatusPending Status = "pending"
	StatusSending Status = "sending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Message records that a user is owed a credentials email. The credential
// itself is never stored; a retry issues a fresh one.
type Message struct {
	ID        string `bson:"_id" db:"id" json:"id"`
	UserID    string `bson:"userId" db:"user_id" json:"userId"`
	Email     string `bson:"email" db:"email" json:"email"`
	FirstName string `bson:"firstName" db:"first_name" json:"firstName"`
	Status    Status `bson:"status" db:"status" json:"status"`
	Attempts  int    `bson:"attempts" db:"attempts" json:"attempts"`
	LastError string `bson:"lastError" db:"last_error" json:"lastError,omitempty"`
	CreatedAt string `bson:"createdAt" db:"created_at" json:"createdAt"`
	UpdatedAt string `bson:"updatedAt" db:"updated_at" json:"updatedAt"`
}
