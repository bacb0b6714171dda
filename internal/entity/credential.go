package entity

import "time"

// Credential is the identity provider's record for one account.
// It lives in the relational database, not in the realtime store:
// the store only ever sees the public User profile.
type Credential struct {
	UID       string    `gorm:"primaryKey"`
	Email     string    `gorm:"uniqueIndex;not null"`
	Hash      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
