package entity

import "strings"

// User is the public profile stored under users/{uid}.
// The display name defaults to the local part of the email address.
type User struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func NewUser(uid, email string) *User {
	return &User{
		UID:   uid,
		Email: email,
		Name:  DisplayNameFor(email),
	}
}

// DisplayNameFor derives the default display name from an email address.
func DisplayNameFor(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
