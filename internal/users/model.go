// Package users owns account registration, login and profile lookup.
package users

import "time"

// User is one registered account.
type User struct {
	UserID       string
	Email        string
	PasswordHash string
	FullName     string
	VisaType     string
	LoginCount   int
	LastLogin    *time.Time
	CreatedAt    time.Time
	IsActive     bool
}

var allowedVisaTypes = []string{"F-1", "OPT", "H-1B", "L-1", "O-1"}

func allowedVisa(v string) bool {
	for _, item := range allowedVisaTypes {
		if item == v {
			return true
		}
	}
	return false
}
