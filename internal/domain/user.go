package domain

import "fmt"

// ChatUser is the immutable identity of a chat participant, fetched from the
// user service.
type ChatUser struct {
	ID                int64  `json:"id"`
	Username          string `json:"username"`
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	Email             string `json:"email"`
	Enabled           bool   `json:"enabled"`
	HasProfilePicture bool   `json:"hasProfilePicture"`
}

func (u ChatUser) DisplayName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Username
	}
	return fmt.Sprintf("%s %s", u.FirstName, u.LastName)
}
