package model

import "time"

type Employee struct {
	ID           int64     `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	CredentialID int64     `json:"api_key_id"`
	CreatedAt    time.Time `json:"created_at"`
}
