package model

import "time"

type Business struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Latitude  float64   `json:"lat"`
	Longitude float64   `json:"lon"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	Devices   []Device  `json:"devices,omitempty"`
}
