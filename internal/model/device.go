package model

import "time"

// Device is a registered security device. Its Name is the location entered
// at provisioning time.
type Device struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	MotionSensor bool      `json:"motion_sensor"`
	SoundSensor  bool      `json:"sound_sensor"`
	FireSensor   bool      `json:"fire_sensor"`
	GasSensor    bool      `json:"gas_sensor"`
	BusinessID   int64     `json:"business_id"`
	CredentialID int64     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
