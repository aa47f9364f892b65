package request

// RegisterDevice is the body of POST /api/register_device.
type RegisterDevice struct {
	APIKey         string `json:"api_key" validate:"required,min=16,max=128"`
	DeviceLocation string `json:"device_location" validate:"required,max=255"`
	Motion         *bool  `json:"motion" validate:"required"`
	Sound          *bool  `json:"sound" validate:"required"`
	Fire           *bool  `json:"fire" validate:"required"`
	Gas            *bool  `json:"gas" validate:"required"`
	BusinessID     int64  `json:"business_id" validate:"required,gt=0"`
}

// SendAlert is the body of POST /api/send_alert.
type SendAlert struct {
	AlertType string  `json:"alert_type" validate:"required,max=255"`
	Message   *string `json:"message"`
}

// SendMalfunction is the body of POST /api/send_malfunction.
type SendMalfunction struct {
	MalfunctionType string  `json:"malfunction_type" validate:"required,max=255"`
	Message         *string `json:"message"`
}

// SendLog is the body of POST /api/send_log.
type SendLog struct {
	LogType string  `json:"log_type" validate:"required,max=255"`
	Message *string `json:"message"`
}

// ValidateDeviceRegistration is the body of POST /api/validate_device_registration.
type ValidateDeviceRegistration struct {
	APIKey string `json:"api_key" validate:"required"`
}
