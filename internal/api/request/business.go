package request

// CreateBusiness is the body of POST /api/businesses.
type CreateBusiness struct {
	Name      string   `json:"name" validate:"required,max=255"`
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Address   string   `json:"address" validate:"required,max=255"`
}

// CreateEmployee is the body of POST /api/employees.
type CreateEmployee struct {
	FirstName string `json:"first_name" validate:"required,max=255"`
	LastName  string `json:"last_name" validate:"required,max=255"`
}
