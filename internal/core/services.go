package core

type Services struct {
	Credential *CredentialService
	Business   *BusinessService
	Device     *DeviceService
	Event      *EventService
	Employee   *EmployeeService
}

func NewServices(db DB, runner *Runner) *Services {
	return &Services{
		Credential: NewCredentialService(db),
		Business:   NewBusinessService(db, runner),
		Device:     NewDeviceService(db, runner),
		Event:      NewEventService(db, runner),
		Employee:   NewEmployeeService(db, runner),
	}
}
