package domain

// Event name of the periodic location message on the real-time channel.
const CurrentLocationEvent = "currentLoc"

// LocationUpdate is one periodic position report.
type LocationUpdate struct {
	Driver   DriverIdentity
	Position Coordinates
}

// Payload renders "<driverId>|<lon>,<lat>".
func (u LocationUpdate) Payload() string {
	return u.Driver.String() + "|" + u.Position.String()
}
