package domain

import (
	"math/rand/v2"
	"strconv"
)

// Driver ids are drawn from [1, MaxDriverID].
const MaxDriverID = 248

// DriverIdentity tags every outbound message. It is chosen once at startup
// and never changes for the lifetime of the process.
type DriverIdentity struct {
	id int
}

func NewDriverIdentity(id int) DriverIdentity { return DriverIdentity{id: id} }

// RandomDriverIdentity picks an id uniformly in [1, MaxDriverID].
func RandomDriverIdentity() DriverIdentity {
	return DriverIdentity{id: 1 + rand.IntN(MaxDriverID)}
}

func (d DriverIdentity) ID() int { return d.id }

func (d DriverIdentity) String() string { return strconv.Itoa(d.id) }
