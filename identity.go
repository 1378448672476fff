package batchz

import "github.com/google/uuid"

// Identity names a component and gives it a stable unique ID.
// Every processor, stream, stage, pipeline and dispatcher carries one, and
// identities make up the Path of an Error so failures can be traced back to
// the exact component that produced them.
//
// Names are meant to be human-readable ("SENSOR_001", "input", "numeric");
// the ID distinguishes two components that happen to share a name.
//
// Example:
//
//	var SensorID = batchz.NewIdentity("SENSOR_001", "Environmental sensor feed")
//	sensor := batchz.NewStream(SensorID, batchz.StreamSensor)
type Identity struct {
	id          uuid.UUID
	name        Name
	description string
}

// Name is a type alias for component names.
type Name = string

// NewIdentity creates an Identity with a freshly generated ID.
func NewIdentity(name Name, description string) Identity {
	return Identity{
		id:          uuid.New(),
		name:        name,
		description: description,
	}
}

// ID returns the unique identifier.
func (i Identity) ID() uuid.UUID {
	return i.id
}

// Name returns the human-readable name.
func (i Identity) Name() Name {
	return i.name
}

// Description returns the description given at construction.
func (i Identity) Description() string {
	return i.description
}

// String returns the name.
func (i Identity) String() string {
	return i.name
}
