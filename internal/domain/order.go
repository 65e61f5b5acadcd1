package domain

// MaxLocationLength bounds pickup and drop location input.
const MaxLocationLength = 150

// Order is one pickup/drop pair. It is never stored on its own; it exists
// only as position i of a record's two location lists.
type Order struct {
	Pickup string
	Drop   string
}
