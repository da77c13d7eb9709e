package state

// AvailabilitySlot is one core's assignment: either empty, or a pending
// report awaiting assurance with the slot at which it times out.
type AvailabilitySlot struct {
	Report  *WorkReport
	Timeout uint32
}

// Empty reports whether the slot holds no pending report.
func (s AvailabilitySlot) Empty() bool { return s.Report == nil }

// Availability is the CORES_COUNT-length slice of per-core assignments.
type Availability []AvailabilitySlot

// NewAvailability returns an empty Availability of the given core count.
func NewAvailability(cores int) Availability {
	return make(Availability, cores)
}
