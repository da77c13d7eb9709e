package state

import "github.com/jamchain/jamd/types"

// Privileges names the services with special accumulation powers.
type Privileges struct {
	Manager    types.ServiceId
	Assign     []types.ServiceId // one per core
	Designate  types.ServiceId
	AlwaysAcc  map[types.ServiceId]types.Gas
}

// NewPrivileges allocates an empty Privileges record for the given core
// count.
func NewPrivileges(cores int) Privileges {
	return Privileges{
		Assign:    make([]types.ServiceId, cores),
		AlwaysAcc: make(map[types.ServiceId]types.Gas),
	}
}

// Clone returns a deep copy.
func (p Privileges) Clone() Privileges {
	assign := make([]types.ServiceId, len(p.Assign))
	copy(assign, p.Assign)
	always := make(map[types.ServiceId]types.Gas, len(p.AlwaysAcc))
	for k, v := range p.AlwaysAcc {
		always[k] = v
	}
	return Privileges{Manager: p.Manager, Assign: assign, Designate: p.Designate, AlwaysAcc: always}
}
