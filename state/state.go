package state

import "github.com/jamchain/jamd/types"

// State is the complete node state threaded through the STF.
// A block's computation mutates a clone; the original is replaced only on
// success.
type State struct {
	Time         uint32
	Entropy      EntropyPool
	Validators   Validators
	Safrole      Safrole
	Disputes     Disputes
	Availability Availability
	Auth         Authorization
	History      RecentHistory
	Accounts     ServiceAccounts
	Ready        ReadyQueue
	Accumulated  AccumulatedHistory
	Privileges   Privileges
	Stats        Statistics
}

// New returns a genesis-shaped State for the given protocol parameters.
func New(validatorsCount, coresCount, epochLength, recentHistorySize int) State {
	return State{
		Validators:   Validators{},
		Safrole:      Safrole{},
		Disputes:     NewDisputes(),
		Availability: NewAvailability(coresCount),
		Auth:         NewAuthorization(coresCount, 8),
		History:      NewRecentHistory(recentHistorySize),
		Accounts:     make(ServiceAccounts),
		Ready:        NewReadyQueue(epochLength),
		Accumulated:  NewAccumulatedHistory(epochLength),
		Privileges:   NewPrivileges(coresCount),
		Stats:        NewStatistics(validatorsCount, coresCount),
	}
}

// Clone returns a deep copy of s, used so a sub-transition can mutate a
// scratch copy and be discarded wholesale on error.
func (s State) Clone() State {
	out := s
	out.Disputes = s.Disputes.Clone()
	out.Accounts = s.Accounts.Clone()
	out.Privileges = s.Privileges.Clone()

	out.Availability = make(Availability, len(s.Availability))
	copy(out.Availability, s.Availability)

	out.Auth.Pools = append([]AuthPool(nil), s.Auth.Pools...)
	for i := range out.Auth.Pools {
		out.Auth.Pools[i].Hashes = append([]types.Hash(nil), s.Auth.Pools[i].Hashes...)
	}
	out.Auth.Queues = append([]AuthQueue(nil), s.Auth.Queues...)
	for i := range out.Auth.Queues {
		out.Auth.Queues[i].Hashes = append([]types.Hash(nil), s.Auth.Queues[i].Hashes...)
	}

	out.History.Blocks = append([]BlockSummary(nil), s.History.Blocks...)
	out.History.Tree.Peaks = append([]types.Hash(nil), s.History.Tree.Peaks...)

	out.Ready.Slots = make([][]ReadyRecord, len(s.Ready.Slots))
	for i, slot := range s.Ready.Slots {
		out.Ready.Slots[i] = make([]ReadyRecord, len(slot))
		for j, rec := range slot {
			deps := make(map[types.Hash]struct{}, len(rec.Dependencies))
			for h := range rec.Dependencies {
				deps[h] = struct{}{}
			}
			out.Ready.Slots[i][j] = ReadyRecord{Report: rec.Report, Dependencies: deps}
		}
	}

	out.Accumulated.Epochs = append([][]types.Hash(nil), s.Accumulated.Epochs...)

	out.Safrole.TicketAccumulator = append([]TicketBody(nil), s.Safrole.TicketAccumulator...)
	out.Safrole.Seal.Tickets = append([]TicketBody(nil), s.Safrole.Seal.Tickets...)
	out.Safrole.Seal.Keys = append([]types.BandersnatchPublic(nil), s.Safrole.Seal.Keys...)

	out.Stats = s.Stats.Clone()

	return out
}
