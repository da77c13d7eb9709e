package consensus

import (
	"sort"

	"github.com/jamchain/jamd/block"
	"github.com/jamchain/jamd/crypto"
	"github.com/jamchain/jamd/state"
	"github.com/jamchain/jamd/types"
)

// DisputesOutput is the result of a successful disputes sub-transition:
// the offender keys newly added.
type DisputesOutput struct {
	NewOffenders []types.Ed25519Public
}

// ApplyDisputes validates and applies a block's disputes extrinsic,
// mutating s in place. epoch is the block's epoch
// (slot/EPOCH_LENGTH); verifier checks Ed25519 signatures.
func ApplyDisputes(s *state.State, ext block.DisputesExtrinsic, epoch uint32, verifier *crypto.CachedEd25519Verifier) (DisputesOutput, error) {
	var out DisputesOutput

	if err := checkVerdictOrder(ext.Verdicts); err != nil {
		return out, err
	}

	for _, v := range ext.Verdicts {
		if len(v.Judgements) != types.ValidatorsSuperMajority {
			return out, ErrBadVoteCount
		}
		if err := checkJudgementOrder(v.Judgements); err != nil {
			return out, err
		}
		count := 0
		for _, j := range v.Judgements {
			if j.Vote {
				count++
			}
		}
		if count != 0 && count != types.OneThirdValidators && count != types.ValidatorsSuperMajority {
			return out, ErrBadVoteCount
		}
	}

	if len(ext.Verdicts) > 0 {
		age := ext.Verdicts[0].Age
		for _, v := range ext.Verdicts[1:] {
			if v.Age != age {
				return out, ErrAgesNotEqual
			}
		}
		if epoch < age {
			return out, ErrBadJudgementAge
		}
		if epoch-age > 1 {
			return out, ErrBadJudgementAge
		}
	}

	for _, v := range ext.Verdicts {
		if s.Disputes.Classified(v.Target) {
			return out, ErrDuplicateTarget
		}
	}

	for _, v := range ext.Verdicts {
		snapshot := s.Validators.Current
		if len(ext.Verdicts) > 0 && v.Age != epoch {
			snapshot = s.Validators.Previous
		}
		for _, j := range v.Judgements {
			if int(j.ValidatorIndex) >= len(snapshot) {
				return out, ErrBadValidatorIndex
			}
			domain := types.DomainInvalid
			if j.Vote {
				domain = types.DomainValid
			}
			msg := crypto.DomainMessage(domain, v.Target.Bytes())
			if !verifier.Verify(snapshot[j.ValidatorIndex].Ed25519, msg, j.Signature) {
				return out, ErrBadDisputeSignature
			}
		}
	}

	for i := 1; i < len(ext.Culprits); i++ {
		if !lessKey(ext.Culprits[i-1].Key, ext.Culprits[i].Key) {
			return out, ErrCulpritsNotSortedOrUnique
		}
	}
	for i := 1; i < len(ext.Faults); i++ {
		if !lessKey(ext.Faults[i-1].Key, ext.Faults[i].Key) {
			return out, ErrFaultsNotSortedOrUnique
		}
	}

	culpritsByTarget := make(map[types.Hash][]block.Culprit)
	for _, c := range ext.Culprits {
		culpritsByTarget[c.Target] = append(culpritsByTarget[c.Target], c)
	}
	faultsByTarget := make(map[types.Hash][]block.Fault)
	for _, f := range ext.Faults {
		faultsByTarget[f.Target] = append(faultsByTarget[f.Target], f)
	}

	newOffenders := make(map[types.Ed25519Public]struct{})

	for _, v := range ext.Verdicts {
		count := 0
		for _, j := range v.Judgements {
			if j.Vote {
				count++
			}
		}
		switch count {
		case types.ValidatorsSuperMajority:
			s.Disputes.Good[v.Target] = struct{}{}
			// The fault proof for a good report is a judgement cast against
			// it, so its vote must be the losing one.
			ok := false
			for _, f := range faultsByTarget[v.Target] {
				if !f.Vote {
					ok = true
					break
				}
			}
			if !ok {
				return out, ErrNotEnoughFaults
			}
		case 0:
			s.Disputes.Bad[v.Target] = struct{}{}
			if len(culpritsByTarget[v.Target]) < 2 {
				return out, ErrNotEnoughCulprits
			}
		case types.OneThirdValidators:
			s.Disputes.Wonky[v.Target] = struct{}{}
		}
	}

	currentKeys := keySet(s.Validators.Current)
	previousKeys := keySet(s.Validators.Previous)

	for _, c := range ext.Culprits {
		if _, ok := s.Disputes.Bad[c.Target]; !ok {
			return out, ErrCulpritNotInBad
		}
		if _, isOffender := s.Disputes.Offenders[c.Key]; isOffender {
			return out, ErrOffenderKey
		}
		if _, cur := currentKeys[c.Key]; !cur {
			if _, prev := previousKeys[c.Key]; !prev {
				return out, ErrBadGuarantorKey
			}
		}
		msg := crypto.DomainMessage(types.DomainGuarantee, c.Target.Bytes())
		if !verifier.Verify(c.Key, msg, c.Signature) {
			return out, ErrBadDisputeSignature
		}
		newOffenders[c.Key] = struct{}{}
	}

	for _, f := range ext.Faults {
		if f.Vote {
			if _, ok := s.Disputes.Bad[f.Target]; !ok {
				return out, ErrFaultTargetMismatch
			}
		} else {
			if _, ok := s.Disputes.Good[f.Target]; !ok {
				return out, ErrFaultTargetMismatch
			}
		}
		if _, isOffender := s.Disputes.Offenders[f.Key]; isOffender {
			return out, ErrOffenderKey
		}
		if _, cur := currentKeys[f.Key]; !cur {
			if _, prev := previousKeys[f.Key]; !prev {
				return out, ErrBadGuarantorKey
			}
		}
		domain := types.DomainInvalid
		if f.Vote {
			domain = types.DomainValid
		}
		msg := crypto.DomainMessage(domain, f.Target.Bytes())
		if !verifier.Verify(f.Key, msg, f.Signature) {
			return out, ErrBadDisputeSignature
		}
		newOffenders[f.Key] = struct{}{}
	}

	for k := range newOffenders {
		s.Disputes.Offenders[k] = struct{}{}
		out.NewOffenders = append(out.NewOffenders, k)
	}
	sort.Slice(out.NewOffenders, func(i, j int) bool {
		return lessKey(out.NewOffenders[i], out.NewOffenders[j])
	})

	clearAffectedCores(s, ext)

	return out, nil
}

// clearAffectedCores empties any occupied core whose pending report hash
// matches a newly disputed target.
func clearAffectedCores(s *state.State, ext block.DisputesExtrinsic) {
	targets := make(map[types.Hash]struct{}, len(ext.Verdicts))
	for _, v := range ext.Verdicts {
		targets[v.Target] = struct{}{}
	}
	for i := range s.Availability {
		r := s.Availability[i].Report
		if r == nil {
			continue
		}
		if _, hit := targets[r.Spec.Hash]; hit {
			s.Availability[i] = state.AvailabilitySlot{}
		}
	}
}

func lessKey(a, b types.Ed25519Public) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func keySet(vs state.ValidatorSet) map[types.Ed25519Public]struct{} {
	out := make(map[types.Ed25519Public]struct{}, len(vs))
	for _, v := range vs {
		out[v.Ed25519] = struct{}{}
	}
	return out
}

func checkVerdictOrder(verdicts []block.Verdict) error {
	for i := 1; i < len(verdicts); i++ {
		if !verdicts[i-1].Target.Less(verdicts[i].Target) {
			return ErrVerdictsNotSortedOrUnique
		}
	}
	return nil
}

func checkJudgementOrder(judgements []block.Judgement) error {
	for i := 1; i < len(judgements); i++ {
		if judgements[i-1].ValidatorIndex >= judgements[i].ValidatorIndex {
			return ErrJudgementsNotSortedOrUnique
		}
	}
	return nil
}
