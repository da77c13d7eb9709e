// Package consensus implements the block sub-transitions that advance chain
// state: time, Safrole epoch/ticket rotation, disputes, guarantees and work
// reports, assurances, preimages, and statistics.
package consensus

import "errors"

// Safrole errors.
var (
	ErrBadSlot             = errors.New("consensus: bad slot")
	ErrUnexpectedTicket    = errors.New("consensus: unexpected ticket")
	ErrBadTicketOrder      = errors.New("consensus: bad ticket order")
	ErrBadTicketProof      = errors.New("consensus: bad ticket proof")
	ErrBadTicketAttempt    = errors.New("consensus: bad ticket attempt")
	ErrDuplicateTicket     = errors.New("consensus: duplicate ticket")
	ErrTooManyTickets      = errors.New("consensus: too many tickets")
	ErrInvalidTicketSeal   = errors.New("consensus: invalid ticket seal")
	ErrInvalidKeySeal      = errors.New("consensus: invalid key seal")
	ErrInvalidEntropySource = errors.New("consensus: invalid entropy source")
	ErrTicketsOrKeysNone   = errors.New("consensus: tickets or keys none")
	ErrTicketNotMatch      = errors.New("consensus: ticket not match")
	ErrKeyNotMatch         = errors.New("consensus: key not match")
)

// Disputes errors.
var (
	ErrVerdictsNotSortedOrUnique   = errors.New("consensus: verdicts not sorted or unique")
	ErrJudgementsNotSortedOrUnique = errors.New("consensus: judgements not sorted or unique")
	ErrCulpritsNotSortedOrUnique   = errors.New("consensus: culprits not sorted or unique")
	ErrFaultsNotSortedOrUnique     = errors.New("consensus: faults not sorted or unique")
	ErrBadVoteCount                = errors.New("consensus: bad vote count")
	ErrBadJudgementAge             = errors.New("consensus: bad judgement age")
	ErrAgesNotEqual                = errors.New("consensus: verdict ages not equal")
	ErrDuplicateTarget             = errors.New("consensus: duplicate dispute target")
	ErrBadDisputeSignature         = errors.New("consensus: bad dispute signature")
	ErrNotEnoughCulprits           = errors.New("consensus: not enough culprits")
	ErrNotEnoughFaults             = errors.New("consensus: not enough faults")
	ErrCulpritNotInBad             = errors.New("consensus: culprit target not in bad set")
	ErrFaultTargetMismatch         = errors.New("consensus: fault target mismatch")
	ErrOffenderKey                 = errors.New("consensus: key already an offender")
	ErrBadGuarantorKey             = errors.New("consensus: key not a current or previous validator")
)

// Guarantees/work-report errors.
var (
	ErrBadCoreIndex               = errors.New("consensus: bad core index")
	ErrFutureReportSlot           = errors.New("consensus: future report slot")
	ErrReportEpochBeforeLast      = errors.New("consensus: report epoch before last")
	ErrInsufficientGuarantees     = errors.New("consensus: insufficient guarantees")
	ErrOutOfOrderGuarantee        = errors.New("consensus: out of order guarantee")
	ErrNotSortedOrUniqueGuarantors = errors.New("consensus: guarantors not sorted or unique")
	ErrWrongAssignment            = errors.New("consensus: wrong core assignment")
	ErrCoreEngaged                = errors.New("consensus: core engaged")
	ErrAnchorNotRecent            = errors.New("consensus: anchor not recent")
	ErrBadServiceId               = errors.New("consensus: bad service id")
	ErrBadCodeHash                = errors.New("consensus: bad code hash")
	ErrDependencyMissing          = errors.New("consensus: dependency missing")
	ErrDuplicatePackage           = errors.New("consensus: duplicate package")
	ErrBadStateRoot               = errors.New("consensus: bad state root")
	ErrBadBeefyMmrRoot            = errors.New("consensus: bad beefy mmr root")
	ErrCoreUnauthorized           = errors.New("consensus: core unauthorized")
	ErrBadValidatorIndex          = errors.New("consensus: bad validator index")
	ErrWorkReportGasTooHigh       = errors.New("consensus: work report gas too high")
	ErrServiceItemGasTooLow       = errors.New("consensus: service item gas too low")
	ErrTooManyDependencies        = errors.New("consensus: too many dependencies")
	ErrSegmentRootLookupInvalid   = errors.New("consensus: segment root lookup invalid")
	ErrBadSignature               = errors.New("consensus: bad signature")
	ErrWorkReportTooBig           = errors.New("consensus: work report too big")
	ErrTooManyGuarantees          = errors.New("consensus: too many guarantees")
	ErrLengthNotEqual             = errors.New("consensus: length not equal")
	ErrBadLookupAnchorSlot        = errors.New("consensus: bad lookup anchor slot")
)

// Assurances errors.
var (
	ErrBadAssuranceAnchor      = errors.New("consensus: bad assurance anchor")
	ErrBadAssuranceIndex       = errors.New("consensus: bad assurance validator index")
	ErrAssurancesNotSortedOrUnique = errors.New("consensus: assurances not sorted or unique")
	ErrBadAssuranceSignature   = errors.New("consensus: bad assurance signature")
	ErrAssuranceForEmptyCore   = errors.New("consensus: assurance for unoccupied core")
)

// Preimages errors.
var (
	ErrPreimageUnneeded            = errors.New("consensus: preimage unneeded")
	ErrPreimagesNotSortedOrUnique  = errors.New("consensus: preimages not sorted or unique")
	ErrRequesterNotFound           = errors.New("consensus: requester not found")
)

// Header errors.
var (
	ErrBadParent        = errors.New("consensus: bad parent hash")
	ErrBadParentStateRoot = errors.New("consensus: bad parent state root")
	ErrBadExtrinsicHash  = errors.New("consensus: bad extrinsic hash")
	ErrBadAuthor         = errors.New("consensus: bad author")
	ErrBadOffendersMark  = errors.New("consensus: bad offenders mark")
)
