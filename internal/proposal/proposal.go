package proposal

import "errors"

// MaxRecordBytes is the default cap on a serialized proposal record.
const MaxRecordBytes = 5000

// Principal is an opaque caller identity. It is supplied, already
// authenticated, by the execution boundary; the registry only compares
// it for equality.
type Principal string

// Choice is a single vote option.
type Choice int

const (
	ChoiceApprove Choice = iota
	ChoiceReject
	ChoicePass
)

// String returns the lowercase name of the choice.
func (c Choice) String() string {
	switch c {
	case ChoiceApprove:
		return "approve"
	case ChoiceReject:
		return "reject"
	case ChoicePass:
		return "pass"
	default:
		return "unknown"
	}
}

// ParseChoice converts a choice name to a Choice.
func ParseChoice(s string) (Choice, error) {
	switch s {
	case "approve":
		return ChoiceApprove, nil
	case "reject":
		return ChoiceReject, nil
	case "pass":
		return ChoicePass, nil
	default:
		return 0, errors.New("proposal: choice must be approve|reject|pass")
	}
}

// Service and store errors. All are recoverable and reported to callers.
var (
	// ErrNoSuchProposal: no record at the requested key.
	ErrNoSuchProposal = errors.New("no such proposal")
	// ErrAccessRejected: caller is not the record's owner.
	ErrAccessRejected = errors.New("access rejected")
	// ErrAlreadyVoted: caller is already in the record's voted set.
	ErrAlreadyVoted = errors.New("already voted")
	// ErrNotActive: vote attempted on a closed proposal.
	ErrNotActive = errors.New("proposal is not active")
	// ErrUpdateConflict: a write against a confirmed-existing record found
	// no prior value. Indicates store-level inconsistency; never retried.
	ErrUpdateConflict = errors.New("update conflict")
	// ErrRecordTooLarge: serialized record exceeds the registry's byte cap.
	ErrRecordTooLarge = errors.New("record exceeds size cap")
)

// Proposal is the persisted votable record.
type Proposal struct {
	Description string
	Approve     int32
	Reject      int32
	Pass        int32
	IsActive    bool
	Voted       []Principal
	Owner       Principal
}

// HasVoted reports whether p already appears in the voted set.
func (pr *Proposal) HasVoted(p Principal) bool {
	for _, v := range pr.Voted {
		if v == p {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (pr *Proposal) Clone() *Proposal {
	cp := *pr
	cp.Voted = append([]Principal(nil), pr.Voted...)
	return &cp
}

// ApplyChoice adjusts the counter for the given choice. Approve and
// Reject add one; Pass subtracts one from its tally.
func (pr *Proposal) ApplyChoice(c Choice) {
	switch c {
	case ChoiceApprove:
		pr.Approve++
	case ChoiceReject:
		pr.Reject++
	case ChoicePass:
		pr.Pass--
	}
}
