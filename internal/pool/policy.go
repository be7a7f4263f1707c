package pool

// Policy selects how a Manager chooses a free segment to satisfy an
// allocation request. Two policies do not justify dynamic dispatch: it is
// a tagged value on the Manager, branched once per Allocate call, keeping
// the inner search loop monomorphic.
type Policy int

const (
	// FirstFit selects the lowest-address sufficient free segment.
	FirstFit Policy = iota

	// BestFit selects the smallest sufficient free segment, breaking
	// ties by lowest address.
	BestFit
)

func (p Policy) String() string {
	switch p {
	case FirstFit:
		return "FIRST_FIT"
	case BestFit:
		return "BEST_FIT"
	default:
		return "UNKNOWN_POLICY"
	}
}
