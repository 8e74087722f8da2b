package reputation

import "errors"

var (
	// ErrInvalidRating marks ratings outside [1,5].
	ErrInvalidRating = errors.New("reputation: invalid rating")
	// ErrAlreadyRated marks a repeated rating under the same deduplication
	// key.
	ErrAlreadyRated = errors.New("reputation: already rated")
	// ErrEmptyString marks reviews that are empty after trimming.
	ErrEmptyString = errors.New("reputation: empty review")
	// ErrInvalidAddress marks a zero subject address.
	ErrInvalidAddress = errors.New("reputation: invalid address")
)

// Rating bounds accepted by Rate.
const (
	MinRating = 1
	MaxRating = 5
)

// Aggregate is a running integer-truncated average with its count, the time
// of the last update and the latest review text. No review history is kept;
// the last review wins.
type Aggregate struct {
	Rating       uint8
	TotalRatings uint64
	LastUpdated  int64
	Review       string
}

// Profile carries both aggregates tracked per identity. Which one a rating
// lands in depends on the subject's role at update time.
type Profile struct {
	Address     [20]byte
	AsDonor     Aggregate
	AsNonprofit Aggregate
}
