package reputation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/maxzysparks/P2P-Nonprofit-Donation/core/events"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/core/types"
	"github.com/maxzysparks/P2P-Nonprofit-Donation/native/access"
)

const moduleName = "reputation"

var (
	errNilState = errors.New("reputation: state not configured")

	profilePrefix = []byte("reputation/profile/")
	ratedPrefix   = []byte("reputation/rated/")
)

const (
	classDonor     = "donor"
	classNonprofit = "nonprofit"
)

func profileKey(addr [20]byte, class string) []byte {
	return []byte(fmt.Sprintf("%s%x/%s", profilePrefix, addr, class))
}

func ratedKey(rater, subject [20]byte, donationCount uint64) []byte {
	return []byte(fmt.Sprintf("%s%x/%x/%d", ratedPrefix, rater, subject, donationCount))
}

// storage abstracts the subset of state manager functionality required by
// the reputation store.
type storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	HasRole(role string, addr []byte) bool
	DonorDonations(addr [20]byte) (uint64, error)
}

type storedAggregate struct {
	Rating       uint64
	TotalRatings uint64
	LastUpdated  uint64
	Review       string
}

type reputationEvent struct {
	evt *types.Event
}

func (e reputationEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e reputationEvent) Event() *types.Event { return e.evt }

// EventTypeRated is emitted once per committed rating.
const EventTypeRated = "reputation.rated"

// Store maintains the per-identity rating aggregates. Updates run outside
// the donation state machine; the only coupling is the role lookup deciding
// which aggregate a rating lands in.
type Store struct {
	state   storage
	pauses  access.PauseView
	emitter events.Emitter
	nowFn   func() int64
}

// NewStore constructs a reputation store bound to the provided state
// backend.
func NewStore(state storage) *Store {
	return &Store{
		state:   state,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetPauses configures the pause view consulted before every mutation.
func (s *Store) SetPauses(p access.PauseView) { s.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (s *Store) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		s.emitter = events.NoopEmitter{}
		return
	}
	s.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests to
// provide deterministic timestamps.
func (s *Store) SetNowFunc(now func() int64) {
	if now == nil {
		s.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	s.nowFn = now
}

func (s *Store) now() int64 {
	if s == nil || s.nowFn == nil {
		return time.Now().Unix()
	}
	return s.nowFn()
}

// Rate records a rating of subject by rater. The target aggregate is chosen
// by the subject's current role: the nonprofit aggregate when the subject
// holds ROLE_NONPROFIT, the donor aggregate otherwise. The running average
// is integer-truncated. The deduplication key binds the rater, the subject
// and the subject's donation count at rating time, so a rater may rate the
// same subject again once the subject has created further donations.
func (s *Store) Rate(subject, rater [20]byte, rating uint8, review string) (*Aggregate, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	if err := access.Guard(s.pauses, moduleName); err != nil {
		return nil, err
	}
	if subject == ([20]byte{}) {
		return nil, ErrInvalidAddress
	}
	if rating < MinRating || rating > MaxRating {
		return nil, ErrInvalidRating
	}
	trimmedReview := strings.TrimSpace(review)
	if trimmedReview == "" {
		return nil, ErrEmptyString
	}
	donationCount, err := s.state.DonorDonations(subject)
	if err != nil {
		return nil, err
	}
	dedupKey := ratedKey(rater, subject, donationCount)
	var alreadyRated bool
	ok, err := s.state.KVGet(dedupKey, &alreadyRated)
	if err != nil {
		return nil, err
	}
	if ok && alreadyRated {
		return nil, ErrAlreadyRated
	}

	class := classDonor
	if s.state.HasRole(access.RoleNonprofit, subject[:]) {
		class = classNonprofit
	}
	key := profileKey(subject, class)
	var stored storedAggregate
	if _, err := s.state.KVGet(key, &stored); err != nil {
		return nil, err
	}
	newAverage := (stored.Rating*stored.TotalRatings + uint64(rating)) / (stored.TotalRatings + 1)
	stored.Rating = newAverage
	stored.TotalRatings++
	stored.LastUpdated = uint64(s.now())
	stored.Review = trimmedReview
	if err := s.state.KVPut(key, &stored); err != nil {
		return nil, err
	}
	if err := s.state.KVPut(dedupKey, true); err != nil {
		return nil, err
	}
	aggregate := toAggregate(stored)
	s.emit(newRatedEvent(subject, rater, class, rating, &aggregate))
	return &aggregate, nil
}

// Get returns both aggregates for the identity. Unrated aggregates come back
// zeroed.
func (s *Store) Get(addr [20]byte) (*Profile, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	if addr == ([20]byte{}) {
		return nil, ErrInvalidAddress
	}
	profile := &Profile{Address: addr}
	var donor storedAggregate
	if _, err := s.state.KVGet(profileKey(addr, classDonor), &donor); err != nil {
		return nil, err
	}
	profile.AsDonor = toAggregate(donor)
	var nonprofit storedAggregate
	if _, err := s.state.KVGet(profileKey(addr, classNonprofit), &nonprofit); err != nil {
		return nil, err
	}
	profile.AsNonprofit = toAggregate(nonprofit)
	return profile, nil
}

func (s *Store) emit(event *types.Event) {
	if s == nil || s.emitter == nil || event == nil {
		return
	}
	s.emitter.Emit(reputationEvent{evt: event})
}

func toAggregate(stored storedAggregate) Aggregate {
	return Aggregate{
		Rating:       uint8(stored.Rating),
		TotalRatings: stored.TotalRatings,
		LastUpdated:  int64(stored.LastUpdated),
		Review:       stored.Review,
	}
}

func newRatedEvent(subject, rater [20]byte, class string, rating uint8, agg *Aggregate) *types.Event {
	attrs := map[string]string{
		"subject": fmt.Sprintf("%x", subject),
		"rater":   fmt.Sprintf("%x", rater),
		"class":   class,
		"rating":  fmt.Sprintf("%d", rating),
	}
	if agg != nil {
		attrs["average"] = fmt.Sprintf("%d", agg.Rating)
		attrs["totalRatings"] = fmt.Sprintf("%d", agg.TotalRatings)
	}
	return &types.Event{Type: EventTypeRated, Attributes: attrs}
}
