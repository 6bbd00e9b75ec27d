package identity

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kozaktomas/cashier/internal/apperr"
	"github.com/kozaktomas/cashier/internal/backend"
	"github.com/kozaktomas/cashier/internal/logging"
	"github.com/kozaktomas/cashier/internal/metrics"
)

// Operator-facing messages.
const (
	MsgEmptyUsername     = "Please enter a username."
	MsgUserNotFound      = "User not found."
	MsgMergeFailed       = "Failed to merge profiles."
	MsgMerged            = "Profile merged, you can press continue."
	MsgCorrectionNoted   = "Correction request noted, you can press continue."
	MsgUnknownReconcile  = "Unknown merge type."
	MsgNeedBothProfiles  = "Both a recognised and a found profile are required."
	MsgNothingToCorrect  = "There is no recognised profile to correct."
	MsgNewFaceNotCorrect = "A new face cannot be corrected, merge it instead."
	MsgOnlyNewMerges     = "Only a new face can be merged."
	MsgNeedFoundProfile  = "Find the customer's profile to continue."
	MsgNewFaceUnmerged   = "New face detected. Merge it with an existing profile or reset."
	MsgNoIdentity        = "No customer identified."
)

// Search button labels.
const (
	LabelFindUser        = "Find User"
	LabelFindUserToMerge = "Find User to Merge"
	LabelChooseAnother   = "Choose another user"
)

// ErrSuperseded is returned when the resolver was reset while a backend call
// was in flight. The call's result is discarded.
var ErrSuperseded = errors.New("identity state was reset during the request")

// Directory is the part of the backend the resolver talks to.
type Directory interface {
	UserByUsername(ctx context.Context, username string) (*backend.Profile, error)
	MergeUsers(ctx context.Context, oldID, newID string) error
	ReportConfusedUsers(ctx context.Context, recognisedID, foundID string, at time.Time) error
}

// State is a point-in-time view of the resolver for display.
type State struct {
	Manual          *backend.Profile `json:"manual,omitempty"`
	Biometric       *BiometricMatch  `json:"biometric,omitempty"`
	Confirmed       *backend.Profile `json:"confirmed,omitempty"`
	ForceCorrection bool             `json:"force_correction"`
	SearchError     string           `json:"search_error,omitempty"`
	MergeError      string           `json:"merge_error,omitempty"`
	Status          string           `json:"status,omitempty"`
	SearchLabel     string           `json:"search_label"`
	EnrollmentURL   string           `json:"enrollment_url,omitempty"`
}

// Resolver reconciles a manual match and a biometric match into one
// confirmed identity. It is safe for concurrent use; backend calls run
// without holding the lock.
type Resolver struct {
	dir        Directory
	logger     *slog.Logger
	metrics    *metrics.Metrics
	enrollBase string
	now        func() time.Time

	mu              sync.Mutex
	gen             uint64
	manual          *backend.Profile
	biometric       *BiometricMatch
	confirmed       *backend.Profile
	forceCorrection bool
	searchError     string
	mergeError      string
	status          string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithEnrollmentBase sets the customer app URL used for new-face hand-off.
func WithEnrollmentBase(base string) Option {
	return func(r *Resolver) { r.enrollBase = base }
}

// WithClock overrides the time source for confusion reports.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver creates an unresolved resolver.
func NewResolver(dir Directory, opts ...Option) *Resolver {
	r := &Resolver{
		dir:    dir,
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search looks up a profile by username. On success it becomes the manual
// candidate; on failure the error is recorded and existing candidates stay.
func (r *Resolver) Search(ctx context.Context, username string) (*backend.Profile, error) {
	const op = "search profile"

	r.mu.Lock()
	r.searchError = ""
	gen := r.gen
	r.mu.Unlock()

	username = NormalizeUsername(username)
	var invalid *apperr.Error
	switch username {
	case "":
		invalid = apperr.Validation(op, MsgEmptyUsername)
	case ".", "..":
		invalid = apperr.Validation(op, MsgUserNotFound)
	}
	if invalid != nil {
		r.mu.Lock()
		r.searchError = invalid.Detail
		r.mu.Unlock()
		return nil, invalid
	}

	profile, err := r.dir.UserByUsername(ctx, username)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return nil, ErrSuperseded
	}
	if err != nil {
		r.searchError = apperr.Message(err, MsgUserNotFound)
		r.logger.Warn("profile search failed", "username", username, "error", err)
		return nil, err
	}

	found := *profile
	r.manual = &found
	r.confirmed = nil
	r.mergeError = ""
	r.logger.Debug("manual match", "uid", found.ID)
	return &found, nil
}

// ReceiveBiometric records a recognition result as the biometric candidate.
// A result without a profile identifier is refused and leaves the state as
// it was. Any earlier correction request applied to the previous result and
// is dropped.
func (r *Resolver) ReceiveBiometric(rec backend.Recognition) (BiometricMatch, error) {
	if rec.Profile.ID == "" {
		return BiometricMatch{}, apperr.Recognition("receive biometric", "", backend.ErrNoProfile)
	}
	match := Classify(rec)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.biometric = &match
	r.forceCorrection = false
	r.confirmed = nil
	r.mergeError = ""
	r.status = ""
	r.metrics.ObserveRecognition(match.IsNew)
	r.logger.Debug("biometric match", "uid", match.Profile.ID, "new", match.IsNew)
	return match, nil
}

// RequestCorrection marks the biometric match as wrong, so a manual match
// replaces it. A new face has nothing to correct and is refused.
func (r *Resolver) RequestCorrection() error {
	const op = "request correction"

	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.biometric == nil:
		return apperr.Validation(op, MsgNothingToCorrect)
	case r.biometric.IsNew:
		return apperr.Validation(op, MsgNewFaceNotCorrect)
	}
	r.forceCorrection = true
	r.confirmed = nil
	return nil
}

// Reconcile resolves a conflict between the biometric and the manual
// candidate. Merge aliases the new face onto the found account and only
// takes effect when the backend accepts it. Correct makes the found account
// authoritative right away; the confusion report is best effort.
func (r *Resolver) Reconcile(ctx context.Context, typ ReconcileType) error {
	const op = "reconcile"

	r.mu.Lock()
	r.mergeError = ""
	r.status = ""
	if typ != Merge && typ != Correct {
		r.mergeError = MsgUnknownReconcile
		r.mu.Unlock()
		return apperr.Validation(op, MsgUnknownReconcile)
	}
	if r.manual == nil || r.biometric == nil {
		r.mu.Unlock()
		return apperr.Validation(op, MsgNeedBothProfiles)
	}
	bio, manual := *r.biometric, *r.manual
	gen := r.gen

	if typ == Correct {
		if bio.IsNew {
			r.mu.Unlock()
			return apperr.Validation(op, MsgNewFaceNotCorrect)
		}
		r.forceCorrection = true
		r.confirmed = nil
		r.status = MsgCorrectionNoted
		r.mu.Unlock()

		if err := r.dir.ReportConfusedUsers(ctx, bio.Profile.ID, manual.ID, r.now()); err != nil {
			r.logger.Warn("confusion report failed", "recognised", bio.Profile.ID, "found", manual.ID, "error", err)
			r.metrics.ObserveReconciliation(string(Correct), false)
			return nil
		}
		r.metrics.ObserveReconciliation(string(Correct), true)
		return nil
	}

	if !bio.IsNew {
		r.mu.Unlock()
		return apperr.Validation(op, MsgOnlyNewMerges)
	}
	r.mu.Unlock()

	err := r.dir.MergeUsers(ctx, bio.Profile.ID, manual.ID)
	r.metrics.ObserveReconciliation(string(Merge), err == nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		return ErrSuperseded
	}
	if err != nil {
		r.mergeError = apperr.Message(err, MsgMergeFailed)
		r.logger.Warn("merge failed", "old_uid", bio.Profile.ID, "new_uid", manual.ID, "error", err)
		return err
	}
	r.biometric = &BiometricMatch{Profile: manual}
	r.confirmed = nil
	r.status = MsgMerged
	r.logger.Info("profiles merged", "old_uid", bio.Profile.ID, "new_uid", manual.ID)
	return nil
}

// ContinueWithBest confirms the manual match when a correction was requested,
// otherwise the biometric match, otherwise the manual match. An unmerged new
// face is never confirmed.
func (r *Resolver) ContinueWithBest() (backend.Profile, error) {
	const op = "continue"

	r.mu.Lock()
	defer r.mu.Unlock()

	var chosen backend.Profile
	switch {
	case r.forceCorrection:
		if r.manual == nil {
			return backend.Profile{}, apperr.Validation(op, MsgNeedFoundProfile)
		}
		chosen = *r.manual
	case r.biometric != nil:
		if r.biometric.IsNew {
			return backend.Profile{}, apperr.Validation(op, MsgNewFaceUnmerged)
		}
		chosen = r.biometric.Profile
	case r.manual != nil:
		chosen = *r.manual
	default:
		return backend.Profile{}, apperr.Validation(op, MsgNoIdentity)
	}

	r.confirmed = &chosen
	r.logger.Debug("identity confirmed", "uid", chosen.ID)
	return chosen, nil
}

// Confirmed returns the confirmed identity, if any.
func (r *Resolver) Confirmed() (backend.Profile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.confirmed == nil {
		return backend.Profile{}, false
	}
	return *r.confirmed, true
}

// HasBiometric reports whether a biometric match is held.
func (r *Resolver) HasBiometric() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.biometric != nil
}

// Current returns the most advanced candidate held.
func (r *Resolver) Current() Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.confirmed != nil:
		return Confirmed{Profile: *r.confirmed}
	case r.biometric != nil:
		return *r.biometric
	case r.manual != nil:
		return ManualMatch{Profile: *r.manual}
	default:
		return Unresolved{}
	}
}

// Reset clears all candidates, flags and messages. Backend calls still in
// flight will have their results discarded.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.manual = nil
	r.biometric = nil
	r.confirmed = nil
	r.forceCorrection = false
	r.searchError = ""
	r.mergeError = ""
	r.status = ""
}

// Snapshot returns the current state.
func (r *Resolver) Snapshot() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := State{
		ForceCorrection: r.forceCorrection,
		SearchError:     r.searchError,
		MergeError:      r.mergeError,
		Status:          r.status,
		SearchLabel:     LabelFindUser,
	}
	if r.manual != nil {
		p := *r.manual
		s.Manual = &p
	}
	if r.confirmed != nil {
		p := *r.confirmed
		s.Confirmed = &p
	}
	if r.biometric != nil {
		b := *r.biometric
		s.Biometric = &b
		switch {
		case b.IsNew:
			s.SearchLabel = LabelFindUserToMerge
			if r.enrollBase != "" {
				s.EnrollmentURL = EnrollmentURL(r.enrollBase, b.Profile.ID)
			}
		case r.forceCorrection:
			s.SearchLabel = LabelChooseAnother
		}
	}
	return s
}
