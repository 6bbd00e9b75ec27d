// Package identity resolves which customer is being served from a manual
// username search and a biometric recognition result.
package identity

import (
	"strings"

	"github.com/kozaktomas/cashier/internal/backend"
)

// Candidate is a guess at the customer's identity. It is one of Unresolved,
// ManualMatch, BiometricMatch or Confirmed.
type Candidate interface {
	candidate()
}

// Unresolved means no identity signal has been received.
type Unresolved struct{}

// ManualMatch is the result of an explicit username search.
type ManualMatch struct {
	Profile backend.Profile `json:"profile"`
}

// BiometricMatch is the result of a recognition upload. IsNew is set when the
// backend returned an identifier without a username.
type BiometricMatch struct {
	Profile backend.Profile `json:"profile"`
	IsNew   bool            `json:"is_new"`
}

// Confirmed is the identity accepted for checkout.
type Confirmed struct {
	Profile backend.Profile `json:"profile"`
}

func (Unresolved) candidate()     {}
func (ManualMatch) candidate()    {}
func (BiometricMatch) candidate() {}
func (Confirmed) candidate()      {}

// Classify turns a recognition response into a biometric candidate.
func Classify(rec backend.Recognition) BiometricMatch {
	return BiometricMatch{
		Profile: rec.Profile,
		IsNew:   rec.Profile.ID != "" && rec.Profile.Username == "",
	}
}

// ReconcileType selects how a biometric and a manual candidate are reconciled.
type ReconcileType string

// Reconciliation types.
const (
	// Merge aliases a biometric identifier assigned to an unknown face onto
	// the manually found account.
	Merge ReconcileType = "merge"
	// Correct reports that recognition picked the wrong existing account.
	Correct ReconcileType = "correct"
)

// ParseReconcileType reads a reconciliation type from user input, ignoring
// case and surrounding space. Unknown input is returned unchanged with false.
func ParseReconcileType(s string) (ReconcileType, bool) {
	switch t := ReconcileType(strings.ToLower(strings.TrimSpace(s))); t {
	case Merge, Correct:
		return t, true
	}
	return ReconcileType(s), false
}
