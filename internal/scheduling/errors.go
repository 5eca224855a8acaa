/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrInvalidAccountPool is returned before any work when no sending accounts are given.
	ErrInvalidAccountPool = errors.New("invalid account pool")

	// ErrPolicyUnsatisfiable is returned when the navigator exhausts its iteration
	// bound without finding a sendable time.
	ErrPolicyUnsatisfiable = errors.New("policy unsatisfiable")
)

// Error kinds reported to API callers and events.
const (
	KindInvalidAccountPool  = "invalid_account_pool"
	KindPolicyUnsatisfiable = "policy_unsatisfiable"
	KindInternal            = "internal"
)

// LeadError ties a scheduling failure to the lead that was being placed.
type LeadError struct {
	Index int
	Email string
	Err   error
}

func (e *LeadError) Error() string {
	return fmt.Sprintf("lead %d (%s): %v", e.Index, e.Email, e.Err)
}

func (e *LeadError) Unwrap() error { return e.Err }

// Kind classifies err for callers that need to tell configuration problems
// from policy bugs.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAccountPool):
		return KindInvalidAccountPool
	case errors.Is(err, ErrPolicyUnsatisfiable):
		return KindPolicyUnsatisfiable
	default:
		return KindInternal
	}
}

// LeadIndex returns the index of the failing lead, if err carries one.
func LeadIndex(err error) (int, bool) {
	var le *LeadError
	if errors.As(err, &le) {
		return le.Index, true
	}
	return -1, false
}

func unsatisfiable(op string, from fmt.Stringer, policy Policy, iterations int) error {
	err := errors.Wrapf(ErrPolicyUnsatisfiable, "%s: no sendable time after %d iterations from %s", op, iterations, from)
	err = errors.WithDetailf(err, "window %02d:00-%02d:00 %s, active days %s",
		policy.Window.StartHour, policy.Window.EndHour, policy.Timezone, policy.ActiveWeekdays)
	return errors.WithHint(err, "check the campaign sending hours and active days")
}
