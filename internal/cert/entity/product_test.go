package entity

import "testing"

// TestProductTransitions tests the submission status state machine
func TestProductTransitions(t *testing.T) {
	valid := [][2]string{
		{ProductStatusDraft, ProductStatusSubmitted},
		{ProductStatusSubmitted, ProductStatusInReview},
		{ProductStatusInReview, ProductStatusTesting},
		{ProductStatusInReview, ProductStatusRejected},
		{ProductStatusTesting, ProductStatusCompleted},
		{ProductStatusTesting, ProductStatusRejected},
	}
	for _, tc := range valid {
		if !CanProductTransition(tc[0], tc[1]) {
			t.Errorf("expected %s → %s to be valid", tc[0], tc[1])
		}
	}

	invalid := [][2]string{
		{ProductStatusDraft, ProductStatusInReview},
		{ProductStatusDraft, ProductStatusCompleted},
		{ProductStatusSubmitted, ProductStatusTesting},
		{ProductStatusSubmitted, ProductStatusRejected},
		{ProductStatusInReview, ProductStatusCompleted},
		{ProductStatusCompleted, ProductStatusDraft},
		{ProductStatusRejected, ProductStatusSubmitted},
		{ProductStatusCompleted, ProductStatusTesting},
	}
	for _, tc := range invalid {
		if CanProductTransition(tc[0], tc[1]) {
			t.Errorf("expected %s → %s to be rejected", tc[0], tc[1])
		}
	}
}

// TestTerminalTestStatus tests which test statuses refuse further completion
func TestTerminalTestStatus(t *testing.T) {
	for _, s := range []string{TestStatusCompleted, TestStatusFailed, TestStatusCancelled} {
		if !IsTerminalTestStatus(s) {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []string{TestStatusPending, TestStatusScheduled, TestStatusInProgress} {
		if IsTerminalTestStatus(s) {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}
