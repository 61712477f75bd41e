package cards

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedProfile marks a record without the fields the fingerprint needs.
	ErrMalformedProfile = errors.New("malformed payment profile")
	// ErrUnknownCard is returned for a fingerprint not present in the snapshot.
	ErrUnknownCard = errors.New("unknown card")
	// ErrUnknownProfile is returned for a payment profile id not present in the snapshot.
	ErrUnknownProfile = errors.New("unknown payment profile")
	// ErrAlreadyDefault is returned when opening set-default on the default card.
	ErrAlreadyDefault = errors.New("card is already the default payment method")
	// ErrEntityNotLinked is returned when a delete scope names an entity the card is not linked to.
	ErrEntityNotLinked = errors.New("card is not linked to entity")
	// ErrSubmitInFlight is returned while a mutation for the dialog is pending.
	ErrSubmitInFlight = errors.New("submission already in flight")
	// ErrNotConfirming is returned when submitting a dialog that was never opened.
	ErrNotConfirming = errors.New("dialog is not awaiting confirmation")
	// ErrStaleResponse is returned when a newer refresh superseded this one.
	ErrStaleResponse = errors.New("stale client detail response discarded")
	// ErrPanelClosed is returned once the panel has been closed.
	ErrPanelClosed = errors.New("panel closed")
	// ErrNoSnapshot is returned before the first successful refresh.
	ErrNoSnapshot = errors.New("no client detail loaded")
)

// MutationError reports a rejected set-default or delete request. Local
// state is unchanged when it is returned.
type MutationError struct {
	Op               string
	ClientID         int64
	PaymentProfileID string
	Err              error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s payment profile %s for client %d: %v", e.Op, e.PaymentProfileID, e.ClientID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
