package cards

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/vanshika/quickpay/backend/internal/domain"
)

// DialogState is the lifecycle position of a confirmation dialog.
type DialogState int

const (
	StateIdle DialogState = iota
	StateConfirming
	StateSubmitting
)

func (s DialogState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConfirming:
		return "confirming"
	case StateSubmitting:
		return "submitting"
	default:
		return fmt.Sprintf("DialogState(%d)", int(s))
	}
}

// Mutator issues the two destructive upstream operations.
type Mutator interface {
	SetDefaultPaymentMethod(ctx context.Context, clientID int64, paymentProfileID string) error
	DeletePaymentMethod(ctx context.Context, clientID int64, paymentProfileID, entityCode string) error
}

// DeleteScope selects whether a delete removes the card everywhere or only
// its association with one entity.
type DeleteScope struct {
	entity string
}

// AllEntities removes every association of the card.
var AllEntities = DeleteScope{}

// OnlyEntity removes the association with a single entity.
func OnlyEntity(code string) DeleteScope {
	return DeleteScope{entity: code}
}

// All reports whether the scope covers every entity.
func (s DeleteScope) All() bool {
	return s.entity == ""
}

// Entity returns the targeted entity code, empty for AllEntities.
func (s DeleteScope) Entity() string {
	return s.entity
}

func (s DeleteScope) String() string {
	if s.All() {
		return "all entities"
	}
	return "entity " + s.entity
}

// DefaultConfirmation is what the operator sees before a set-default submit.
type DefaultConfirmation struct {
	ClientID         int64
	Fingerprint      string
	PaymentProfileID string
	CardType         string
	LastFour         string
	ExpirationDate   string
	HolderName       string
	Entities         []string
	Message          string
}

// DeleteConfirmation is what the operator sees before a delete submit.
type DeleteConfirmation struct {
	ClientID         int64
	Fingerprint      string
	PaymentProfileID string
	CardType         string
	LastFour         string
	Scope            DeleteScope
	Message          string
}

func holderName(p domain.PaymentProfile) string {
	if p.BillingDetails == nil {
		return ""
	}
	return strings.TrimSpace(p.BillingDetails.FirstName + " " + p.BillingDetails.LastName)
}

// DefaultDialog guards a single set-default submission. Submit is refused
// while a previous submit on the same dialog has not returned.
type DefaultDialog struct {
	mu       sync.Mutex
	state    DialogState
	clientID int64
	group    CardGroup
}

// NewDefaultDialog returns an idle dialog for the client.
func NewDefaultDialog(clientID int64) *DefaultDialog {
	return &DefaultDialog{clientID: clientID}
}

// State returns the current state.
func (d *DefaultDialog) State() DialogState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Open selects a card and moves the dialog to confirming.
func (d *DefaultDialog) Open(group CardGroup) (DefaultConfirmation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateSubmitting {
		return DefaultConfirmation{}, ErrSubmitInFlight
	}
	if group.IsDefault {
		return DefaultConfirmation{}, ErrAlreadyDefault
	}

	d.group = group
	d.state = StateConfirming

	rep := group.Representative
	entities := group.Entities.Sorted()
	return DefaultConfirmation{
		ClientID:         d.clientID,
		Fingerprint:      group.Fingerprint,
		PaymentProfileID: rep.PaymentProfileID,
		CardType:         rep.CardType,
		LastFour:         rep.LastFour,
		ExpirationDate:   rep.ExpirationDate,
		HolderName:       holderName(rep),
		Entities:         entities,
		Message: fmt.Sprintf("Set %s ending in %s (%s) as the default payment method for %s? The current default will be replaced.",
			rep.CardType, rep.LastFour, holderName(rep), strings.Join(entities, ", ")),
	}, nil
}

// Cancel abandons the confirmation. It is refused mid-submit.
func (d *DefaultDialog) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateSubmitting {
		return ErrSubmitInFlight
	}
	d.state = StateIdle
	d.group = CardGroup{}
	return nil
}

// Submit issues the set-default request for the selected card's
// representative profile. On failure the dialog returns to confirming so the
// operator can retry or cancel.
func (d *DefaultDialog) Submit(ctx context.Context, m Mutator) (CardGroup, error) {
	d.mu.Lock()
	switch d.state {
	case StateSubmitting:
		d.mu.Unlock()
		return CardGroup{}, ErrSubmitInFlight
	case StateIdle:
		d.mu.Unlock()
		return CardGroup{}, ErrNotConfirming
	}
	d.state = StateSubmitting
	group := d.group
	d.mu.Unlock()

	ppid := group.Representative.PaymentProfileID
	err := m.SetDefaultPaymentMethod(ctx, d.clientID, ppid)

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state = StateConfirming
		return CardGroup{}, &MutationError{Op: "set default", ClientID: d.clientID, PaymentProfileID: ppid, Err: err}
	}
	d.state = StateIdle
	d.group = CardGroup{}
	return group, nil
}

// DeleteDialog guards a single delete submission.
type DeleteDialog struct {
	mu       sync.Mutex
	state    DialogState
	clientID int64
	profile  domain.PaymentProfile
	scope    DeleteScope
}

// NewDeleteDialog returns an idle dialog for the client.
func NewDeleteDialog(clientID int64) *DeleteDialog {
	return &DeleteDialog{clientID: clientID}
}

// State returns the current state.
func (d *DeleteDialog) State() DialogState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Open selects the profile and scope to delete. An entity scope must name an
// entity the card is linked to.
func (d *DeleteDialog) Open(group CardGroup, profile domain.PaymentProfile, scope DeleteScope) (DeleteConfirmation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateSubmitting {
		return DeleteConfirmation{}, ErrSubmitInFlight
	}
	if !scope.All() && !group.Entities.Has(scope.Entity()) {
		return DeleteConfirmation{}, fmt.Errorf("%w: %s", ErrEntityNotLinked, scope.Entity())
	}

	d.profile = profile
	d.scope = scope
	d.state = StateConfirming

	return DeleteConfirmation{
		ClientID:         d.clientID,
		Fingerprint:      group.Fingerprint,
		PaymentProfileID: profile.PaymentProfileID,
		CardType:         profile.CardType,
		LastFour:         profile.LastFour,
		Scope:            scope,
		Message: fmt.Sprintf("Remove %s ending in %s from %s? This cannot be undone.",
			profile.CardType, profile.LastFour, scope),
	}, nil
}

// Cancel abandons the confirmation. It is refused mid-submit.
func (d *DeleteDialog) Cancel() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == StateSubmitting {
		return ErrSubmitInFlight
	}
	d.state = StateIdle
	d.profile = domain.PaymentProfile{}
	d.scope = AllEntities
	return nil
}

// Submit issues the delete. The entity code is only sent for an entity scope.
func (d *DeleteDialog) Submit(ctx context.Context, m Mutator) (domain.PaymentProfile, DeleteScope, error) {
	d.mu.Lock()
	switch d.state {
	case StateSubmitting:
		d.mu.Unlock()
		return domain.PaymentProfile{}, AllEntities, ErrSubmitInFlight
	case StateIdle:
		d.mu.Unlock()
		return domain.PaymentProfile{}, AllEntities, ErrNotConfirming
	}
	d.state = StateSubmitting
	profile, scope := d.profile, d.scope
	d.mu.Unlock()

	err := m.DeletePaymentMethod(ctx, d.clientID, profile.PaymentProfileID, scope.Entity())

	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.state = StateConfirming
		return domain.PaymentProfile{}, scope, &MutationError{Op: "delete", ClientID: d.clientID, PaymentProfileID: profile.PaymentProfileID, Err: err}
	}
	d.state = StateIdle
	d.profile = domain.PaymentProfile{}
	d.scope = AllEntities
	return profile, scope, nil
}
