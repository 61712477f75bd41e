package service

import (
	"time"

	"github.com/vanshika/quickpay/backend/internal/cards"
	"github.com/vanshika/quickpay/backend/internal/config"
	"github.com/vanshika/quickpay/backend/internal/domain"
)

// CardView is the deduplicated card list for one client.
type CardView struct {
	ClientID  int64            `json:"clientID"`
	Seq       uint64           `json:"seq"`
	FetchedAt time.Time        `json:"fetchedAt"`
	Cards     []CardSummary    `json:"cards"`
	Skipped   []SkippedProfile `json:"skipped,omitempty"`
	// Warning is set when a confirmed change was accepted but the view
	// could not be reloaded; Cards then shows the state before the change.
	Warning string `json:"warning,omitempty"`
}

// CardSummary describes one physical card across entities.
type CardSummary struct {
	Fingerprint      string           `json:"fingerprint"`
	PaymentProfileID string           `json:"paymentProfileID"`
	CardType         string           `json:"cardType"`
	LastFour         string           `json:"lastFour"`
	ExpirationDate   string           `json:"expirationDate,omitempty"`
	HolderName       string           `json:"holderName"`
	IsDefault        bool             `json:"isDefault"`
	Entities         []string         `json:"entities"`
	MissingEntities  []string         `json:"missingEntities"`
	Links            []EntityLinkView `json:"links"`
}

// EntityLinkView is one entity badge, with the entity-specific profile ID
// when the card is linked.
type EntityLinkView struct {
	EntityCode       string `json:"entityCode"`
	EntityName       string `json:"entityName"`
	Linked           bool   `json:"linked"`
	PaymentProfileID string `json:"paymentProfileID,omitempty"`
}

// SkippedProfile is a record left out of grouping.
type SkippedProfile struct {
	Index            int    `json:"index"`
	PaymentProfileID string `json:"paymentProfileID,omitempty"`
	Reason           string `json:"reason"`
}

// ConfirmationKind names the mutation awaiting confirmation.
type ConfirmationKind string

const (
	KindSetDefault ConfirmationKind = "set-default"
	KindDelete     ConfirmationKind = "delete"
)

// Confirmation is returned when a dialog opens. Token submits or cancels it.
type Confirmation struct {
	Token            string           `json:"token"`
	Kind             ConfirmationKind `json:"kind"`
	ClientID         int64            `json:"clientID"`
	Fingerprint      string           `json:"fingerprint"`
	PaymentProfileID string           `json:"paymentProfileID"`
	CardType         string           `json:"cardType"`
	LastFour         string           `json:"lastFour"`
	Entities         []string         `json:"entities,omitempty"`
	Scope            string           `json:"scope,omitempty"`
	Message          string           `json:"message"`
	ExpiresAt        time.Time        `json:"expiresAt"`
}

func buildCardView(snap cards.Snapshot, catalogue config.EntityCatalogue) CardView {
	clientEntities := snap.Detail.EntityCodes()
	view := CardView{
		ClientID:  snap.ClientID,
		Seq:       snap.Seq,
		FetchedAt: snap.FetchedAt,
		Cards:     make([]CardSummary, 0, snap.Grouping.Len()),
	}
	for _, g := range snap.Grouping.Groups() {
		rep := g.Representative
		summary := CardSummary{
			Fingerprint:      g.Fingerprint,
			PaymentProfileID: rep.PaymentProfileID,
			CardType:         rep.CardType,
			LastFour:         rep.LastFour,
			ExpirationDate:   rep.ExpirationDate,
			IsDefault:        g.IsDefault,
			Entities:         g.Entities.Sorted(),
			MissingEntities:  []string{},
		}
		if rep.BillingDetails != nil {
			summary.HolderName = sanitizeString(rep.BillingDetails.FirstName + " " + rep.BillingDetails.LastName)
		}
		for _, link := range g.EntityLinks(clientEntities) {
			summary.Links = append(summary.Links, EntityLinkView{
				EntityCode:       link.EntityCode,
				EntityName:       catalogue.Name(link.EntityCode),
				Linked:           link.Linked,
				PaymentProfileID: link.PaymentProfileID,
			})
			if !link.Linked {
				summary.MissingEntities = append(summary.MissingEntities, link.EntityCode)
			}
		}
		view.Cards = append(view.Cards, summary)
	}
	for _, s := range snap.Grouping.Skipped {
		view.Skipped = append(view.Skipped, SkippedProfile{
			Index:            s.Index,
			PaymentProfileID: s.PaymentProfileID,
			Reason:           s.Reason.Error(),
		})
	}
	return view
}

// entityNames fills display names from the catalogue for known codes.
func entityNames(entities []domain.Entity, catalogue config.EntityCatalogue) []domain.Entity {
	out := make([]domain.Entity, len(entities))
	for i, e := range entities {
		if name := catalogue.Name(e.EntityCode); name != e.EntityCode || e.EntityName == "" {
			e.EntityName = name
		}
		out[i] = e
	}
	return out
}
