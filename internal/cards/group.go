// Package cards turns per-entity payment profile records into one view per
// physical card and drives the set-default and delete flows over that view.
package cards

import (
	"fmt"
	"sort"

	"github.com/vanshika/quickpay/backend/internal/domain"
)

// Fingerprint identifies the physical card behind a payment profile:
// last four digits plus the billing first and last name, taken verbatim.
func Fingerprint(p domain.PaymentProfile) (string, error) {
	if p.LastFour == "" {
		return "", fmt.Errorf("%w: lastFour is missing", ErrMalformedProfile)
	}
	if p.BillingDetails == nil {
		return "", fmt.Errorf("%w: billingDetails is missing", ErrMalformedProfile)
	}
	return p.LastFour + "-" + p.BillingDetails.FirstName + "-" + p.BillingDetails.LastName, nil
}

// EntitySet is the set of entity codes a card is linked to.
type EntitySet map[string]struct{}

// Has reports membership.
func (s EntitySet) Has(code string) bool {
	_, ok := s[code]
	return ok
}

// Len returns the number of distinct entities.
func (s EntitySet) Len() int {
	return len(s)
}

// Sorted returns the codes in lexical order for display.
func (s EntitySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for code := range s {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// CardGroup is the deduplicated view of one physical card.
type CardGroup struct {
	Fingerprint    string
	Representative domain.PaymentProfile
	Entities       EntitySet
	IsDefault      bool
	// Members holds every source record in input order.
	Members []domain.PaymentProfile
}

// EntityLink describes whether a card is connected to a given entity and
// through which payment profile.
type EntityLink struct {
	EntityCode       string
	Linked           bool
	PaymentProfileID string
}

// ProfileFor returns the member record associated with entity.
func (g CardGroup) ProfileFor(entity string) (domain.PaymentProfile, bool) {
	for _, m := range g.Members {
		if m.Entity == entity {
			return m, true
		}
	}
	return domain.PaymentProfile{}, false
}

// EntityLinks reports the card's link status for each of the client's entities.
func (g CardGroup) EntityLinks(entityCodes []string) []EntityLink {
	links := make([]EntityLink, 0, len(entityCodes))
	for _, code := range entityCodes {
		link := EntityLink{EntityCode: code, Linked: g.Entities.Has(code)}
		if p, ok := g.ProfileFor(code); ok {
			link.PaymentProfileID = p.PaymentProfileID
		}
		links = append(links, link)
	}
	return links
}

func (g CardGroup) clone() CardGroup {
	entities := make(EntitySet, len(g.Entities))
	for code := range g.Entities {
		entities[code] = struct{}{}
	}
	g.Entities = entities
	g.Members = append([]domain.PaymentProfile(nil), g.Members...)
	return g
}

// SkippedRecord is an input record left out of the grouping.
type SkippedRecord struct {
	Index            int
	PaymentProfileID string
	Reason           error
}

// Grouping maps fingerprints to card groups. It is rebuilt from scratch for
// every input list and never patched in place.
type Grouping struct {
	groups  map[string]*CardGroup
	order   []string
	Skipped []SkippedRecord
}

// GroupPaymentProfiles partitions records by fingerprint. A group is default
// when any of its members is. Malformed records are skipped and reported.
func GroupPaymentProfiles(records []domain.PaymentProfile) Grouping {
	g := Grouping{groups: make(map[string]*CardGroup)}

	for i, rec := range records {
		fp, err := Fingerprint(rec)
		if err != nil {
			g.Skipped = append(g.Skipped, SkippedRecord{
				Index:            i,
				PaymentProfileID: rec.PaymentProfileID,
				Reason:           err,
			})
			continue
		}

		group, ok := g.groups[fp]
		if !ok {
			g.groups[fp] = &CardGroup{
				Fingerprint:    fp,
				Representative: rec,
				Entities:       EntitySet{rec.Entity: {}},
				IsDefault:      rec.IsDefault.Bool(),
				Members:        []domain.PaymentProfile{rec},
			}
			g.order = append(g.order, fp)
			continue
		}

		group.Entities[rec.Entity] = struct{}{}
		group.Members = append(group.Members, rec)
		if rec.IsDefault.Bool() {
			group.IsDefault = true
		}
	}

	return g
}

// Len returns the number of unique cards.
func (g Grouping) Len() int {
	return len(g.order)
}

// Lookup returns the group for a fingerprint.
func (g Grouping) Lookup(fingerprint string) (CardGroup, bool) {
	group, ok := g.groups[fingerprint]
	if !ok {
		return CardGroup{}, false
	}
	return group.clone(), true
}

// Groups returns the card groups in the order their first record appeared.
func (g Grouping) Groups() []CardGroup {
	out := make([]CardGroup, 0, len(g.order))
	for _, fp := range g.order {
		out = append(out, g.groups[fp].clone())
	}
	return out
}

// Defaults returns every group flagged as default. More than one entry means
// the upstream data is inconsistent; all of them are reported as-is.
func (g Grouping) Defaults() []CardGroup {
	var out []CardGroup
	for _, fp := range g.order {
		if group := g.groups[fp]; group.IsDefault {
			out = append(out, group.clone())
		}
	}
	return out
}

// FindProfile locates a member record by payment profile id.
func (g Grouping) FindProfile(paymentProfileID string) (domain.PaymentProfile, CardGroup, bool) {
	for _, fp := range g.order {
		group := g.groups[fp]
		for _, m := range group.Members {
			if m.PaymentProfileID == paymentProfileID {
				return m, group.clone(), true
			}
		}
	}
	return domain.PaymentProfile{}, CardGroup{}, false
}

// WithDefault returns a copy where only the given card is default. The
// receiver is left untouched.
func (g Grouping) WithDefault(fingerprint string) (Grouping, error) {
	if _, ok := g.groups[fingerprint]; !ok {
		return Grouping{}, fmt.Errorf("%w: %s", ErrUnknownCard, fingerprint)
	}
	out := Grouping{
		groups:  make(map[string]*CardGroup, len(g.groups)),
		order:   append([]string(nil), g.order...),
		Skipped: append([]SkippedRecord(nil), g.Skipped...),
	}
	for fp, group := range g.groups {
		c := group.clone()
		c.IsDefault = fp == fingerprint
		out.groups[fp] = &c
	}
	return out, nil
}
