package cards

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/quickpay/backend/internal/domain"
)

func profile(id, entity, lastFour, first, last string, isDefault any) domain.PaymentProfile {
	return domain.PaymentProfile{
		PaymentProfileID: id,
		Entity:           entity,
		CardType:         "Visa",
		LastFour:         lastFour,
		BillingDetails:   &domain.BillingDetails{FirstName: first, LastName: last, ZipCode: "30301"},
		IsDefault:        domain.Flag(isDefault),
		Status:           "active",
		ExpirationDate:   "12/29",
	}
}

func mixedRecords() []domain.PaymentProfile {
	return []domain.PaymentProfile{
		profile("p1", "wc", "1111", "Ada", "Lovelace", "False"),
		profile("p2", "cg", "1111", "Ada", "Lovelace", false),
		profile("p3", "vbc", "2222", "Ada", "Lovelace", true),
		profile("p4", "wc", "1111", "ada", "Lovelace", nil),
		profile("p5", "cg", "3333", "Grace", "Hopper", "true"),
		profile("p6", "cg", "1111", "Ada", "Lovelace", "True"),
		profile("p7", "vbc", "2222", "Ada", "Lovelace", "false"),
	}
}

func TestFingerprint(t *testing.T) {
	fp, err := Fingerprint(profile("p1", "wc", "4242", " Ada", "Lovelace ", false))
	require.NoError(t, err)
	assert.Equal(t, "4242- Ada-Lovelace ", fp)

	_, err = Fingerprint(domain.PaymentProfile{LastFour: "4242"})
	assert.ErrorIs(t, err, ErrMalformedProfile)

	_, err = Fingerprint(domain.PaymentProfile{BillingDetails: &domain.BillingDetails{FirstName: "Ada"}})
	assert.ErrorIs(t, err, ErrMalformedProfile)
}

func TestGroupSingleCardMultipleEntities(t *testing.T) {
	records := []domain.PaymentProfile{
		profile("p1", "wc", "1111", "Ada", "Lovelace", false),
		profile("p2", "cg", "1111", "Ada", "Lovelace", "True"),
		profile("p3", "vbc", "1111", "Ada", "Lovelace", "False"),
	}

	grouping := GroupPaymentProfiles(records)

	require.Equal(t, 1, grouping.Len())
	group, ok := grouping.Lookup("1111-Ada-Lovelace")
	require.True(t, ok)
	assert.Equal(t, []string{"cg", "vbc", "wc"}, group.Entities.Sorted())
	assert.True(t, group.IsDefault)
	assert.Equal(t, "p1", group.Representative.PaymentProfileID)
	assert.Len(t, group.Members, 3)
	assert.Empty(t, grouping.Skipped)
}

func TestGroupTwoDistinctCards(t *testing.T) {
	records := []domain.PaymentProfile{
		profile("p1", "wc", "1111", "Ada", "Lovelace", false),
		profile("p2", "wc", "2222", "Ada", "Lovelace", false),
	}

	grouping := GroupPaymentProfiles(records)

	groups := grouping.Groups()
	require.Len(t, groups, 2)
	assert.Equal(t, "1111-Ada-Lovelace", groups[0].Fingerprint)
	assert.Equal(t, "2222-Ada-Lovelace", groups[1].Fingerprint)
	for _, g := range groups {
		assert.Equal(t, 1, g.Entities.Len())
		assert.False(t, g.IsDefault)
	}
}

func TestGroupPartitionsInput(t *testing.T) {
	records := mixedRecords()
	grouping := GroupPaymentProfiles(records)

	seen := make(map[string]int)
	for _, g := range grouping.Groups() {
		for _, m := range g.Members {
			seen[m.PaymentProfileID]++
			fp, err := Fingerprint(m)
			require.NoError(t, err)
			assert.Equal(t, g.Fingerprint, fp)
		}
	}
	require.Len(t, seen, len(records))
	for id, n := range seen {
		assert.Equalf(t, 1, n, "record %s placed in %d groups", id, n)
	}
}

func TestGroupDeterministicUnderPermutation(t *testing.T) {
	records := mixedRecords()
	want := summarize(GroupPaymentProfiles(records))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 25; i++ {
		shuffled := append([]domain.PaymentProfile(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		assert.Equal(t, want, summarize(GroupPaymentProfiles(shuffled)))
	}
}

type groupSummary struct {
	Entities  []string
	IsDefault bool
	Members   int
}

func summarize(g Grouping) map[string]groupSummary {
	out := make(map[string]groupSummary)
	for _, group := range g.Groups() {
		out[group.Fingerprint] = groupSummary{
			Entities:  group.Entities.Sorted(),
			IsDefault: group.IsDefault,
			Members:   len(group.Members),
		}
	}
	return out
}

func TestGroupEntityAccumulationAndDefaultMonotonicity(t *testing.T) {
	grouping := GroupPaymentProfiles(mixedRecords())

	for _, g := range grouping.Groups() {
		distinct := make(map[string]struct{})
		anyDefault := false
		for _, m := range g.Members {
			distinct[m.Entity] = struct{}{}
			anyDefault = anyDefault || domain.NormalizeBoolean(m.IsDefault)
		}
		assert.Equal(t, len(distinct), g.Entities.Len(), g.Fingerprint)
		assert.Equal(t, anyDefault, g.IsDefault, g.Fingerprint)
	}

	// Case differences yield a separate card.
	lower, ok := grouping.Lookup("1111-ada-Lovelace")
	require.True(t, ok)
	assert.False(t, lower.IsDefault)
}

func TestGroupReportsInconsistentDefaults(t *testing.T) {
	grouping := GroupPaymentProfiles(mixedRecords())

	defaults := grouping.Defaults()
	require.Len(t, defaults, 3)
	assert.Equal(t, "1111-Ada-Lovelace", defaults[0].Fingerprint)
	assert.Equal(t, "2222-Ada-Lovelace", defaults[1].Fingerprint)
	assert.Equal(t, "3333-Grace-Hopper", defaults[2].Fingerprint)
}

func TestGroupSkipsMalformedRecords(t *testing.T) {
	records := []domain.PaymentProfile{
		profile("p1", "wc", "1111", "Ada", "Lovelace", false),
		{PaymentProfileID: "bad-billing", Entity: "cg", LastFour: "1111"},
		{PaymentProfileID: "bad-last-four", Entity: "cg", BillingDetails: &domain.BillingDetails{FirstName: "Ada"}},
		profile("p2", "cg", "1111", "Ada", "Lovelace", false),
	}

	grouping := GroupPaymentProfiles(records)

	assert.Equal(t, 1, grouping.Len())
	require.Len(t, grouping.Skipped, 2)
	assert.Equal(t, 1, grouping.Skipped[0].Index)
	assert.Equal(t, "bad-billing", grouping.Skipped[0].PaymentProfileID)
	assert.True(t, errors.Is(grouping.Skipped[1].Reason, ErrMalformedProfile))
}

func TestGroupDoesNotMutateInput(t *testing.T) {
	records := mixedRecords()
	before, err := json.Marshal(records)
	require.NoError(t, err)

	GroupPaymentProfiles(records)

	after, err := json.Marshal(records)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestWithDefaultLeavesReceiverUntouched(t *testing.T) {
	grouping := GroupPaymentProfiles(mixedRecords())
	before, err := json.Marshal(grouping.Groups())
	require.NoError(t, err)

	patched, err := grouping.WithDefault("1111-ada-Lovelace")
	require.NoError(t, err)

	defaults := patched.Defaults()
	require.Len(t, defaults, 1)
	assert.Equal(t, "1111-ada-Lovelace", defaults[0].Fingerprint)

	after, err := json.Marshal(grouping.Groups())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	_, err = grouping.WithDefault("0000-No-One")
	assert.ErrorIs(t, err, ErrUnknownCard)
}

func TestEntityLinks(t *testing.T) {
	grouping := GroupPaymentProfiles([]domain.PaymentProfile{
		profile("p1", "wc", "1111", "Ada", "Lovelace", false),
		profile("p2", "cg", "1111", "Ada", "Lovelace", false),
	})
	group, ok := grouping.Lookup("1111-Ada-Lovelace")
	require.True(t, ok)

	links := group.EntityLinks([]string{"wc", "cg", "vbc"})
	assert.Equal(t, []EntityLink{
		{EntityCode: "wc", Linked: true, PaymentProfileID: "p1"},
		{EntityCode: "cg", Linked: true, PaymentProfileID: "p2"},
		{EntityCode: "vbc"},
	}, links)
}

func TestFindProfile(t *testing.T) {
	grouping := GroupPaymentProfiles(mixedRecords())

	p, group, ok := grouping.FindProfile("p6")
	require.True(t, ok)
	assert.Equal(t, "cg", p.Entity)
	assert.Equal(t, "1111-Ada-Lovelace", group.Fingerprint)

	_, _, ok = grouping.FindProfile("missing")
	assert.False(t, ok)
}

func TestAccessorsReturnIndependentCopies(t *testing.T) {
	g := GroupPaymentProfiles(mixedRecords())

	groups := g.Groups()
	groups[0].Entities["zz"] = struct{}{}
	groups[0].Members[0].Entity = "zz"

	found, ok := g.Lookup("1111-Ada-Lovelace")
	require.True(t, ok)
	found.Entities["yy"] = struct{}{}
	found.Members[0].Entity = "yy"

	_, group, ok := g.FindProfile("p1")
	require.True(t, ok)
	group.Members[0].Entity = "xx"

	for _, d := range g.Defaults() {
		d.Entities["ww"] = struct{}{}
	}

	again, ok := g.Lookup("1111-Ada-Lovelace")
	require.True(t, ok)
	assert.Equal(t, []string{"cg", "wc"}, again.Entities.Sorted())
	assert.Equal(t, "wc", again.Members[0].Entity)
}
