package cards

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDialogLifecycle(t *testing.T) {
	grouping := GroupPaymentProfiles(mixedRecords())
	group, ok := grouping.Lookup("1111-ada-Lovelace")
	require.True(t, ok)

	d := NewDefaultDialog(9)
	assert.Equal(t, StateIdle, d.State())

	_, err := d.Submit(context.Background(), &stubBackend{})
	assert.ErrorIs(t, err, ErrNotConfirming)

	confirmation, err := d.Open(group)
	require.NoError(t, err)
	assert.Equal(t, StateConfirming, d.State())
	assert.Contains(t, confirmation.Message, "ending in 1111")
	assert.Equal(t, "12/29", confirmation.ExpirationDate)

	require.NoError(t, d.Cancel())
	assert.Equal(t, StateIdle, d.State())

	_, err = d.Open(group)
	require.NoError(t, err)
	backend := &stubBackend{mutateErr: errors.New("declined")}
	_, err = d.Submit(context.Background(), backend)
	require.Error(t, err)
	assert.Equal(t, StateConfirming, d.State(), "failure returns to confirming")

	backend.mutateErr = nil
	submitted, err := d.Submit(context.Background(), backend)
	require.NoError(t, err)
	assert.Equal(t, group.Fingerprint, submitted.Fingerprint)
	assert.Equal(t, StateIdle, d.State())
	assert.Equal(t, []setDefaultCall{{9, "p4"}, {9, "p4"}}, backend.setDefaults)
}

func TestDeleteDialogScopeText(t *testing.T) {
	grouping := GroupPaymentProfiles(mixedRecords())
	p, group, ok := grouping.FindProfile("p1")
	require.True(t, ok)

	d := NewDeleteDialog(9)
	all, err := d.Open(group, p, AllEntities)
	require.NoError(t, err)
	assert.Contains(t, all.Message, "all entities")
	assert.Contains(t, all.Message, "cannot be undone")

	one, err := d.Open(group, p, OnlyEntity("cg"))
	require.NoError(t, err)
	assert.Contains(t, one.Message, "entity cg")
	assert.Equal(t, "cg", one.Scope.Entity())

	backend := &stubBackend{}
	_, scope, err := d.Submit(context.Background(), backend)
	require.NoError(t, err)
	assert.False(t, scope.All())
	assert.Equal(t, []deleteCall{{9, "p1", "cg"}}, backend.deletes)
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, StrategyRefetch, s)

	s, err = ParseStrategy("optimistic")
	require.NoError(t, err)
	assert.Equal(t, StrategyOptimistic, s)

	_, err = ParseStrategy("eager")
	assert.Error(t, err)
}
