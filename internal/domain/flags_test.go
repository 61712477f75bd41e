package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeBoolean(t *testing.T) {
	truth := true
	cases := []struct {
		in   any
		want bool
	}{
		{true, true},
		{false, false},
		{"true", true},
		{"True", true},
		{"false", false},
		{"False", false},
		{"TRUE", false},
		{"1", false},
		{1, false},
		{nil, false},
		{&truth, true},
		{(*bool)(nil), false},
		{Flag("True"), true},
		{Flag(false), false},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, NormalizeBoolean(tc.in), "NormalizeBoolean(%#v)", tc.in)
	}
}

func TestNormalizeBooleanIdempotent(t *testing.T) {
	for _, in := range []any{true, false, "true", "True", "false", "False"} {
		once := NormalizeBoolean(in)
		assert.Equalf(t, once, NormalizeBoolean(once), "input %#v", in)
	}
}

func TestLooseBoolPreservesEncoding(t *testing.T) {
	var p PaymentProfile
	require.NoError(t, json.Unmarshal([]byte(`{"paymentProfileID":"1","isDefault":"True","clientID":42}`), &p))
	assert.True(t, p.IsDefault.Bool())
	assert.Equal(t, "True", p.IsDefault.Raw())
	assert.Equal(t, FlexID("42"), p.ClientID)

	out, err := json.Marshal(p.IsDefault)
	require.NoError(t, err)
	assert.Equal(t, `"True"`, string(out))

	require.NoError(t, json.Unmarshal([]byte(`{"isDefault":false,"clientID":"77"}`), &p))
	assert.False(t, p.IsDefault.Bool())
	id, err := p.ClientID.Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
}

func TestClientDetailEntityCodes(t *testing.T) {
	legacy := ClientDetail{Entities: []string{"wc", "cg"}}
	assert.Equal(t, []string{"wc", "cg"}, legacy.EntityCodes())

	mapped := ClientDetail{
		Entities: []string{"wc"},
		EntityMappings: []EntityMapping{
			{EntityCode: "cg"}, {EntityCode: "vbc"}, {EntityCode: "cg"}, {EntityCode: ""},
		},
	}
	assert.Equal(t, []string{"cg", "vbc"}, mapped.EntityCodes())
}
