package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeeAdjustmentValidate(t *testing.T) {
	cases := []struct {
		name    string
		adj     *FeeAdjustment
		wantErr bool
	}{
		{name: "nil adjustment", adj: nil},
		{name: "discount in range", adj: &FeeAdjustment{Kind: FeeAdjustmentDiscount, Amount: decimal.NewFromInt(25)}},
		{name: "discount over 100", adj: &FeeAdjustment{Kind: FeeAdjustmentDiscount, Amount: decimal.NewFromInt(150)}, wantErr: true},
		{name: "negative discount", adj: &FeeAdjustment{Kind: FeeAdjustmentDiscount, Amount: decimal.NewFromInt(-5)}, wantErr: true},
		{name: "waiver ignores amount", adj: &FeeAdjustment{Kind: FeeAdjustmentWaiver, Amount: decimal.NewFromInt(-999)}},
		{name: "custom amount", adj: &FeeAdjustment{Kind: FeeAdjustmentCustom, Amount: decimal.NewFromInt(400)}},
		{name: "negative custom amount", adj: &FeeAdjustment{Kind: FeeAdjustmentCustom, Amount: decimal.NewFromInt(-1)}, wantErr: true},
		{name: "unknown kind", adj: &FeeAdjustment{Kind: "rebate"}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.adj.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFeeAdjustmentValueScanRoundTrip(t *testing.T) {
	in := &FeeAdjustment{Kind: FeeAdjustmentDiscount, Amount: decimal.NewFromInt(30), Reason: "sibling"}

	raw, err := in.Value()
	require.NoError(t, err)
	payload, ok := raw.([]byte)
	require.True(t, ok)
	assert.JSONEq(t, `{"kind":"discount","value":"30","reason":"sibling"}`, string(payload))

	var out FeeAdjustment
	require.NoError(t, out.Scan(payload))
	assert.Equal(t, in.Kind, out.Kind)
	assert.True(t, in.Amount.Equal(out.Amount))
	assert.Equal(t, in.Reason, out.Reason)
}

func TestFeeAdjustmentValueNil(t *testing.T) {
	var adj *FeeAdjustment
	raw, err := adj.Value()
	require.NoError(t, err)
	assert.Nil(t, raw)
}

func TestFeeAdjustmentScanRejectsNonBytes(t *testing.T) {
	var adj FeeAdjustment
	assert.Error(t, adj.Scan(42))
}
