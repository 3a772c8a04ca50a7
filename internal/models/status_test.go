package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapProviderStatus_ShouldNormalizeKnownValues(t *testing.T) {
	cases := map[string]Status{
		"SUCCESS":       StatusCompleted,
		"succeeded":     StatusCompleted,
		" Success ":     StatusCompleted,
		"FAILED":        StatusFailed,
		"EXPIRED":       StatusFailed,
		"rejected":      StatusFailed,
		"PENDING":       StatusPending,
		"PROCESSING":    StatusPending,
		"ACCEPTED":      StatusPending,
		"PRE_INITIATED": StatusPending,
		"CANCELLED":     StatusCancelled,
		"canceled":      StatusCancelled,
	}
	for in, want := range cases {
		assert.Equal(t, want, MapProviderStatus(in), in)
	}
}

func TestMapProviderStatus_WhenUnknownOrEmpty_ShouldDefaultToPending(t *testing.T) {
	for _, in := range []string{"", "   ", "WHATEVER", "paid", "completed"} {
		got := MapProviderStatus(in)
		assert.Equal(t, StatusPending, got, in)
		assert.True(t, got.Valid())
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusInitiated.IsTerminal())
}

func TestMoney_Format(t *testing.T) {
	assert.Equal(t, "5 000 FCFA", MoneyFromInt(5000).Format("XOF"))
	assert.Equal(t, "1 250 000 FCFA", MoneyFromInt(1250000).Format(""))
	assert.Equal(t, "750 FCFA", MoneyFromInt(750).Format("XOF"))

	m, err := ParseMoney("12.5")
	require.NoError(t, err)
	assert.Equal(t, "12.50 EUR", m.Format("EUR"))
}

func TestMoney_JSONAcceptsNumbersAndStrings(t *testing.T) {
	var body struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":5000,"b":"12.75"}`), &body))
	assert.Equal(t, "5000", body.A.String())
	assert.Equal(t, "12.75", body.B.String())

	out, err := json.Marshal(body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":5000,"b":12.75}`, string(out))
}

func TestExternalID_AcceptsNumbersAndStrings(t *testing.T) {
	var body struct {
		Facture ExternalID `json:"facture_id"`
		Partner ExternalID `json:"partner_id"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"facture_id":42,"partner_id":" 7 "}`), &body))
	assert.Equal(t, ExternalID("42"), body.Facture)
	assert.Equal(t, ExternalID("7"), body.Partner)
}

func TestTransaction_Derived(t *testing.T) {
	tx := Transaction{Amount: MoneyFromInt(5000), Currency: "XOF"}
	assert.Equal(t, "5 000 FCFA", tx.FormattedAmount())
	assert.False(t, tx.HasQRCode())
	tx.QRCodeBase64 = "iVBORw0KGgo="
	assert.True(t, tx.HasQRCode())
}
