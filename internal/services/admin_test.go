package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markjakearzadon/orangemoney-gobackend/internal/apperr"
	"github.com/markjakearzadon/orangemoney-gobackend/internal/models"
)

func TestProviderAdmin(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	admin := NewProviderAdmin(h.provider, h.stores.State, testLogger)
	stateID := models.ProviderStateID("client", 1)

	check, err := admin.TestConnection(ctx)
	require.NoError(t, err)
	assert.True(t, check.OK)

	key, err := admin.FetchPublicKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "k1", key.KeyID)

	st, err := h.stores.State.GetState(ctx, stateID)
	require.NoError(t, err)
	assert.Equal(t, "MIIBIjANBg", st.PublicKey)
	assert.Equal(t, "k1", st.PublicKeyID)

	h.provider.callback = "callback registered for 123456"
	summary, err := admin.RegisterWebhook(ctx)
	require.NoError(t, err)
	assert.Equal(t, h.provider.callback, summary)

	h.provider.cbErr = errors.New("403 forbidden")
	_, err = admin.RegisterWebhook(ctx)
	assert.True(t, apperr.IsKind(err, apperr.Upstream))

	st, err = h.stores.State.GetState(ctx, stateID)
	require.NoError(t, err)
	assert.Equal(t, "error: 403 forbidden", st.LastWebhookStatus)
}

func TestProviderAdmin_Misconfigured(t *testing.T) {
	h := newHarness(t, true)
	ctx := context.Background()
	admin := NewProviderAdmin(h.provider, h.stores.State, testLogger)

	h.provider.cfg.CallbackURL = ""
	_, err := admin.RegisterWebhook(ctx)
	assert.True(t, apperr.IsKind(err, apperr.Invalid))

	h.provider.cfg.Active = false
	_, err = admin.TestConnection(ctx)
	assert.Equal(t, "Orange Money configuration not found", apperr.PublicMessage(err))
}
