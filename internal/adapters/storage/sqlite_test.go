package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/vanguard/internal/adapters/storage"
	"github.com/alejandrodnm/vanguard/internal/domain"
	"github.com/alejandrodnm/vanguard/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func makeIntent(id string) domain.ExecutionIntent {
	return domain.ExecutionIntent{
		ID:          id,
		TS:          time.Now().UTC().Truncate(time.Second),
		MarketID:    "0xmarket",
		TokenID:     "token-yes",
		Side:        domain.SideBuy,
		SizeUSD:     50,
		TimeInForce: domain.TIFImmediateOrCancel,
		DryRun:      true,
		Status:      domain.IntentPending,
		RequestJSON: `{"sizeUsd":50}`,
	}
}

func TestSQLiteStorage_CreateAndGetIntent(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	created, err := db.CreateIntent(ctx, makeIntent("intent-1"))
	require.NoError(t, err)
	assert.False(t, created.UpdatedAt.IsZero())

	got, found, err := db.GetIntent(ctx, "intent-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.IntentPending, got.Status)
	assert.Equal(t, domain.SideBuy, got.Side)
	assert.Equal(t, domain.TIFImmediateOrCancel, got.TimeInForce)
	assert.True(t, got.DryRun)
	assert.Empty(t, got.Reason)
	assert.Empty(t, got.ResponseJSON)
	assert.Equal(t, `{"sizeUsd":50}`, got.RequestJSON)
}

func TestSQLiteStorage_GetIntent_NotFound(t *testing.T) {
	db := openStore(t)

	_, found, err := db.GetIntent(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStorage_CreateIntent_DuplicateID(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	_, err := db.CreateIntent(ctx, makeIntent("intent-1"))
	require.NoError(t, err)

	_, err = db.CreateIntent(ctx, makeIntent("intent-1"))
	assert.ErrorIs(t, err, ports.ErrIntentExists)

	// La fila original sigue intacta
	got, found, err := db.GetIntent(ctx, "intent-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.IntentPending, got.Status)
}

func TestSQLiteStorage_UpdateIntentTerminal(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	_, err := db.CreateIntent(ctx, makeIntent("intent-1"))
	require.NoError(t, err)

	err = db.UpdateIntentTerminal(ctx, "intent-1", domain.IntentFilled, `{"status":"FILLED"}`, "")
	require.NoError(t, err)

	got, found, err := db.GetIntent(ctx, "intent-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.IntentFilled, got.Status)
	assert.Equal(t, `{"status":"FILLED"}`, got.ResponseJSON)
}

func TestSQLiteStorage_UpdateIntentTerminal_AlreadyTerminal(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	_, err := db.CreateIntent(ctx, makeIntent("intent-1"))
	require.NoError(t, err)
	require.NoError(t, db.UpdateIntentTerminal(ctx, "intent-1", domain.IntentFilled, `{}`, ""))

	// Segundo cierre: la fila ya no está en PENDING
	err = db.UpdateIntentTerminal(ctx, "intent-1", domain.IntentFailed, `{}`, "late")
	assert.ErrorIs(t, err, ports.ErrIntentNotPending)

	got, _, err := db.GetIntent(ctx, "intent-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentFilled, got.Status, "terminal state must never be overwritten")
}

func TestSQLiteStorage_UpdateIntentTerminal_MissingRow(t *testing.T) {
	db := openStore(t)

	err := db.UpdateIntentTerminal(context.Background(), "ghost", domain.IntentFailed, "", "boom")
	assert.ErrorIs(t, err, ports.ErrIntentNotPending)
}

func TestSQLiteStorage_UpsertTrade_Idempotent(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	trade := domain.TradeRecord{
		ID:       "intent-1:fill",
		TS:       time.Now().UTC().Truncate(time.Second),
		MarketID: "0xmarket",
		Side:     domain.SideBuy,
		SizeUSD:  50,
		Price:    0.5,
		Status:   "DRY_RUN_FILLED",
		MetaJSON: `{"fillCount":1}`,
	}
	require.NoError(t, db.UpsertTrade(ctx, trade))

	// Segundo upsert con datos nuevos reemplaza la misma fila
	trade.Price = 0.55
	require.NoError(t, db.UpsertTrade(ctx, trade))

	got, found, err := db.GetTrade(ctx, "intent-1:fill")
	require.NoError(t, err)
	require.True(t, found)
	assert.InDelta(t, 0.55, got.Price, 1e-9)
	assert.Equal(t, "DRY_RUN_FILLED", got.Status)
	assert.Equal(t, `{"fillCount":1}`, got.MetaJSON)
}

func TestSQLiteStorage_GetTrade_NotFound(t *testing.T) {
	db := openStore(t)

	_, found, err := db.GetTrade(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStorage_EngineState_RoundTrip(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	require.NoError(t, db.SetState(ctx, "DRY_RUN", true))
	require.NoError(t, db.SetState(ctx, "MAX_USD_PER_TRADE", 100))

	raw, found, err := db.GetStateRaw(ctx, "DRY_RUN")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "true", raw)

	raw, found, err = db.GetStateRaw(ctx, "MAX_USD_PER_TRADE")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "100", raw)
}

func TestSQLiteStorage_EngineState_MissingKey(t *testing.T) {
	db := openStore(t)

	_, found, err := db.GetStateRaw(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSQLiteStorage_EngineState_Overwrite(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	require.NoError(t, db.SetState(ctx, "KILL_SWITCH", false))
	require.NoError(t, db.SetState(ctx, "KILL_SWITCH", true))

	raw, found, err := db.GetStateRaw(ctx, "KILL_SWITCH")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "true", raw)
}

func TestSQLiteStorage_SetStateIfMissing(t *testing.T) {
	db := openStore(t)
	ctx := context.Background()

	require.NoError(t, db.SetStateIfMissing(ctx, "ARMED", false))
	// No pisa el valor existente
	require.NoError(t, db.SetStateIfMissing(ctx, "ARMED", true))

	raw, found, err := db.GetStateRaw(ctx, "ARMED")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "false", raw)
}
