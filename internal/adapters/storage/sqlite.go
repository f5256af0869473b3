package storage

// sqlite.go — persistencia durable del engine.
//
// Tres tablas:
//   - `execution_intents`: una fila por intent lógico, write-ahead. Se crea
//     en PENDING y muta exactamente una vez a un estado terminal. Nunca se
//     borra — el histórico de intents ES la garantía de idempotencia.
//   - `trades`: fills realizados, upsert por ID ({intentId}:fill).
//   - `engine_state`: key-value JSON para configuración runtime (dry-run,
//     kill-switch, caps de riesgo, métricas de cuenta).
//
// La atomicidad de la máquina de estados se delega a SQLite:
// INSERT ON CONFLICT DO NOTHING para el claim del intent, y
// UPDATE ... WHERE status = 'PENDING' para el cierre terminal.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alejandrodnm/vanguard/internal/domain"
	"github.com/alejandrodnm/vanguard/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por intent lógico. Append + una transición terminal, nunca DELETE.
CREATE TABLE IF NOT EXISTS execution_intents (
    id            TEXT PRIMARY KEY,
    ts            DATETIME NOT NULL,
    market_id     TEXT NOT NULL,
    token_id      TEXT NOT NULL,
    side          TEXT NOT NULL,
    size_usd      REAL NOT NULL,
    time_in_force TEXT NOT NULL,
    dry_run       INTEGER NOT NULL DEFAULT 1,
    status        TEXT NOT NULL,
    reason        TEXT,
    request_json  TEXT NOT NULL,
    response_json TEXT,
    updated_at    DATETIME NOT NULL
);

-- Fills realizados. El ID determinista ({intentId}:fill) hace el upsert idempotente.
CREATE TABLE IF NOT EXISTS trades (
    id        TEXT PRIMARY KEY,
    ts        DATETIME NOT NULL,
    market_id TEXT NOT NULL,
    side      TEXT NOT NULL,
    size_usd  REAL NOT NULL,
    price     REAL NOT NULL,
    status    TEXT NOT NULL,
    meta_json TEXT
);

-- Configuración runtime como JSON crudo por key.
CREATE TABLE IF NOT EXISTS engine_state (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_intents_status ON execution_intents(status);
CREATE INDEX IF NOT EXISTS idx_intents_market ON execution_intents(market_id);
CREATE INDEX IF NOT EXISTS idx_trades_ts      ON trades(ts DESC);
`

// SQLiteStorage implementa ports.IntentStore, ports.TradeStore y
// ports.EngineState usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

var (
	_ ports.IntentStore = (*SQLiteStorage)(nil)
	_ ports.TradeStore  = (*SQLiteStorage)(nil)
	_ ports.EngineState = (*SQLiteStorage)(nil)
)

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica
// el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// CreateIntent inserta la fila del intent. El claim es atómico: ON CONFLICT
// DO NOTHING + RowsAffected distingue al ganador de la carrera sin leer antes.
func (s *SQLiteStorage) CreateIntent(ctx context.Context, intent domain.ExecutionIntent) (domain.ExecutionIntent, error) {
	if intent.UpdatedAt.IsZero() {
		intent.UpdatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_intents
			(id, ts, market_id, token_id, side, size_usd, time_in_force,
			 dry_run, status, reason, request_json, response_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		intent.ID,
		intent.TS.UTC(),
		intent.MarketID,
		intent.TokenID,
		string(intent.Side),
		intent.SizeUSD,
		string(intent.TimeInForce),
		boolToInt(intent.DryRun),
		string(intent.Status),
		nullIfEmpty(intent.Reason),
		intent.RequestJSON,
		nullIfEmpty(intent.ResponseJSON),
		intent.UpdatedAt.UTC(),
	)
	if err != nil {
		return domain.ExecutionIntent{}, fmt.Errorf("storage.CreateIntent: insert %s: %w", intent.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.ExecutionIntent{}, fmt.Errorf("storage.CreateIntent: rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ExecutionIntent{}, ports.ErrIntentExists
	}
	return intent, nil
}

// GetIntent devuelve el intent por ID, y false si no existe.
func (s *SQLiteStorage) GetIntent(ctx context.Context, id string) (domain.ExecutionIntent, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ts, market_id, token_id, side, size_usd, time_in_force,
		       dry_run, status, reason, request_json, response_json, updated_at
		FROM execution_intents
		WHERE id = ?
	`, id)

	var intent domain.ExecutionIntent
	var side, tif, status string
	var dryRun int
	var reason, responseJSON sql.NullString

	err := row.Scan(
		&intent.ID,
		&intent.TS,
		&intent.MarketID,
		&intent.TokenID,
		&side,
		&intent.SizeUSD,
		&tif,
		&dryRun,
		&status,
		&reason,
		&intent.RequestJSON,
		&responseJSON,
		&intent.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return domain.ExecutionIntent{}, false, nil
	}
	if err != nil {
		return domain.ExecutionIntent{}, false, fmt.Errorf("storage.GetIntent: scan %s: %w", id, err)
	}

	intent.Side = domain.TradeSide(side)
	intent.TimeInForce = domain.TimeInForce(tif)
	intent.DryRun = dryRun == 1
	intent.Status = domain.IntentStatus(status)
	intent.Reason = reason.String
	intent.ResponseJSON = responseJSON.String
	return intent, true, nil
}

// UpdateIntentTerminal cierra un intent PENDING. El WHERE sobre el status hace
// la transición atómica: una fila ya terminal nunca se sobreescribe.
func (s *SQLiteStorage) UpdateIntentTerminal(ctx context.Context, id string, status domain.IntentStatus, responseJSON, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE execution_intents
		SET status = ?, response_json = ?, reason = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`,
		string(status),
		nullIfEmpty(responseJSON),
		nullIfEmpty(reason),
		time.Now().UTC(),
		id,
		string(domain.IntentPending),
	)
	if err != nil {
		return fmt.Errorf("storage.UpdateIntentTerminal: update %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage.UpdateIntentTerminal: rows affected: %w", err)
	}
	if affected == 0 {
		return ports.ErrIntentNotPending
	}
	return nil
}

// UpsertTrade inserta o reemplaza el trade por ID.
func (s *SQLiteStorage) UpsertTrade(ctx context.Context, trade domain.TradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (id, ts, market_id, side, size_usd, price, status, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ts        = excluded.ts,
			market_id = excluded.market_id,
			side      = excluded.side,
			size_usd  = excluded.size_usd,
			price     = excluded.price,
			status    = excluded.status,
			meta_json = excluded.meta_json
	`,
		trade.ID,
		trade.TS.UTC(),
		trade.MarketID,
		string(trade.Side),
		trade.SizeUSD,
		trade.Price,
		trade.Status,
		nullIfEmpty(trade.MetaJSON),
	)
	if err != nil {
		return fmt.Errorf("storage.UpsertTrade: upsert %s: %w", trade.ID, err)
	}
	return nil
}

// GetTrade devuelve el trade por ID, y false si no existe.
func (s *SQLiteStorage) GetTrade(ctx context.Context, id string) (domain.TradeRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, ts, market_id, side, size_usd, price, status, meta_json
		FROM trades
		WHERE id = ?
	`, id)

	var trade domain.TradeRecord
	var side string
	var metaJSON sql.NullString

	err := row.Scan(
		&trade.ID,
		&trade.TS,
		&trade.MarketID,
		&side,
		&trade.SizeUSD,
		&trade.Price,
		&trade.Status,
		&metaJSON,
	)
	if err == sql.ErrNoRows {
		return domain.TradeRecord{}, false, nil
	}
	if err != nil {
		return domain.TradeRecord{}, false, fmt.Errorf("storage.GetTrade: scan %s: %w", id, err)
	}

	trade.Side = domain.TradeSide(side)
	trade.MetaJSON = metaJSON.String
	return trade, true, nil
}

// GetStateRaw devuelve el valor JSON crudo de la key, y false si no existe.
func (s *SQLiteStorage) GetStateRaw(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM engine_state WHERE key = ?`, key,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("storage.GetStateRaw: %s: %w", key, err)
	}
	return value, true, nil
}

// SetState serializa value como JSON y hace upsert de la key.
func (s *SQLiteStorage) SetState(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage.SetState: marshal %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO engine_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage.SetState: upsert %s: %w", key, err)
	}
	return nil
}

// SetStateIfMissing escribe la key solo si no existe todavía. Sirve para
// sembrar defaults al arrancar sin pisar overrides del operador.
func (s *SQLiteStorage) SetStateIfMissing(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("storage.SetStateIfMissing: marshal %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO engine_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO NOTHING
	`, key, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage.SetStateIfMissing: insert %s: %w", key, err)
	}
	return nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
