package journal

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nyxtrade/momentum-trader/internal/domain"
)

// Store is the Journal Store of spec §4.9: one append-only family per record
// type, each guarded by its own exclusive writer lock so a slow prediction
// write never blocks a decision write, mirroring the teacher's
// internal/database per-table locking in pkg/database/store.go.
type Store struct {
	db *DB

	locks   map[string]*sync.Mutex
	locksMu sync.Mutex
}

// RetentionWindow is the default pruning horizon (spec §4.9: 90 days).
// Weights and outcomes are never pruned or mutated in place; only the raw
// agent-log and system-health families are subject to this window.
const RetentionWindow = 90 * 24 * time.Hour

func NewStore(db *DB) *Store {
	families := []string{"predictions", "decisions", "outcomes", "positions",
		"agent_logs", "system_health", "learning_cycles", "watchlists"}
	locks := make(map[string]*sync.Mutex, len(families))
	for _, f := range families {
		locks[f] = &sync.Mutex{}
	}
	return &Store{db: db, locks: locks}
}

func (s *Store) lock(family string) func() {
	s.locksMu.Lock()
	l := s.locks[family]
	s.locksMu.Unlock()
	l.Lock()
	return l.Unlock
}

// AppendPrediction durably appends a Prediction (spec §4.9).
func (s *Store) AppendPrediction(ctx context.Context, p domain.Prediction) error {
	defer s.lock("predictions")()
	payload, err := encode(p)
	if err != nil {
		return fmt.Errorf("journal: encode prediction: %w", err)
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO predictions (id, ticker, created_at, schema_version, payload) VALUES (?, ?, ?, ?, ?)`,
		p.ID, string(p.Ticker), p.CreatedAt, schemaVersion, payload)
	return err
}

// AppendDecision durably appends a DecisionRecord (spec §4.9).
func (s *Store) AppendDecision(ctx context.Context, d domain.DecisionRecord) error {
	defer s.lock("decisions")()
	payload, err := encode(d)
	if err != nil {
		return fmt.Errorf("journal: encode decision: %w", err)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO decisions (id, ticker, created_at, final_action, schema_version, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, string(d.Ticker), d.CreatedAt, string(d.FinalAction), schemaVersion, payload)
	return err
}

// AppendOutcome durably appends a realized Outcome (spec §4.9).
func (s *Store) AppendOutcome(ctx context.Context, o domain.Outcome) error {
	defer s.lock("outcomes")()
	payload, err := encode(o)
	if err != nil {
		return fmt.Errorf("journal: encode outcome: %w", err)
	}
	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO outcomes (prediction_id, closed_at, schema_version, payload) VALUES (?, ?, ?, ?)`,
		o.PredictionID, o.ClosedAt, schemaVersion, payload)
	return err
}

// AppendPosition durably appends a Position snapshot (spec §4.9). The
// Execution Monitor calls this on every material state transition, not just
// open/close, so the journal retains the full lifecycle.
func (s *Store) AppendPosition(ctx context.Context, p domain.Position, open bool) error {
	defer s.lock("positions")()
	payload, err := encode(p)
	if err != nil {
		return fmt.Errorf("journal: encode position: %w", err)
	}
	openFlag := 0
	if open {
		openFlag = 1
	}
	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO positions (id, ticker, created_at, open, schema_version, payload) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET open=excluded.open, payload=excluded.payload`,
		p.ID, string(p.Ticker), p.CreatedAt, openFlag, schemaVersion, payload)
	return err
}

// AppendAgentLog durably appends a free-form agent log line (spec §4.9).
func (s *Store) AppendAgentLog(ctx context.Context, level string, fields map[string]any) error {
	defer s.lock("agent_logs")()
	payload, err := encode(fields)
	if err != nil {
		return fmt.Errorf("journal: encode agent log: %w", err)
	}
	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO agent_logs (id, created_at, level, schema_version, payload) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), time.Now(), level, schemaVersion, payload)
	return err
}

// AppendSystemHealth durably appends a system-health snapshot (spec §4.9).
func (s *Store) AppendSystemHealth(ctx context.Context, fields map[string]any) error {
	defer s.lock("system_health")()
	payload, err := encode(fields)
	if err != nil {
		return fmt.Errorf("journal: encode system health: %w", err)
	}
	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO system_health (id, created_at, schema_version, payload) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), time.Now(), schemaVersion, payload)
	return err
}

// AppendLearningCycle durably appends one Learning Engine cycle result
// (spec §4.9/§4.10), recording whether the cycle's weight delta was
// validation-gate committed.
func (s *Store) AppendLearningCycle(ctx context.Context, committed bool, fields map[string]any) error {
	defer s.lock("learning_cycles")()
	payload, err := encode(fields)
	if err != nil {
		return fmt.Errorf("journal: encode learning cycle: %w", err)
	}
	c := 0
	if committed {
		c = 1
	}
	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO learning_cycles (id, created_at, committed, schema_version, payload) VALUES (?, ?, ?, ?, ?)`,
		uuid.NewString(), time.Now(), c, schemaVersion, payload)
	return err
}

// AppendWatchlist durably appends one Screener run's watchlist (spec §4.9).
func (s *Store) AppendWatchlist(ctx context.Context, entries []domain.WatchlistEntry, screenedAt time.Time) error {
	defer s.lock("watchlists")()
	payload, err := encode(entries)
	if err != nil {
		return fmt.Errorf("journal: encode watchlist: %w", err)
	}
	_, err = s.db.conn.ExecContext(ctx,
		`INSERT INTO watchlists (id, created_at, schema_version, payload) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), screenedAt, schemaVersion, payload)
	return err
}

// QueryDecisions returns the newest `limit` decisions, optionally filtered by
// ticker, newest first (spec §4.9). Reads take no lock: SQLite's WAL mode
// lets them proceed concurrently with an in-flight append.
func (s *Store) QueryDecisions(ctx context.Context, ticker domain.Ticker, limit int) ([]domain.DecisionRecord, error) {
	var rows *sql.Rows
	var err error
	if ticker == "" {
		rows, err = s.db.conn.QueryContext(ctx,
			`SELECT payload FROM decisions ORDER BY created_at DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.conn.QueryContext(ctx,
			`SELECT payload FROM decisions WHERE ticker = ? ORDER BY created_at DESC LIMIT ?`, string(ticker), limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DecisionRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var d domain.DecisionRecord
		if err := decode(payload, &d); err != nil {
			return nil, fmt.Errorf("journal: decode decision: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// QueryOutcomes returns the newest `limit` outcomes, newest first (spec §4.9).
func (s *Store) QueryOutcomes(ctx context.Context, limit int) ([]domain.Outcome, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT payload FROM outcomes ORDER BY closed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Outcome
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var o domain.Outcome
		if err := decode(payload, &o); err != nil {
			return nil, fmt.Errorf("journal: decode outcome: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// QueryPredictionByID returns one prediction, or ok=false if absent (spec §4.9/§4.10).
func (s *Store) QueryPredictionByID(ctx context.Context, id string) (domain.Prediction, bool, error) {
	row := s.db.conn.QueryRowContext(ctx, `SELECT payload FROM predictions WHERE id = ?`, id)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return domain.Prediction{}, false, nil
		}
		return domain.Prediction{}, false, err
	}
	var p domain.Prediction
	if err := decode(payload, &p); err != nil {
		return domain.Prediction{}, false, fmt.Errorf("journal: decode prediction: %w", err)
	}
	return p, true, nil
}

// QueryDecisionsWithOutcomes returns the newest `limit` decisions that carry
// an attached Outcome, newest first (spec §4.10's "last N Outcomes and their
// corresponding Predictions/DecisionRecords").
func (s *Store) QueryDecisionsWithOutcomes(ctx context.Context, limit int) ([]domain.DecisionRecord, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT payload FROM decisions ORDER BY created_at DESC LIMIT ?`, limit*4)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.DecisionRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var d domain.DecisionRecord
		if err := decode(payload, &d); err != nil {
			return nil, fmt.Errorf("journal: decode decision: %w", err)
		}
		if d.ActualOutcome != nil {
			out = append(out, d)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

// QueryOpenPositions returns all positions currently flagged open (spec §4.8/§4.9).
func (s *Store) QueryOpenPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.conn.QueryContext(ctx, `SELECT payload FROM positions WHERE open = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var p domain.Position
		if err := decode(payload, &p); err != nil {
			return nil, fmt.Errorf("journal: decode position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// QueryLatestWatchlist returns the most recently screened watchlist, or nil
// if none exists yet (spec §4.4's degrade-to-previous-watchlist rule).
func (s *Store) QueryLatestWatchlist(ctx context.Context) ([]domain.WatchlistEntry, error) {
	row := s.db.conn.QueryRowContext(ctx,
		`SELECT payload FROM watchlists ORDER BY created_at DESC LIMIT 1`)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var entries []domain.WatchlistEntry
	if err := decode(payload, &entries); err != nil {
		return nil, fmt.Errorf("journal: decode watchlist: %w", err)
	}
	return entries, nil
}

// UpdateOutcome attaches a realized Outcome and accuracy score to the
// originating DecisionRecord in place (spec §4.9's single documented
// in-place mutation). The prediction/decision rows themselves are never
// rewritten beyond this one field; weights and raw outcomes are immutable.
func (s *Store) UpdateOutcome(ctx context.Context, decisionID string, outcome domain.Outcome, accuracy float64) error {
	defer s.lock("decisions")()

	row := s.db.conn.QueryRowContext(ctx, `SELECT payload FROM decisions WHERE id = ?`, decisionID)
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		return fmt.Errorf("journal: load decision %s: %w", decisionID, err)
	}
	var d domain.DecisionRecord
	if err := decode(payload, &d); err != nil {
		return fmt.Errorf("journal: decode decision %s: %w", decisionID, err)
	}

	d.ActualOutcome = &outcome
	acc := accuracy
	d.AccuracyScore = &acc

	newPayload, err := encode(d)
	if err != nil {
		return fmt.Errorf("journal: encode updated decision: %w", err)
	}
	_, err = s.db.conn.ExecContext(ctx, `UPDATE decisions SET payload = ? WHERE id = ?`, newPayload, decisionID)
	return err
}

// PruneOlderThan deletes agent_logs/system_health rows older than `before`
// (spec §4.9: 90-day retention on raw operational logs; predictions,
// decisions, outcomes, and learned weights are retained indefinitely since
// the Learning Engine depends on their full history).
func (s *Store) PruneOlderThan(ctx context.Context, before time.Time) error {
	unlockLogs := s.lock("agent_logs")
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM agent_logs WHERE created_at < ?`, before)
	unlockLogs()
	if err != nil {
		return err
	}

	unlockHealth := s.lock("system_health")
	defer unlockHealth()
	_, err = s.db.conn.ExecContext(ctx, `DELETE FROM system_health WHERE created_at < ?`, before)
	return err
}
