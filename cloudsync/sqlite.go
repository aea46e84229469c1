package cloudsync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_snapshots (
	id TEXT PRIMARY KEY,
	grid TEXT NOT NULL,
	generation INTEGER NOT NULL,
	living_cells INTEGER NOT NULL,
	settings TEXT NOT NULL,
	created_at TEXT NOT NULL
);`

// timeLayout is fixed width so created_at sorts as text
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type snapshotRow struct {
	ID          string `db:"id"`
	Grid        string `db:"grid"`
	Generation  int64  `db:"generation"`
	LivingCells int64  `db:"living_cells"`
	Settings    string `db:"settings"`
	CreatedAt   string `db:"created_at"`
}

// SQLiteSink stores payloads in the game_snapshots table of a SQLite database
type SQLiteSink struct {
	conn *sqlx.DB
}

// OpenSQLite opens or creates the database at path
func OpenSQLite(path string) (*SQLiteSink, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, errors.Wrapf(err, "[OpenSQLite] failed to open %s", path)
	}
	// a single connection keeps :memory: databases shared
	conn.SetMaxOpenConns(1)

	if _, err = conn.Exec(schema); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			return nil, errors.Wrapf(err, "[OpenSQLite] failed to migrate (close: %v)", closeErr)
		}
		return nil, errors.Wrap(err, "[OpenSQLite] failed to migrate")
	}
	return &SQLiteSink{conn: conn}, nil
}

// Close closes the database connection
func (s *SQLiteSink) Close() error {
	return s.conn.Close()
}

// Push inserts one payload
func (s *SQLiteSink) Push(ctx context.Context, p Payload) error {
	gridJSON, err := json.Marshal(p.Grid)
	if err != nil {
		return errors.Wrap(err, "[Push] failed to marshal grid")
	}
	settingsJSON, err := json.Marshal(p.Settings)
	if err != nil {
		return errors.Wrap(err, "[Push] failed to marshal settings")
	}

	row := snapshotRow{
		ID:          p.ID.String(),
		Grid:        string(gridJSON),
		Generation:  int64(p.Generation),
		LivingCells: int64(p.LivingCells),
		Settings:    string(settingsJSON),
		CreatedAt:   p.CreatedAt.UTC().Format(timeLayout),
	}
	_, err = s.conn.NamedExecContext(ctx, `
		INSERT INTO game_snapshots (id, grid, generation, living_cells, settings, created_at)
		VALUES (:id, :grid, :generation, :living_cells, :settings, :created_at)`, row)
	if err != nil {
		return errors.Wrapf(err, "[Push] failed to insert snapshot %s", row.ID)
	}
	return nil
}

// Latest returns the most recently created payload
func (s *SQLiteSink) Latest(ctx context.Context) (Payload, error) {
	var row snapshotRow
	err := s.conn.GetContext(ctx, &row, `
		SELECT id, grid, generation, living_cells, settings, created_at
		FROM game_snapshots ORDER BY created_at DESC LIMIT 1`)
	if err != nil {
		return Payload{}, errors.Wrap(err, "[Latest] failed to query snapshot")
	}
	return row.payload()
}

// Count returns the number of stored payloads
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.conn.GetContext(ctx, &n, "SELECT COUNT(*) FROM game_snapshots"); err != nil {
		return 0, errors.Wrap(err, "[Count] failed to count snapshots")
	}
	return n, nil
}

func (r snapshotRow) payload() (Payload, error) {
	p := Payload{
		Generation:  uint64(r.Generation),
		LivingCells: uint32(r.LivingCells),
	}
	var err error
	if p.ID, err = uuid.Parse(r.ID); err != nil {
		return Payload{}, errors.Wrapf(err, "[payload] bad id %q", r.ID)
	}
	if err = json.Unmarshal([]byte(r.Grid), &p.Grid); err != nil {
		return Payload{}, errors.Wrapf(err, "[payload] bad grid in %s", r.ID)
	}
	if err = json.Unmarshal([]byte(r.Settings), &p.Settings); err != nil {
		return Payload{}, errors.Wrapf(err, "[payload] bad settings in %s", r.ID)
	}
	if p.CreatedAt, err = time.Parse(timeLayout, r.CreatedAt); err != nil {
		return Payload{}, errors.Wrapf(err, "[payload] bad created_at in %s", r.ID)
	}
	return p, nil
}
