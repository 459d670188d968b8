package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/cooccur"
)

// Output tables, created by EnsureOutputTables.
const outputDDL = `
CREATE TABLE IF NOT EXISTS %[1]s (
    build_id    UUID PRIMARY KEY,
    name        TEXT NOT NULL,
    window_size INT NOT NULL,
    context     TEXT NOT NULL,
    roll_up     BOOLEAN NOT NULL,
    dim         INT NOT NULL,
    entries     BIGINT NOT NULL,
    total       DOUBLE PRECISION NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS %[2]s (
    build_id  UUID NOT NULL REFERENCES %[1]s (build_id) ON DELETE CASCADE,
    row_index INT NOT NULL,
    col_index INT NOT NULL,
    value     DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS cooccurrence_entry_build_row ON %[2]s (build_id, row_index);
`

// BuildRecord describes one persisted matrix.
type BuildRecord struct {
	ID         uuid.UUID
	Name       string
	WindowSize int
	Context    string
	RollUp     bool
	CreatedAt  time.Time
}

func (s *Store) EnsureOutputTables(ctx context.Context) error {
	ddl := fmt.Sprintf(outputDDL, qualified(s.db.Schema(), buildTable), qualified(s.db.Schema(), entryTable))
	if _, err := s.db.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating output tables: %w", err)
	}
	return nil
}

// SaveMatrix writes the build row and every cell in one transaction, the
// cells through COPY.
func (s *Store) SaveMatrix(ctx context.Context, rec BuildRecord, m *cooccur.Matrix) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	schema := s.db.Schema()
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (build_id, name, window_size, context, roll_up, dim, entries, total, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, qualified(schema, buildTable)),
			rec.ID.String(), rec.Name, rec.WindowSize, rec.Context, rec.RollUp, m.Dim[0], m.NNZ(), m.Total(), rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting build %s: %w", rec.ID, err)
		}

		stmt, err := tx.PrepareContext(ctx, copyIn(schema, entryTable, "build_id", "row_index", "col_index", "value"))
		if err != nil {
			return fmt.Errorf("preparing entry copy: %w", err)
		}
		id := rec.ID.String()
		for i := range m.Values {
			if _, err := stmt.ExecContext(ctx, id, m.Rows[i], m.Cols[i], m.Values[i]); err != nil {
				stmt.Close()
				return fmt.Errorf("copying entry %d: %w", i, err)
			}
		}
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return fmt.Errorf("flushing entry copy: %w", err)
		}
		return stmt.Close()
	})
	if err != nil {
		return err
	}
	s.logger.Info("matrix persisted", "build_id", rec.ID, "entries", m.NNZ())
	return nil
}

func copyIn(schema, table string, cols ...string) string {
	if schema == "" {
		return pq.CopyIn(table, cols...)
	}
	return pq.CopyInSchema(schema, table, cols...)
}
