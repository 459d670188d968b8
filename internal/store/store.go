// Package store reads builder inputs from PostgreSQL and persists finished
// matrices back to it.
//
// Input tables, all in the configured schema:
//
//	CREATE TABLE cooccurrence_vocabulary (
//	    concept_id BIGINT PRIMARY KEY,
//	    position   INT NOT NULL
//	);
//	CREATE TABLE observation_period (
//	    person_id                     TEXT NOT NULL,
//	    observation_period_id         TEXT NOT NULL,
//	    observation_period_seq_id     BIGINT PRIMARY KEY,
//	    observation_period_start_date DATE NOT NULL,
//	    observation_period_end_date   DATE NOT NULL
//	);
//	CREATE TABLE concept_events (
//	    observation_period_seq_id BIGINT NOT NULL,
//	    start_day                 INT NOT NULL,
//	    end_day                   INT NOT NULL,
//	    concept_id                BIGINT NOT NULL
//	);
//	CREATE TABLE concept_ancestor (
//	    ancestor_concept_id   BIGINT NOT NULL,
//	    descendant_concept_id BIGINT NOT NULL
//	);
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/concept"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/internal/timeline"
	"github.com/Adithya-Monish-Kumar-K/concept-cooccurrence/pkg/postgres"
)

const (
	vocabularyTable = "cooccurrence_vocabulary"
	periodTable     = "observation_period"
	eventTable      = "concept_events"
	ancestorTable   = "concept_ancestor"
	buildTable      = "cooccurrence_build"
	entryTable      = "cooccurrence_entry"
)

type Store struct {
	db     *postgres.Client
	logger *slog.Logger
}

func New(db *postgres.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "store"),
	}
}

// LoadVocabulary returns the concept ids in matrix order.
func (s *Store) LoadVocabulary(ctx context.Context) (*concept.Index, error) {
	rows, err := s.db.DB.QueryContext(ctx, vocabularyQuery(s.db.Schema()))
	if err != nil {
		return nil, fmt.Errorf("querying vocabulary: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning vocabulary row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading vocabulary: %w", err)
	}
	s.logger.Info("vocabulary loaded", "concepts", len(ids))
	return concept.NewIndex(ids), nil
}

// LoadPeriods returns every observation period ordered by sequence id, the
// order the event source yields records in.
func (s *Store) LoadPeriods(ctx context.Context) ([]timeline.ObservationPeriod, error) {
	rows, err := s.db.DB.QueryContext(ctx, periodQuery(s.db.Schema()))
	if err != nil {
		return nil, fmt.Errorf("querying observation periods: %w", err)
	}
	defer rows.Close()

	var periods []timeline.ObservationPeriod
	for rows.Next() {
		var p timeline.ObservationPeriod
		if err := rows.Scan(&p.PersonID, &p.PeriodID, &p.SequenceID, &p.StartDate, &p.EndDate); err != nil {
			return nil, fmt.Errorf("scanning observation period: %w", err)
		}
		periods = append(periods, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading observation periods: %w", err)
	}
	s.logger.Info("observation periods loaded", "periods", len(periods))
	return periods, nil
}

// LoadAncestorPairs returns the raw (ancestor, descendant) relation.
func (s *Store) LoadAncestorPairs(ctx context.Context) ([]concept.AncestorPair, error) {
	rows, err := s.db.DB.QueryContext(ctx, ancestorQuery(s.db.Schema()))
	if err != nil {
		return nil, fmt.Errorf("querying concept ancestors: %w", err)
	}
	defer rows.Close()

	var pairs []concept.AncestorPair
	for rows.Next() {
		var p concept.AncestorPair
		if err := rows.Scan(&p.AncestorID, &p.DescendantID); err != nil {
			return nil, fmt.Errorf("scanning ancestor pair: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading concept ancestors: %w", err)
	}
	s.logger.Info("ancestor pairs loaded", "pairs", len(pairs))
	return pairs, nil
}

// LoadAncestors builds the roll-up map from the stored relation.
func (s *Store) LoadAncestors(ctx context.Context) (concept.AncestorMap, error) {
	pairs, err := s.LoadAncestorPairs(ctx)
	if err != nil {
		return nil, err
	}
	return concept.NewAncestorMap(pairs), nil
}

func vocabularyQuery(schema string) string {
	return fmt.Sprintf(`SELECT concept_id FROM %s ORDER BY position, concept_id`,
		qualified(schema, vocabularyTable))
}

func periodQuery(schema string) string {
	return fmt.Sprintf(`SELECT person_id, observation_period_id, observation_period_seq_id,
		observation_period_start_date, observation_period_end_date
		FROM %s ORDER BY observation_period_seq_id`,
		qualified(schema, periodTable))
}

func ancestorQuery(schema string) string {
	return fmt.Sprintf(`SELECT ancestor_concept_id, descendant_concept_id FROM %s`,
		qualified(schema, ancestorTable))
}

// closeRows logs a failed Close instead of dropping it.
func closeRows(rows *sql.Rows, logger *slog.Logger) {
	if err := rows.Close(); err != nil {
		logger.Warn("closing rows", "error", err)
	}
}

func qualified(schema, table string) string {
	return postgres.QualifiedTable(schema, table)
}
