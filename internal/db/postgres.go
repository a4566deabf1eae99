package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ascii-arena/internal/models"
	"ascii-arena/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

const modelColumns = `id, model_name, model_config, elo_rating, vote_count, wins, losses, metadata, created_at, updated_at`

// PostgresStore implements store.Store on PostgreSQL. ApplyVote locks both
// model rows with SELECT ... FOR UPDATE, so a concurrent vote on either
// model waits for this one to commit.
type PostgresStore struct {
	db *sqlx.DB
}

type modelRow struct {
	models.Model
	RawMetadata []byte `db:"metadata"`
}

func (r *modelRow) toModel() models.Model {
	m := r.Model
	if len(r.RawMetadata) > 0 {
		var meta map[string]interface{}
		if err := json.Unmarshal(r.RawMetadata, &meta); err == nil && len(meta) > 0 {
			m.Metadata = meta
		}
	}
	return m
}

func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	conn, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	s := NewPostgresStore(conn)
	if err := s.Migrate(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

func NewPostgresStore(conn *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: conn}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	log.Info().Msg("database schema ensured")
	return nil
}

func noRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// uniqueViolation maps a unique constraint failure to store.ErrDuplicate.
func uniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return store.ErrDuplicate
	}
	return err
}

// retryable reports serialization failures and deadlocks.
func retryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}

func (s *PostgresStore) CreateModel(ctx context.Context, m *models.Model) error {
	store.PrepareModel(m, time.Now())
	meta, err := json.Marshal(m.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}
	if m.Metadata == nil {
		meta = []byte("{}")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO models (`+modelColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)
	`, m.ID, m.ModelName, m.ModelConfig, m.EloRating, m.VoteCount, m.Wins, m.Losses, string(meta), m.CreatedAt, m.UpdatedAt)
	return uniqueViolation(err)
}

func (s *PostgresStore) GetModel(ctx context.Context, id string) (*models.Model, error) {
	var row modelRow
	err := s.db.GetContext(ctx, &row, `SELECT `+modelColumns+` FROM models WHERE id = $1`, id)
	if err != nil {
		return nil, noRows(err)
	}
	m := row.toModel()
	return &m, nil
}

func (s *PostgresStore) ListModelsByRating(ctx context.Context, limit int) ([]models.Model, error) {
	query := `SELECT ` + modelColumns + ` FROM models ORDER BY elo_rating DESC, model_name ASC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var rows []modelRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	list := make([]models.Model, len(rows))
	for i := range rows {
		list[i] = rows[i].toModel()
	}
	return list, nil
}

func (s *PostgresStore) CreatePrompt(ctx context.Context, p *models.Prompt) error {
	store.PreparePrompt(p, time.Now())
	_, err := s.db.ExecContext(ctx, `INSERT INTO prompts (id, text, created_at) VALUES ($1, $2, $3)`,
		p.ID, p.Text, p.CreatedAt)
	return err
}

func (s *PostgresStore) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	var list []models.Prompt
	err := s.db.SelectContext(ctx, &list, `SELECT id, text, created_at FROM prompts ORDER BY id`)
	return list, err
}

func (s *PostgresStore) CreateOutput(ctx context.Context, o *models.AsciiOutput) error {
	store.PrepareOutput(o, time.Now())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ascii_outputs (id, prompt_id, model_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, o.ID, o.PromptID, o.ModelID, o.Content, o.CreatedAt)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return store.ErrNotFound
	}
	return err
}

func (s *PostgresStore) GetOutput(ctx context.Context, id string) (*models.AsciiOutput, error) {
	var o models.AsciiOutput
	err := s.db.GetContext(ctx, &o, `
		SELECT id, prompt_id, model_id, content, created_at FROM ascii_outputs WHERE id = $1
	`, id)
	if err != nil {
		return nil, noRows(err)
	}
	return &o, nil
}

func (s *PostgresStore) ListOutputsByPrompt(ctx context.Context, promptID string) ([]models.AsciiOutput, error) {
	var list []models.AsciiOutput
	err := s.db.SelectContext(ctx, &list, `
		SELECT id, prompt_id, model_id, content, created_at FROM ascii_outputs
		WHERE prompt_id = $1 ORDER BY id
	`, promptID)
	return list, err
}

func (s *PostgresStore) ApplyVote(ctx context.Context, vote *models.Vote, rate store.RateFunc) (*models.RatingChange, error) {
	if err := store.ValidateVote(vote); err != nil {
		return nil, err
	}

	for attempt := 1; attempt <= store.MaxApplyAttempts; attempt++ {
		change, err := s.applyOnce(ctx, vote, rate)
		if retryable(err) {
			log.Debug().Err(err).Int("attempt", attempt).Msg("retrying vote transaction")
			continue
		}
		if err != nil {
			return nil, err
		}
		change.Attempts = attempt
		return change, nil
	}
	return nil, store.ErrConflict
}

func (s *PostgresStore) applyOnce(ctx context.Context, vote *models.Vote, rate store.RateFunc) (*models.RatingChange, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// ORDER BY id fixes the lock order between concurrent votes on the same pair.
	var rows []modelRow
	err = tx.SelectContext(ctx, &rows, `
		SELECT `+modelColumns+` FROM models WHERE id IN ($1, $2) ORDER BY id FOR UPDATE
	`, vote.WinnerModelID, vote.LoserModelID)
	if err != nil {
		return nil, err
	}

	var winner, loser *models.Model
	for i := range rows {
		m := rows[i].toModel()
		switch m.ID {
		case vote.WinnerModelID:
			winner = &m
		case vote.LoserModelID:
			loser = &m
		}
	}
	if winner == nil || loser == nil {
		return nil, store.ErrNotFound
	}

	winnerNew, loserNew := rate(*winner, *loser)
	now := time.Now()

	if _, err := tx.ExecContext(ctx, `
		UPDATE models SET elo_rating = $1, vote_count = vote_count + 1, wins = wins + 1, updated_at = $2 WHERE id = $3
	`, winnerNew, now, winner.ID); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE models SET elo_rating = $1, vote_count = vote_count + 1, losses = losses + 1, updated_at = $2 WHERE id = $3
	`, loserNew, now, loser.ID); err != nil {
		return nil, err
	}

	change := store.Settle(vote, winner, loser, winnerNew, loserNew, now)
	if _, err := tx.NamedExecContext(ctx, `
		INSERT INTO votes (id, output_a_id, output_b_id, winner_id, winner_model_id, loser_model_id,
			winner_elo_from, winner_elo_to, loser_elo_from, loser_elo_to, voter_hash, created_at)
		VALUES (:id, :output_a_id, :output_b_id, :winner_id, :winner_model_id, :loser_model_id,
			:winner_elo_from, :winner_elo_to, :loser_elo_from, :loser_elo_to, :voter_hash, :created_at)
	`, vote); err != nil {
		return nil, fmt.Errorf("failed to record vote: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return change, nil
}

func (s *PostgresStore) InsertAuditEvent(ctx context.Context, e *models.AuditEvent) error {
	store.PrepareAuditEvent(e, time.Now())
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO audit_log (id, event_type, ip, user_agent, details, created_at)
		VALUES (:id, :event_type, :ip, :user_agent, :details, :created_at)
	`, e)
	return err
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE votes, ascii_outputs, prompts, models`)
	return err
}

func (s *PostgresStore) Close(ctx context.Context) error {
	return s.db.Close()
}
