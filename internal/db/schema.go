package db

// Schema creates the PostgreSQL tables used by PostgresStore. Every
// statement is idempotent so it runs on each startup.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS models (
		id            TEXT PRIMARY KEY,
		model_name    TEXT NOT NULL,
		model_config  TEXT NOT NULL DEFAULT '',
		elo_rating    INTEGER NOT NULL DEFAULT 1500,
		vote_count    INTEGER NOT NULL DEFAULT 0 CHECK (vote_count >= 0),
		wins          INTEGER NOT NULL DEFAULT 0,
		losses        INTEGER NOT NULL DEFAULT 0,
		metadata      JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL,
		UNIQUE (model_name, model_config)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_models_elo ON models (elo_rating DESC)`,

	`CREATE TABLE IF NOT EXISTS prompts (
		id         TEXT PRIMARY KEY,
		text       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS ascii_outputs (
		id         TEXT PRIMARY KEY,
		prompt_id  TEXT NOT NULL REFERENCES prompts(id) ON DELETE CASCADE,
		model_id   TEXT NOT NULL REFERENCES models(id) ON DELETE CASCADE,
		content    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_outputs_prompt ON ascii_outputs (prompt_id)`,

	`CREATE TABLE IF NOT EXISTS votes (
		id              TEXT PRIMARY KEY,
		output_a_id     TEXT NOT NULL,
		output_b_id     TEXT NOT NULL,
		winner_id       TEXT NOT NULL,
		winner_model_id TEXT NOT NULL REFERENCES models(id) ON DELETE CASCADE,
		loser_model_id  TEXT NOT NULL REFERENCES models(id) ON DELETE CASCADE,
		winner_elo_from INTEGER NOT NULL,
		winner_elo_to   INTEGER NOT NULL,
		loser_elo_from  INTEGER NOT NULL,
		loser_elo_to    INTEGER NOT NULL,
		voter_hash      TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_votes_created ON votes (created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		id         TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		ip         TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		details    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
}
