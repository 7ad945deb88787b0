package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME NOT NULL,
	feed_count   INTEGER NOT NULL DEFAULT 0,
	failed_count INTEGER NOT NULL DEFAULT 0,
	appended     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS feed_results (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	feed_url    TEXT NOT NULL,
	title       TEXT NOT NULL DEFAULT '',
	entries     INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	new_entries INTEGER NOT NULL DEFAULT 0,
	appended    INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
ALTER TABLE feed_results ADD COLUMN duration_ms INTEGER NOT NULL DEFAULT 0;

CREATE INDEX IF NOT EXISTS idx_feed_results_run ON feed_results(run_id);
CREATE INDEX IF NOT EXISTS idx_feed_results_url ON feed_results(feed_url);
CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
