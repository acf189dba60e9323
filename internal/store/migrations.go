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

CREATE TABLE IF NOT EXISTS issue_links (
	id         TEXT PRIMARY KEY,
	message_id TEXT NOT NULL,
	issue_id   INTEGER NOT NULL CHECK(issue_id > 0),
	project_id INTEGER NOT NULL DEFAULT 0,
	subject    TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_issue_links_message_id ON issue_links(message_id);
CREATE INDEX IF NOT EXISTS idx_issue_links_issue_id ON issue_links(issue_id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE UNIQUE INDEX IF NOT EXISTS idx_issue_links_message_issue
	ON issue_links(message_id, issue_id);

CREATE INDEX IF NOT EXISTS idx_issue_links_created_at
	ON issue_links(created_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
