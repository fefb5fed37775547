package sqlite

const schema = `
-- Content items
CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    explanation TEXT NOT NULL DEFAULT '',
    diagram TEXT NOT NULL DEFAULT '',
    video_url TEXT NOT NULL DEFAULT '',
    tags TEXT NOT NULL DEFAULT '[]',
    difficulty TEXT NOT NULL DEFAULT '',
    channel TEXT NOT NULL DEFAULT '',
    sub_channel TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active', 'disabled')),
    created_at INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_items_channel ON items(channel, status);

-- Feedback idempotency ledger
CREATE TABLE IF NOT EXISTS ledger (
    report_id TEXT PRIMARY KEY,
    status TEXT NOT NULL CHECK(status IN ('processing', 'completed', 'failed')),
    processed_at INTEGER NOT NULL,
    completed_at INTEGER,
    error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_ledger_processed_at ON ledger(processed_at);

-- Local issue tracker
CREATE TABLE IF NOT EXISTS tracker_issues (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL DEFAULT '',
    body TEXT NOT NULL DEFAULT '',
    closed INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS tracker_labels (
    issue_id TEXT NOT NULL,
    label TEXT NOT NULL,
    PRIMARY KEY (issue_id, label),
    FOREIGN KEY (issue_id) REFERENCES tracker_issues(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_tracker_labels_label ON tracker_labels(label);

CREATE TABLE IF NOT EXISTS tracker_comments (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    issue_id TEXT NOT NULL,
    body TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (issue_id) REFERENCES tracker_issues(id) ON DELETE CASCADE
);
`
