package postgres

// migrationLockID keys the advisory lock held while migrating
const migrationLockID = 0x696e74616b65

const schemaVersionTable = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// migrations[i] moves the schema to version i+1. Append only.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    explanation TEXT NOT NULL DEFAULT '',
    diagram TEXT NOT NULL DEFAULT '',
    video_url TEXT NOT NULL DEFAULT '',
    tags JSONB NOT NULL DEFAULT '[]',
    difficulty TEXT NOT NULL DEFAULT '',
    channel TEXT NOT NULL DEFAULT '',
    sub_channel TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'disabled')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE INDEX IF NOT EXISTS idx_items_channel_status ON items(channel, status)`,
}
