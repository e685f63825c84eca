package store

// schema is the complete DDL for the response store. Every statement is
// idempotent so Migrate can run at every Open.
//
// responses rows are immutable after insert: the store only ever inserts
// and deletes, and the FTS index is kept consistent by the two sync
// triggers below.
const schema = `
CREATE TABLE IF NOT EXISTS responses (
    id             TEXT PRIMARY KEY,
    prompt         TEXT NOT NULL,
    prompt_hash    TEXT NOT NULL,
    platform       TEXT NOT NULL,
    model          TEXT NOT NULL DEFAULT '',
    response_text  TEXT NOT NULL,
    tokens_input   INTEGER NOT NULL DEFAULT 0,
    tokens_output  INTEGER NOT NULL DEFAULT 0,
    metadata       TEXT NOT NULL DEFAULT '{}',
    created_at     INTEGER NOT NULL,
    version        INTEGER NOT NULL,
    UNIQUE(prompt_hash, version)
);
CREATE INDEX IF NOT EXISTS idx_responses_hash     ON responses(prompt_hash, version DESC);
CREATE INDEX IF NOT EXISTS idx_responses_platform ON responses(platform);
CREATE INDEX IF NOT EXISTS idx_responses_created  ON responses(created_at DESC);

CREATE TABLE IF NOT EXISTS sessions (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    updated_at  INTEGER NOT NULL,
    metadata    TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS session_responses (
    session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    response_id TEXT NOT NULL REFERENCES responses(id) ON DELETE CASCADE,
    sequence    INTEGER NOT NULL,
    PRIMARY KEY(session_id, response_id)
);
CREATE INDEX IF NOT EXISTS idx_session_responses_seq ON session_responses(session_id, sequence);

CREATE TABLE IF NOT EXISTS tags (
    id   INTEGER PRIMARY KEY,
    name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS response_tags (
    response_id TEXT NOT NULL REFERENCES responses(id) ON DELETE CASCADE,
    tag_id      INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY(response_id, tag_id)
);

CREATE VIRTUAL TABLE IF NOT EXISTS responses_fts USING fts5(
    prompt,
    response_text,
    platform UNINDEXED,
    content='responses',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS responses_ai AFTER INSERT ON responses
BEGIN
    INSERT INTO responses_fts(rowid, prompt, response_text, platform)
    VALUES (NEW.rowid, NEW.prompt, NEW.response_text, NEW.platform);
END;

CREATE TRIGGER IF NOT EXISTS responses_ad AFTER DELETE ON responses
BEGIN
    INSERT INTO responses_fts(responses_fts, rowid, prompt, response_text, platform)
    VALUES ('delete', OLD.rowid, OLD.prompt, OLD.response_text, OLD.platform);
END;
`
