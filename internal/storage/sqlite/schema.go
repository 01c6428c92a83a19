package sqlite

// Timestamps are stored as unix microseconds so ordering is numeric.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS articles (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL CHECK (length(title) <= 100),
	content TEXT NOT NULL,
	source_url TEXT NOT NULL UNIQUE,
	is_public INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL UNIQUE CHECK (length(title) <= 100),
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS article_tags (
	article_id TEXT NOT NULL REFERENCES articles (id) ON DELETE CASCADE,
	tag_id TEXT NOT NULL REFERENCES tags (id) ON DELETE CASCADE,
	added_at INTEGER NOT NULL,
	seq INTEGER NOT NULL,
	PRIMARY KEY (article_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_article_tags_tag ON article_tags (tag_id);
CREATE INDEX IF NOT EXISTS idx_articles_recent ON articles (updated_at DESC, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_tags_created ON tags (created_at DESC);
`
