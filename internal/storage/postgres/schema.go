package postgres

// schemaStatements create the article catalog. Every statement is
// idempotent so migrate can run on every deploy.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS articles (
	id UUID PRIMARY KEY,
	title VARCHAR(100) NOT NULL,
	content TEXT NOT NULL,
	source_url TEXT NOT NULL,
	is_public BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT articles_source_url_key UNIQUE (source_url)
)`,
	`CREATE TABLE IF NOT EXISTS tags (
	id UUID PRIMARY KEY,
	title VARCHAR(100) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	CONSTRAINT tags_title_key UNIQUE (title)
)`,
	`CREATE TABLE IF NOT EXISTS article_tags (
	article_id UUID NOT NULL REFERENCES articles (id) ON DELETE CASCADE,
	tag_id UUID NOT NULL REFERENCES tags (id) ON DELETE CASCADE,
	added_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (article_id, tag_id)
)`,
	`CREATE INDEX IF NOT EXISTS article_tags_tag_id_idx ON article_tags (tag_id)`,
	`CREATE INDEX IF NOT EXISTS articles_recent_idx ON articles (updated_at DESC, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS tags_created_at_idx ON tags (created_at DESC)`,
}
