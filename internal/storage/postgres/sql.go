package postgres

const schemaSQL = `
CREATE TABLE IF NOT EXISTS posts (
	id              UUID PRIMARY KEY,
	title           TEXT NOT NULL,
	body            TEXT NOT NULL,
	excerpt         TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL,
	image_ref       TEXT NOT NULL DEFAULT '',
	social_captions JSONB NOT NULL DEFAULT '{}'::jsonb,
	status          TEXT NOT NULL,
	published_at    TIMESTAMPTZ NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_posts_published ON posts (published_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS post_hotels (
	post_id       UUID NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
	position      SMALLINT NOT NULL,
	name          TEXT NOT NULL,
	nightly_price NUMERIC(10,2) NOT NULL,
	rating        NUMERIC(3,1) NOT NULL,
	location      TEXT NOT NULL,
	amenities     JSONB NOT NULL DEFAULT '[]'::jsonb,
	image_ref     TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	observed_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (post_id, position)
);
`

const insertPostSQL = `
INSERT INTO posts (id, title, body, excerpt, location, image_ref, social_captions, status, published_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)`

const insertHotelSQL = `
INSERT INTO post_hotels (post_id, position, name, nightly_price, rating, location, amenities, image_ref, description, observed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9, $10)`

const listRecentPostsSQL = `
SELECT id::text, title, body, excerpt, location, image_ref, social_captions::text, status, published_at
FROM posts
ORDER BY published_at DESC, id DESC
LIMIT $1`

const listHotelsSQL = `
SELECT post_id::text, position, name, nightly_price::float8, rating::float8, location, amenities::text, image_ref, description, observed_at
FROM post_hotels
WHERE post_id::text = ANY($1)
ORDER BY post_id, position`
