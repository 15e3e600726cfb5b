package mysql

const insertPostSQL = `
INSERT INTO posts
  (id, title, body, excerpt, location, image_ref, social_captions, status, published_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const insertHotelSQL = `
INSERT INTO post_hotels
  (post_id, position, name, nightly_price, rating, location, amenities, image_ref, description, observed_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

// Newest first; id breaks ties so the order is stable.
const listRecentPostsSQL = `
SELECT id, title, body, excerpt, location, image_ref, social_captions, status, published_at
FROM posts
ORDER BY published_at DESC, id DESC
LIMIT ?
`

// Suffix is an IN (...) list built by the repo.
const listHotelsPrefix = `
SELECT post_id, position, name, nightly_price, rating, location, amenities, image_ref, description, observed_at
FROM post_hotels
WHERE post_id IN `

const listHotelsOrder = ` ORDER BY post_id, position`
