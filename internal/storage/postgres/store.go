package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/jackc/pgx/v5/stdlib"

	"hotel_agent/internal/domain"
)

type Store struct {
	db *sql.DB
}

// Open connects through the pgx stdlib driver and creates the schema when it
// is missing.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureSchema(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) SavePost(ctx context.Context, p domain.Post) (err error) {
	captions := p.SocialCaptions
	if captions == nil {
		captions = map[string]string{}
	}
	capJSON, err := json.Marshal(captions)
	if err != nil {
		return fmt.Errorf("encode captions: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertPostSQL,
		p.ID, p.Title, p.Body, p.Excerpt, p.Location, p.ImageRef,
		string(capJSON), string(p.Status), p.PublishedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert post %s: %w", p.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertHotelSQL)
	if err != nil {
		return fmt.Errorf("prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for i, h := range p.Hotels {
		amen := h.Amenities
		if amen == nil {
			amen = []string{}
		}
		b, merr := json.Marshal(amen)
		if merr != nil {
			err = fmt.Errorf("encode amenities: %w", merr)
			return err
		}
		if _, err = stmt.ExecContext(ctx,
			p.ID, i, h.Name, h.NightlyPrice, h.Rating, h.Location,
			string(b), h.ImageRef, h.Description, h.ObservedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert hotel %d of %s: %w", i, p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) ListRecentPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	rows, err := s.db.QueryContext(ctx, listRecentPostsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []domain.Post{}
	index := map[string]int{}
	ids := []string{}
	for rows.Next() {
		var (
			p        domain.Post
			captions string
			status   string
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Body, &p.Excerpt, &p.Location, &p.ImageRef,
			&captions, &status, &p.PublishedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(captions), &p.SocialCaptions); err != nil {
			return nil, fmt.Errorf("decode captions of %s: %w", p.ID, err)
		}
		p.Status = domain.PostStatus(status)
		p.PublishedAt = p.PublishedAt.UTC()
		index[p.ID] = len(posts)
		ids = append(ids, p.ID)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return posts, nil
	}

	hrows, err := s.db.QueryContext(ctx, listHotelsSQL, ids)
	if err != nil {
		return nil, err
	}
	defer hrows.Close()
	for hrows.Next() {
		var (
			postID string
			pos    int
			amen   string
			h      domain.HotelRecord
		)
		if err := hrows.Scan(&postID, &pos, &h.Name, &h.NightlyPrice, &h.Rating, &h.Location,
			&amen, &h.ImageRef, &h.Description, &h.ObservedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(amen), &h.Amenities); err != nil {
			return nil, fmt.Errorf("decode amenities of %s/%d: %w", postID, pos, err)
		}
		h.ObservedAt = h.ObservedAt.UTC()
		i := index[postID]
		posts[i].Hotels = append(posts[i].Hotels, h)
	}
	return posts, hrows.Err()
}
