package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"hotel_agent/internal/domain"
)

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// SavePost writes the post row and its hotels in one transaction. Hotel
// positions keep the post's order.
func (r *Repo) SavePost(ctx context.Context, p domain.Post) (err error) {
	captions, err := json.Marshal(nonNilMap(p.SocialCaptions))
	if err != nil {
		return fmt.Errorf("encode captions: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, insertPostSQL,
		p.ID, p.Title, p.Body, p.Excerpt, p.Location, p.ImageRef,
		string(captions), string(p.Status), p.PublishedAt.UTC(),
	); err != nil {
		return fmt.Errorf("insert post %s: %w", p.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertHotelSQL)
	if err != nil {
		return fmt.Errorf("prepare hotels: %w", err)
	}
	defer stmt.Close()

	for i, h := range p.Hotels {
		amen, merr := json.Marshal(nonNilSlice(h.Amenities))
		if merr != nil {
			err = fmt.Errorf("encode amenities: %w", merr)
			return err
		}
		if _, err = stmt.ExecContext(ctx,
			p.ID, i, h.Name, h.NightlyPrice, h.Rating, h.Location,
			string(amen), h.ImageRef, h.Description, h.ObservedAt.UTC(),
		); err != nil {
			return fmt.Errorf("insert hotel %d of %s: %w", i, p.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repo) ListRecentPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	rows, err := r.db.QueryContext(ctx, listRecentPostsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		posts []domain.Post
		index = map[string]int{}
	)
	for rows.Next() {
		var (
			p        domain.Post
			captions []byte
			status   string
		)
		if err := rows.Scan(&p.ID, &p.Title, &p.Body, &p.Excerpt, &p.Location, &p.ImageRef,
			&captions, &status, &p.PublishedAt); err != nil {
			return nil, err
		}
		p.Status = domain.PostStatus(status)
		p.PublishedAt = p.PublishedAt.UTC()
		if err := json.Unmarshal(captions, &p.SocialCaptions); err != nil {
			return nil, fmt.Errorf("decode captions of %s: %w", p.ID, err)
		}
		index[p.ID] = len(posts)
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return []domain.Post{}, nil
	}
	if err := r.attachHotels(ctx, posts, index); err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *Repo) attachHotels(ctx context.Context, posts []domain.Post, index map[string]int) error {
	marks := make([]string, len(posts))
	args := make([]any, len(posts))
	for i, p := range posts {
		marks[i] = "?"
		args[i] = p.ID
	}
	q := listHotelsPrefix + "(" + strings.Join(marks, ",") + ")" + listHotelsOrder
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			postID string
			pos    int
			h      domain.HotelRecord
			amen   []byte
		)
		if err := rows.Scan(&postID, &pos, &h.Name, &h.NightlyPrice, &h.Rating, &h.Location,
			&amen, &h.ImageRef, &h.Description, &h.ObservedAt); err != nil {
			return err
		}
		if err := json.Unmarshal(amen, &h.Amenities); err != nil {
			return fmt.Errorf("decode amenities of %s/%d: %w", postID, pos, err)
		}
		h.ObservedAt = h.ObservedAt.UTC()
		i := index[postID]
		posts[i].Hotels = append(posts[i].Hotels, h)
	}
	return rows.Err()
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
