package models

import "time"

type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Body      string    `json:"body"`
	UserID    string    `json:"user_id"`
	Date      time.Time `json:"date"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Photos    []Photo   `json:"photos"`
	User      *Author   `json:"user,omitempty"`
}

// ImageURLs lists the hosted image URLs of the post's photos
func (p *Post) ImageURLs() []string {
	urls := make([]string, 0, len(p.Photos))
	for _, photo := range p.Photos {
		urls = append(urls, photo.ImageURL)
	}
	return urls
}

// PostQuery selects a page of posts. Offset is derived from Page and Limit (1-indexed).
type PostQuery struct {
	UserID     string
	Page       int
	Limit      int
	SortColumn string
	Descending bool
}

func (q PostQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// PostPage is one page of posts plus the total count matching the query.
type PostPage struct {
	Count int    `json:"count"`
	Rows  []Post `json:"rows"`
}
