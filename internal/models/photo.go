package models

import "time"

// Photo is an image attached to a post. The file itself lives on the image host.
type Photo struct {
	ID        string    `json:"id"`
	ImageURL  string    `json:"image_url"`
	UserID    string    `json:"user_id"`
	PostID    string    `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
