package domain

import "time"

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether the status is one of the known values.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// Post is a blog entry.
type Post struct {
	ID         int64
	Title      string
	Content    string
	CoverImage string
	Status     PostStatus
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
