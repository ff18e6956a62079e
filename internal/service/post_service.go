package service

import (
	"context"
	"strings"

	"blogd/internal/broadcast"
	"blogd/internal/domain"
	"blogd/internal/repository"
)

// CreatePostInput is the payload accepted by Create.
type CreatePostInput struct {
	Title      string
	Content    string
	CoverImage string
	Status     domain.PostStatus
}

// UpdatePostInput carries a partial update; nil fields are left untouched.
type UpdatePostInput struct {
	Title      *string
	Content    *string
	CoverImage *string
	Status     *domain.PostStatus
}

// PostService coordinates post CRUD and lifecycle event publication.
type PostService interface {
	Create(ctx context.Context, input CreatePostInput) (*domain.Post, error)
	Get(ctx context.Context, id int64) (*domain.Post, error)
	List(ctx context.Context) ([]domain.Post, error)
	Update(ctx context.Context, id int64, input UpdatePostInput) (*domain.Post, error)
	Delete(ctx context.Context, id int64) (*domain.Post, error)
	SetCoverImage(ctx context.Context, id int64, uri string) (*domain.Post, error)
}

type postService struct {
	posts       repository.PostRepository
	broadcaster broadcast.Broadcaster
}

func NewPostService(posts repository.PostRepository, broadcaster broadcast.Broadcaster) PostService {
	return &postService{
		posts:       posts,
		broadcaster: broadcaster,
	}
}

func (s *postService) Create(ctx context.Context, input CreatePostInput) (*domain.Post, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, validationError("title", "This field is required.")
	}
	status := input.Status
	if status == "" {
		status = domain.PostStatusDraft
	}
	if !status.Valid() {
		return nil, validationError("status", "Status must be draft or published.")
	}

	post := &domain.Post{
		Title:      title,
		Content:    input.Content,
		CoverImage: input.CoverImage,
		Status:     status,
	}
	if _, err := s.posts.Create(ctx, post); err != nil {
		return nil, err
	}

	s.broadcaster.Publish(broadcast.TopicBlogFeed, broadcast.Event{
		Event:  broadcast.EventPostCreated,
		ID:     post.ID,
		Title:  post.Title,
		Status: string(post.Status),
	})
	return post, nil
}

func (s *postService) Get(ctx context.Context, id int64) (*domain.Post, error) {
	return s.posts.Get(ctx, id)
}

func (s *postService) List(ctx context.Context) ([]domain.Post, error) {
	return s.posts.List(ctx)
}

func (s *postService) Update(ctx context.Context, id int64, input UpdatePostInput) (*domain.Post, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, validationError("title", "This field may not be blank.")
		}
		post.Title = title
	}
	if input.Content != nil {
		post.Content = *input.Content
	}
	if input.CoverImage != nil {
		post.CoverImage = *input.CoverImage
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return nil, validationError("status", "Status must be draft or published.")
		}
		post.Status = *input.Status
	}

	if err := s.posts.Update(ctx, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Delete removes the post and publishes a deletion event built from the
// pre-deletion snapshot; the entity no longer exists when the event goes out.
// The snapshot is also returned so callers can clean up attached resources.
func (s *postService) Delete(ctx context.Context, id int64) (*domain.Post, error) {
	post, err := s.posts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.posts.Delete(ctx, id); err != nil {
		return nil, err
	}

	s.broadcaster.Publish(broadcast.TopicBlogFeed, broadcast.Event{
		Event:  broadcast.EventPostDeleted,
		ID:     post.ID,
		Title:  post.Title,
		Status: string(post.Status),
	})
	return post, nil
}

func (s *postService) SetCoverImage(ctx context.Context, id int64, uri string) (*domain.Post, error) {
	return s.Update(ctx, id, UpdatePostInput{CoverImage: &uri})
}
