package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
	"geojungle/internal/repository"
)

type PostService struct {
	tx            repository.Transactor
	postRepo      repository.PostRepository
	userRepo      repository.UserRepository
	miniAdminRepo repository.MiniAdminRepository
	media         *MediaService
}

func NewPostService(
	tx repository.Transactor,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
	miniAdminRepo repository.MiniAdminRepository,
	media *MediaService,
) *PostService {
	return &PostService{
		tx:            tx,
		postRepo:      postRepo,
		userRepo:      userRepo,
		miniAdminRepo: miniAdminRepo,
		media:         media,
	}
}

// Create stores the post and bumps the author's post count in one
// transaction. An already uploaded image is removed again when the
// transaction fails.
func (s *PostService) Create(ctx context.Context, authorID int64, req model.CreatePostRequest, image *model.Asset) (*model.Post, error) {
	if authorID <= 0 {
		return nil, model.ErrIdentityRequired
	}

	post := &model.Post{
		Kind:     req.Kind,
		Category: strings.TrimSpace(req.Category),
		Title:    strings.TrimSpace(req.Title),
		Body:     strings.TrimSpace(req.Body),
		Country:  strings.TrimSpace(req.Country),
		AuthorID: authorID,
	}
	if err := validatePostFields(post); err != nil {
		s.discardImage(ctx, image)
		return nil, err
	}
	if image != nil {
		post.ImageURL = &image.URL
		post.ImageKey = &image.Key
		post.ImageContentType = &image.ContentType
	}

	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		author, err := s.userRepo.GetForUpdate(ctx, tx, authorID)
		if err != nil {
			return err
		}
		post.AuthorUsername = author.Username

		if err := s.postRepo.Create(ctx, tx, post); err != nil {
			return err
		}
		_, err = s.userRepo.AdjustPostCount(ctx, tx, authorID, 1)
		return err
	})
	if err != nil {
		s.discardImage(ctx, image)
		return nil, err
	}

	log.Printf("[PostService] User %d created %s post %d", authorID, post.Kind, post.ID)
	return post, nil
}

func (s *PostService) discardImage(ctx context.Context, image *model.Asset) {
	if image != nil && s.media != nil {
		s.media.Delete(ctx, image.Key)
	}
}

func validatePostFields(p *model.Post) error {
	if !p.Kind.Valid() {
		return model.ErrInvalidPostKind
	}
	if !p.Kind.ValidCategory(p.Category) {
		return model.ErrInvalidCategory
	}
	if p.Title == "" || p.Body == "" || p.Country == "" {
		return model.Validationf("title, body and country are required")
	}
	return nil
}

// GetByID returns a visible post with the viewer's reaction filled in.
func (s *PostService) GetByID(ctx context.Context, postID int64, viewerID *int64) (*model.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID, false)
	if err != nil {
		return nil, err
	}
	posts := []model.Post{*post}
	s.attachViewerReactions(ctx, posts, viewerID)
	return &posts[0], nil
}

// List returns posts newest first. IncludeDeleted is only honoured for
// admin callers; the handler decides that.
func (s *PostService) List(ctx context.Context, filter model.PostFilter, viewerID *int64) (*model.PostListResponse, error) {
	if filter.Limit <= 0 {
		filter.Limit = model.DefaultPostPageSize
	}
	if filter.Limit > model.MaxPostPageSize {
		filter.Limit = model.MaxPostPageSize
	}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, model.ErrInvalidPostKind
	}
	if filter.Kind != "" && filter.Category != "" && !filter.Kind.ValidCategory(filter.Category) {
		return nil, model.ErrInvalidCategory
	}

	posts, next, err := s.postRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	s.attachViewerReactions(ctx, posts, viewerID)

	return &model.PostListResponse{
		Posts:      posts,
		NextCursor: next,
		HasMore:    next != nil,
	}, nil
}

// CountryFeed merges every kind for one country.
func (s *PostService) CountryFeed(ctx context.Context, country string, cursor *string, limit int, viewerID *int64) (*model.PostListResponse, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return nil, model.Validationf("country is required")
	}
	return s.List(ctx, model.PostFilter{Country: country, Cursor: cursor, Limit: limit}, viewerID)
}

func (s *PostService) attachViewerReactions(ctx context.Context, posts []model.Post, viewerID *int64) {
	if viewerID == nil || len(posts) == 0 {
		return
	}
	ids := make([]int64, len(posts))
	for i := range posts {
		ids[i] = posts[i].ID
	}
	reactions, err := s.postRepo.GetViewerReactions(ctx, *viewerID, ids)
	if err != nil {
		log.WithError(err).Warn("[PostService] Failed to load viewer reactions")
		return
	}
	for i := range posts {
		posts[i].ViewerReaction = reactions[posts[i].ID]
	}
}

// Reactions lists who liked and who disliked a post.
func (s *PostService) Reactions(ctx context.Context, postID int64) (*model.ReactionsResponse, error) {
	if _, err := s.postRepo.GetByID(ctx, postID, false); err != nil {
		return nil, err
	}
	liked, disliked, err := s.postRepo.GetReactors(ctx, postID)
	if err != nil {
		return nil, err
	}
	return &model.ReactionsResponse{PostID: postID, LikedBy: liked, DislikedBy: disliked}, nil
}

// Image opens the stored image of a visible post.
func (s *PostService) Image(ctx context.Context, postID int64) (io.ReadCloser, string, error) {
	post, err := s.postRepo.GetByID(ctx, postID, false)
	if err != nil {
		return nil, "", err
	}
	if post.ImageKey == nil || *post.ImageKey == "" {
		return nil, "", model.ErrPostHasNoImage
	}
	body, contentType, err := s.media.Open(ctx, *post.ImageKey)
	if err != nil {
		return nil, "", err
	}
	if post.ImageContentType != nil && *post.ImageContentType != "" {
		contentType = *post.ImageContentType
	}
	return body, contentType, nil
}

// Update applies owner edits. The kind never changes.
func (s *PostService) Update(ctx context.Context, postID, userID int64, req model.UpdatePostRequest) (*model.Post, error) {
	var post *model.Post
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		p, err := s.postRepo.GetForUpdate(ctx, tx, postID)
		if err != nil {
			return err
		}
		if p.IsDeleted {
			return model.ErrPostNotFound
		}
		if p.AuthorID != userID {
			return model.ErrNotPostOwner
		}

		if req.Title != nil {
			p.Title = strings.TrimSpace(*req.Title)
		}
		if req.Body != nil {
			p.Body = strings.TrimSpace(*req.Body)
		}
		if req.Category != nil {
			p.Category = strings.TrimSpace(*req.Category)
		}
		if req.Country != nil {
			p.Country = strings.TrimSpace(*req.Country)
		}
		if err := validatePostFields(p); err != nil {
			return err
		}

		if err := s.postRepo.Update(ctx, tx, p); err != nil {
			return err
		}
		post = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// Delete soft-deletes a post and decrements the author's post count.
// Owners delete without a reason. Admins and mini-admins holding
// manage_posts must give one.
func (s *PostService) Delete(ctx context.Context, postID int64, actor model.Actor, reason string) error {
	reason = strings.TrimSpace(reason)

	var moderator *model.MiniAdmin
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		post, err := s.postRepo.GetForUpdate(ctx, tx, postID)
		if err != nil {
			return err
		}
		if post.IsDeleted {
			return model.ErrPostNotFound
		}

		if post.AuthorID != actor.UserID {
			m, err := s.authorizeModeration(ctx, actor)
			if err != nil {
				return err
			}
			if reason == "" {
				return model.ErrReasonRequired
			}
			moderator = m
		}

		var reasonPtr *string
		if reason != "" {
			reasonPtr = &reason
		}
		if err := s.postRepo.MarkDeleted(ctx, tx, postID, actor.UserID, reasonPtr); err != nil {
			return err
		}

		prev, err := s.userRepo.AdjustPostCount(ctx, tx, post.AuthorID, -1)
		if err != nil {
			return err
		}
		if prev == 0 {
			log.WithFields(log.Fields{"user_id": post.AuthorID, "post_id": postID}).
				Warn("[PostService] post_count already 0 on delete; clamped")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if moderator != nil {
		if err := s.miniAdminRepo.Touch(ctx, moderator.UserID); err != nil {
			log.WithError(err).Warn("[PostService] Failed to record mini-admin activity")
		}
	}
	log.WithFields(log.Fields{"post_id": postID, "actor": actor.UserID, "role": actor.Role}).Info("[PostService] Post deleted")
	return nil
}

// authorizeModeration returns the mini-admin grant of a moderating actor, or
// nil for an admin.
func (s *PostService) authorizeModeration(ctx context.Context, actor model.Actor) (*model.MiniAdmin, error) {
	switch actor.Role {
	case model.RoleAdmin:
		return nil, nil
	case model.RoleMiniAdmin:
		m, err := s.miniAdminRepo.GetByUserID(ctx, actor.UserID)
		if errors.Is(err, model.ErrMiniAdminNotFound) {
			return nil, model.ErrModerationDenied
		}
		if err != nil {
			return nil, err
		}
		if !m.HasPermission(model.PermManagePosts) {
			return nil, model.ErrModerationDenied
		}
		return m, nil
	default:
		return nil, model.ErrNotPostOwner
	}
}

// Restore undoes a soft delete and re-applies the author's post count.
func (s *PostService) Restore(ctx context.Context, postID int64) (*model.Post, error) {
	var restored *model.Post
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		post, err := s.postRepo.GetForUpdate(ctx, tx, postID)
		if err != nil {
			return err
		}
		if !post.IsDeleted {
			return model.ErrPostNotDeleted
		}
		if err := s.postRepo.Restore(ctx, tx, postID); err != nil {
			return err
		}
		if _, err := s.userRepo.AdjustPostCount(ctx, tx, post.AuthorID, 1); err != nil {
			return err
		}
		post.IsDeleted = false
		post.DeletionReason = nil
		post.DeletedBy = nil
		post.DeletedAt = nil
		restored = post
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("[PostService] Post %d restored", postID)
	return restored, nil
}
