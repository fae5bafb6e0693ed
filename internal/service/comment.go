package service

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"

	"geojungle/internal/model"
	"geojungle/internal/repository"
)

const (
	defaultCommentPageSize = 20
	maxCommentPageSize     = 50
)

type CommentService struct {
	tx          repository.Transactor
	commentRepo repository.CommentRepository
	postRepo    repository.PostRepository
	userRepo    repository.UserRepository
}

func NewCommentService(
	tx repository.Transactor,
	commentRepo repository.CommentRepository,
	postRepo repository.PostRepository,
	userRepo repository.UserRepository,
) *CommentService {
	return &CommentService{
		tx:          tx,
		commentRepo: commentRepo,
		postRepo:    postRepo,
		userRepo:    userRepo,
	}
}

// Create adds a comment to a post. Uses transaction: insert comment + increment counter.
func (s *CommentService) Create(ctx context.Context, postID, userID int64, req model.CreateCommentRequest) (*model.Comment, error) {
	if userID <= 0 {
		return nil, model.ErrIdentityRequired
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, model.Validationf("content is required")
	}

	comment := &model.Comment{PostID: postID, UserID: userID, Content: content}
	err := s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		post, err := s.postRepo.GetForUpdate(ctx, tx, postID)
		if err != nil {
			return err
		}
		if post.IsDeleted {
			return model.ErrPostNotFound
		}
		if err := s.commentRepo.Create(ctx, tx, comment); err != nil {
			return err
		}
		return s.postRepo.ApplyEngagementDelta(ctx, tx, postID, 0, 0, 1)
	})
	if err != nil {
		return nil, err
	}

	if summaries, err := s.userRepo.GetSummaries(ctx, []int64{userID}); err == nil {
		if author, ok := summaries[userID]; ok {
			comment.Author = &author
		}
	}

	log.Printf("[CommentService] User %d commented on post %d", userID, postID)
	return comment, nil
}

// Delete removes a comment. Only the comment owner or an admin may do it.
func (s *CommentService) Delete(ctx context.Context, commentID int64, actor model.Actor) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != actor.UserID && !actor.IsAdmin() {
		return model.ErrNotCommentOwner
	}

	return s.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		post, err := s.postRepo.GetForUpdate(ctx, tx, comment.PostID)
		if err != nil {
			return err
		}
		if post.IsDeleted {
			return model.ErrPostNotFound
		}
		if err := s.commentRepo.Delete(ctx, tx, commentID); err != nil {
			return err
		}
		return s.postRepo.ApplyEngagementDelta(ctx, tx, comment.PostID, 0, 0, -1)
	})
}

// List returns the comments of a visible post, newest first.
func (s *CommentService) List(ctx context.Context, postID int64, cursor *string, limit int) (*model.CommentListResponse, error) {
	if limit <= 0 {
		limit = defaultCommentPageSize
	}
	if limit > maxCommentPageSize {
		limit = maxCommentPageSize
	}

	if _, err := s.postRepo.GetByID(ctx, postID, false); err != nil {
		return nil, err
	}

	comments, next, err := s.commentRepo.ListByPost(ctx, postID, cursor, limit)
	if err != nil {
		return nil, err
	}
	return &model.CommentListResponse{
		Comments:   comments,
		NextCursor: next,
		HasMore:    next != nil,
	}, nil
}
