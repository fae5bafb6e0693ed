package model

import (
	"time"
)

// Comment represents a comment on a post.
type Comment struct {
	ID        int64        `db:"id" json:"id"`
	PostID    int64        `db:"post_id" json:"postId"`
	UserID    int64        `db:"user_id" json:"userId"`
	Content   string       `db:"content" json:"content"`
	CreatedAt time.Time    `db:"created_at" json:"createdAt"`
	Author    *UserSummary `json:"author,omitempty"` // Joined field
}

// CreateCommentRequest is the request body for creating a comment.
type CreateCommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// CommentListResponse is the paginated comment list response.
type CommentListResponse struct {
	Comments   []Comment `json:"comments"`
	NextCursor *string   `json:"next_cursor,omitempty"`
	HasMore    bool      `json:"has_more"`
}

// Comment errors
var (
	ErrCommentNotFound = NewError(KindNotFound, "comment not found")
	ErrNotCommentOwner = NewError(KindForbidden, "not the owner of this comment")
)
