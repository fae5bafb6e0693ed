package model

import (
	"time"
)

// PostKind discriminates the four content variants that share engagement
// semantics.
type PostKind string

const (
	PostKindCommunity PostKind = "community"
	PostKindJourney   PostKind = "journey"
	PostKindCulture   PostKind = "culture"
	PostKindGeoFact   PostKind = "geo_fact"
)

var postCategories = map[PostKind][]string{
	PostKindCommunity: {"fact", "journey", "tip", "experience"},
	PostKindJourney:   {"Adventure", "Cultural", "Nature", "Urban", "Historical", "Food"},
	PostKindCulture:   {"Festival", "Food", "Music", "Tradition", "Clothing", "Art"},
	PostKindGeoFact:   {"Geography", "History", "Culture", "Science", "Nature", "Technology"},
}

// Valid reports whether k is a known kind.
func (k PostKind) Valid() bool {
	_, ok := postCategories[k]
	return ok
}

// Categories returns the category enum scoped to the kind.
func (k PostKind) Categories() []string {
	return postCategories[k]
}

// ValidCategory reports whether category belongs to the kind's enum.
func (k PostKind) ValidCategory(category string) bool {
	for _, c := range postCategories[k] {
		if c == category {
			return true
		}
	}
	return false
}

// EngagementMetrics are the denormalized counters on a post.
type EngagementMetrics struct {
	Likes    int `db:"likes" json:"likes"`
	Dislikes int `db:"dislikes" json:"dislikes"`
	Comments int `db:"comments" json:"comments"`
}

// Post is a single tagged-variant content item.
type Post struct {
	ID               int64      `db:"id" json:"id"`
	Kind             PostKind   `db:"kind" json:"kind"`
	Category         string     `db:"category" json:"category"`
	Title            string     `db:"title" json:"title"`
	Body             string     `db:"body" json:"body"`
	Country          string     `db:"country" json:"country"`
	AuthorID         int64      `db:"author_id" json:"authorId"`
	AuthorUsername   string     `db:"author_username" json:"authorUsername"`
	ImageURL         *string    `db:"image_url" json:"imageUrl,omitempty"`
	ImageKey         *string    `db:"image_key" json:"-"`
	ImageContentType *string    `db:"image_content_type" json:"-"`
	IsDeleted        bool       `db:"is_deleted" json:"isDeleted"`
	DeletionReason   *string    `db:"deletion_reason" json:"deletionReason,omitempty"`
	DeletedBy        *int64     `db:"deleted_by" json:"deletedBy,omitempty"`
	DeletedAt        *time.Time `db:"deleted_at" json:"deletedAt,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updatedAt"`

	EngagementMetrics `json:"engagementMetrics"`

	// Viewer-specific, not stored on the row
	ViewerReaction Reaction `json:"viewerReaction,omitempty"`
}

// PostFilter narrows post listings. Zero values mean "any".
type PostFilter struct {
	Kind           PostKind
	Category       string
	Country        string
	AuthorID       int64
	Query          string
	IncludeDeleted bool
	Cursor         *string
	Limit          int
}

// PostListResponse is the paginated post list response.
type PostListResponse struct {
	Posts      []Post  `json:"posts"`
	NextCursor *string `json:"next_cursor,omitempty"`
	HasMore    bool    `json:"has_more"`
}

// ReactionsResponse exposes the likedBy/dislikedBy sets of a post.
type ReactionsResponse struct {
	PostID     int64         `json:"postId"`
	LikedBy    []UserSummary `json:"likedBy"`
	DislikedBy []UserSummary `json:"dislikedBy"`
}

// CreatePostRequest is the request body for creating a post.
type CreatePostRequest struct {
	Kind     PostKind `json:"kind" validate:"required"`
	Category string   `json:"category" validate:"required"`
	Title    string   `json:"title" validate:"required,max=200"`
	Body     string   `json:"body" validate:"required,max=20000"`
	Country  string   `json:"country" validate:"required,max=80"`
}

// UpdatePostRequest carries owner edits; nil fields are left unchanged.
type UpdatePostRequest struct {
	Title    *string `json:"title" validate:"omitempty,min=1,max=200"`
	Body     *string `json:"body" validate:"omitempty,min=1,max=20000"`
	Category *string `json:"category"`
	Country  *string `json:"country" validate:"omitempty,min=1,max=80"`
}

// ModeratePostRequest is the body of a moderator delete.
type ModeratePostRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// Post list constants
const (
	DefaultPostPageSize = 20
	MaxPostPageSize     = 100
	PostImageFolder     = "posts"
)

// Post errors
var (
	ErrPostNotFound     = NewError(KindNotFound, "post not found")
	ErrNotPostOwner     = NewError(KindForbidden, "not the owner of this post")
	ErrPostNotDeleted   = NewError(KindConflict, "post is not deleted")
	ErrInvalidPostKind  = NewError(KindValidation, "invalid post kind")
	ErrInvalidCategory  = NewError(KindValidation, "category does not belong to the post kind")
	ErrReasonRequired   = NewError(KindValidation, "a deletion reason is required")
	ErrPostHasNoImage   = NewError(KindNotFound, "post has no image")
	ErrModerationDenied = NewError(KindForbidden, "missing manage_posts permission")
)
