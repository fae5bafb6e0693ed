package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"geojungle/internal/model"
)

// Transactor runs fn inside one database transaction. Methods below that take
// a tx must be called from within fn.
type Transactor interface {
	InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

// SnapshotTransactor runs fn in a REPEATABLE READ transaction and reruns it
// when Postgres reports a serialization failure. Whole-table rewrites use it
// so they never overwrite a counter change committed after their snapshot.
type SnapshotTransactor interface {
	InSnapshotTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error
}

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// GetForUpdate locks the user row for the rest of the transaction.
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.User, error)
	List(ctx context.Context, query string, cursor *string, limit int) ([]model.User, *string, error)
	GetStats(ctx context.Context, id int64) (*model.UserStats, error)
	GetSummaries(ctx context.Context, ids []int64) (map[int64]model.UserSummary, error)

	// AdjustPostCount adds delta to post_count, clamped at 0. It returns the
	// value before the update so callers can detect a clamp.
	AdjustPostCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) (prev int, err error)
	// ApplyScore adds delta to score and gamesDelta to games_played and
	// raises level to match the new score. Level never decreases.
	ApplyScore(ctx context.Context, tx *sqlx.Tx, userID int64, delta int64, gamesDelta int) (*model.ScoreChange, error)
	AdjustQuizzesCompleted(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error

	// SetMembership sets community_id and is_mini_admin together.
	SetMembership(ctx context.Context, tx *sqlx.Tx, userID int64, communityID *int64, isMiniAdmin bool) error
	// LockMembers snapshots the member ids of a community and locks those rows.
	LockMembers(ctx context.Context, tx *sqlx.Tx, communityID int64) ([]int64, error)
	// DetachMembers clears community_id and is_mini_admin for the given members
	// that still point at communityID and returns how many were detached.
	DetachMembers(ctx context.Context, tx *sqlx.Tx, communityID int64, userIDs []int64) (int64, error)
	CountMembers(ctx context.Context, tx *sqlx.Tx, communityID int64) (int, error)
	// ListMembers returns the current members of a community by username.
	ListMembers(ctx context.Context, communityID int64) ([]model.User, error)

	Scores(ctx context.Context, limit int) ([]model.LeaderboardEntry, error)
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	// Rotate revokes oldID and stores next atomically. ErrRefreshTokenReused
	// if oldID was already revoked.
	Rotate(ctx context.Context, oldID string, next *model.RefreshToken) error
	Revoke(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}

type PostRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, post *model.Post) error
	// GetByID returns soft-deleted posts only when includeDeleted is set.
	GetByID(ctx context.Context, id int64, includeDeleted bool) (*model.Post, error)
	// GetForUpdate locks the post row, deleted or not.
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Post, error)
	List(ctx context.Context, filter model.PostFilter) ([]model.Post, *string, error)
	Update(ctx context.Context, tx *sqlx.Tx, post *model.Post) error
	MarkDeleted(ctx context.Context, tx *sqlx.Tx, id, deletedBy int64, reason *string) error
	Restore(ctx context.Context, tx *sqlx.Tx, id int64) error

	GetReaction(ctx context.Context, tx *sqlx.Tx, postID, userID int64) (model.Reaction, error)
	// SetReaction stores the user's reaction; ReactionNone removes the row.
	SetReaction(ctx context.Context, tx *sqlx.Tx, postID, userID int64, reaction model.Reaction) error
	// ApplyEngagementDelta updates the counters in one statement.
	ApplyEngagementDelta(ctx context.Context, tx *sqlx.Tx, postID int64, likes, dislikes, comments int) error
	GetReactors(ctx context.Context, postID int64) (likedBy, dislikedBy []model.UserSummary, err error)
	GetViewerReactions(ctx context.Context, userID int64, postIDs []int64) (map[int64]model.Reaction, error)

	// RemoveUserReactions deletes every reaction by userID and decrements the
	// affected posts' counters. It returns the number of reactions removed.
	RemoveUserReactions(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error)
	ListImageKeysByAuthor(ctx context.Context, tx *sqlx.Tx, authorID int64) ([]string, error)
	DeleteByAuthor(ctx context.Context, tx *sqlx.Tx, authorID int64) (int64, error)
}

type CommentRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, comment *model.Comment) error
	GetByID(ctx context.Context, id int64) (*model.Comment, error)
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
	ListByPost(ctx context.Context, postID int64, cursor *string, limit int) ([]model.Comment, *string, error)
	// RemoveByUser deletes every comment by userID and decrements the
	// affected posts' comment counters.
	RemoveByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error)
}

// HolderCascade is the three-phase delete shared by badges and achievements.
type HolderCascade interface {
	// Deactivate hides the entry and blocks new awards.
	Deactivate(ctx context.Context, id int64) error
	// RemoveHolders deletes up to batch holder rows and returns how many went.
	RemoveHolders(ctx context.Context, id int64, batch int) (int64, error)
	// DeleteIfNoHolders removes the catalog row only when nobody holds it.
	DeleteIfNoHolders(ctx context.Context, id int64) (bool, error)
}

type BadgeRepository interface {
	HolderCascade
	Create(ctx context.Context, badge *model.Badge) error
	GetByID(ctx context.Context, id int64) (*model.Badge, error)
	List(ctx context.Context, filter model.CatalogFilter) ([]model.Badge, error)
	Update(ctx context.Context, badge *model.Badge) error
	// LockActive takes a share lock on an active badge so a concurrent
	// Deactivate waits for the award to finish.
	LockActive(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Badge, error)
	AddHolder(ctx context.Context, tx *sqlx.Tx, badgeID, userID int64) error
	RemoveHolder(ctx context.Context, tx *sqlx.Tx, badgeID, userID int64) error
	ListHolders(ctx context.Context, badgeID int64) ([]model.Holder, error)
	IDsForUser(ctx context.Context, userID int64) ([]int64, error)
	// ListForUser returns the badges userID holds in award order, or
	// ErrUserNotFound when there is no such user.
	ListForUser(ctx context.Context, userID int64) ([]model.Badge, error)
}

type AchievementRepository interface {
	HolderCascade
	Create(ctx context.Context, achievement *model.Achievement) error
	GetByID(ctx context.Context, id int64) (*model.Achievement, error)
	List(ctx context.Context, filter model.CatalogFilter) ([]model.Achievement, error)
	Update(ctx context.Context, achievement *model.Achievement) error
	LockActive(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Achievement, error)
	AddHolder(ctx context.Context, tx *sqlx.Tx, achievementID, userID int64) error
	RemoveHolder(ctx context.Context, tx *sqlx.Tx, achievementID, userID int64) error
	ListHolders(ctx context.Context, achievementID int64) ([]model.Holder, error)
	IDsForUser(ctx context.Context, userID int64) ([]int64, error)
	ListForUser(ctx context.Context, userID int64) ([]model.Achievement, error)
}

type CommunityRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, community *model.Community) error
	GetByID(ctx context.Context, id int64) (*model.Community, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Community, error)
	List(ctx context.Context, activeOnly bool) ([]model.Community, error)
	Update(ctx context.Context, tx *sqlx.Tx, community *model.Community) error
	// AdjustMemberCount adds delta to member_count, clamped at 0.
	AdjustMemberCount(ctx context.Context, tx *sqlx.Tx, id int64, delta int) error
	// Orphan deactivates the community, clears its admin and zeroes the count.
	Orphan(ctx context.Context, tx *sqlx.Tx, id int64) error
	AdministeredBy(ctx context.Context, tx *sqlx.Tx, userID int64) ([]int64, error)
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) error
	// Stats aggregates over the live member set.
	Stats(ctx context.Context, id int64) (*model.CommunityStats, error)
}

type MiniAdminRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, m *model.MiniAdmin) error
	GetByUserID(ctx context.Context, userID int64) (*model.MiniAdmin, error)
	List(ctx context.Context, communityID *int64) ([]model.MiniAdmin, error)
	Update(ctx context.Context, m *model.MiniAdmin) error
	Touch(ctx context.Context, userID int64) error
	Delete(ctx context.Context, tx *sqlx.Tx, userID int64) error
	DeleteByCommunity(ctx context.Context, tx *sqlx.Tx, communityID int64) (int64, error)
}

type GameRepository interface {
	Create(ctx context.Context, game *model.Game) error
	GetByID(ctx context.Context, id int64) (*model.Game, error)
	List(ctx context.Context, activeOnly bool) ([]model.Game, error)
	Update(ctx context.Context, game *model.Game) error
	Delete(ctx context.Context, id int64) error
	// RecordPlay folds one play into the catalog statistics atomically.
	RecordPlay(ctx context.Context, tx *sqlx.Tx, gameID, score int64) error
}

type GameSessionRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, session *model.GameSession) error
	GetByID(ctx context.Context, id int64) (*model.GameSession, error)
	// Delete removes the session and returns it; a concurrent second delete
	// sees ErrGameSessionNotFound.
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) (*model.GameSession, error)
	List(ctx context.Context, f model.SessionFilter) ([]model.GameSession, *string, error)
	DeleteByPlayer(ctx context.Context, tx *sqlx.Tx, playerID int64) (int64, error)
}

type QuizRepository interface {
	Create(ctx context.Context, quiz *model.Quiz) error
	GetByID(ctx context.Context, id int64) (*model.Quiz, error)
	List(ctx context.Context) ([]model.Quiz, error)
	Update(ctx context.Context, quiz *model.Quiz) error
	// Delete locks the quiz, reverses quizzes_completed for every attempt on
	// it, then removes the attempts and the quiz. It returns how many users
	// had their count reversed.
	Delete(ctx context.Context, tx *sqlx.Tx, id int64) (int64, error)

	CreateAttempt(ctx context.Context, tx *sqlx.Tx, attempt *model.QuizAttempt) error
	DeleteAttempt(ctx context.Context, tx *sqlx.Tx, id int64) (*model.QuizAttempt, error)
	DeleteAttemptsByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error)
}

// MaintenanceRepository holds whole-table aggregates: the admin overview and
// the counter reconciliation that rewrites drifted denormalized fields.
type MaintenanceRepository interface {
	Overview(ctx context.Context) (*model.Overview, error)
	ReconcilePostCounts(ctx context.Context, tx *sqlx.Tx) (int64, error)
	ReconcileMemberCounts(ctx context.Context, tx *sqlx.Tx) (int64, error)
	ReconcileEngagement(ctx context.Context, tx *sqlx.Tx) (int64, error)
	ReconcileMiniAdminFlags(ctx context.Context, tx *sqlx.Tx) (int64, error)
	ReconcileQuizzesCompleted(ctx context.Context, tx *sqlx.Tx) (int64, error)
}
