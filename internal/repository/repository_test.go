package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"geojungle/internal/database"
	"geojungle/internal/model"
)

// =============================================================================
// POSTGRES HARNESS
// =============================================================================

// pgEnv is a migrated, emptied database plus the repositories under test.
type pgEnv struct {
	db          *sqlx.DB
	tx          *database.TxRunner
	users       UserRepository
	posts       PostRepository
	comments    CommentRepository
	communities CommunityRepository
	badges      BadgeRepository
	quizzes     QuizRepository
	sessions    GameSessionRepository
	tokens      RefreshTokenRepository
	maintenance MaintenanceRepository
}

// newPgEnv connects to TEST_DATABASE_URL, applies the schema and truncates
// every table. The tests share one database, so they do not run in parallel.
func newPgEnv(t *testing.T) *pgEnv {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping Postgres integration test")
	}
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		t.Skipf("Postgres not reachable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	_, err = db.ExecContext(ctx, `
		TRUNCATE refresh_tokens, quiz_attempts, quizzes, game_sessions, games,
		         user_achievements, achievements, user_badges, badges,
		         post_comments, post_reactions, posts, mini_admins, users, communities
		RESTART IDENTITY CASCADE
	`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}

	return &pgEnv{
		db:          db,
		tx:          database.NewTxRunner(db),
		users:       NewUserRepository(db),
		posts:       NewPostRepository(db),
		comments:    NewCommentRepository(db),
		communities: NewCommunityRepository(db),
		badges:      NewBadgeRepository(db),
		quizzes:     NewQuizRepository(db),
		sessions:    NewGameSessionRepository(db),
		tokens:      NewRefreshTokenRepository(db),
		maintenance: NewMaintenanceRepository(db),
	}
}

func (e *pgEnv) inTx(t *testing.T, fn func(tx *sqlx.Tx) error) {
	t.Helper()
	if err := e.tx.InTx(context.Background(), fn); err != nil {
		t.Fatalf("transaction: %v", err)
	}
}

func (e *pgEnv) addUser(t *testing.T, name string) int64 {
	t.Helper()
	country := "Peru"
	u := &model.User{Username: name, Email: name + "@example.com", PasswordHashed: "x", Country: &country}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u.ID
}

func (e *pgEnv) addPost(t *testing.T, authorID int64, title string) int64 {
	t.Helper()
	p := &model.Post{
		Kind:     model.PostKindCulture,
		Category: "Festival",
		Title:    title,
		Body:     "Inti Raymi in Cusco",
		Country:  "Peru",
		AuthorID: authorID,
	}
	e.inTx(t, func(tx *sqlx.Tx) error { return e.posts.Create(context.Background(), tx, p) })
	return p.ID
}

func (e *pgEnv) like(t *testing.T, postID, userID int64) {
	t.Helper()
	ctx := context.Background()
	e.inTx(t, func(tx *sqlx.Tx) error {
		if err := e.posts.SetReaction(ctx, tx, postID, userID, model.ReactionLike); err != nil {
			return err
		}
		return e.posts.ApplyEngagementDelta(ctx, tx, postID, 1, 0, 0)
	})
}

func (e *pgEnv) post(t *testing.T, id int64) *model.Post {
	t.Helper()
	p, err := e.posts.GetByID(context.Background(), id, true)
	if err != nil {
		t.Fatalf("get post %d: %v", id, err)
	}
	return p
}

func (e *pgEnv) user(t *testing.T, id int64) *model.User {
	t.Helper()
	u, err := e.users.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get user %d: %v", id, err)
	}
	return u
}

// =============================================================================
// USER COUNTERS
// =============================================================================

func TestUserRepository_AdjustPostCountClampsAtZero(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	id := env.addUser(t, "ana")

	steps := []struct {
		delta    int
		wantPrev int
		wantNow  int
	}{
		{delta: 1, wantPrev: 0, wantNow: 1},
		{delta: -1, wantPrev: 1, wantNow: 0},
		{delta: -1, wantPrev: 0, wantNow: 0},
	}
	for i, step := range steps {
		var prev int
		env.inTx(t, func(tx *sqlx.Tx) error {
			var err error
			prev, err = env.users.AdjustPostCount(ctx, tx, id, step.delta)
			return err
		})
		if prev != step.wantPrev {
			t.Errorf("step %d: expected prev %d, got %d", i, step.wantPrev, prev)
		}
		if got := env.user(t, id).PostCount; got != step.wantNow {
			t.Errorf("step %d: expected post_count %d, got %d", i, step.wantNow, got)
		}
	}

	err := env.tx.InTx(ctx, func(tx *sqlx.Tx) error {
		_, err := env.users.AdjustPostCount(ctx, tx, 9999, 1)
		return err
	})
	if !errors.Is(err, model.ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound for a missing user, got %v", err)
	}
}

func TestUserRepository_ApplyScoreReversalKeepsLevel(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	id := env.addUser(t, "ana")

	var gain, loss *model.ScoreChange
	env.inTx(t, func(tx *sqlx.Tx) error {
		var err error
		gain, err = env.users.ApplyScore(ctx, tx, id, 1500, 1)
		return err
	})
	env.inTx(t, func(tx *sqlx.Tx) error {
		var err error
		loss, err = env.users.ApplyScore(ctx, tx, id, -1500, -1)
		return err
	})

	if gain.Before != 0 || gain.After != 1500 || gain.Level != 2 {
		t.Errorf("unexpected gain %+v", gain)
	}
	if loss.Before != 1500 || loss.After != 0 || loss.Level != 2 {
		t.Errorf("unexpected reversal %+v", loss)
	}
	u := env.user(t, id)
	if u.Score != 0 || u.Level != 2 || u.GamesPlayed != 0 {
		t.Errorf("expected score 0, level 2, games 0; got %d, %d, %d", u.Score, u.Level, u.GamesPlayed)
	}
}

func TestUserRepository_ListMembers(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	zoe := env.addUser(t, "zoe")
	ana := env.addUser(t, "ana")
	env.addUser(t, "outsider")
	c := &model.Community{Name: "Andes", IsActive: true}
	env.inTx(t, func(tx *sqlx.Tx) error {
		if err := env.communities.Create(ctx, tx, c); err != nil {
			return err
		}
		for _, id := range []int64{zoe, ana} {
			if err := env.users.SetMembership(ctx, tx, id, &c.ID, false); err != nil {
				return err
			}
		}
		return nil
	})

	members, err := env.users.ListMembers(ctx, c.ID)

	if err != nil {
		t.Fatalf("list members: %v", err)
	}
	if len(members) != 2 || members[0].Username != "ana" || members[1].Username != "zoe" {
		t.Errorf("expected [ana zoe], got %+v", members)
	}
}

// =============================================================================
// ENGAGEMENT
// =============================================================================

func TestPostRepository_RemoveUserReactionsDecrementsCounters(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	author := env.addUser(t, "author")
	ana := env.addUser(t, "ana")
	zoe := env.addUser(t, "zoe")
	p1 := env.addPost(t, author, "one")
	p2 := env.addPost(t, author, "two")
	env.like(t, p1, ana)
	env.like(t, p1, zoe)
	env.inTx(t, func(tx *sqlx.Tx) error {
		if err := env.posts.SetReaction(ctx, tx, p2, ana, model.ReactionDislike); err != nil {
			return err
		}
		return env.posts.ApplyEngagementDelta(ctx, tx, p2, 0, 1, 0)
	})

	var removed int64
	env.inTx(t, func(tx *sqlx.Tx) error {
		var err error
		removed, err = env.posts.RemoveUserReactions(ctx, tx, ana)
		return err
	})

	if removed != 2 {
		t.Errorf("expected 2 reactions removed, got %d", removed)
	}
	if got := env.post(t, p1); got.Likes != 1 || got.Dislikes != 0 {
		t.Errorf("post 1: expected 1/0, got %d/%d", got.Likes, got.Dislikes)
	}
	if got := env.post(t, p2); got.Likes != 0 || got.Dislikes != 0 {
		t.Errorf("post 2: expected 0/0, got %d/%d", got.Likes, got.Dislikes)
	}
}

func TestCommentRepository_RemoveByUserDecrementsCounters(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	author := env.addUser(t, "author")
	ana := env.addUser(t, "ana")
	p := env.addPost(t, author, "one")
	env.inTx(t, func(tx *sqlx.Tx) error {
		for _, uid := range []int64{ana, ana, author} {
			if err := env.comments.Create(ctx, tx, &model.Comment{PostID: p, UserID: uid, Content: "nice"}); err != nil {
				return err
			}
		}
		return env.posts.ApplyEngagementDelta(ctx, tx, p, 0, 0, 3)
	})

	var removed int64
	env.inTx(t, func(tx *sqlx.Tx) error {
		var err error
		removed, err = env.comments.RemoveByUser(ctx, tx, ana)
		return err
	})

	if removed != 2 {
		t.Errorf("expected 2 comments removed, got %d", removed)
	}
	if got := env.post(t, p).Comments; got != 1 {
		t.Errorf("expected 1 comment left on the counter, got %d", got)
	}
}

func TestPostRepository_ListSearchMatchesWildcardsLiterally(t *testing.T) {
	env := newPgEnv(t)
	author := env.addUser(t, "author")
	env.addPost(t, author, "100% Andean")
	env.addPost(t, author, "1000 lakes")
	env.addPost(t, author, "snake_case rivers")
	env.addPost(t, author, "snakeXcase rivers")

	tests := []struct {
		query string
		want  string
	}{
		{query: "100%", want: "100% Andean"},
		{query: "snake_case", want: "snake_case rivers"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			posts, _, err := env.posts.List(context.Background(), model.PostFilter{Query: tt.query, Limit: 10})
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(posts) != 1 || posts[0].Title != tt.want {
				titles := make([]string, 0, len(posts))
				for _, p := range posts {
					titles = append(titles, p.Title)
				}
				t.Errorf("expected only %q, got %v", tt.want, titles)
			}
		})
	}
}

// =============================================================================
// RECONCILIATION
// =============================================================================

func TestMaintenanceRepository_ReconcileEngagementKeepsConcurrentLike(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	author := env.addUser(t, "author")
	ana := env.addUser(t, "ana")
	zoe := env.addUser(t, "zoe")
	p := env.addPost(t, author, "drifted")
	env.like(t, p, ana)
	// Drift the counter so the rewrite has to touch the row.
	if _, err := env.db.ExecContext(ctx, `UPDATE posts SET likes = 5 WHERE id = $1`, p); err != nil {
		t.Fatalf("drift: %v", err)
	}

	attempts := 0
	err := env.tx.InSnapshotTx(ctx, func(tx *sqlx.Tx) error {
		attempts++
		var one int
		if err := tx.GetContext(ctx, &one, `SELECT 1`); err != nil {
			return err
		}
		if attempts == 1 {
			// A like commits after the snapshot was taken.
			env.like(t, p, zoe)
		}
		_, err := env.maintenance.ReconcileEngagement(ctx, tx)
		return err
	})

	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected one serialization retry, got %d attempts", attempts)
	}
	if got := env.post(t, p).Likes; got != 2 {
		t.Errorf("expected likes 2 after reconcile, got %d", got)
	}
}

// =============================================================================
// CATALOG HOLDERS
// =============================================================================

func TestBadgeRepository_RemoveHoldersThenDelete(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	b := &model.Badge{Name: "Explorer", Description: "d", Icon: "i", Color: "gold", Level: "gold", IsActive: true}
	if err := env.badges.Create(ctx, b); err != nil {
		t.Fatalf("create badge: %v", err)
	}
	env.inTx(t, func(tx *sqlx.Tx) error {
		for i := 0; i < 5; i++ {
			uid := env.addUser(t, fmt.Sprintf("holder%d", i))
			if err := env.badges.AddHolder(ctx, tx, b.ID, uid); err != nil {
				return err
			}
		}
		return nil
	})

	deleted, err := env.badges.DeleteIfNoHolders(ctx, b.ID)
	if err != nil || deleted {
		t.Fatalf("expected the delete to be refused while held, got %v %v", deleted, err)
	}

	var batches []int64
	for {
		n, err := env.badges.RemoveHolders(ctx, b.ID, 2)
		if err != nil {
			t.Fatalf("remove holders: %v", err)
		}
		if n == 0 {
			break
		}
		batches = append(batches, n)
	}
	if fmt.Sprint(batches) != "[2 2 1]" {
		t.Errorf("expected batches [2 2 1], got %v", batches)
	}

	deleted, err = env.badges.DeleteIfNoHolders(ctx, b.ID)
	if err != nil || !deleted {
		t.Fatalf("expected the delete to succeed, got %v %v", deleted, err)
	}
	_, err = env.badges.DeleteIfNoHolders(ctx, b.ID)
	if !errors.Is(err, model.ErrBadgeNotFound) {
		t.Errorf("expected ErrBadgeNotFound on a second delete, got %v", err)
	}
}

func TestBadgeRepository_ListForUser(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	ana := env.addUser(t, "ana")
	env.addUser(t, "zoe")
	var ids []int64
	for _, name := range []string{"First", "Second"} {
		b := &model.Badge{Name: name, Description: "d", Icon: "i", Color: "c", Level: "bronze", IsActive: true}
		if err := env.badges.Create(ctx, b); err != nil {
			t.Fatalf("create badge: %v", err)
		}
		ids = append(ids, b.ID)
	}
	for _, id := range ids {
		env.inTx(t, func(tx *sqlx.Tx) error { return env.badges.AddHolder(ctx, tx, id, ana) })
	}

	t.Run("holder", func(t *testing.T) {
		badges, err := env.badges.ListForUser(ctx, ana)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(badges) != 2 || badges[0].Name != "First" || badges[1].Name != "Second" {
			t.Errorf("expected [First Second], got %+v", badges)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := env.badges.ListForUser(ctx, 9999)
		if !errors.Is(err, model.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}

// =============================================================================
// QUIZZES, SESSIONS, TOKENS
// =============================================================================

func TestQuizRepository_DeleteReversesCompletions(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	ana := env.addUser(t, "ana")
	zoe := env.addUser(t, "zoe")
	keep := &model.Quiz{Title: "Capitals", Difficulty: "easy", Questions: model.QuizQuestions{}}
	gone := &model.Quiz{Title: "Rivers", Difficulty: "hard", Questions: model.QuizQuestions{}}
	for _, q := range []*model.Quiz{keep, gone} {
		if err := env.quizzes.Create(ctx, q); err != nil {
			t.Fatalf("create quiz: %v", err)
		}
	}
	attempt := func(userID, quizID int64) {
		env.inTx(t, func(tx *sqlx.Tx) error {
			if err := env.quizzes.CreateAttempt(ctx, tx, &model.QuizAttempt{UserID: userID, QuizID: quizID, Score: 1, Total: 1}); err != nil {
				return err
			}
			return env.users.AdjustQuizzesCompleted(ctx, tx, userID, 1)
		})
	}
	attempt(ana, gone.ID)
	attempt(ana, gone.ID)
	attempt(ana, keep.ID)
	attempt(zoe, gone.ID)

	var reversed int64
	env.inTx(t, func(tx *sqlx.Tx) error {
		var err error
		reversed, err = env.quizzes.Delete(ctx, tx, gone.ID)
		return err
	})

	if reversed != 2 {
		t.Errorf("expected 2 users reversed, got %d", reversed)
	}
	if got := env.user(t, ana).QuizzesCompleted; got != 1 {
		t.Errorf("ana: expected 1 completion left, got %d", got)
	}
	if got := env.user(t, zoe).QuizzesCompleted; got != 0 {
		t.Errorf("zoe: expected 0 completions left, got %d", got)
	}
	if _, err := env.quizzes.GetByID(ctx, gone.ID); !errors.Is(err, model.ErrQuizNotFound) {
		t.Errorf("expected the quiz to be gone, got %v", err)
	}
}

func TestGameSessionRepository_ListFilters(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	ana := env.addUser(t, "ana")
	zoe := env.addUser(t, "zoe")
	peru, chile := "Peru", "Chile"
	seed := []model.GameSession{
		{PlayerID: ana, PlayerUsername: "ana", GameType: "quiz", GameName: "Capitals", Difficulty: "easy", Country: &peru, Score: 10},
		{PlayerID: ana, PlayerUsername: "ana", GameType: "challenge", GameName: "Flags", Difficulty: "hard", Country: &chile, Score: 20},
		{PlayerID: zoe, PlayerUsername: "zoe", GameType: "quiz", GameName: "Capitals", Difficulty: "hard", Country: &peru, Score: 30},
	}
	env.inTx(t, func(tx *sqlx.Tx) error {
		for i := range seed {
			if err := env.sessions.Create(ctx, tx, &seed[i]); err != nil {
				return err
			}
		}
		return nil
	})

	tests := []struct {
		name   string
		filter model.SessionFilter
		want   int
	}{
		{name: "all", filter: model.SessionFilter{}, want: 3},
		{name: "player", filter: model.SessionFilter{PlayerID: &ana}, want: 2},
		{name: "type", filter: model.SessionFilter{GameType: "quiz"}, want: 2},
		{name: "difficulty", filter: model.SessionFilter{Difficulty: "hard"}, want: 2},
		{name: "country ignores case", filter: model.SessionFilter{Country: "peru"}, want: 2},
		{name: "combined", filter: model.SessionFilter{PlayerID: &ana, GameType: "quiz", Country: "Peru"}, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.filter.Limit = 10
			sessions, next, err := env.sessions.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(sessions) != tt.want {
				t.Errorf("expected %d sessions, got %d", tt.want, len(sessions))
			}
			if next != nil {
				t.Errorf("expected no next cursor, got %q", *next)
			}
		})
	}
}

func TestRefreshTokenRepository_RotateOnce(t *testing.T) {
	env := newPgEnv(t)
	ctx := context.Background()
	uid := env.addUser(t, "ana")
	newToken := func() *model.RefreshToken {
		return &model.RefreshToken{
			ID:        uuid.NewString(),
			UserID:    uid,
			Audience:  model.AudiencePublic,
			TokenHash: uuid.NewString(),
			ExpiresAt: time.Now().Add(time.Hour),
		}
	}
	first := newToken()
	if err := env.tokens.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.tokens.Rotate(ctx, first.ID, newToken()); err != nil {
		t.Fatalf("first rotate: %v", err)
	}
	err := env.tokens.Rotate(ctx, first.ID, newToken())

	if !errors.Is(err, model.ErrRefreshTokenReused) {
		t.Fatalf("expected ErrRefreshTokenReused, got %v", err)
	}
	old, err := env.tokens.FindByTokenHash(ctx, first.TokenHash)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !old.Revoked() || old.ReplacedBy == nil {
		t.Errorf("expected the first token revoked and linked, got %+v", old)
	}
}
