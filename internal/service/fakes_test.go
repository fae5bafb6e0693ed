package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"geojungle/internal/model"
	"geojungle/internal/queue"
	"geojungle/internal/repository"
)

// =============================================================================
// IN-MEMORY STORE
// =============================================================================
//
// memDB backs every repository interface the services use. Transactions are
// serialized, which stands in for the row locks Postgres would take, and a
// failed transaction restores the snapshot taken when it began. failOn lets a
// test make any repository method return an error.

type reactionKey struct{ postID, userID int64 }

type holderKey struct{ entryID, userID int64 }

type memState struct {
	users              map[int64]model.User
	posts              map[int64]model.Post
	reactions          map[reactionKey]model.Reaction
	comments           map[int64]model.Comment
	communities        map[int64]model.Community
	miniAdmins         map[int64]model.MiniAdmin
	games              map[int64]model.Game
	sessions           map[int64]model.GameSession
	quizzes            map[int64]model.Quiz
	attempts           map[int64]model.QuizAttempt
	badges             map[int64]model.Badge
	badgeHolders       map[holderKey]time.Time
	achievements       map[int64]model.Achievement
	achievementHolders map[holderKey]time.Time
	nextID             int64
}

func newMemState() *memState {
	return &memState{
		users:              map[int64]model.User{},
		posts:              map[int64]model.Post{},
		reactions:          map[reactionKey]model.Reaction{},
		comments:           map[int64]model.Comment{},
		communities:        map[int64]model.Community{},
		miniAdmins:         map[int64]model.MiniAdmin{},
		games:              map[int64]model.Game{},
		sessions:           map[int64]model.GameSession{},
		quizzes:            map[int64]model.Quiz{},
		attempts:           map[int64]model.QuizAttempt{},
		badges:             map[int64]model.Badge{},
		badgeHolders:       map[holderKey]time.Time{},
		achievements:       map[int64]model.Achievement{},
		achievementHolders: map[holderKey]time.Time{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	return &memState{
		users:              cloneMap(s.users),
		posts:              cloneMap(s.posts),
		reactions:          cloneMap(s.reactions),
		comments:           cloneMap(s.comments),
		communities:        cloneMap(s.communities),
		miniAdmins:         cloneMap(s.miniAdmins),
		games:              cloneMap(s.games),
		sessions:           cloneMap(s.sessions),
		quizzes:            cloneMap(s.quizzes),
		attempts:           cloneMap(s.attempts),
		badges:             cloneMap(s.badges),
		badgeHolders:       cloneMap(s.badgeHolders),
		achievements:       cloneMap(s.achievements),
		achievementHolders: cloneMap(s.achievementHolders),
		nextID:             s.nextID,
	}
}

type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex
	s    *memState

	failOn map[string]error
	txRuns int
	// row locks in the order they were taken, e.g. "community:3"
	locks []string
}

func newMemDB() *memDB {
	return &memDB{s: newMemState(), failOn: map[string]error{}}
}

// InTx implements repository.Transactor.
func (d *memDB) InTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	d.txMu.Lock()
	defer d.txMu.Unlock()

	d.mu.Lock()
	snapshot := d.s.clone()
	d.txRuns++
	d.mu.Unlock()

	if err := fn(nil); err != nil {
		d.mu.Lock()
		d.s = snapshot
		d.mu.Unlock()
		return err
	}
	return nil
}

func (d *memDB) setFail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failOn[op] = err
}

// lock takes the data mutex and reports the injected error for op, if any.
// The caller must unlock.
func (d *memDB) lock(op string) error {
	d.mu.Lock()
	return d.failOn[op]
}

func (d *memDB) recordLock(kind string, id int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locks = append(d.locks, fmt.Sprintf("%s:%d", kind, id))
}

func (d *memDB) lockOrder() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.locks...)
}

func (d *memDB) newID() int64 {
	d.s.nextID++
	return d.s.nextID
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

func (d *memDB) addUser(username string) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.newID()
	d.s.users[id] = model.User{ID: id, Username: username, Email: username + "@example.com", Level: 1, JoinDate: time.Now()}
	return id
}

func (d *memDB) addAdmin(username string) int64 {
	id := d.addUser(username)
	d.mu.Lock()
	defer d.mu.Unlock()
	u := d.s.users[id]
	u.IsAdmin = true
	d.s.users[id] = u
	return id
}

func (d *memDB) addPost(authorID int64) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.newID()
	author := d.s.users[authorID]
	d.s.posts[id] = model.Post{
		ID: id, Kind: model.PostKindJourney, Category: "Nature", Title: "t", Body: "b",
		Country: "Peru", AuthorID: authorID, AuthorUsername: author.Username, CreatedAt: time.Now(),
	}
	author.PostCount++
	d.s.users[authorID] = author
	return id
}

func (d *memDB) addCommunity(name string, adminID int64) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.newID()
	admin := d.s.users[adminID]
	d.s.communities[id] = model.Community{ID: id, Name: name, AdminID: &admin.ID, AdminUsername: admin.Username, MemberCount: 1, IsActive: true}
	admin.CommunityID = &id
	admin.IsMiniAdmin = true
	d.s.users[adminID] = admin
	d.s.miniAdmins[adminID] = model.MiniAdmin{
		UserID: adminID, Username: admin.Username, CommunityID: id,
		Role: model.MiniAdminCommunityManager, Permissions: model.DefaultCommunityManagerPermissions, IsActive: true,
	}
	return id
}

func (d *memDB) addGame(active bool) int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.newID()
	d.s.games[id] = model.Game{ID: id, Name: "game", Type: "spelling", Difficulty: "easy", IsActive: active}
	return id
}

func (d *memDB) addBadge() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.newID()
	d.s.badges[id] = model.Badge{ID: id, Name: "badge", Level: model.BadgeLevelGold, IsActive: true}
	return id
}

func (d *memDB) addBadgeHolder(badgeID, userID int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.s.badgeHolders[holderKey{badgeID, userID}] = time.Now()
}

func (d *memDB) user(id int64) model.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.s.users[id]
}

func (d *memDB) post(id int64) model.Post {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.s.posts[id]
}

func (d *memDB) community(id int64) (model.Community, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.s.communities[id]
	return c, ok
}

// reactionSets returns |likedBy| and |dislikedBy| for a post.
func (d *memDB) reactionSets(postID int64) (likes, dislikes int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, r := range d.s.reactions {
		if k.postID != postID {
			continue
		}
		switch r {
		case model.ReactionLike:
			likes++
		case model.ReactionDislike:
			dislikes++
		}
	}
	return likes, dislikes
}

// memberCount counts users whose community_id points at id.
func (d *memDB) memberCount(id int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, u := range d.s.users {
		if u.CommunityID != nil && *u.CommunityID == id {
			n++
		}
	}
	return n
}

func (d *memDB) badgeHolderCount(badgeID int64) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for k := range d.s.badgeHolders {
		if k.entryID == badgeID {
			n++
		}
	}
	return n
}

func ptr[T any](v T) *T { return &v }

// =============================================================================
// USERS
// =============================================================================

type memUsers struct{ db *memDB }

var _ repository.UserRepository = memUsers{}

func (r memUsers) Create(ctx context.Context, user *model.User) error {
	d := r.db
	if err := d.lock("users.Create"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	for _, u := range d.s.users {
		if u.Email == user.Email {
			return model.ErrEmailExists
		}
		if u.Username == user.Username {
			return model.ErrUsernameExists
		}
	}
	user.ID = d.newID()
	user.JoinDate = time.Now()
	d.s.users[user.ID] = *user
	return nil
}

func (r memUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	d := r.db
	if err := d.lock("users.GetByID"); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	defer d.mu.Unlock()
	u, ok := d.s.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	return &u, nil
}

func (r memUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, u := range d.s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (r memUsers) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.User, error) {
	r.db.recordLock("user", id)
	return r.GetByID(ctx, id)
}

func (r memUsers) List(ctx context.Context, query string, cursor *string, limit int) ([]model.User, *string, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.User
	for _, u := range d.s.users {
		if query == "" || strings.Contains(u.Username, query) || strings.Contains(u.Email, query) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil, nil
}

func (r memUsers) GetStats(ctx context.Context, id int64) (*model.UserStats, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &model.UserStats{
		UserID: u.ID, PostCount: u.PostCount, Score: u.Score, Level: u.Level,
		IsMiniAdmin: u.IsMiniAdmin, CommunityID: u.CommunityID,
		GamesPlayed: u.GamesPlayed, QuizzesCompleted: u.QuizzesCompleted,
	}, nil
}

func (r memUsers) GetSummaries(ctx context.Context, ids []int64) (map[int64]model.UserSummary, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[int64]model.UserSummary, len(ids))
	for _, id := range ids {
		if u, ok := d.s.users[id]; ok {
			out[id] = model.UserSummary{ID: u.ID, Username: u.Username, Country: u.Country}
		}
	}
	return out, nil
}

func (r memUsers) AdjustPostCount(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) (int, error) {
	d := r.db
	if err := d.lock("users.AdjustPostCount"); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	defer d.mu.Unlock()
	u, ok := d.s.users[userID]
	if !ok {
		return 0, model.ErrUserNotFound
	}
	prev := u.PostCount
	u.PostCount = max(prev+delta, 0)
	d.s.users[userID] = u
	return prev, nil
}

func (r memUsers) ApplyScore(ctx context.Context, tx *sqlx.Tx, userID int64, delta int64, gamesDelta int) (*model.ScoreChange, error) {
	d := r.db
	if err := d.lock("users.ApplyScore"); err != nil {
		d.mu.Unlock()
		return nil, err
	}
	defer d.mu.Unlock()
	u, ok := d.s.users[userID]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	before := u.Score
	u.Score += delta
	u.GamesPlayed = max(u.GamesPlayed+gamesDelta, 0)
	u.Level = max(u.Level, model.LevelForScore(u.Score))
	d.s.users[userID] = u
	return &model.ScoreChange{UserID: userID, Before: before, After: u.Score, Level: u.Level}, nil
}

func (r memUsers) AdjustQuizzesCompleted(ctx context.Context, tx *sqlx.Tx, userID int64, delta int) error {
	d := r.db
	if err := d.lock("users.AdjustQuizzesCompleted"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	u, ok := d.s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.QuizzesCompleted = max(u.QuizzesCompleted+delta, 0)
	d.s.users[userID] = u
	return nil
}

func (r memUsers) SetMembership(ctx context.Context, tx *sqlx.Tx, userID int64, communityID *int64, isMiniAdmin bool) error {
	d := r.db
	if err := d.lock("users.SetMembership"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	u, ok := d.s.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.CommunityID = communityID
	u.IsMiniAdmin = isMiniAdmin
	d.s.users[userID] = u
	return nil
}

func (r memUsers) LockMembers(ctx context.Context, tx *sqlx.Tx, communityID int64) ([]int64, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []int64
	for id, u := range d.s.users {
		if u.CommunityID != nil && *u.CommunityID == communityID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r memUsers) DetachMembers(ctx context.Context, tx *sqlx.Tx, communityID int64, userIDs []int64) (int64, error) {
	d := r.db
	if err := d.lock("users.DetachMembers"); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	defer d.mu.Unlock()
	var n int64
	for _, id := range userIDs {
		u, ok := d.s.users[id]
		if !ok || u.CommunityID == nil || *u.CommunityID != communityID {
			continue
		}
		u.CommunityID = nil
		u.IsMiniAdmin = false
		d.s.users[id] = u
		n++
	}
	return n, nil
}

func (r memUsers) CountMembers(ctx context.Context, tx *sqlx.Tx, communityID int64) (int, error) {
	return r.db.memberCount(communityID), nil
}

func (r memUsers) ListMembers(ctx context.Context, communityID int64) ([]model.User, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []model.User{}
	for _, u := range d.s.users {
		if u.CommunityID != nil && *u.CommunityID == communityID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r memUsers) Scores(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.LeaderboardEntry
	for _, u := range d.s.users {
		out = append(out, model.LeaderboardEntry{UserID: u.ID, Username: u.Username, Score: u.Score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID < out[j].UserID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (r memUsers) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	d := r.db
	if err := d.lock("users.Delete"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	if _, ok := d.s.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(d.s.users, id)
	// ON DELETE CASCADE
	delete(d.s.miniAdmins, id)
	for k := range d.s.badgeHolders {
		if k.userID == id {
			delete(d.s.badgeHolders, k)
		}
	}
	for k := range d.s.achievementHolders {
		if k.userID == id {
			delete(d.s.achievementHolders, k)
		}
	}
	return nil
}

// =============================================================================
// POSTS
// =============================================================================

type memPosts struct{ db *memDB }

var _ repository.PostRepository = memPosts{}

func (r memPosts) Create(ctx context.Context, tx *sqlx.Tx, post *model.Post) error {
	d := r.db
	if err := d.lock("posts.Create"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	post.ID = d.newID()
	post.CreatedAt = time.Now()
	d.s.posts[post.ID] = *post
	return nil
}

func (r memPosts) GetByID(ctx context.Context, id int64, includeDeleted bool) (*model.Post, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.s.posts[id]
	if !ok || (p.IsDeleted && !includeDeleted) {
		return nil, model.ErrPostNotFound
	}
	return &p, nil
}

func (r memPosts) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Post, error) {
	return r.GetByID(ctx, id, true)
}

func (r memPosts) List(ctx context.Context, filter model.PostFilter) ([]model.Post, *string, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.Post
	for _, p := range d.s.posts {
		if p.IsDeleted && !filter.IncludeDeleted {
			continue
		}
		if filter.Kind != "" && p.Kind != filter.Kind {
			continue
		}
		if filter.Country != "" && p.Country != filter.Country {
			continue
		}
		if filter.AuthorID != 0 && p.AuthorID != filter.AuthorID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil, nil
}

func (r memPosts) Update(ctx context.Context, tx *sqlx.Tx, post *model.Post) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	d.s.posts[post.ID] = *post
	return nil
}

func (r memPosts) MarkDeleted(ctx context.Context, tx *sqlx.Tx, id, deletedBy int64, reason *string) error {
	d := r.db
	if err := d.lock("posts.MarkDeleted"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	p := d.s.posts[id]
	now := time.Now()
	p.IsDeleted = true
	p.DeletedBy = &deletedBy
	p.DeletionReason = reason
	p.DeletedAt = &now
	d.s.posts[id] = p
	return nil
}

func (r memPosts) Restore(ctx context.Context, tx *sqlx.Tx, id int64) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	p := d.s.posts[id]
	p.IsDeleted = false
	p.DeletedBy = nil
	p.DeletionReason = nil
	p.DeletedAt = nil
	d.s.posts[id] = p
	return nil
}

func (r memPosts) GetReaction(ctx context.Context, tx *sqlx.Tx, postID, userID int64) (model.Reaction, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.s.reactions[reactionKey{postID, userID}], nil
}

func (r memPosts) SetReaction(ctx context.Context, tx *sqlx.Tx, postID, userID int64, reaction model.Reaction) error {
	d := r.db
	if err := d.lock("posts.SetReaction"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	if reaction == model.ReactionNone {
		delete(d.s.reactions, reactionKey{postID, userID})
		return nil
	}
	d.s.reactions[reactionKey{postID, userID}] = reaction
	return nil
}

func (r memPosts) ApplyEngagementDelta(ctx context.Context, tx *sqlx.Tx, postID int64, likes, dislikes, comments int) error {
	d := r.db
	if err := d.lock("posts.ApplyEngagementDelta"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	p, ok := d.s.posts[postID]
	if !ok {
		return model.ErrPostNotFound
	}
	p.Likes += likes
	p.Dislikes += dislikes
	p.Comments += comments
	d.s.posts[postID] = p
	return nil
}

func (r memPosts) GetReactors(ctx context.Context, postID int64) ([]model.UserSummary, []model.UserSummary, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	liked, disliked := []model.UserSummary{}, []model.UserSummary{}
	for k, reaction := range d.s.reactions {
		if k.postID != postID {
			continue
		}
		u := d.s.users[k.userID]
		s := model.UserSummary{ID: u.ID, Username: u.Username}
		if reaction == model.ReactionLike {
			liked = append(liked, s)
		} else {
			disliked = append(disliked, s)
		}
	}
	return liked, disliked, nil
}

func (r memPosts) GetViewerReactions(ctx context.Context, userID int64, postIDs []int64) (map[int64]model.Reaction, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	out := map[int64]model.Reaction{}
	for _, id := range postIDs {
		if reaction, ok := d.s.reactions[reactionKey{id, userID}]; ok {
			out[id] = reaction
		}
	}
	return out, nil
}

func (r memPosts) RemoveUserReactions(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for k, reaction := range d.s.reactions {
		if k.userID != userID {
			continue
		}
		p := d.s.posts[k.postID]
		if reaction == model.ReactionLike {
			p.Likes = max(p.Likes-1, 0)
		} else {
			p.Dislikes = max(p.Dislikes-1, 0)
		}
		d.s.posts[k.postID] = p
		delete(d.s.reactions, k)
		n++
	}
	return n, nil
}

func (r memPosts) ListImageKeysByAuthor(ctx context.Context, tx *sqlx.Tx, authorID int64) ([]string, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var keys []string
	for _, p := range d.s.posts {
		if p.AuthorID == authorID && p.ImageKey != nil {
			keys = append(keys, *p.ImageKey)
		}
	}
	return keys, nil
}

func (r memPosts) DeleteByAuthor(ctx context.Context, tx *sqlx.Tx, authorID int64) (int64, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for id, p := range d.s.posts {
		if p.AuthorID != authorID {
			continue
		}
		delete(d.s.posts, id)
		for k := range d.s.reactions {
			if k.postID == id {
				delete(d.s.reactions, k)
			}
		}
		n++
	}
	return n, nil
}

// =============================================================================
// COMMENTS
// =============================================================================

type memComments struct{ db *memDB }

var _ repository.CommentRepository = memComments{}

func (r memComments) Create(ctx context.Context, tx *sqlx.Tx, comment *model.Comment) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	comment.ID = d.newID()
	comment.CreatedAt = time.Now()
	d.s.comments[comment.ID] = *comment
	return nil
}

func (r memComments) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.s.comments[id]
	if !ok {
		return nil, model.ErrCommentNotFound
	}
	return &c, nil
}

func (r memComments) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.s.comments[id]; !ok {
		return model.ErrCommentNotFound
	}
	delete(d.s.comments, id)
	return nil
}

func (r memComments) ListByPost(ctx context.Context, postID int64, cursor *string, limit int) ([]model.Comment, *string, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.Comment
	for _, c := range d.s.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil, nil
}

func (r memComments) RemoveByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for id, c := range d.s.comments {
		if c.UserID != userID {
			continue
		}
		if p, ok := d.s.posts[c.PostID]; ok {
			p.Comments = max(p.Comments-1, 0)
			d.s.posts[c.PostID] = p
		}
		delete(d.s.comments, id)
		n++
	}
	return n, nil
}

// =============================================================================
// COMMUNITIES AND MINI-ADMINS
// =============================================================================

type memCommunities struct{ db *memDB }

var _ repository.CommunityRepository = memCommunities{}

func (r memCommunities) Create(ctx context.Context, tx *sqlx.Tx, community *model.Community) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.s.communities {
		if c.Name == community.Name {
			return model.ErrCommunityNameExists
		}
	}
	community.ID = d.newID()
	d.s.communities[community.ID] = *community
	return nil
}

func (r memCommunities) GetByID(ctx context.Context, id int64) (*model.Community, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.s.communities[id]
	if !ok {
		return nil, model.ErrCommunityNotFound
	}
	return &c, nil
}

func (r memCommunities) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Community, error) {
	r.db.recordLock("community", id)
	return r.GetByID(ctx, id)
}

func (r memCommunities) List(ctx context.Context, activeOnly bool) ([]model.Community, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.Community
	for _, c := range d.s.communities {
		if !activeOnly || c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memCommunities) Update(ctx context.Context, tx *sqlx.Tx, community *model.Community) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	d.s.communities[community.ID] = *community
	return nil
}

func (r memCommunities) AdjustMemberCount(ctx context.Context, tx *sqlx.Tx, id int64, delta int) error {
	d := r.db
	if err := d.lock("communities.AdjustMemberCount"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	c, ok := d.s.communities[id]
	if !ok {
		return model.ErrCommunityNotFound
	}
	c.MemberCount = max(c.MemberCount+delta, 0)
	d.s.communities[id] = c
	return nil
}

func (r memCommunities) Orphan(ctx context.Context, tx *sqlx.Tx, id int64) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.s.communities[id]
	c.IsActive = false
	c.AdminID = nil
	c.AdminUsername = ""
	c.MemberCount = 0
	d.s.communities[id] = c
	return nil
}

func (r memCommunities) AdministeredBy(ctx context.Context, tx *sqlx.Tx, userID int64) ([]int64, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var ids []int64
	for id, c := range d.s.communities {
		if c.AdminID != nil && *c.AdminID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r memCommunities) Delete(ctx context.Context, tx *sqlx.Tx, id int64) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.s.communities, id)
	return nil
}

func (r memCommunities) Stats(ctx context.Context, id int64) (*model.CommunityStats, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.s.communities[id]; !ok {
		return nil, model.ErrCommunityNotFound
	}
	stats := &model.CommunityStats{CommunityID: id}
	for _, u := range d.s.users {
		if u.CommunityID != nil && *u.CommunityID == id {
			stats.MemberCount++
			stats.TotalScore += u.Score
			stats.TotalPosts += u.PostCount
		}
	}
	if stats.MemberCount > 0 {
		stats.AverageScore = float64(stats.TotalScore) / float64(stats.MemberCount)
	}
	return stats, nil
}

type memMiniAdmins struct{ db *memDB }

var _ repository.MiniAdminRepository = memMiniAdmins{}

func (r memMiniAdmins) Create(ctx context.Context, tx *sqlx.Tx, m *model.MiniAdmin) error {
	d := r.db
	if err := d.lock("miniAdmins.Create"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	if _, ok := d.s.miniAdmins[m.UserID]; ok {
		return model.ErrAlreadyMiniAdmin
	}
	d.s.miniAdmins[m.UserID] = *m
	return nil
}

func (r memMiniAdmins) GetByUserID(ctx context.Context, userID int64) (*model.MiniAdmin, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.s.miniAdmins[userID]
	if !ok {
		return nil, model.ErrMiniAdminNotFound
	}
	return &m, nil
}

func (r memMiniAdmins) List(ctx context.Context, communityID *int64) ([]model.MiniAdmin, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.MiniAdmin
	for _, m := range d.s.miniAdmins {
		if communityID == nil || m.CommunityID == *communityID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memMiniAdmins) Update(ctx context.Context, m *model.MiniAdmin) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	d.s.miniAdmins[m.UserID] = *m
	return nil
}

func (r memMiniAdmins) Touch(ctx context.Context, userID int64) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	m, ok := d.s.miniAdmins[userID]
	if !ok {
		return model.ErrMiniAdminNotFound
	}
	now := time.Now()
	m.LastActive = &now
	d.s.miniAdmins[userID] = m
	return nil
}

func (r memMiniAdmins) Delete(ctx context.Context, tx *sqlx.Tx, userID int64) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.s.miniAdmins[userID]; !ok {
		return model.ErrMiniAdminNotFound
	}
	delete(d.s.miniAdmins, userID)
	return nil
}

func (r memMiniAdmins) DeleteByCommunity(ctx context.Context, tx *sqlx.Tx, communityID int64) (int64, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for id, m := range d.s.miniAdmins {
		if m.CommunityID == communityID {
			delete(d.s.miniAdmins, id)
			n++
		}
	}
	return n, nil
}

// =============================================================================
// GAMES, SESSIONS AND QUIZZES
// =============================================================================

type memGames struct{ db *memDB }

var _ repository.GameRepository = memGames{}

func (r memGames) Create(ctx context.Context, game *model.Game) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	game.ID = d.newID()
	d.s.games[game.ID] = *game
	return nil
}

func (r memGames) GetByID(ctx context.Context, id int64) (*model.Game, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	g, ok := d.s.games[id]
	if !ok {
		return nil, model.ErrGameNotFound
	}
	g.FillCompletionRate()
	return &g, nil
}

func (r memGames) List(ctx context.Context, activeOnly bool) ([]model.Game, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.Game
	for _, g := range d.s.games {
		if !activeOnly || g.IsActive {
			out = append(out, g)
		}
	}
	return out, nil
}

func (r memGames) Update(ctx context.Context, game *model.Game) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.s.games[game.ID]; !ok {
		return model.ErrGameNotFound
	}
	d.s.games[game.ID] = *game
	return nil
}

func (r memGames) Delete(ctx context.Context, id int64) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.s.games[id]; !ok {
		return model.ErrGameNotFound
	}
	delete(d.s.games, id)
	return nil
}

func (r memGames) RecordPlay(ctx context.Context, tx *sqlx.Tx, gameID, score int64) error {
	d := r.db
	if err := d.lock("games.RecordPlay"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	g, ok := d.s.games[gameID]
	if !ok {
		return model.ErrGameNotFound
	}
	total := g.AverageScore*float64(g.TotalPlays) + float64(score)
	g.TotalPlays++
	g.AverageScore = total / float64(g.TotalPlays)
	if score > 0 {
		g.TotalCompletions++
	}
	d.s.games[gameID] = g
	return nil
}

type memSessions struct{ db *memDB }

var _ repository.GameSessionRepository = memSessions{}

func (r memSessions) Create(ctx context.Context, tx *sqlx.Tx, session *model.GameSession) error {
	d := r.db
	if err := d.lock("sessions.Create"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	session.ID = d.newID()
	session.CreatedAt = time.Now()
	d.s.sessions[session.ID] = *session
	return nil
}

func (r memSessions) GetByID(ctx context.Context, id int64) (*model.GameSession, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.s.sessions[id]
	if !ok {
		return nil, model.ErrGameSessionNotFound
	}
	return &s, nil
}

func (r memSessions) Delete(ctx context.Context, tx *sqlx.Tx, id int64) (*model.GameSession, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.s.sessions[id]
	if !ok {
		return nil, model.ErrGameSessionNotFound
	}
	delete(d.s.sessions, id)
	return &s, nil
}

func (r memSessions) List(ctx context.Context, f model.SessionFilter) ([]model.GameSession, *string, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.GameSession
	for _, s := range d.s.sessions {
		if f.PlayerID != nil && s.PlayerID != *f.PlayerID {
			continue
		}
		if f.GameType != "" && s.GameType != f.GameType {
			continue
		}
		if f.Difficulty != "" && s.Difficulty != f.Difficulty {
			continue
		}
		if f.Country != "" && (s.Country == nil || !strings.EqualFold(*s.Country, f.Country)) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil, nil
}

func (r memSessions) DeleteByPlayer(ctx context.Context, tx *sqlx.Tx, playerID int64) (int64, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for id, s := range d.s.sessions {
		if s.PlayerID == playerID {
			delete(d.s.sessions, id)
			n++
		}
	}
	return n, nil
}

type memQuizzes struct{ db *memDB }

var _ repository.QuizRepository = memQuizzes{}

func (r memQuizzes) Create(ctx context.Context, quiz *model.Quiz) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	quiz.ID = d.newID()
	d.s.quizzes[quiz.ID] = *quiz
	return nil
}

func (r memQuizzes) GetByID(ctx context.Context, id int64) (*model.Quiz, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	q, ok := d.s.quizzes[id]
	if !ok {
		return nil, model.ErrQuizNotFound
	}
	return &q, nil
}

func (r memQuizzes) List(ctx context.Context) ([]model.Quiz, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.Quiz
	for _, q := range d.s.quizzes {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memQuizzes) Update(ctx context.Context, quiz *model.Quiz) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.s.quizzes[quiz.ID]; !ok {
		return model.ErrQuizNotFound
	}
	d.s.quizzes[quiz.ID] = *quiz
	return nil
}

func (r memQuizzes) Delete(ctx context.Context, tx *sqlx.Tx, id int64) (int64, error) {
	d := r.db
	if err := d.lock("quizzes.Delete"); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	defer d.mu.Unlock()
	if _, ok := d.s.quizzes[id]; !ok {
		return 0, model.ErrQuizNotFound
	}
	perUser := map[int64]int{}
	for aid, a := range d.s.attempts {
		if a.QuizID == id {
			perUser[a.UserID]++
			delete(d.s.attempts, aid)
		}
	}
	for uid, n := range perUser {
		if u, ok := d.s.users[uid]; ok {
			u.QuizzesCompleted = max(u.QuizzesCompleted-n, 0)
			d.s.users[uid] = u
		}
	}
	delete(d.s.quizzes, id)
	return int64(len(perUser)), nil
}

func (r memQuizzes) CreateAttempt(ctx context.Context, tx *sqlx.Tx, attempt *model.QuizAttempt) error {
	d := r.db
	if err := d.lock("quizzes.CreateAttempt"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	attempt.ID = d.newID()
	attempt.AttemptedAt = time.Now()
	d.s.attempts[attempt.ID] = *attempt
	return nil
}

func (r memQuizzes) DeleteAttempt(ctx context.Context, tx *sqlx.Tx, id int64) (*model.QuizAttempt, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.s.attempts[id]
	if !ok {
		return nil, model.ErrQuizAttemptNotFound
	}
	delete(d.s.attempts, id)
	return &a, nil
}

func (r memQuizzes) DeleteAttemptsByUser(ctx context.Context, tx *sqlx.Tx, userID int64) (int64, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for id, a := range d.s.attempts {
		if a.UserID == userID {
			delete(d.s.attempts, id)
			n++
		}
	}
	return n, nil
}

// =============================================================================
// BADGES AND ACHIEVEMENTS
// =============================================================================

type memBadges struct{ db *memDB }

var _ repository.BadgeRepository = memBadges{}

func (r memBadges) Create(ctx context.Context, badge *model.Badge) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	badge.ID = d.newID()
	d.s.badges[badge.ID] = *badge
	return nil
}

func (r memBadges) GetByID(ctx context.Context, id int64) (*model.Badge, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.s.badges[id]
	if !ok {
		return nil, model.ErrBadgeNotFound
	}
	return &b, nil
}

func (r memBadges) List(ctx context.Context, filter model.CatalogFilter) ([]model.Badge, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.Badge
	for _, b := range d.s.badges {
		if filter.ActiveOnly && !b.IsActive {
			continue
		}
		if filter.Level != "" && b.Level != filter.Level {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memBadges) Update(ctx context.Context, badge *model.Badge) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	d.s.badges[badge.ID] = *badge
	return nil
}

func (r memBadges) LockActive(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Badge, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.s.badges[id]
	if !ok || !b.IsActive {
		return nil, model.ErrBadgeNotFound
	}
	return &b, nil
}

func (r memBadges) AddHolder(ctx context.Context, tx *sqlx.Tx, badgeID, userID int64) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.s.users[userID]; !ok {
		return model.ErrUserNotFound
	}
	k := holderKey{badgeID, userID}
	if _, ok := d.s.badgeHolders[k]; ok {
		return model.ErrBadgeAlreadyHeld
	}
	d.s.badgeHolders[k] = time.Now()
	return nil
}

func (r memBadges) RemoveHolder(ctx context.Context, tx *sqlx.Tx, badgeID, userID int64) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	k := holderKey{badgeID, userID}
	if _, ok := d.s.badgeHolders[k]; !ok {
		return model.ErrBadgeNotHeld
	}
	delete(d.s.badgeHolders, k)
	return nil
}

func (r memBadges) ListHolders(ctx context.Context, badgeID int64) ([]model.Holder, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.Holder
	for k, at := range d.s.badgeHolders {
		if k.entryID == badgeID {
			out = append(out, model.Holder{UserID: k.userID, Username: d.s.users[k.userID].Username, AwardedAt: at})
		}
	}
	return out, nil
}

func (r memBadges) IDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := []int64{}
	for k := range d.s.badgeHolders {
		if k.userID == userID {
			ids = append(ids, k.entryID)
		}
	}
	return ids, nil
}

func (r memBadges) ListForUser(ctx context.Context, userID int64) ([]model.Badge, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.s.users[userID]; !ok {
		return nil, model.ErrUserNotFound
	}
	out := []model.Badge{}
	for k := range d.s.badgeHolders {
		if k.userID == userID {
			out = append(out, d.s.badges[k.entryID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memBadges) Deactivate(ctx context.Context, id int64) error {
	d := r.db
	if err := d.lock("badges.Deactivate"); err != nil {
		d.mu.Unlock()
		return err
	}
	defer d.mu.Unlock()
	b, ok := d.s.badges[id]
	if !ok {
		return model.ErrBadgeNotFound
	}
	b.IsActive = false
	d.s.badges[id] = b
	return nil
}

func (r memBadges) RemoveHolders(ctx context.Context, id int64, batch int) (int64, error) {
	d := r.db
	if err := d.lock("badges.RemoveHolders"); err != nil {
		d.mu.Unlock()
		return 0, err
	}
	defer d.mu.Unlock()
	var n int64
	for k := range d.s.badgeHolders {
		if n == int64(batch) {
			break
		}
		if k.entryID == id {
			delete(d.s.badgeHolders, k)
			n++
		}
	}
	return n, nil
}

func (r memBadges) DeleteIfNoHolders(ctx context.Context, id int64) (bool, error) {
	d := r.db
	if err := d.lock("badges.DeleteIfNoHolders"); err != nil {
		d.mu.Unlock()
		return false, err
	}
	defer d.mu.Unlock()
	if _, ok := d.s.badges[id]; !ok {
		return false, model.ErrBadgeNotFound
	}
	for k := range d.s.badgeHolders {
		if k.entryID == id {
			return false, nil
		}
	}
	delete(d.s.badges, id)
	return true, nil
}

type memAchievements struct{ db *memDB }

var _ repository.AchievementRepository = memAchievements{}

func (r memAchievements) Create(ctx context.Context, a *model.Achievement) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	a.ID = d.newID()
	d.s.achievements[a.ID] = *a
	return nil
}

func (r memAchievements) GetByID(ctx context.Context, id int64) (*model.Achievement, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.s.achievements[id]
	if !ok {
		return nil, model.ErrAchievementNotFound
	}
	return &a, nil
}

func (r memAchievements) List(ctx context.Context, filter model.CatalogFilter) ([]model.Achievement, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.Achievement
	for _, a := range d.s.achievements {
		if (!filter.ActiveOnly || a.IsActive) && (filter.Level == "" || a.Level == filter.Level) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r memAchievements) Update(ctx context.Context, a *model.Achievement) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	d.s.achievements[a.ID] = *a
	return nil
}

func (r memAchievements) LockActive(ctx context.Context, tx *sqlx.Tx, id int64) (*model.Achievement, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.s.achievements[id]
	if !ok || !a.IsActive {
		return nil, model.ErrAchievementNotFound
	}
	return &a, nil
}

func (r memAchievements) AddHolder(ctx context.Context, tx *sqlx.Tx, achievementID, userID int64) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	k := holderKey{achievementID, userID}
	if _, ok := d.s.achievementHolders[k]; ok {
		return model.ErrAchievementAlreadyHeld
	}
	d.s.achievementHolders[k] = time.Now()
	return nil
}

func (r memAchievements) RemoveHolder(ctx context.Context, tx *sqlx.Tx, achievementID, userID int64) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	k := holderKey{achievementID, userID}
	if _, ok := d.s.achievementHolders[k]; !ok {
		return model.ErrAchievementNotHeld
	}
	delete(d.s.achievementHolders, k)
	return nil
}

func (r memAchievements) ListHolders(ctx context.Context, achievementID int64) ([]model.Holder, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []model.Holder
	for k, at := range d.s.achievementHolders {
		if k.entryID == achievementID {
			out = append(out, model.Holder{UserID: k.userID, AwardedAt: at})
		}
	}
	return out, nil
}

func (r memAchievements) IDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := []int64{}
	for k := range d.s.achievementHolders {
		if k.userID == userID {
			ids = append(ids, k.entryID)
		}
	}
	return ids, nil
}

func (r memAchievements) ListForUser(ctx context.Context, userID int64) ([]model.Achievement, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.s.users[userID]; !ok {
		return nil, model.ErrUserNotFound
	}
	out := []model.Achievement{}
	for k := range d.s.achievementHolders {
		if k.userID == userID {
			out = append(out, d.s.achievements[k.entryID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memAchievements) Deactivate(ctx context.Context, id int64) error {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	a, ok := d.s.achievements[id]
	if !ok {
		return model.ErrAchievementNotFound
	}
	a.IsActive = false
	d.s.achievements[id] = a
	return nil
}

func (r memAchievements) RemoveHolders(ctx context.Context, id int64, batch int) (int64, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	var n int64
	for k := range d.s.achievementHolders {
		if n == int64(batch) {
			break
		}
		if k.entryID == id {
			delete(d.s.achievementHolders, k)
			n++
		}
	}
	return n, nil
}

func (r memAchievements) DeleteIfNoHolders(ctx context.Context, id int64) (bool, error) {
	d := r.db
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.s.achievements[id]; !ok {
		return false, model.ErrAchievementNotFound
	}
	for k := range d.s.achievementHolders {
		if k.entryID == id {
			return false, nil
		}
	}
	delete(d.s.achievements, id)
	return true, nil
}

// =============================================================================
// LEADERBOARD CACHE AND PUBLISHER
// =============================================================================

type fakeBoard struct {
	mu     sync.Mutex
	scores map[int64]int64
	err    error
}

func newFakeBoard() *fakeBoard { return &fakeBoard{scores: map[int64]int64{}} }

func (b *fakeBoard) SetScore(ctx context.Context, userID, score int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.scores[userID] = score
	return nil
}

func (b *fakeBoard) Remove(ctx context.Context, userID int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	delete(b.scores, userID)
	return nil
}

func (b *fakeBoard) Top(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	var out []model.LeaderboardEntry
	for id, s := range b.scores {
		out = append(out, model.LeaderboardEntry{UserID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

func (b *fakeBoard) Rebuild(ctx context.Context, entries []model.LeaderboardEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.scores = map[int64]int64{}
	for _, e := range entries {
		b.scores[e.UserID] = e.Score
	}
	return nil
}

func (b *fakeBoard) score(userID int64) (int64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.scores[userID]
	return s, ok
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.LedgerEvent
}

func (p *fakePublisher) Publish(ctx context.Context, stream string, event queue.LedgerEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return "0-1", nil
}

func (p *fakePublisher) published() []queue.LedgerEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.LedgerEvent(nil), p.events...)
}

// =============================================================================
// FIXTURE
// =============================================================================

type fixture struct {
	db        *memDB
	board     *fakeBoard
	publisher *fakePublisher

	users        memUsers
	posts        memPosts
	comments     memComments
	communities  memCommunities
	miniAdmins   memMiniAdmins
	games        memGames
	sessions     memSessions
	quizzes      memQuizzes
	badges       memBadges
	achievements memAchievements

	leaderboard *LeaderboardService
}

func newFixture() *fixture {
	db := newMemDB()
	f := &fixture{
		db:           db,
		board:        newFakeBoard(),
		publisher:    &fakePublisher{},
		users:        memUsers{db},
		posts:        memPosts{db},
		comments:     memComments{db},
		communities:  memCommunities{db},
		miniAdmins:   memMiniAdmins{db},
		games:        memGames{db},
		sessions:     memSessions{db},
		quizzes:      memQuizzes{db},
		badges:       memBadges{db},
		achievements: memAchievements{db},
	}
	f.leaderboard = NewLeaderboardService(f.users, f.board, f.publisher)
	return f
}

func (f *fixture) userRepos() UserRepos {
	return UserRepos{
		Users:        f.users,
		Posts:        f.posts,
		Comments:     f.comments,
		Communities:  f.communities,
		MiniAdmins:   f.miniAdmins,
		Sessions:     f.sessions,
		Quizzes:      f.quizzes,
		Badges:       f.badges,
		Achievements: f.achievements,
	}
}
