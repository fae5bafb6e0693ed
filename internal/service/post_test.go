package service

import (
	"context"
	"errors"
	"testing"

	"geojungle/internal/model"
)

func validPostRequest() model.CreatePostRequest {
	return model.CreatePostRequest{
		Kind:     model.PostKindCulture,
		Category: "Festival",
		Title:    "Inti Raymi",
		Body:     "Sun festival in Cusco",
		Country:  "Peru",
	}
}

// =============================================================================
// CREATE
// =============================================================================

func TestPostService_Create(t *testing.T) {
	// ARRANGE
	f := newFixture()
	author := f.db.addUser("ana")
	svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)

	// ACT
	post, err := svc.Create(context.Background(), author, validPostRequest(), nil)

	// ASSERT
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if post.ID == 0 {
		t.Error("expected an id to be assigned")
	}
	if post.AuthorUsername != "ana" {
		t.Errorf("expected author username ana, got %q", post.AuthorUsername)
	}
	if got := f.db.user(author).PostCount; got != 1 {
		t.Errorf("expected post count 1, got %d", got)
	}
}

func TestPostService_Create_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *model.CreatePostRequest)
		wantErr error
	}{
		{
			name:    "unknown kind",
			mutate:  func(r *model.CreatePostRequest) { r.Kind = "poem" },
			wantErr: model.ErrInvalidPostKind,
		},
		{
			name:    "category from another kind",
			mutate:  func(r *model.CreatePostRequest) { r.Category = "Adventure" },
			wantErr: model.ErrInvalidCategory,
		},
		{
			name:    "blank title",
			mutate:  func(r *model.CreatePostRequest) { r.Title = "   " },
			wantErr: model.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			author := f.db.addUser("ana")
			svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)
			req := validPostRequest()
			tt.mutate(&req)

			_, err := svc.Create(context.Background(), author, req, nil)

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if got := f.db.user(author).PostCount; got != 0 {
				t.Errorf("expected post count 0, got %d", got)
			}
		})
	}
}

func TestPostService_Create_CounterFailureRollsBack(t *testing.T) {
	// ARRANGE
	f := newFixture()
	author := f.db.addUser("ana")
	svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)
	f.db.setFail("users.AdjustPostCount", errors.New("deadlock detected"))

	// ACT
	_, err := svc.Create(context.Background(), author, validPostRequest(), nil)

	// ASSERT
	if err == nil {
		t.Fatal("expected an error")
	}
	list, _, _ := f.posts.List(context.Background(), model.PostFilter{IncludeDeleted: true, Limit: 10})
	if len(list) != 0 {
		t.Errorf("expected the post insert to be rolled back, found %d posts", len(list))
	}
}

func TestPostService_Create_UnknownAuthor(t *testing.T) {
	f := newFixture()
	svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)

	_, err := svc.Create(context.Background(), 404, validPostRequest(), nil)

	if !errors.Is(err, model.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

// =============================================================================
// DELETE AND RESTORE
// =============================================================================

func TestPostService_Delete_ByOwner(t *testing.T) {
	// ARRANGE
	f := newFixture()
	author := f.db.addUser("ana")
	postID := f.db.addPost(author)
	svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)

	// ACT
	err := svc.Delete(context.Background(), postID, model.Actor{UserID: author, Role: model.RoleUser}, "")

	// ASSERT
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	post := f.db.post(postID)
	if !post.IsDeleted {
		t.Error("expected the post to be soft-deleted")
	}
	if post.DeletionReason != nil {
		t.Errorf("expected no reason, got %q", *post.DeletionReason)
	}
	if got := f.db.user(author).PostCount; got != 0 {
		t.Errorf("expected post count 0, got %d", got)
	}
}

func TestPostService_Delete_Permissions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture) model.Actor
		reason  string
		wantErr error
	}{
		{
			name: "admin with reason",
			setup: func(f *fixture) model.Actor {
				return model.Actor{UserID: f.db.addAdmin("root"), Role: model.RoleAdmin}
			},
			reason: "spam",
		},
		{
			name: "admin without reason",
			setup: func(f *fixture) model.Actor {
				return model.Actor{UserID: f.db.addAdmin("root"), Role: model.RoleAdmin}
			},
			wantErr: model.ErrReasonRequired,
		},
		{
			name: "other user",
			setup: func(f *fixture) model.Actor {
				return model.Actor{UserID: f.db.addUser("mallory"), Role: model.RoleUser}
			},
			reason:  "I do not like it",
			wantErr: model.ErrNotPostOwner,
		},
		{
			name: "mini-admin with manage_posts",
			setup: func(f *fixture) model.Actor {
				mod := f.db.addUser("mod")
				f.db.addCommunity("Andes", mod)
				return model.Actor{UserID: mod, Role: model.RoleMiniAdmin}
			},
			reason: "off topic",
		},
		{
			name: "mini-admin without manage_posts",
			setup: func(f *fixture) model.Actor {
				mod := f.db.addUser("mod")
				f.db.addCommunity("Andes", mod)
				m, _ := f.miniAdmins.GetByUserID(context.Background(), mod)
				m.Permissions = []string{model.PermViewStatistics}
				_ = f.miniAdmins.Update(context.Background(), m)
				return model.Actor{UserID: mod, Role: model.RoleMiniAdmin}
			},
			reason:  "off topic",
			wantErr: model.ErrModerationDenied,
		},
		{
			name: "inactive mini-admin grant",
			setup: func(f *fixture) model.Actor {
				mod := f.db.addUser("mod")
				f.db.addCommunity("Andes", mod)
				m, _ := f.miniAdmins.GetByUserID(context.Background(), mod)
				m.IsActive = false
				_ = f.miniAdmins.Update(context.Background(), m)
				return model.Actor{UserID: mod, Role: model.RoleMiniAdmin}
			},
			reason:  "off topic",
			wantErr: model.ErrModerationDenied,
		},
		{
			name: "mini-admin role without a grant",
			setup: func(f *fixture) model.Actor {
				return model.Actor{UserID: f.db.addUser("stale"), Role: model.RoleMiniAdmin}
			},
			reason:  "off topic",
			wantErr: model.ErrModerationDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// ARRANGE
			f := newFixture()
			author := f.db.addUser("ana")
			postID := f.db.addPost(author)
			actor := tt.setup(f)
			svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)

			// ACT
			err := svc.Delete(context.Background(), postID, actor, tt.reason)

			// ASSERT
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if f.db.post(postID).IsDeleted {
					t.Error("expected the post to stay visible")
				}
				if got := f.db.user(author).PostCount; got != 1 {
					t.Errorf("expected post count 1, got %d", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			post := f.db.post(postID)
			if post.DeletionReason == nil || *post.DeletionReason != tt.reason {
				t.Errorf("expected reason %q, got %v", tt.reason, post.DeletionReason)
			}
			if post.DeletedBy == nil || *post.DeletedBy != actor.UserID {
				t.Errorf("expected deletedBy %d, got %v", actor.UserID, post.DeletedBy)
			}
			if got := f.db.user(author).PostCount; got != 0 {
				t.Errorf("expected post count 0, got %d", got)
			}
		})
	}
}

func TestPostService_Delete_TouchesModerator(t *testing.T) {
	f := newFixture()
	author := f.db.addUser("ana")
	postID := f.db.addPost(author)
	mod := f.db.addUser("mod")
	f.db.addCommunity("Andes", mod)
	svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)

	if err := svc.Delete(context.Background(), postID, model.Actor{UserID: mod, Role: model.RoleMiniAdmin}, "spam"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m, _ := f.miniAdmins.GetByUserID(context.Background(), mod)
	if m.LastActive == nil {
		t.Error("expected lastActive to be recorded")
	}
}

func TestPostService_Delete_Twice(t *testing.T) {
	f := newFixture()
	author := f.db.addUser("ana")
	postID := f.db.addPost(author)
	svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)
	owner := model.Actor{UserID: author, Role: model.RoleUser}

	if err := svc.Delete(context.Background(), postID, owner, ""); err != nil {
		t.Fatalf("first delete: %v", err)
	}
	err := svc.Delete(context.Background(), postID, owner, "")

	if !errors.Is(err, model.ErrPostNotFound) {
		t.Fatalf("expected ErrPostNotFound, got %v", err)
	}
	if got := f.db.user(author).PostCount; got != 0 {
		t.Errorf("expected post count 0, got %d", got)
	}
}

func TestPostService_Delete_ClampsDriftedCounter(t *testing.T) {
	// ARRANGE
	f := newFixture()
	author := f.db.addUser("ana")
	postID := f.db.addPost(author)
	if _, err := f.users.AdjustPostCount(context.Background(), nil, author, -5); err != nil {
		t.Fatalf("adjust: %v", err)
	}
	svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)

	// ACT
	err := svc.Delete(context.Background(), postID, model.Actor{UserID: author, Role: model.RoleUser}, "")

	// ASSERT
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := f.db.user(author).PostCount; got != 0 {
		t.Errorf("expected post count clamped at 0, got %d", got)
	}
}

func TestPostService_Restore(t *testing.T) {
	// ARRANGE
	f := newFixture()
	author := f.db.addUser("ana")
	postID := f.db.addPost(author)
	admin := f.db.addAdmin("root")
	svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)
	if err := svc.Delete(context.Background(), postID, model.Actor{UserID: admin, Role: model.RoleAdmin}, "spam"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	// ACT
	post, err := svc.Restore(context.Background(), postID)

	// ASSERT
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if post.IsDeleted || post.DeletionReason != nil {
		t.Error("expected the deletion fields to be cleared")
	}
	if got := f.db.user(author).PostCount; got != 1 {
		t.Errorf("expected post count 1, got %d", got)
	}

	_, err = svc.Restore(context.Background(), postID)
	if !errors.Is(err, model.ErrPostNotDeleted) {
		t.Errorf("expected ErrPostNotDeleted on a second restore, got %v", err)
	}
}

// =============================================================================
// UPDATE AND READS
// =============================================================================

func TestPostService_Update(t *testing.T) {
	f := newFixture()
	author := f.db.addUser("ana")
	other := f.db.addUser("ben")
	postID := f.db.addPost(author)
	svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)
	title := "  Machu Picchu at dawn  "

	t.Run("owner edits title", func(t *testing.T) {
		post, err := svc.Update(context.Background(), postID, author, model.UpdatePostRequest{Title: &title})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if post.Title != "Machu Picchu at dawn" {
			t.Errorf("expected trimmed title, got %q", post.Title)
		}
	})

	t.Run("non-owner is rejected", func(t *testing.T) {
		_, err := svc.Update(context.Background(), postID, other, model.UpdatePostRequest{Title: &title})
		if !errors.Is(err, model.ErrNotPostOwner) {
			t.Fatalf("expected ErrNotPostOwner, got %v", err)
		}
	})

	t.Run("category must match kind", func(t *testing.T) {
		category := "Festival"
		_, err := svc.Update(context.Background(), postID, author, model.UpdatePostRequest{Category: &category})
		if !errors.Is(err, model.ErrInvalidCategory) {
			t.Fatalf("expected ErrInvalidCategory, got %v", err)
		}
	})
}

func TestPostService_List_ViewerReaction(t *testing.T) {
	// ARRANGE
	f := newFixture()
	author := f.db.addUser("ana")
	viewer := f.db.addUser("ben")
	liked := f.db.addPost(author)
	f.db.addPost(author)
	svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)
	if _, err := NewEngagementService(f.db, f.posts).Like(context.Background(), liked, viewer); err != nil {
		t.Fatalf("like: %v", err)
	}

	// ACT
	resp, err := svc.List(context.Background(), model.PostFilter{}, &viewer)

	// ASSERT
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Posts) != 2 {
		t.Fatalf("expected 2 posts, got %d", len(resp.Posts))
	}
	for _, p := range resp.Posts {
		want := model.ReactionNone
		if p.ID == liked {
			want = model.ReactionLike
		}
		if p.ViewerReaction != want {
			t.Errorf("post %d: expected viewer reaction %q, got %q", p.ID, want, p.ViewerReaction)
		}
	}
}

func TestPostService_List_RejectsBadFilter(t *testing.T) {
	f := newFixture()
	svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)

	_, err := svc.List(context.Background(), model.PostFilter{Kind: model.PostKindJourney, Category: "Festival"}, nil)

	if !errors.Is(err, model.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
}

func TestPostService_CountryFeed_RequiresCountry(t *testing.T) {
	f := newFixture()
	svc := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)

	_, err := svc.CountryFeed(context.Background(), "  ", nil, 0, nil)

	if !errors.Is(err, model.ErrValidation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
}

// =============================================================================
// END TO END
// =============================================================================

func TestPostLifecycle_CreateLikeDislikeDelete(t *testing.T) {
	// ARRANGE
	f := newFixture()
	ctx := context.Background()
	posts := NewPostService(f.db, f.posts, f.users, f.miniAdmins, nil)
	engagement := NewEngagementService(f.db, f.posts)
	alex := f.db.addUser("alex")
	sam := f.db.addUser("sam")

	// ACT + ASSERT, step by step
	p1, err := posts.Create(ctx, alex, validPostRequest(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := f.db.user(alex).PostCount; got != 1 {
		t.Fatalf("after create: expected postCount 1, got %d", got)
	}

	if _, err := engagement.Like(ctx, p1.ID, sam); err != nil {
		t.Fatalf("like: %v", err)
	}
	reactions, err := posts.Reactions(ctx, p1.ID)
	if err != nil {
		t.Fatalf("reactions: %v", err)
	}
	if got := f.db.post(p1.ID).Likes; got != 1 {
		t.Errorf("after like: expected likes 1, got %d", got)
	}
	if len(reactions.LikedBy) != 1 || reactions.LikedBy[0].ID != sam {
		t.Errorf("after like: expected likedBy [sam], got %+v", reactions.LikedBy)
	}

	if _, err := engagement.Dislike(ctx, p1.ID, sam); err != nil {
		t.Fatalf("dislike: %v", err)
	}
	reactions, err = posts.Reactions(ctx, p1.ID)
	if err != nil {
		t.Fatalf("reactions: %v", err)
	}
	p := f.db.post(p1.ID)
	if p.Likes != 0 || p.Dislikes != 1 {
		t.Errorf("after dislike: expected likes 0 dislikes 1, got %d/%d", p.Likes, p.Dislikes)
	}
	if len(reactions.LikedBy) != 0 {
		t.Errorf("after dislike: expected likedBy empty, got %+v", reactions.LikedBy)
	}
	if len(reactions.DislikedBy) != 1 || reactions.DislikedBy[0].ID != sam {
		t.Errorf("after dislike: expected dislikedBy [sam], got %+v", reactions.DislikedBy)
	}

	if err := posts.Delete(ctx, p1.ID, model.Actor{UserID: alex, Role: model.RoleUser}, ""); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got := f.db.user(alex).PostCount; got != 0 {
		t.Errorf("after delete: expected postCount 0, got %d", got)
	}
}
