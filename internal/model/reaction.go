package model

// Reaction is the per-user, per-post engagement state.
type Reaction string

const (
	ReactionNone    Reaction = ""
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

// ReactionAction is one of the four engagement transitions.
type ReactionAction string

const (
	ActionLike      ReactionAction = "like"
	ActionDislike   ReactionAction = "dislike"
	ActionUnlike    ReactionAction = "unlike"
	ActionUndislike ReactionAction = "undislike"
)

// ReactionTransition is the outcome of applying an action: the next state and
// the counter deltas that keep likes == |likedBy| and dislikes == |dislikedBy|.
type ReactionTransition struct {
	From          Reaction
	Next          Reaction
	LikesDelta    int
	DislikesDelta int
}

// NextReaction applies action to current. Rejected transitions return a
// Conflict and no deltas, so callers can stop before writing anything.
//
//	neutral  --like-->      liked      (+1, 0)
//	disliked --like-->      liked      (+1, -1)
//	neutral  --dislike-->   disliked   (0, +1)
//	liked    --dislike-->   disliked   (-1, +1)
//	liked    --unlike-->    neutral    (-1, 0)
//	disliked --undislike--> neutral    (0, -1)
func NextReaction(current Reaction, action ReactionAction) (ReactionTransition, error) {
	t := ReactionTransition{From: current}

	switch action {
	case ActionLike:
		switch current {
		case ReactionLike:
			return t, ErrAlreadyLiked
		case ReactionDislike:
			t.DislikesDelta = -1
		}
		t.Next = ReactionLike
		t.LikesDelta = 1
	case ActionDislike:
		switch current {
		case ReactionDislike:
			return t, ErrAlreadyDisliked
		case ReactionLike:
			t.LikesDelta = -1
		}
		t.Next = ReactionDislike
		t.DislikesDelta = 1
	case ActionUnlike:
		if current != ReactionLike {
			return t, ErrNotLiked
		}
		t.Next = ReactionNone
		t.LikesDelta = -1
	case ActionUndislike:
		if current != ReactionDislike {
			return t, ErrNotDisliked
		}
		t.Next = ReactionNone
		t.DislikesDelta = -1
	default:
		return t, Validationf("unknown reaction action %q", action)
	}

	return t, nil
}

// Engagement errors
var (
	ErrAlreadyLiked    = NewError(KindConflict, "post already liked")
	ErrAlreadyDisliked = NewError(KindConflict, "post already disliked")
	ErrNotLiked        = NewError(KindConflict, "post not liked")
	ErrNotDisliked     = NewError(KindConflict, "post not disliked")
)

// EngagementResult is returned by every engagement transition.
type EngagementResult struct {
	PostID   int64    `json:"postId"`
	Reaction Reaction `json:"reaction"`

	EngagementMetrics `json:"engagementMetrics"`
}
