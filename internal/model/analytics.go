package model

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	UserID   int64  `db:"id" json:"userId"`
	Username string `db:"username" json:"username,omitempty"`
	Score    int64  `db:"score" json:"score"`
}

// Overview is the admin dashboard summary.
type Overview struct {
	Users        int                `db:"users" json:"users"`
	ActivePosts  int                `db:"active_posts" json:"activePosts"`
	DeletedPosts int                `db:"deleted_posts" json:"deletedPosts"`
	Communities  int                `db:"communities" json:"communities"`
	MiniAdmins   int                `db:"mini_admins" json:"miniAdmins"`
	Badges       int                `db:"badges" json:"badges"`
	Achievements int                `db:"achievements" json:"achievements"`
	GameSessions int                `db:"game_sessions" json:"gameSessions"`
	QuizAttempts int                `db:"quiz_attempts" json:"quizAttempts"`
	TotalScore   int64              `db:"total_score" json:"totalScore"`
	TopPlayers   []LeaderboardEntry `json:"topPlayers"`
}

// ReconcileReport counts rows whose cached counter disagreed with the
// authoritative set and was rewritten.
type ReconcileReport struct {
	PostCounts       int64 `json:"postCounts"`
	MemberCounts     int64 `json:"memberCounts"`
	Engagement       int64 `json:"engagement"`
	MiniAdminFlags   int64 `json:"miniAdminFlags"`
	QuizzesCompleted int64 `json:"quizzesCompleted"`
}

// Total is the number of corrected rows across all counters.
func (r ReconcileReport) Total() int64 {
	return r.PostCounts + r.MemberCounts + r.Engagement + r.MiniAdminFlags + r.QuizzesCompleted
}
