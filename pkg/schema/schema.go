// Package schema defines the record types shared across the askdeck services.
package schema

// Event is one immutable question-asked occurrence. Records are created on
// write and never mutated or deleted.
type Event struct {
	EventID    string `json:"event_id"`
	UserID     string `json:"user_id"`
	Question   string `json:"question"`
	Response   string `json:"response"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
	CreatedAt  int64  `json:"created_at"`
}

// Profile is the per-user profile record, stored as a hash keyed by the
// user's employee ID. Username uniqueness is advisory only; it is checked by
// a full key-space scan at signup, not enforced by the backend.
type Profile struct {
	EmployeeID     string `json:"employee_id"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	Department     string `json:"department"`
	Role           string `json:"role"`
	QuestionsAsked int64  `json:"questions_asked"`
	LoginCount     int64  `json:"login_count"`
	LastLogin      int64  `json:"last_login"`
	CreatedAt      int64  `json:"created_at"`
	Status         string `json:"status"`
}

// Stats is the counter subset of a profile.
type Stats struct {
	QuestionsAsked int64 `json:"questions_asked"`
	LoginCount     int64 `json:"login_count"`
	LastLogin      int64 `json:"last_login"`
	CreatedAt      int64 `json:"created_at"`
}

// Session maps an opaque token to an authenticated identity. Stored as a JSON
// scalar with a configured TTL; one live session per identity is intended.
type Session struct {
	EmployeeID    string `json:"employee_id"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	Authenticated bool   `json:"authenticated"`
}

// TimeRange echoes the caller-supplied window bounds on analytics responses.
// Nil bounds mean the query was unbounded on that side.
type TimeRange struct {
	Start *int64 `json:"start"`
	End   *int64 `json:"end"`
}

// UserAnalytics aggregates one user's question events.
type UserAnalytics struct {
	TotalQuestions  int            `json:"total_questions"`
	Categories      map[string]int `json:"categories"`
	Difficulties    map[string]int `json:"difficulties"`
	RecentQuestions []Event        `json:"recent_questions"`
}

// GlobalAnalytics aggregates events system-wide. Category and difficulty
// distributions both come from the reverse-joined records.
type GlobalAnalytics struct {
	TotalQuestions         int            `json:"total_questions"`
	CategoryDistribution   map[string]int `json:"category_distribution"`
	DifficultyDistribution map[string]int `json:"difficulty_distribution"`
	TimeRange              TimeRange      `json:"time_range"`
}

// CategoryAnalytics aggregates events for one category.
//
// The difficulty breakdown is reported two ways: DifficultyDistribution
// counts the records joined for this query, DifficultyTotals reads the
// sibling difficulty-by-category index cardinalities. The two can diverge
// when a write's index fan-out partially failed; both are kept on purpose.
type CategoryAnalytics struct {
	Category               string         `json:"category"`
	TotalQuestions         int            `json:"total_questions"`
	DifficultyDistribution map[string]int `json:"difficulty_distribution"`
	DifficultyTotals       map[string]int `json:"difficulty_totals"`
	Questions              []Event        `json:"questions"`
	TimeRange              TimeRange      `json:"time_range"`
}

// TimeAnalytics buckets one user's events by hour over a trailing window.
type TimeAnalytics struct {
	TimePeriodHours    int           `json:"time_period_hours"`
	TotalQuestions     int           `json:"total_questions"`
	HourlyDistribution map[int64]int `json:"hourly_distribution"`
	StartTime          int64         `json:"start_time"`
	EndTime            int64         `json:"end_time"`
}
