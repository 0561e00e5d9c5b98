package domain

import "time"

// OutcomeType identifies the market mechanism. Binary-family markets
// (BINARY, PSEUDO_NUMERIC, STONK) share a single two-sided pool; multi
// markets carry one sub-pool per answer.
type OutcomeType string

const (
	OutcomeBinary        OutcomeType = "BINARY"
	OutcomeMultiOneOf    OutcomeType = "MULTI_ONE_OF"
	OutcomeMultiAdditive OutcomeType = "MULTI_ADDITIVE"
	OutcomePseudoNumeric OutcomeType = "PSEUDO_NUMERIC"
	OutcomeStonk         OutcomeType = "STONK"
)

// IsBinaryFamily reports whether the mechanism uses the market-level pool.
func (t OutcomeType) IsBinaryFamily() bool {
	switch t {
	case OutcomeBinary, OutcomePseudoNumeric, OutcomeStonk:
		return true
	}
	return false
}

// IsMulti reports whether the mechanism uses per-answer pools.
func (t OutcomeType) IsMulti() bool {
	return t == OutcomeMultiOneOf || t == OutcomeMultiAdditive
}

// Token is the currency a market is denominated in. The two tokens are
// independent ledgers and are never mixed within one trade.
type Token string

const (
	TokenMana Token = "MANA"
	TokenCash Token = "CASH"
)

// Visibility controls whether a market participates in public scoring.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
)

// Pool holds the YES and NO reserves of one constant-product curve.
type Pool struct {
	Yes float64
	No  float64
}

// Market is a prediction market. Binary-family markets price off Pool and
// the curve weight P; multi markets price off their Answers' sub-pools.
type Market struct {
	ID          string
	CreatorID   string
	Slug        string
	Question    string
	OutcomeType OutcomeType
	Token       Token

	Pool Pool
	P    float64 // curve weight in (0,1); 0.5 means symmetric reserves

	Answers               []Answer
	ShouldAnswersSumToOne bool

	// Hard probability bounds. No trade may move any outcome's
	// probability outside the open interval (MinProb, MaxProb).
	MinProb float64
	MaxProb float64

	Visibility Visibility
	IsRanked   bool

	// Resolution is empty while the market is open. For binary-family
	// markets it is "YES", "NO" or "MKT" (mark at ResolutionProb). Multi
	// markets resolve per answer.
	Resolution     string
	ResolutionProb *float64

	// Version is bumped on every pool commit; trade commits are a
	// compare-and-swap against the version read at match start.
	Version int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Answer is one outcome of a multi market with its own two-sided sub-pool.
// Sub-pools always use a symmetric curve weight of 0.5.
type Answer struct {
	ID         string
	MarketID   string
	Index      int
	Text       string
	Pool       Pool
	Resolution string // "", "YES" or "NO"
	CreatedAt  time.Time
}

// AnswerByID returns a pointer into m.Answers, or nil if absent.
func (m *Market) AnswerByID(id string) *Answer {
	for i := range m.Answers {
		if m.Answers[i].ID == id {
			return &m.Answers[i]
		}
	}
	return nil
}

// IsResolved reports whether the market (or, for multi markets, the given
// answer) has a terminal resolution.
func (m *Market) IsResolved() bool {
	return m.Resolution != ""
}
