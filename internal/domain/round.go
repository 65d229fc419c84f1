package domain

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// QuestionKind is what players are asked to identify in a round
type QuestionKind string

const (
	QuestionArtist QuestionKind = "artist"
	QuestionTitle  QuestionKind = "title"
)

// OptionsPerRound is the number of answer options shown in every round
const OptionsPerRound = 4

// Other returns the alternate question kind
func (k QuestionKind) Other() QuestionKind {
	if k == QuestionArtist {
		return QuestionTitle
	}
	return QuestionArtist
}

// RandomQuestionKind picks a question kind with equal probability
func RandomQuestionKind() QuestionKind {
	if rand.Intn(2) == 0 {
		return QuestionArtist
	}
	return QuestionTitle
}

// OptionText returns the answer text an item contributes for this kind
func (k QuestionKind) OptionText(item CatalogItem) string {
	if k == QuestionArtist {
		return item.MainArtist()
	}
	return item.CleanName()
}

// Round represents a single live question
type Round struct {
	Number        int           `json:"number"`
	Kind          QuestionKind  `json:"type"`
	CorrectAnswer string        `json:"correctAnswer"`
	Options       []string      `json:"options"`
	Item          CatalogItem   `json:"item"`
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"duration"`
}

// NewRound builds a round from the correct item and its distractors. Options are
// shuffled so the correct answer lands in a uniformly random slot. Returns
// ErrAmbiguousOptions when two options would read the same to a player.
func NewRound(number int, kind QuestionKind, correct CatalogItem, distractors []CatalogItem, startedAt time.Time, duration time.Duration) (*Round, error) {
	if len(distractors) != OptionsPerRound-1 {
		return nil, fmt.Errorf("%w: need %d distractors, got %d", ErrNotEnoughItems, OptionsPerRound-1, len(distractors))
	}

	answer := kind.OptionText(correct)
	options := make([]string, 0, OptionsPerRound)
	options = append(options, answer)
	seen := map[string]bool{strings.ToLower(answer): true}

	for _, item := range distractors {
		text := kind.OptionText(item)
		key := strings.ToLower(text)
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate %s option %q", ErrAmbiguousOptions, kind, text)
		}
		seen[key] = true
		options = append(options, text)
	}

	rand.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return &Round{
		Number:        number,
		Kind:          kind,
		CorrectAnswer: answer,
		Options:       options,
		Item:          correct,
		StartedAt:     startedAt,
		Duration:      duration,
	}, nil
}

// IsCorrect reports whether the submitted text exactly matches the correct answer
func (r *Round) IsCorrect(answer string) bool {
	return answer == r.CorrectAnswer
}

// ElapsedMs returns the server-measured time since the round started
func (r *Round) ElapsedMs(now time.Time) int64 {
	elapsed := now.Sub(r.StartedAt).Milliseconds()
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// DurationMs returns the round duration in milliseconds
func (r *Round) DurationMs() int64 {
	return r.Duration.Milliseconds()
}

// AnswerRecord is a player's scored answer for one round
type AnswerRecord struct {
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	Answer       string `json:"answer"`
	Correct      bool   `json:"correct"`
	PointsGained int    `json:"pointsGained"`
	TotalScore   int    `json:"totalScore"`
	ElapsedMs    int64  `json:"elapsedMs"`
	AnswerTimeMs *int64 `json:"answerTime,omitempty"` // client-reported, display only
}

// Standings orders players by score descending. Players with equal scores keep
// the order they were given in, which callers pass as join order.
func Standings(players []*Player) []PlayerInfo {
	standings := make([]PlayerInfo, 0, len(players))
	for _, p := range players {
		standings = append(standings, p.ToInfo())
	}
	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Score > standings[j].Score
	})
	return standings
}
