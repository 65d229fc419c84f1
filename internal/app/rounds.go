package app

import (
	"context"
	"errors"
	"fmt"

	"songquiz/internal/domain"
	"songquiz/internal/events"
)

// Error codes the session broadcasts when it ends a game on its own
const (
	CodeHostLeft     = "HOST_LEFT"
	CodeCatalogError = "CATALOG_ERROR"
	CodeGameExpired  = "GAME_EXPIRED"
)

// maxSelectionAttempts bounds how often a round is re-drawn from the same
// pool when the options would be ambiguous.
const maxSelectionAttempts = 3

// StartGame starts the game (host only). Round 1 begins after the start delay.
func (s *GameSession) StartGame(requesterID string) error {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return domain.ErrGameClosed
	}
	if requesterID != s.hostID {
		return domain.ErrNotHost
	}
	if s.phase != domain.PhaseLobby {
		return domain.ErrGameAlreadyStarted
	}
	if s.expectedAnswers() < 1 {
		return domain.ErrNotEnoughPlayers
	}

	s.phase = domain.PhaseStarting
	s.currentRound = 0
	s.lastItem = nil
	s.touch()

	s.logger.Info().
		Int("players", len(s.players)).
		Int("rounds", s.config.TotalRounds).
		Str("category", s.config.Category).
		Msg("game started")

	s.broadcast(domain.EventGameStarted, &domain.GameStartedPayload{
		TotalRounds: s.config.TotalRounds,
		StartsInMs:  s.settings.Timings.StartDelay.Milliseconds(),
	})
	s.publish(events.GameStarted, "")

	s.schedule(s.settings.Timings.StartDelay, s.advanceRoundLocked)
	return nil
}

// advanceRoundLocked moves to the next round, or finishes after the last one.
// The catalog is queried without holding mu; the result is applied only if
// nothing reset or closed the game in the meantime.
func (s *GameSession) advanceRoundLocked() {
	if s.closed {
		return
	}

	s.round = nil
	s.currentRound++
	if s.currentRound > s.config.TotalRounds {
		s.finishLocked()
		return
	}

	s.epoch++
	go s.prepareRound(s.ctx, s.epoch, s.currentRound, s.config.Category)
}

// prepareRound fetches candidates and builds the next round off the lock
func (s *GameSession) prepareRound(ctx context.Context, epoch uint64, number int, category string) {
	round, err := s.buildRound(ctx, number, category)

	s.mu.Lock()
	defer s.unlock()

	if s.closed || s.epoch != epoch || s.currentRound != number {
		s.logger.Debug().Int("round", number).Msg("discarding stale round preparation")
		return
	}

	if err != nil {
		s.logger.Error().Err(err).Int("round", number).Str("category", category).Msg("failed to prepare round")
		s.broadcastError(CodeCatalogError, fmt.Sprintf("Failed to load music for round %d: %v", number, err))
		s.announceFinishLocked()
		s.publish(events.GameAborted, "catalog failure")
		s.closeLocked()
		return
	}

	s.startRoundLocked(round)
}

// buildRound draws a question from the catalog for the given round number
func (s *GameSession) buildRound(ctx context.Context, number int, category string) (*domain.Round, error) {
	pool, err := s.deps.provider.Items(ctx, category, s.settings.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("fetching items: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < maxSelectionAttempts; attempt++ {
		sel, err := s.deps.selector.Select(pool)
		if err != nil {
			return nil, err
		}

		kind := domain.RandomQuestionKind()
		round, err := domain.NewRound(number, kind, sel.Correct, sel.Distractors, s.deps.clock.Now(), 0)
		if errors.Is(err, domain.ErrAmbiguousOptions) {
			round, err = domain.NewRound(number, kind.Other(), sel.Correct, sel.Distractors, s.deps.clock.Now(), 0)
		}
		if err == nil {
			return round, nil
		}
		if !errors.Is(err, domain.ErrAmbiguousOptions) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// startRoundLocked makes round live and arms the round timer
func (s *GameSession) startRoundLocked(round *domain.Round) {
	round.StartedAt = s.deps.clock.Now()
	round.Duration = s.config.RoundDuration()

	s.round = round
	s.answered = make(map[string]bool)
	s.records = make(map[string]*domain.AnswerRecord)
	s.phase = domain.PhaseRoundActive
	s.touch()

	s.logger.Debug().
		Int("round", round.Number).
		Str("type", string(round.Kind)).
		Str("track_id", round.Item.ID).
		Msg("round started")

	s.broadcast(domain.EventRoundStarted, &domain.RoundStartedPayload{
		Round:       round.Number,
		TotalRounds: s.config.TotalRounds,
		Question: domain.QuestionPayload{
			Type:    round.Kind,
			Options: round.Options,
			URI:     round.Item.URI,
		},
		Duration:        s.config.RoundDurationSeconds,
		RandomStartTime: s.config.RandomStartTime,
	})

	s.schedule(round.Duration, s.endRoundLocked)
}

// SubmitAnswer records a player's answer for the live round. Answers with no
// live round, repeat answers and host answers in host-only mode are ignored.
// answerTimeMs is the client's own measurement and is kept for display only.
func (s *GameSession) SubmitAnswer(playerID, answer string, answerTimeMs *int64) error {
	s.mu.Lock()
	defer s.unlock()

	if s.closed {
		return domain.ErrGameClosed
	}
	player, ok := s.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if s.round == nil || s.answered[playerID] {
		return nil
	}
	if s.config.HostOnlyMode && playerID == s.hostID {
		return nil
	}

	s.answered[playerID] = true

	elapsed := s.round.ElapsedMs(s.deps.clock.Now())
	correct := s.round.IsCorrect(answer)
	points := domain.Points(correct, elapsed, s.round.DurationMs())
	total := player.AddPoints(points)

	s.records[playerID] = &domain.AnswerRecord{
		PlayerID:     playerID,
		PlayerName:   player.Name,
		Answer:       answer,
		Correct:      correct,
		PointsGained: points,
		TotalScore:   total,
		ElapsedMs:    elapsed,
		AnswerTimeMs: answerTimeMs,
	}
	s.touch()

	s.sendTo(playerID, domain.EventAnswerResult, &domain.AnswerResultPayload{
		Correct:       correct,
		CorrectAnswer: s.round.CorrectAnswer,
		Points:        total,
		PointsGained:  points,
	})

	if len(s.answered) >= s.expectedAnswers() {
		s.endRoundLocked()
	}
	return nil
}

// endRoundLocked reveals the answer and schedules what comes next. It is a
// no-op when no round is live, which makes a late timer harmless.
func (s *GameSession) endRoundLocked() {
	if s.round == nil {
		return
	}
	s.cancelPending()

	round := s.round
	results := make([]domain.AnswerRecord, 0, len(s.players))
	for _, p := range s.playersInOrder() {
		if s.config.HostOnlyMode && p.ID == s.hostID {
			continue
		}
		if rec, ok := s.records[p.ID]; ok {
			results = append(results, *rec)
			continue
		}
		results = append(results, domain.AnswerRecord{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			TotalScore: p.Score,
		})
	}

	item := round.Item
	s.lastItem = &item
	s.round = nil
	s.answered = make(map[string]bool)
	s.records = make(map[string]*domain.AnswerRecord)
	s.phase = domain.PhaseRoundEnded
	s.touch()

	s.logger.Debug().Int("round", round.Number).Int("answers", len(results)).Msg("round ended")

	s.broadcast(domain.EventRoundEnded, &domain.RoundEndedPayload{
		Round:         round.Number,
		CorrectAnswer: round.CorrectAnswer,
		Track:         item.ToTrackInfo(),
		Results:       results,
		Standings:     domain.Standings(s.playersInOrder()),
	})

	timings := s.settings.Timings
	if s.currentRound >= s.config.TotalRounds {
		s.schedule(timings.FinalRoundDelay, s.finishLocked)
		return
	}

	lead := timings.FadeOutLead
	if lead > timings.InterRoundDelay {
		lead = timings.InterRoundDelay
	}
	s.schedule(timings.InterRoundDelay-lead, func() {
		s.broadcast(domain.EventPrepareNextRound, &domain.PrepareNextRoundPayload{
			FadeOutDurationMs: lead.Milliseconds(),
		})
		s.schedule(lead, s.advanceRoundLocked)
	})
}

// finishLocked ends the game and broadcasts the final standings
func (s *GameSession) finishLocked() {
	if s.phase == domain.PhaseFinished {
		return
	}
	s.announceFinishLocked()
	s.logger.Info().Int("rounds", s.config.TotalRounds).Msg("game finished")
	s.publish(events.GameFinished, "")
}

// announceFinishLocked moves to Finished and sends the final standings along
// with the last revealed track
func (s *GameSession) announceFinishLocked() {
	s.cancelPending()
	s.round = nil
	s.phase = domain.PhaseFinished
	s.touch()

	payload := &domain.GameFinishedPayload{
		FinalScores: domain.Standings(s.playersInOrder()),
	}
	if s.lastItem != nil {
		payload.Track = s.lastItem.ToTrackInfo()
	}

	s.broadcast(domain.EventGameFinished, payload)
}
