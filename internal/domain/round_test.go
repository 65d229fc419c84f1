package domain

import (
	"errors"
	"testing"
	"time"
)

func item(id, name, artist string) CatalogItem {
	return CatalogItem{ID: id, Name: name, Artist: artist, Popularity: 50, URI: "spotify:track:" + id}
}

func TestNewRoundShufflesCorrectAnswerIn(t *testing.T) {
	correct := item("1", "Song One", "Artist A")
	distractors := []CatalogItem{
		item("2", "Song Two", "Artist B"),
		item("3", "Song Three", "Artist C"),
		item("4", "Song Four", "Artist D"),
	}

	positions := make(map[int]int)
	for i := 0; i < 400; i++ {
		round, err := NewRound(1, QuestionArtist, correct, distractors, time.Now(), 30*time.Second)
		if err != nil {
			t.Fatalf("NewRound failed: %v", err)
		}
		if len(round.Options) != OptionsPerRound {
			t.Fatalf("expected %d options, got %d", OptionsPerRound, len(round.Options))
		}
		found := 0
		for idx, opt := range round.Options {
			if opt == "Artist A" {
				found++
				positions[idx]++
			}
		}
		if found != 1 {
			t.Fatalf("correct answer present %d times, want 1", found)
		}
	}
	if len(positions) != OptionsPerRound {
		t.Fatalf("correct answer only landed in slots %v", positions)
	}
}

func TestNewRoundTitleUsesCleanName(t *testing.T) {
	correct := item("1", "Song One (Remastered 2011)", "Artist A")
	distractors := []CatalogItem{
		item("2", "Song Two - feat. Someone", "Artist B"),
		item("3", "Song Three [Live]", "Artist C"),
		item("4", "Song Four", "Artist D"),
	}

	round, err := NewRound(2, QuestionTitle, correct, distractors, time.Now(), 30*time.Second)
	if err != nil {
		t.Fatalf("NewRound failed: %v", err)
	}
	if round.CorrectAnswer != "Song One" {
		t.Fatalf("expected cleaned title, got %q", round.CorrectAnswer)
	}
	if !round.IsCorrect("Song One") || round.IsCorrect("song one") {
		t.Fatal("IsCorrect must be an exact match")
	}
}

func TestNewRoundRejectsAmbiguousOptions(t *testing.T) {
	correct := item("1", "Song One", "Artist A")
	distractors := []CatalogItem{
		item("2", "Song Two", "artist a"),
		item("3", "Song Three", "Artist C"),
		item("4", "Song Four", "Artist D"),
	}

	_, err := NewRound(1, QuestionArtist, correct, distractors, time.Now(), 30*time.Second)
	if !errors.Is(err, ErrAmbiguousOptions) {
		t.Fatalf("expected ErrAmbiguousOptions, got %v", err)
	}

	// the same items still make a valid title question
	if _, err := NewRound(1, QuestionTitle, correct, distractors, time.Now(), 30*time.Second); err != nil {
		t.Fatalf("title question should be valid: %v", err)
	}
}

func TestStandingsStableOnTies(t *testing.T) {
	a := NewPlayer("a", "Alice", true)
	b := NewPlayer("b", "Bob", false)
	c := NewPlayer("c", "Carol", false)
	d := NewPlayer("d", "Dave", false)
	a.AddPoints(50)
	b.AddPoints(100)
	c.AddPoints(50)
	d.AddPoints(100)

	got := Standings([]*Player{a, b, c, d})
	want := []string{"b", "d", "a", "c"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("standings[%d] = %s, want %s (full: %+v)", i, got[i].ID, id, got)
		}
	}
}

func TestGameConfigValidate(t *testing.T) {
	if err := DefaultGameConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := []GameConfig{
		{TotalRounds: 0, RoundDurationSeconds: 30, Category: "pop"},
		{TotalRounds: 51, RoundDurationSeconds: 30, Category: "pop"},
		{TotalRounds: 5, RoundDurationSeconds: 9, Category: "pop"},
		{TotalRounds: 5, RoundDurationSeconds: 61, Category: "pop"},
		{TotalRounds: 5, RoundDurationSeconds: 30, Category: "  "},
	}
	for _, cfg := range bad {
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig for %+v, got %v", cfg, err)
		}
	}
}

func TestCleanName(t *testing.T) {
	cases := map[string]string{
		"Hey Jude - Remastered 2015":  "Hey Jude",
		"Lose Yourself (From 8 Mile)": "Lose Yourself",
		"Bad Guy [Explicit]":          "Bad Guy",
		"Stay - feat. Justin Bieber":  "Stay",
		"Plain Title":                 "Plain Title",
		"(Untitled)":                  "(Untitled)",
	}
	for in, want := range cases {
		if got := (CatalogItem{Name: in}).CleanName(); got != want {
			t.Fatalf("CleanName(%q) = %q, want %q", in, got, want)
		}
	}
}
