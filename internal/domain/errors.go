package domain

import "errors"

// Domain errors
var (
	ErrGameNotFound       = errors.New("game not found")
	ErrGameFull           = errors.New("game is full")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrGameClosed         = errors.New("game has ended")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrNotHost            = errors.New("only host can perform this action")
	ErrInvalidConfig      = errors.New("invalid game config")
	ErrEmptyName          = errors.New("name cannot be empty")
	ErrAlreadyInGame      = errors.New("connection already belongs to a game")
	ErrNotEnoughPlayers   = errors.New("not enough players to start")

	// Catalog and selection failures are fatal to the game that hit them.
	ErrNotEnoughItems     = errors.New("not enough catalog items")
	ErrAmbiguousOptions   = errors.New("could not build distinct answer options")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrMissingCredentials = errors.New("catalog credentials not configured")
)
