package bot

import (
	"context"

	"moviebot/internal/session"
)

// handlerFunc processes one event and returns the session to persist.
// On error the caller keeps the current session untouched.
type handlerFunc func(ctx context.Context, ev Event, cur session.Session) (session.Session, error)

type trigger struct {
	state session.State
	kind  EventKind
	label string
}

type transitionTable map[trigger]handlerFunc

// stateAny matches every state
const stateAny session.State = "*"

func (b *Bot) buildTransitions() transitionTable {
	return transitionTable{
		{stateAny, EventCommand, CommandStart}:   b.handleStart,
		{stateAny, EventCommand, CommandAdmin}:   b.handleAdmin,
		{stateAny, EventButton, ButtonEnterCode}: b.handleEnterCode,

		{session.StateAwaitingCode, EventText, ""}: b.handleCodeInput,

		{session.StateAdminPanel, EventButton, ButtonAddMovie}:    b.handleAddMovieStart,
		{session.StateAdminPanel, EventButton, ButtonListMovies}:  b.handleListMovies,
		{session.StateAdminPanel, EventButton, ButtonDeleteMovie}: b.handleDeleteMovieStart,
		{session.StateAdminPanel, EventButton, ButtonBroadcast}:   b.handleBroadcastStart,
		{session.StateAdminPanel, EventButton, ButtonStats}:       b.handleStats,
		{session.StateAdminPanel, EventButton, ButtonExitAdmin}:   b.handleExitAdmin,

		{session.StateAddingMovieCode, EventText, ""}:  b.handleMovieCodeInput,
		{session.StateAddingMovieTitle, EventText, ""}: b.handleMovieTitleInput,
		{session.StateDeletingMovie, EventText, ""}:    b.handleDeleteMovieInput,
		{session.StateBroadcasting, EventText, ""}:     b.handleBroadcastInput,
	}
}

// lookup resolves the handler for an event in the given state.
// Global triggers win; free-text states accept any text, including
// unrecognized commands and button labels.
func (t transitionTable) lookup(state session.State, ev Event) (handlerFunc, bool) {
	if h, ok := t[trigger{stateAny, ev.Kind, ev.Label}]; ok {
		return h, true
	}
	if h, ok := t[trigger{state, ev.Kind, ev.Label}]; ok {
		return h, true
	}
	if h, ok := t[trigger{state, EventText, ""}]; ok {
		return h, true
	}
	return nil, false
}
