// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/finbrief/internal/domain/model"
)

// UserDependencies defines the interface for reference-data reads.
type UserDependencies interface {
	Users(ctx context.Context, force bool) model.Snapshot[model.UserRecord]
	LookupUser(ctx context.Context, telegramID string) (model.UserRecord, bool)
}

// UsersHandler handles reference-data requests.
type UsersHandler struct {
	deps UserDependencies
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps UserDependencies) *UsersHandler {
	return &UsersHandler{deps: deps}
}

// userEntry is the JSON shape for one normalized user row.
type userEntry struct {
	UserID     string   `json:"user_id"`
	TelegramID string   `json:"telegram_id"`
	Email      string   `json:"email,omitempty"`
	Plan       string   `json:"plan,omitempty"`
	Tickers    []string `json:"tickers,omitempty"`
	Verified   bool     `json:"verified"`
}

func toUserEntry(u model.UserRecord) userEntry {
	return userEntry{
		UserID:     u.UserID,
		TelegramID: u.TelegramID,
		Email:      u.Email,
		Plan:       u.Plan,
		Tickers:    u.Tickers,
		Verified:   u.Verified,
	}
}

// HandleSnapshot handles GET /users?refresh=true requests. A forced
// refresh replaces the cached snapshot from the store before responding.
func (h *UsersHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	force := r.URL.Query().Get("refresh") == "true"
	snap := h.deps.Users(r.Context(), force)

	entries := make([]userEntry, 0, len(snap.Items))
	for _, u := range snap.Items {
		entries = append(entries, toUserEntry(u))
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleLookup handles GET /users/{telegram_id} requests.
func (h *UsersHandler) HandleLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	user, ok := h.deps.LookupUser(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toUserEntry(user))
}
