package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/dravek/basenotes/internal/service"
)

// NewRouter assembles the full API surface. Read endpoints accept
// tokens with notes:read; mutating note endpoints require notes:write.
// Account and token management endpoints accept session JWTs only,
// which the write-scope middleware covers since API tokens never carry
// those paths' scope.
func NewRouter(log *zap.Logger, signKey []byte, auth service.AuthService, notes service.NoteService, tokens service.TokenService) http.Handler {
	s := NewServer(auth, notes, tokens)

	r := mux.NewRouter()
	r.Use(Recover(log), Logging(log))

	api := r.PathPrefix("/api/v1").Subrouter()

	// Unauthenticated.
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	// Read access.
	read := api.NewRoute().Subrouter()
	read.Use(Auth(signKey, tokens, service.ScopeNotesRead))
	read.HandleFunc("/notes", s.handleListNotes).Methods(http.MethodGet)
	read.HandleFunc("/notes/{id}", s.handleGetNote).Methods(http.MethodGet)
	read.HandleFunc("/notes/{id}/export", s.handleExportNote).Methods(http.MethodGet)
	read.HandleFunc("/notes/{id}/history", s.handleHistory).Methods(http.MethodGet)
	read.HandleFunc("/notes/{id}/history/{versionId}", s.handleGetVersion).Methods(http.MethodGet)

	// Write access.
	write := api.NewRoute().Subrouter()
	write.Use(Auth(signKey, tokens, service.ScopeNotesWrite))
	write.HandleFunc("/notes", s.handleCreateNote).Methods(http.MethodPost)
	write.HandleFunc("/notes/{id}", s.handleUpdateNote).Methods(http.MethodPatch)
	write.HandleFunc("/notes/{id}", s.handleDeleteNote).Methods(http.MethodDelete)
	write.HandleFunc("/notes/{id}/history/{versionId}/rollback", s.handleRollback).Methods(http.MethodPost)

	// Session-only account management. API tokens cannot mint or revoke
	// tokens, nor change passwords.
	session := api.NewRoute().Subrouter()
	session.Use(Auth(signKey, noAPITokens{}, ""))
	session.HandleFunc("/auth/password", s.handleChangePassword).Methods(http.MethodPost)
	session.HandleFunc("/tokens", s.handleListTokens).Methods(http.MethodGet)
	session.HandleFunc("/tokens", s.handleCreateToken).Methods(http.MethodPost)
	session.HandleFunc("/tokens/{id}/revoke", s.handleRevokeToken).Methods(http.MethodPost)

	return r
}
