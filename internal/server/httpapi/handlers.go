package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/mux"

	"github.com/dravek/basenotes/internal/model"
	"github.com/dravek/basenotes/internal/service"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth     service.AuthService
	notes    service.NoteService
	tokens   service.TokenService
	validate *validator.Validate
}

// NewServer constructs the HTTP handler set.
func NewServer(auth service.AuthService, notes service.NoteService, tokens service.TokenService) *Server {
	return &Server{
		auth:     auth,
		notes:    notes,
		tokens:   tokens,
		validate: validator.New(),
	}
}

// --- request/response shapes ---

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=10"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=10"`
}

type createNoteRequest struct {
	Title  string `json:"title" validate:"max=500"`
	BodyMD string `json:"body_md"`
}

type updateNoteRequest struct {
	Title  *string `json:"title" validate:"omitempty,max=500"`
	BodyMD *string `json:"body_md"`
}

type createTokenRequest struct {
	Name   string `json:"name" validate:"required,max=100"`
	Scopes string `json:"scopes"`
}

type noteResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	BodyMD    string `json:"body_md"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	DeletedAt *int64 `json:"deleted_at,omitempty"`
}

type noteListItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	UpdatedAt int64  `json:"updated_at"`
}

type versionResponse struct {
	ID              string `json:"id"`
	NoteID          string `json:"note_id"`
	VersionNo       int64  `json:"version_no"`
	Title           string `json:"title"`
	BodyMD          string `json:"body_md"`
	SourceUpdatedAt int64  `json:"source_updated_at"`
	CreatedAt       int64  `json:"created_at"`
	EventType       string `json:"event_type"`
}

func toNoteResponse(n *model.Note) noteResponse {
	return noteResponse{
		ID:        n.ID.String(),
		Title:     n.Title,
		BodyMD:    n.Body,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		DeletedAt: n.DeletedAt,
	}
}

func toVersionResponse(v *model.Version) versionResponse {
	return versionResponse{
		ID:              v.ID.String(),
		NoteID:          v.NoteID.String(),
		VersionNo:       v.Seq,
		Title:           v.Title,
		BodyMD:          v.Body,
		SourceUpdatedAt: v.SourceUpdatedAt,
		CreatedAt:       v.CreatedAt,
		EventType:       string(v.Event),
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "Request body is not valid JSON.")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error())
		return false
	}
	return true
}

func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(mux.Vars(r)[name])
	return id, err == nil
}

// mustUser returns the authenticated user or writes a 401. The auth
// middleware always sets it; the guard covers misrouted handlers.
func mustUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := UserIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Not authenticated.")
	}
	return id, ok
}

// --- auth handlers ---

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decode(w, r, &req) {
		return
	}
	userID, err := s.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"user_id": userID})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decode(w, r, &req) {
		return
	}
	tokens, _, err := s.auth.LoginWithIP(r.Context(), req.Email, req.Password, remoteIP(r))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": tokens.AccessToken,
		"expires_at":   tokens.ExpiresAt.Unix(),
	})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	var req changePasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.auth.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"updated": true})
}

// --- note handlers ---

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	var req createNoteRequest
	if !s.decode(w, r, &req) {
		return
	}
	n, err := s.notes.Create(r.Context(), userID, req.Title, req.BodyMD)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNoteResponse(n))
}

// handleListNotes serves both listing modes: with ?q= it returns the
// full filtered collection, otherwise a cursor page.
func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	if q := r.URL.Query().Get("q"); q != "" {
		notes, err := s.notes.List(r.Context(), userID, q)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": listItems(notes)})
		return
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	notes, next, err := s.notes.ListPage(r.Context(), userID, r.URL.Query().Get("cursor"), perPage)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	resp := map[string]any{"data": listItems(notes)}
	if next != "" {
		resp["next_cursor"] = next
	}
	writeJSON(w, http.StatusOK, resp)
}

func listItems(notes []model.Note) []noteListItem {
	items := make([]noteListItem, 0, len(notes))
	for i := range notes {
		items = append(items, noteListItem{
			ID:        notes[i].ID.String(),
			Title:     notes[i].Title,
			UpdatedAt: notes[i].UpdatedAt,
		})
	}
	return items
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	noteID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
		return
	}
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"
	n, err := s.notes.Get(r.Context(), userID, noteID, includeDeleted)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(n))
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	noteID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
		return
	}
	var req updateNoteRequest
	if !s.decode(w, r, &req) {
		return
	}

	// Omitted fields keep their current value.
	existing, err := s.notes.Get(r.Context(), userID, noteID, false)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	title := existing.Title
	if req.Title != nil {
		title = *req.Title
	}
	body := existing.Body
	if req.BodyMD != nil {
		body = *req.BodyMD
	}

	n, err := s.notes.Update(r.Context(), userID, noteID, title, body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(n))
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	noteID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
		return
	}
	if err := s.notes.Delete(r.Context(), userID, noteID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	noteID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	versions, err := s.notes.History(r.Context(), userID, noteID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	out := make([]versionResponse, 0, len(versions))
	for i := range versions {
		out = append(out, toVersionResponse(&versions[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	noteID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
		return
	}
	versionID, ok := pathID(r, "versionId")
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
		return
	}
	v, err := s.notes.GetVersion(r.Context(), userID, noteID, versionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toVersionResponse(v))
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	noteID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
		return
	}
	versionID, ok := pathID(r, "versionId")
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
		return
	}
	n, err := s.notes.Rollback(r.Context(), userID, noteID, versionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(n))
}

var exportNameRe = regexp.MustCompile(`[^A-Za-z0-9]+`)

// exportFilename derives a safe markdown filename from a note title.
func exportFilename(title string) string {
	base := exportNameRe.ReplaceAllString(strings.TrimSpace(title), "-")
	base = strings.Trim(base, "-")
	if base == "" {
		base = "note"
	}
	if len(base) > 80 {
		base = base[:80]
	}
	return base + ".md"
}

func (s *Server) handleExportNote(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	noteID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
		return
	}
	n, err := s.notes.Get(r.Context(), userID, noteID, false)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(n.Title)))
	_, _ = w.Write([]byte(n.Body))
}

// --- token handlers ---

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	tokens, err := s.tokens.List(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	type tokenItem struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Scopes     string `json:"scopes"`
		CreatedAt  int64  `json:"created_at"`
		LastUsedAt *int64 `json:"last_used_at,omitempty"`
		RevokedAt  *int64 `json:"revoked_at,omitempty"`
	}
	out := make([]tokenItem, 0, len(tokens))
	for i := range tokens {
		t := &tokens[i]
		out = append(out, tokenItem{
			ID:         t.ID.String(),
			Name:       t.Name,
			Scopes:     t.Scopes,
			CreatedAt:  t.CreatedAt,
			LastUsedAt: t.LastUsedAt,
			RevokedAt:  t.RevokedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	var req createTokenRequest
	if !s.decode(w, r, &req) {
		return
	}
	raw, t, err := s.tokens.Issue(r.Context(), userID, req.Name, req.Scopes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// The raw token is returned exactly once.
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":     t.ID.String(),
		"name":   t.Name,
		"scopes": t.Scopes,
		"token":  raw,
	})
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := mustUser(w, r)
	if !ok {
		return
	}
	tokenID, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found.")
		return
	}
	if err := s.tokens.Revoke(r.Context(), userID, tokenID); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"revoked": true})
}
