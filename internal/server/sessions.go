package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/foxseedlab/ko2bn/internal/repository"
	"github.com/foxseedlab/ko2bn/internal/session"
	"github.com/go-chi/chi/v5"
)

type createSessionRequest struct {
	ProjectID  *int64 `json:"projectId"`
	ModuleType string `json:"moduleType"`
}

type sessionResponse struct {
	ID          int64      `json:"id"`
	SessionCode string     `json:"sessionCode"`
	ProjectID   *int64     `json:"projectId"`
	CreatedBy   int64      `json:"createdBy"`
	ModuleType  string     `json:"moduleType"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	EndedAt     *time.Time `json:"endedAt"`
}

type joinResponse struct {
	SessionID   int64  `json:"sessionId"`
	SessionCode string `json:"sessionCode"`
}

type transcriptResponse struct {
	ID               int64              `json:"id"`
	UserID           *int64             `json:"userId"`
	SpeakerName      string             `json:"speakerName"`
	OriginalText     string             `json:"originalText"`
	OriginalLanguage string             `json:"originalLanguage"`
	Translations     map[string]*string `json:"translations"`
	Timestamp        time.Time          `json:"timestamp"`
}

func toSessionResponse(s *repository.Session) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		SessionCode: s.Code,
		ProjectID:   s.ProjectID,
		CreatedBy:   s.CreatedBy,
		ModuleType:  string(s.ModuleType),
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt,
		EndedAt:     s.EndedAt,
	}
}

func toTranscriptResponse(e repository.TranscriptEntry) transcriptResponse {
	return transcriptResponse{
		ID:               e.ID,
		UserID:           e.UserID,
		SpeakerName:      e.SpeakerName,
		OriginalText:     e.OriginalText,
		OriginalLanguage: string(e.OriginalLanguage),
		Translations:     e.Translations.ByLanguage(),
		Timestamp:        e.Timestamp,
	}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requesterID(r)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, userIDHeader+" header is required")
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sess, err := s.registry.CreateSession(r.Context(), session.CreateInput{
		ProjectID:  req.ProjectID,
		ModuleType: repository.ModuleType(req.ModuleType),
		CreatorID:  userID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Join(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, joinResponse{SessionID: sess.ID, SessionCode: sess.Code})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requesterID(r)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, userIDHeader+" header is required")
		return
	}
	sess, err := s.registry.EndSession(r.Context(), chi.URLParam(r, "code"), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleCancelSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := requesterID(r)
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, userIDHeader+" header is required")
		return
	}
	sess, err := s.registry.CancelSession(r.Context(), chi.URLParam(r, "code"), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.registry.ListTranscripts(r.Context(), sess.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]transcriptResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toTranscriptResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListUserSessions(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		writeErrorMessage(w, http.StatusBadRequest, "invalid user id")
		return
	}
	sessions, err := s.registry.ListByCreator(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionResponse(&sessions[i]))
	}
	writeJSON(w, http.StatusOK, out)
}
