// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/runecheck/middleware"
	"github.com/danielhkuo/runecheck/models"
	"github.com/danielhkuo/runecheck/voting"
)

type QuestionHandler struct {
	votes *voting.Service
}

func NewQuestionHandler(votes *voting.Service) *QuestionHandler {
	return &QuestionHandler{votes: votes}
}

// ListQuestions handles GET /questions?token=&status=
func (h *QuestionHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	questions, err := h.votes.ListQuestions(r.Context(), q.Get("token"), q.Get("status"))
	if err != nil {
		writeServiceError(w, err, "Failed to list questions")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.QuestionsResponse{Questions: questions})
}

// CurrentQuestion handles GET /questions/current?token=
func (h *QuestionHandler) CurrentQuestion(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "token is required")
		return
	}

	q, err := h.votes.CurrentQuestion(r.Context(), token)
	if err != nil {
		writeServiceError(w, err, "Failed to load current question")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.QuestionResponse{Question: q})
}

// GetQuestion handles GET /questions/{id}
func (h *QuestionHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := h.votes.GetQuestion(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err, "Failed to load question")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.QuestionResponse{Question: q})
}

// CreateQuestion handles POST /questions
func (h *QuestionHandler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req models.CreateQuestionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	q, err := h.votes.CreateQuestion(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "Failed to create question")
		return
	}

	slog.Info("question created", "question_id", q.ID, "token", q.Token, "created_by", q.CreatedBy)
	middleware.JSONResponse(w, http.StatusCreated, models.QuestionResponse{Question: q})
}

// UpdateStatus handles POST /update-status
func (h *QuestionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateStatusRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	q, err := h.votes.UpdateStatus(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "Failed to update status")
		return
	}

	slog.Info("question status updated", "question_id", q.ID, "status", q.Status)
	middleware.JSONResponse(w, http.StatusOK, models.QuestionResponse{Question: q})
}

// ArchiveSession handles POST /archive-session
func (h *QuestionHandler) ArchiveSession(w http.ResponseWriter, r *http.Request) {
	var req models.ArchiveSessionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	q, err := h.votes.Archive(r.Context(), req.QuestionID, req.TokenName, req.AdminAddress)
	if err != nil {
		writeServiceError(w, err, "Failed to archive session")
		return
	}

	slog.Info("question archived", "question_id", q.ID, "token", q.Token)
	middleware.JSONResponse(w, http.StatusOK, models.SuccessResponse{
		Success: true,
		Message: "Session archived successfully",
	})
}

// Sessions handles GET /sessions/{token}
func (h *QuestionHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.votes.ActiveSessions(r.Context(), r.PathValue("token"))
	if err != nil {
		writeServiceError(w, err, "Failed to load sessions")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.SessionsResponse{Success: true, Sessions: sessions})
}

// ArchivedSessions handles GET /archived-sessions/{token}
func (h *QuestionHandler) ArchivedSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.votes.ArchivedSessions(r.Context(), r.PathValue("token"))
	if err != nil {
		writeServiceError(w, err, "Failed to load archived sessions")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, models.SessionsResponse{Success: true, Sessions: sessions})
}
