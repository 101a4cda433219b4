package handler

import (
	"net/http"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/lucafranzi/contabile/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ============================================================
// Todos
// ============================================================

func listTodosHandler(svc *service.AgendaService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/todos")
		defer span.End()

		todos, err := svc.ListTodos(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"todos": todos})
	}
}

func createTodoHandler(svc *service.AgendaService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/todos")
		defer span.End()

		var req domain.TodoRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		todo, err := svc.CreateTodo(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, todo)
	}
}

func updateTodoHandler(svc *service.AgendaService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/todos/{todoId}")
		defer span.End()

		var req domain.TodoRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		todo, err := svc.UpdateTodo(ctx, chi.URLParam(r, "todoId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, todo)
	}
}

func deleteTodoHandler(svc *service.AgendaService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/todos/{todoId}")
		defer span.End()

		todoID := chi.URLParam(r, "todoId")
		if err := svc.DeleteTodo(ctx, todoID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeDeleted(w, todoID)
	}
}

// ============================================================
// Calendar events
// ============================================================

func listCalendarEventsHandler(svc *service.AgendaService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/calendar/events")
		defer span.End()

		events, err := svc.ListCalendarEvents(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": events})
	}
}

func createCalendarEventHandler(svc *service.AgendaService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/calendar/events")
		defer span.End()

		var req domain.CalendarEventRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		event, err := svc.CreateCalendarEvent(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, event)
	}
}

func updateCalendarEventHandler(svc *service.AgendaService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/calendar/events/{calEventId}")
		defer span.End()

		var req domain.CalendarEventRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		event, err := svc.UpdateCalendarEvent(ctx, chi.URLParam(r, "calEventId"), &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, event)
	}
}

func deleteCalendarEventHandler(svc *service.AgendaService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/calendar/events/{calEventId}")
		defer span.End()

		eventID := chi.URLParam(r, "calEventId")
		if err := svc.DeleteCalendarEvent(ctx, eventID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeDeleted(w, eventID)
	}
}
