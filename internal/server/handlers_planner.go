package server

import (
	"net/http"
	"strings"
	"time"

	"edushelf/internal/app"
	"edushelf/pkg/domain"
)

type todoRequest struct {
	Text      string `json:"text"`
	Completed *bool  `json:"completed"`
	Priority  string `json:"priority"`
	DueDate   string `json:"dueDate"`
}

type eventRequest struct {
	Title       string `json:"title"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

// parseDate accepts RFC 3339 timestamps and bare YYYY-MM-DD dates.
func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (r todoRequest) toInput() (app.TodoInput, bool) {
	in := app.TodoInput{Text: r.Text, Completed: r.Completed, Priority: r.Priority}
	due, ok := parseDate(r.DueDate)
	if !ok {
		return app.TodoInput{}, false
	}
	if !due.IsZero() {
		in.DueDate = &due
	}
	return in, true
}

func (r eventRequest) toInput() (app.EventInput, bool) {
	date, ok := parseDate(r.Date)
	if !ok {
		return app.EventInput{}, false
	}
	return app.EventInput{
		Title:       r.Title,
		Date:        date,
		Time:        r.Time,
		Type:        r.Type,
		Description: r.Description,
		Location:    r.Location,
	}, true
}

func (s *Server) handleTodos(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		todos, err := s.app.ListTodos(user)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, todos)
	case http.MethodPost:
		var req todoRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		input, ok := req.toInput()
		if !ok {
			writeError(w, http.StatusBadRequest, "dueDate must be a date")
			return
		}
		todo, err := s.app.CreateTodo(user, input)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, todo)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleTodoByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/todos/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req todoRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		input, ok := req.toInput()
		if !ok {
			writeError(w, http.StatusBadRequest, "dueDate must be a date")
			return
		}
		todo, err := s.app.UpdateTodo(user, id, input)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, todo)
	case http.MethodDelete:
		if err := s.app.DeleteTodo(user, id); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": id})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		events, err := s.app.ListEvents(user)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, events)
	case http.MethodPost:
		var req eventRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		input, ok := req.toInput()
		if !ok {
			writeError(w, http.StatusBadRequest, "date must be a date")
			return
		}
		event, err := s.app.CreateEvent(user, input)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusCreated, event)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleEventByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/events/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req eventRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON body")
			return
		}
		input, ok := req.toInput()
		if !ok {
			writeError(w, http.StatusBadRequest, "date must be a date")
			return
		}
		event, err := s.app.UpdateEvent(user, id, input)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, event)
	case http.MethodDelete:
		if err := s.app.DeleteEvent(user, id); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": id})
	default:
		methodNotAllowed(w)
	}
}
