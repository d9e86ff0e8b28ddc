package app

import (
	"fmt"
	"strings"
	"time"

	"edushelf/internal/util"
	"edushelf/pkg/domain"
)

// TodoInput carries the writable todo fields.
type TodoInput struct {
	Text      string
	Completed *bool
	Priority  string
	DueDate   *time.Time
}

// EventInput carries the writable calendar-event fields.
type EventInput struct {
	Title       string
	Date        time.Time
	Time        string
	Type        string
	Description string
	Location    string
}

// CreateTodo adds a todo for the user. Priority defaults to medium.
func (a *App) CreateTodo(user domain.User, in TodoInput) (domain.Todo, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return domain.Todo{}, ErrTodoInvalid
	}
	priority := domain.TodoPriority(in.Priority)
	switch priority {
	case domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow:
	default:
		priority = domain.PriorityMedium
	}
	now := time.Now().UTC()
	todo := domain.Todo{
		ID:        util.NewID(),
		UserID:    user.ID,
		Text:      text,
		Priority:  priority,
		DueDate:   in.DueDate,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateTodo(todo); err != nil {
		return domain.Todo{}, fmt.Errorf("save todo: %w", err)
	}
	return todo, nil
}

// ListTodos returns the user's todos, newest first.
func (a *App) ListTodos(user domain.User) ([]domain.Todo, error) {
	return a.store.ListTodos(user.ID)
}

// UpdateTodo edits an owned todo. Someone else's todo reads as absent.
func (a *App) UpdateTodo(user domain.User, todoID string, in TodoInput) (domain.Todo, error) {
	todo, ok, err := a.store.GetTodo(todoID)
	if err != nil {
		return domain.Todo{}, fmt.Errorf("fetch todo: %w", err)
	}
	if !ok || todo.UserID != user.ID {
		return domain.Todo{}, ErrTodoNotFound
	}
	if text := strings.TrimSpace(in.Text); text != "" {
		todo.Text = text
	}
	if in.Completed != nil {
		todo.Completed = *in.Completed
	}
	if in.Priority != "" {
		priority := domain.TodoPriority(in.Priority)
		switch priority {
		case domain.PriorityHigh, domain.PriorityMedium, domain.PriorityLow:
			todo.Priority = priority
		}
	}
	if in.DueDate != nil {
		todo.DueDate = in.DueDate
	}
	todo.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateTodo(todo); err != nil {
		return domain.Todo{}, fmt.Errorf("update todo: %w", err)
	}
	return todo, nil
}

// DeleteTodo removes an owned todo.
func (a *App) DeleteTodo(user domain.User, todoID string) error {
	todo, ok, err := a.store.GetTodo(todoID)
	if err != nil {
		return fmt.Errorf("fetch todo: %w", err)
	}
	if !ok || todo.UserID != user.ID {
		return ErrTodoNotFound
	}
	return a.store.DeleteTodo(todo.ID)
}

// CreateEvent adds a calendar event for the user.
func (a *App) CreateEvent(user domain.User, in EventInput) (domain.Event, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.Date.IsZero() {
		return domain.Event{}, ErrEventInvalid
	}
	eventType := domain.EventType(in.Type)
	switch eventType {
	case domain.EventMeeting, domain.EventDeadline, domain.EventTask, domain.EventReminder:
	default:
		eventType = domain.EventTask
	}
	event := domain.Event{
		ID:          util.NewID(),
		UserID:      user.ID,
		Title:       title,
		Date:        in.Date,
		Time:        strings.TrimSpace(in.Time),
		Type:        eventType,
		Description: strings.TrimSpace(in.Description),
		Location:    strings.TrimSpace(in.Location),
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.store.CreateEvent(event); err != nil {
		return domain.Event{}, fmt.Errorf("save event: %w", err)
	}
	return event, nil
}

// ListEvents returns the user's events ordered by date.
func (a *App) ListEvents(user domain.User) ([]domain.Event, error) {
	return a.store.ListEvents(user.ID)
}

// UpdateEvent edits an owned event.
func (a *App) UpdateEvent(user domain.User, eventID string, in EventInput) (domain.Event, error) {
	event, ok, err := a.store.GetEvent(eventID)
	if err != nil {
		return domain.Event{}, fmt.Errorf("fetch event: %w", err)
	}
	if !ok || event.UserID != user.ID {
		return domain.Event{}, ErrEventNotFound
	}
	if title := strings.TrimSpace(in.Title); title != "" {
		event.Title = title
	}
	if !in.Date.IsZero() {
		event.Date = in.Date
	}
	if t := strings.TrimSpace(in.Time); t != "" {
		event.Time = t
	}
	if in.Type != "" {
		eventType := domain.EventType(in.Type)
		switch eventType {
		case domain.EventMeeting, domain.EventDeadline, domain.EventTask, domain.EventReminder:
			event.Type = eventType
		}
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		event.Description = d
	}
	if l := strings.TrimSpace(in.Location); l != "" {
		event.Location = l
	}
	if err := a.store.UpdateEvent(event); err != nil {
		return domain.Event{}, fmt.Errorf("update event: %w", err)
	}
	return event, nil
}

// DeleteEvent removes an owned event.
func (a *App) DeleteEvent(user domain.User, eventID string) error {
	event, ok, err := a.store.GetEvent(eventID)
	if err != nil {
		return fmt.Errorf("fetch event: %w", err)
	}
	if !ok || event.UserID != user.ID {
		return ErrEventNotFound
	}
	return a.store.DeleteEvent(event.ID)
}
