package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lucafranzi/contabile/internal/domain"
)

// ============================================================
// Todos
// ============================================================

func (s *Store) CreateTodo(ctx context.Context, t *domain.Todo) error {
	ctx, span := tracer.Start(ctx, "Store.CreateTodo")
	defer span.End()

	t.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO todos (id, text, done, due_date, created_at) VALUES (?, ?, ?, ?, ?)`,
		t.ID, t.Text, t.Done, t.DueDate, t.CreatedAt)
	if err != nil {
		return storageErr("create todo", err)
	}
	return nil
}

func (s *Store) ListTodos(ctx context.Context) ([]domain.Todo, error) {
	ctx, span := tracer.Start(ctx, "Store.ListTodos")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT id, text, done, due_date, created_at FROM todos`)
	if err != nil {
		return nil, storageErr("list todos", err)
	}
	defer rows.Close()

	todos := []domain.Todo{}
	for rows.Next() {
		var t domain.Todo
		if err := rows.Scan(&t.ID, &t.Text, &t.Done, &t.DueDate, &t.CreatedAt); err != nil {
			return nil, storageErr("scan todo", err)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func (s *Store) GetTodo(ctx context.Context, id string) (*domain.Todo, error) {
	ctx, span := tracer.Start(ctx, "Store.GetTodo")
	defer span.End()

	var t domain.Todo
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, done, due_date, created_at FROM todos WHERE id = ?`, id).
		Scan(&t.ID, &t.Text, &t.Done, &t.DueDate, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "todo", ID: id}
	}
	if err != nil {
		return nil, storageErr("get todo", err)
	}
	return &t, nil
}

func (s *Store) UpdateTodo(ctx context.Context, t *domain.Todo) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateTodo")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE todos SET text = ?, done = ?, due_date = ? WHERE id = ?`,
		t.Text, t.Done, t.DueDate, t.ID)
	if err != nil {
		return storageErr("update todo", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "todo", ID: t.ID}
	}
	return nil
}

func (s *Store) DeleteTodo(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Store.DeleteTodo")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete todo", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "todo", ID: id}
	}
	return nil
}

// ============================================================
// Calendar events
// ============================================================

func (s *Store) CreateCalendarEvent(ctx context.Context, e *domain.CalendarEvent) error {
	ctx, span := tracer.Start(ctx, "Store.CreateCalendarEvent")
	defer span.End()

	e.CreatedAt = now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calendar_events (id, title, description, start_date, end_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Description, e.StartDate, e.EndDate, e.CreatedAt)
	if err != nil {
		return storageErr("create calendar event", err)
	}
	return nil
}

func (s *Store) ListCalendarEvents(ctx context.Context) ([]domain.CalendarEvent, error) {
	ctx, span := tracer.Start(ctx, "Store.ListCalendarEvents")
	defer span.End()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, start_date, end_date, created_at FROM calendar_events`)
	if err != nil {
		return nil, storageErr("list calendar events", err)
	}
	defer rows.Close()

	events := []domain.CalendarEvent{}
	for rows.Next() {
		var e domain.CalendarEvent
		if err := rows.Scan(&e.ID, &e.Title, &e.Description, &e.StartDate, &e.EndDate, &e.CreatedAt); err != nil {
			return nil, storageErr("scan calendar event", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) GetCalendarEvent(ctx context.Context, id string) (*domain.CalendarEvent, error) {
	ctx, span := tracer.Start(ctx, "Store.GetCalendarEvent")
	defer span.End()

	var e domain.CalendarEvent
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, start_date, end_date, created_at
		 FROM calendar_events WHERE id = ?`, id).
		Scan(&e.ID, &e.Title, &e.Description, &e.StartDate, &e.EndDate, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "calendar event", ID: id}
	}
	if err != nil {
		return nil, storageErr("get calendar event", err)
	}
	return &e, nil
}

func (s *Store) UpdateCalendarEvent(ctx context.Context, e *domain.CalendarEvent) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateCalendarEvent")
	defer span.End()

	res, err := s.db.ExecContext(ctx,
		`UPDATE calendar_events SET title = ?, description = ?, start_date = ?, end_date = ? WHERE id = ?`,
		e.Title, e.Description, e.StartDate, e.EndDate, e.ID)
	if err != nil {
		return storageErr("update calendar event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "calendar event", ID: e.ID}
	}
	return nil
}

func (s *Store) DeleteCalendarEvent(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Store.DeleteCalendarEvent")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM calendar_events WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete calendar event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "calendar event", ID: id}
	}
	return nil
}

// ============================================================
// Telegram config (singleton) & templates metadata
// ============================================================

func (s *Store) GetTelegramConfig(ctx context.Context) (*domain.TelegramConfig, error) {
	ctx, span := tracer.Start(ctx, "Store.GetTelegramConfig")
	defer span.End()

	var c domain.TelegramConfig
	err := s.db.QueryRowContext(ctx,
		`SELECT bot_token, chat_id, enabled FROM telegram_config WHERE id = 1`).
		Scan(&c.BotToken, &c.ChatID, &c.Enabled)
	if err != nil {
		return nil, storageErr("get telegram config", err)
	}
	return &c, nil
}

func (s *Store) UpdateTelegramConfig(ctx context.Context, c *domain.TelegramConfig) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateTelegramConfig")
	defer span.End()

	_, err := s.db.ExecContext(ctx,
		`UPDATE telegram_config SET bot_token = ?, chat_id = ?, enabled = ? WHERE id = 1`,
		c.BotToken, c.ChatID, c.Enabled)
	if err != nil {
		return storageErr("update telegram config", err)
	}
	return nil
}

func (s *Store) CreateTemplate(ctx context.Context, t *domain.Template) error {
	ctx, span := tracer.Start(ctx, "Store.CreateTemplate")
	defer span.End()

	t.CreatedAt = now()
	fields, err := json.Marshal(t.Fields)
	if err != nil {
		return &domain.ErrValidation{Field: "fields", Message: "not serializable"}
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO templates (id, name, fields, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.Name, string(fields), t.CreatedAt)
	if err != nil {
		return storageErr("create template", err)
	}
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	ctx, span := tracer.Start(ctx, "Store.GetTemplate")
	defer span.End()

	t, err := scanTemplate(s.db.QueryRowContext(ctx,
		`SELECT id, name, fields, created_at FROM templates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "template", ID: id}
	}
	if err != nil {
		return nil, storageErr("get template", err)
	}
	return t, nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	ctx, span := tracer.Start(ctx, "Store.ListTemplates")
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, fields, created_at FROM templates`)
	if err != nil {
		return nil, storageErr("list templates", err)
	}
	defer rows.Close()

	templates := []domain.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, storageErr("scan template", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (s *Store) UpdateTemplate(ctx context.Context, t *domain.Template) error {
	ctx, span := tracer.Start(ctx, "Store.UpdateTemplate")
	defer span.End()

	fields, err := json.Marshal(t.Fields)
	if err != nil {
		return &domain.ErrValidation{Field: "fields", Message: "not serializable"}
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE templates SET name = ?, fields = ? WHERE id = ?`,
		t.Name, string(fields), t.ID)
	if err != nil {
		return storageErr("update template", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "template", ID: t.ID}
	}
	return nil
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Store.DeleteTemplate")
	defer span.End()

	res, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return storageErr("delete template", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.ErrNotFound{Resource: "template", ID: id}
	}
	return nil
}

func scanTemplate(row rowScanner) (*domain.Template, error) {
	var t domain.Template
	var fields string
	if err := row.Scan(&t.ID, &t.Name, &fields, &t.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fields), &t.Fields); err != nil {
		t.Fields = []string{}
	}
	return &t, nil
}
