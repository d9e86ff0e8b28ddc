package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"edushelf/pkg/domain"
)

// MemoryStore keeps everything in-process. It mirrors GormStore semantics,
// including duplicate-key detection, so app tests can run without Postgres.
type MemoryStore struct {
	mu         sync.RWMutex
	users      map[string]domain.User
	email      map[string]string // email -> user ID
	username   map[string]string // username -> user ID
	books      map[string]domain.Book
	bookOrder  []string
	userBooks  map[string]domain.UserBook
	accessKeys map[string]string // user|book|month -> userBook ID
	highlights map[string]domain.Highlight
	todos      map[string]domain.Todo
	events     map[string]domain.Event
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:      make(map[string]domain.User),
		email:      make(map[string]string),
		username:   make(map[string]string),
		books:      make(map[string]domain.Book),
		userBooks:  make(map[string]domain.UserBook),
		accessKeys: make(map[string]string),
		highlights: make(map[string]domain.Highlight),
		todos:      make(map[string]domain.Todo),
		events:     make(map[string]domain.Event),
	}
}

func accessKey(userID, bookID, month string) string {
	return userID + "|" + bookID + "|" + month
}

// CreateUser registers a new user.
func (m *MemoryStore) CreateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.email[u.Email]; exists {
		return ErrDuplicateKey
	}
	if _, exists := m.username[u.Username]; exists {
		return ErrDuplicateKey
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	m.username[u.Username] = u.ID
	return nil
}

// GetUserByUsername looks up a user by username.
func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.username[username]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// UpdateUser overwrites a user record.
func (m *MemoryStore) UpdateUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.users[u.ID]
	if !ok {
		return nil
	}
	if old.Email != u.Email {
		delete(m.email, old.Email)
		m.email[u.Email] = u.ID
	}
	if old.Username != u.Username {
		delete(m.username, old.Username)
		m.username[u.Username] = u.ID
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[u.ID] = u
	return nil
}

// ListUsers returns all users ordered by creation time.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// UserCount returns number of users.
func (m *MemoryStore) UserCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users), nil
}

// CreateBook stores a new book, rejecting duplicate ISBNs.
func (m *MemoryStore) CreateBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ISBN != "" {
		for _, existing := range m.books {
			if existing.ISBN == b.ISBN {
				return ErrDuplicateKey
			}
		}
	}
	if _, exists := m.books[b.ID]; !exists {
		m.bookOrder = append(m.bookOrder, b.ID)
	}
	m.books[b.ID] = b
	return nil
}

// UpdateBook overwrites a book record.
func (m *MemoryStore) UpdateBook(b domain.Book) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[b.ID]; !ok {
		return nil
	}
	if b.ISBN != "" {
		for id, existing := range m.books {
			if id != b.ID && existing.ISBN == b.ISBN {
				return ErrDuplicateKey
			}
		}
	}
	b.UpdatedAt = time.Now().UTC()
	m.books[b.ID] = b
	return nil
}

// GetBook retrieves a book by ID.
func (m *MemoryStore) GetBook(id string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.books[id]
	return b, ok, nil
}

// GetBookByISBN looks up a book by ISBN.
func (m *MemoryStore) GetBookByISBN(isbn string) (domain.Book, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if isbn == "" {
		return domain.Book{}, false, nil
	}
	for _, b := range m.books {
		if b.ISBN == isbn {
			return b, true, nil
		}
	}
	return domain.Book{}, false, nil
}

// ListBooks returns one catalog page matching the filter.
func (m *MemoryStore) ListBooks(f BookFilter) (BookPage, error) {
	page, limit := normalizePage(f.Page, f.Limit)

	m.mu.RLock()
	matched := make([]domain.Book, 0, len(m.bookOrder))
	for i := len(m.bookOrder) - 1; i >= 0; i-- {
		b, ok := m.books[m.bookOrder[i]]
		if !ok {
			continue
		}
		if !f.IncludeInactive && !b.IsActive {
			continue
		}
		if f.Category != "" && string(b.Category) != f.Category {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(b.Title), needle) &&
				!strings.Contains(strings.ToLower(b.Author), needle) &&
				!strings.Contains(strings.ToLower(b.Description), needle) {
				continue
			}
		}
		matched = append(matched, b)
	}
	m.mu.RUnlock()

	total := int64(len(matched))
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return BookPage{
		Books:      matched[start:end],
		Page:       page,
		TotalPages: totalPages(total, limit),
		TotalItems: total,
		Limit:      limit,
	}, nil
}

// DeleteBook removes the book and every dependent record.
func (m *MemoryStore) DeleteBook(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, id)
	filtered := m.bookOrder[:0]
	for _, item := range m.bookOrder {
		if item != id {
			filtered = append(filtered, item)
		}
	}
	m.bookOrder = filtered
	for ubID, ub := range m.userBooks {
		if ub.BookID == id {
			delete(m.userBooks, ubID)
			delete(m.accessKeys, accessKey(ub.UserID, ub.BookID, ub.Month))
		}
	}
	for hID, h := range m.highlights {
		if h.BookID == id {
			delete(m.highlights, hID)
		}
	}
	return nil
}

// BookCount returns number of books, optionally only active ones.
func (m *MemoryStore) BookCount(onlyActive bool) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !onlyActive {
		return len(m.books), nil
	}
	count := 0
	for _, b := range m.books {
		if b.IsActive {
			count++
		}
	}
	return count, nil
}

// IncrementBookReads bumps the total read counter.
func (m *MemoryStore) IncrementBookReads(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return nil
	}
	b.TotalReads++
	m.books[id] = b
	return nil
}

// GetUserBook fetches the access record for one user/book/month.
func (m *MemoryStore) GetUserBook(userID, bookID, month string) (domain.UserBook, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.accessKeys[accessKey(userID, bookID, month)]; ok {
		ub, exists := m.userBooks[id]
		return ub, exists, nil
	}
	return domain.UserBook{}, false, nil
}

// CountUserBooks counts access records for a user in a month.
func (m *MemoryStore) CountUserBooks(userID, month string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, ub := range m.userBooks {
		if ub.UserID == userID && ub.Month == month {
			count++
		}
	}
	return count, nil
}

// CreateUserBook inserts an access record, enforcing (user, book, month)
// uniqueness like the composite index does in Postgres.
func (m *MemoryStore) CreateUserBook(ub domain.UserBook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := accessKey(ub.UserID, ub.BookID, ub.Month)
	if _, exists := m.accessKeys[key]; exists {
		return ErrDuplicateKey
	}
	m.userBooks[ub.ID] = ub
	m.accessKeys[key] = ub.ID
	return nil
}

// UpdateUserBook overwrites an access record.
func (m *MemoryStore) UpdateUserBook(ub domain.UserBook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.userBooks[ub.ID]; !ok {
		return nil
	}
	ub.UpdatedAt = time.Now().UTC()
	m.userBooks[ub.ID] = ub
	return nil
}

// ListUserBooks returns a user's access records for a month, most recent first.
func (m *MemoryStore) ListUserBooks(userID, month string) ([]domain.UserBook, error) {
	return m.listUserBooks(func(ub domain.UserBook) bool {
		return ub.UserID == userID && ub.Month == month
	})
}

// ListAllUserBooks returns all of a user's access records across months.
func (m *MemoryStore) ListAllUserBooks(userID string) ([]domain.UserBook, error) {
	return m.listUserBooks(func(ub domain.UserBook) bool {
		return ub.UserID == userID
	})
}

func (m *MemoryStore) listUserBooks(match func(domain.UserBook) bool) ([]domain.UserBook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.UserBook, 0)
	for _, ub := range m.userBooks {
		if match(ub) {
			res = append(res, ub)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].LastReadAt.After(res[j].LastReadAt) })
	return res, nil
}

// UserBookCountByMonth counts access records across all users for a month.
func (m *MemoryStore) UserBookCountByMonth(month string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, ub := range m.userBooks {
		if ub.Month == month {
			count++
		}
	}
	return count, nil
}

// CreateHighlight stores a highlight.
func (m *MemoryStore) CreateHighlight(h domain.Highlight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.highlights[h.ID] = h
	return nil
}

// GetHighlight retrieves a highlight by ID.
func (m *MemoryStore) GetHighlight(id string) (domain.Highlight, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.highlights[id]
	return h, ok, nil
}

// ListHighlights returns a user's highlights for a book ordered by page.
func (m *MemoryStore) ListHighlights(userID, bookID string) ([]domain.Highlight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Highlight, 0)
	for _, h := range m.highlights {
		if h.UserID == userID && h.BookID == bookID {
			res = append(res, h)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Page != res[j].Page {
			return res[i].Page < res[j].Page
		}
		return res[i].CreatedAt.Before(res[j].CreatedAt)
	})
	return res, nil
}

// UpdateHighlight overwrites a highlight's mutable fields.
func (m *MemoryStore) UpdateHighlight(h domain.Highlight) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.highlights[h.ID]
	if !ok {
		return nil
	}
	old.Text = h.Text
	old.Color = h.Color
	old.Note = h.Note
	old.UpdatedAt = time.Now().UTC()
	m.highlights[h.ID] = old
	return nil
}

// DeleteHighlight removes a highlight.
func (m *MemoryStore) DeleteHighlight(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.highlights, id)
	return nil
}

// CreateTodo stores a todo.
func (m *MemoryStore) CreateTodo(t domain.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.todos[t.ID] = t
	return nil
}

// GetTodo retrieves a todo by ID.
func (m *MemoryStore) GetTodo(id string) (domain.Todo, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.todos[id]
	return t, ok, nil
}

// ListTodos returns a user's todos newest first.
func (m *MemoryStore) ListTodos(userID string) ([]domain.Todo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Todo, 0)
	for _, t := range m.todos {
		if t.UserID == userID {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// UpdateTodo overwrites a todo's mutable fields.
func (m *MemoryStore) UpdateTodo(t domain.Todo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.todos[t.ID]
	if !ok {
		return nil
	}
	old.Text = t.Text
	old.Completed = t.Completed
	old.Priority = t.Priority
	old.DueDate = t.DueDate
	old.UpdatedAt = time.Now().UTC()
	m.todos[t.ID] = old
	return nil
}

// DeleteTodo removes a todo.
func (m *MemoryStore) DeleteTodo(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.todos, id)
	return nil
}

// CreateEvent stores a calendar event.
func (m *MemoryStore) CreateEvent(e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
	return nil
}

// GetEvent retrieves an event by ID.
func (m *MemoryStore) GetEvent(id string) (domain.Event, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	return e, ok, nil
}

// ListEvents returns a user's events ordered by date.
func (m *MemoryStore) ListEvents(userID string) ([]domain.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Event, 0)
	for _, e := range m.events {
		if e.UserID == userID {
			res = append(res, e)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}

// UpdateEvent overwrites an event's mutable fields.
func (m *MemoryStore) UpdateEvent(e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.events[e.ID]
	if !ok {
		return nil
	}
	old.Title = e.Title
	old.Date = e.Date
	old.Time = e.Time
	old.Type = e.Type
	old.Description = e.Description
	old.Location = e.Location
	m.events[e.ID] = old
	return nil
}

// DeleteEvent removes an event.
func (m *MemoryStore) DeleteEvent(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.events, id)
	return nil
}
