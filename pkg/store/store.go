package store

import (
	"errors"

	"edushelf/pkg/domain"
)

// ErrDuplicateKey reports a unique-constraint violation (duplicate ISBN,
// concurrent access-record creation, or an already-registered email).
var ErrDuplicateKey = errors.New("duplicate key")

// BookFilter narrows and pages catalog listings.
type BookFilter struct {
	Category        string
	Search          string
	Page            int
	Limit           int
	IncludeInactive bool
}

// BookPage is one page of catalog results plus pagination metadata.
type BookPage struct {
	Books      []domain.Book
	Page       int
	TotalPages int
	TotalItems int64
	Limit      int
}

// Store defines persistence operations for users, books, access records,
// highlights, todos, and calendar events.
type Store interface {
	// users
	CreateUser(domain.User) error
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	UpdateUser(domain.User) error
	ListUsers() ([]domain.User, error)
	UserCount() (int, error)

	// books
	CreateBook(domain.Book) error
	UpdateBook(domain.Book) error
	GetBook(id string) (domain.Book, bool, error)
	GetBookByISBN(isbn string) (domain.Book, bool, error)
	ListBooks(BookFilter) (BookPage, error)
	DeleteBook(id string) error
	BookCount(onlyActive bool) (int, error)
	IncrementBookReads(id string) error

	// per-month access records
	GetUserBook(userID, bookID, month string) (domain.UserBook, bool, error)
	CountUserBooks(userID, month string) (int, error)
	CreateUserBook(domain.UserBook) error
	UpdateUserBook(domain.UserBook) error
	ListUserBooks(userID, month string) ([]domain.UserBook, error)
	ListAllUserBooks(userID string) ([]domain.UserBook, error)
	UserBookCountByMonth(month string) (int, error)

	// highlights
	CreateHighlight(domain.Highlight) error
	GetHighlight(id string) (domain.Highlight, bool, error)
	ListHighlights(userID, bookID string) ([]domain.Highlight, error)
	UpdateHighlight(domain.Highlight) error
	DeleteHighlight(id string) error

	// todos
	CreateTodo(domain.Todo) error
	GetTodo(id string) (domain.Todo, bool, error)
	ListTodos(userID string) ([]domain.Todo, error)
	UpdateTodo(domain.Todo) error
	DeleteTodo(id string) error

	// calendar events
	CreateEvent(domain.Event) error
	GetEvent(id string) (domain.Event, bool, error)
	ListEvents(userID string) ([]domain.Event, error)
	UpdateEvent(domain.Event) error
	DeleteEvent(id string) error
}
