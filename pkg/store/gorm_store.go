package store

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"edushelf/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(
		&UserModel{}, &BookModel{}, &UserBookModel{},
		&HighlightModel{}, &TodoModel{}, &EventModel{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}

// CreateUser registers a new user.
func (s *GormStore) CreateUser(u domain.User) error {
	model := userToModel(u)
	return translateErr(s.db.Create(&model).Error)
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// UpdateUser overwrites all mutable user fields.
func (s *GormStore) UpdateUser(u domain.User) error {
	model := userToModel(u)
	model.UpdatedAt = time.Now().UTC()
	return translateErr(s.db.Model(&UserModel{}).Where("id = ?", u.ID).Select("*").Omit("id", "created_at").Updates(model).Error)
}

// ListUsers returns all users ordered by created_at.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	var models []UserModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateBook stores a new book. Returns ErrDuplicateKey on an ISBN clash.
func (s *GormStore) CreateBook(b domain.Book) error {
	model := bookToModel(b)
	return translateErr(s.db.Create(&model).Error)
}

// UpdateBook overwrites all mutable book fields.
func (s *GormStore) UpdateBook(b domain.Book) error {
	model := bookToModel(b)
	model.UpdatedAt = time.Now().UTC()
	return translateErr(s.db.Model(&BookModel{}).Where("id = ?", b.ID).Select("*").Omit("id", "created_at").Updates(model).Error)
}

// GetBook retrieves a book.
func (s *GormStore) GetBook(id string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// GetBookByISBN looks up a book by ISBN.
func (s *GormStore) GetBookByISBN(isbn string) (domain.Book, bool, error) {
	var model BookModel
	if err := s.db.Where("isbn = ?", isbn).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Book{}, false, nil
		}
		return domain.Book{}, false, err
	}
	return bookFromModel(model), true, nil
}

// ListBooks returns one catalog page matching the filter.
func (s *GormStore) ListBooks(f BookFilter) (BookPage, error) {
	page, limit := normalizePage(f.Page, f.Limit)

	tx := s.db.Model(&BookModel{})
	if !f.IncludeInactive {
		tx = tx.Where("is_active = ?", true)
	}
	if f.Category != "" {
		tx = tx.Where("category = ?", f.Category)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		tx = tx.Where("title ILIKE ? OR author ILIKE ? OR description ILIKE ?", like, like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return BookPage{}, err
	}

	var models []BookModel
	if err := tx.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&models).Error; err != nil {
		return BookPage{}, err
	}

	books := make([]domain.Book, 0, len(models))
	for _, m := range models {
		books = append(books, bookFromModel(m))
	}
	return BookPage{
		Books:      books,
		Page:       page,
		TotalPages: totalPages(total, limit),
		TotalItems: total,
		Limit:      limit,
	}, nil
}

// DeleteBook removes the book and every dependent record.
func (s *GormStore) DeleteBook(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&HighlightModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&UserBookModel{}, "book_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&BookModel{}, "id = ?", id).Error
	})
}

// BookCount returns number of books, optionally only active ones.
func (s *GormStore) BookCount(onlyActive bool) (int, error) {
	tx := s.db.Model(&BookModel{})
	if onlyActive {
		tx = tx.Where("is_active = ?", true)
	}
	var count int64
	if err := tx.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// IncrementBookReads bumps the total read counter.
func (s *GormStore) IncrementBookReads(id string) error {
	return s.db.Model(&BookModel{}).
		Where("id = ?", id).
		Update("total_reads", gorm.Expr("total_reads + 1")).Error
}

// GetUserBook fetches the access record for one user/book/month.
func (s *GormStore) GetUserBook(userID, bookID, month string) (domain.UserBook, bool, error) {
	var model UserBookModel
	err := s.db.Where("user_id = ? AND book_id = ? AND month = ?", userID, bookID, month).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserBook{}, false, nil
		}
		return domain.UserBook{}, false, err
	}
	return userBookFromModel(model), true, nil
}

// CountUserBooks counts access records for a user in a month.
func (s *GormStore) CountUserBooks(userID, month string) (int, error) {
	var count int64
	err := s.db.Model(&UserBookModel{}).
		Where("user_id = ? AND month = ?", userID, month).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateUserBook inserts an access record.
// Returns ErrDuplicateKey when the (user, book, month) row already exists.
func (s *GormStore) CreateUserBook(ub domain.UserBook) error {
	model := userBookToModel(ub)
	return translateErr(s.db.Create(&model).Error)
}

// UpdateUserBook overwrites progress fields of an access record.
func (s *GormStore) UpdateUserBook(ub domain.UserBook) error {
	model := userBookToModel(ub)
	model.UpdatedAt = time.Now().UTC()
	return s.db.Model(&UserBookModel{}).Where("id = ?", ub.ID).Select("*").Omit("id", "created_at").Updates(model).Error
}

// ListUserBooks returns a user's access records for a month, most recent first.
func (s *GormStore) ListUserBooks(userID, month string) ([]domain.UserBook, error) {
	return s.listUserBooks("user_id = ? AND month = ?", userID, month)
}

// ListAllUserBooks returns all of a user's access records across months.
func (s *GormStore) ListAllUserBooks(userID string) ([]domain.UserBook, error) {
	return s.listUserBooks("user_id = ?", userID)
}

func (s *GormStore) listUserBooks(cond string, args ...any) ([]domain.UserBook, error) {
	var models []UserBookModel
	if err := s.db.Where(cond, args...).Order("last_read_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.UserBook, 0, len(models))
	for _, m := range models {
		res = append(res, userBookFromModel(m))
	}
	return res, nil
}

// UserBookCountByMonth counts access records across all users for a month.
func (s *GormStore) UserBookCountByMonth(month string) (int, error) {
	var count int64
	if err := s.db.Model(&UserBookModel{}).Where("month = ?", month).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CreateHighlight stores a highlight.
func (s *GormStore) CreateHighlight(h domain.Highlight) error {
	model := highlightToModel(h)
	return s.db.Create(&model).Error
}

// GetHighlight retrieves a highlight by ID.
func (s *GormStore) GetHighlight(id string) (domain.Highlight, bool, error) {
	var model HighlightModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Highlight{}, false, nil
		}
		return domain.Highlight{}, false, err
	}
	return highlightFromModel(model), true, nil
}

// ListHighlights returns a user's highlights for a book ordered by page.
func (s *GormStore) ListHighlights(userID, bookID string) ([]domain.Highlight, error) {
	var models []HighlightModel
	err := s.db.Where("user_id = ? AND book_id = ?", userID, bookID).
		Order("page ASC, created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.Highlight, 0, len(models))
	for _, m := range models {
		res = append(res, highlightFromModel(m))
	}
	return res, nil
}

// UpdateHighlight overwrites a highlight's mutable fields.
func (s *GormStore) UpdateHighlight(h domain.Highlight) error {
	return s.db.Model(&HighlightModel{}).Where("id = ?", h.ID).Updates(map[string]any{
		"text":       h.Text,
		"color":      h.Color,
		"note":       h.Note,
		"updated_at": time.Now().UTC(),
	}).Error
}

// DeleteHighlight removes a highlight.
func (s *GormStore) DeleteHighlight(id string) error {
	return s.db.Delete(&HighlightModel{}, "id = ?", id).Error
}

// CreateTodo stores a todo.
func (s *GormStore) CreateTodo(t domain.Todo) error {
	model := todoToModel(t)
	return s.db.Create(&model).Error
}

// GetTodo retrieves a todo by ID.
func (s *GormStore) GetTodo(id string) (domain.Todo, bool, error) {
	var model TodoModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Todo{}, false, nil
		}
		return domain.Todo{}, false, err
	}
	return todoFromModel(model), true, nil
}

// ListTodos returns a user's todos newest first.
func (s *GormStore) ListTodos(userID string) ([]domain.Todo, error) {
	var models []TodoModel
	if err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Todo, 0, len(models))
	for _, m := range models {
		res = append(res, todoFromModel(m))
	}
	return res, nil
}

// UpdateTodo overwrites a todo's mutable fields.
func (s *GormStore) UpdateTodo(t domain.Todo) error {
	return s.db.Model(&TodoModel{}).Where("id = ?", t.ID).Updates(map[string]any{
		"text":       t.Text,
		"completed":  t.Completed,
		"priority":   string(t.Priority),
		"due_date":   t.DueDate,
		"updated_at": time.Now().UTC(),
	}).Error
}

// DeleteTodo removes a todo.
func (s *GormStore) DeleteTodo(id string) error {
	return s.db.Delete(&TodoModel{}, "id = ?", id).Error
}

// CreateEvent stores a calendar event.
func (s *GormStore) CreateEvent(e domain.Event) error {
	model := eventToModel(e)
	return s.db.Create(&model).Error
}

// GetEvent retrieves an event by ID.
func (s *GormStore) GetEvent(id string) (domain.Event, bool, error) {
	var model EventModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Event{}, false, nil
		}
		return domain.Event{}, false, err
	}
	return eventFromModel(model), true, nil
}

// ListEvents returns a user's events ordered by date.
func (s *GormStore) ListEvents(userID string) ([]domain.Event, error) {
	var models []EventModel
	if err := s.db.Where("user_id = ?", userID).Order("date ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Event, 0, len(models))
	for _, m := range models {
		res = append(res, eventFromModel(m))
	}
	return res, nil
}

// UpdateEvent overwrites an event's mutable fields.
func (s *GormStore) UpdateEvent(e domain.Event) error {
	return s.db.Model(&EventModel{}).Where("id = ?", e.ID).Updates(map[string]any{
		"title":       e.Title,
		"date":        e.Date,
		"time":        e.Time,
		"type":        string(e.Type),
		"description": e.Description,
		"location":    e.Location,
	}).Error
}

// DeleteEvent removes an event.
func (s *GormStore) DeleteEvent(id string) error {
	return s.db.Delete(&EventModel{}, "id = ?", id).Error
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 12
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func totalPages(total int64, limit int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		PasswordHash:       u.PasswordHash,
		Role:               string(u.Role),
		IsVerified:         u.IsVerified,
		AccountStatus:      string(u.AccountStatus),
		ProfilePicture:     u.ProfilePicture,
		MonthlyBookLimit:   u.MonthlyBookLimit,
		BooksReadThisMonth: u.BooksReadThisMonth,
		TotalPagesRead:     u.TotalPagesRead,
		ReadingStreak:      u.ReadingStreak,
		LastReadDate:       u.LastReadDate,
		LastLogin:          u.LastLogin,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:                 m.ID,
		Username:           m.Username,
		Email:              m.Email,
		PasswordHash:       m.PasswordHash,
		Role:               domain.UserRole(m.Role),
		IsVerified:         m.IsVerified,
		AccountStatus:      domain.AccountStatus(m.AccountStatus),
		ProfilePicture:     m.ProfilePicture,
		MonthlyBookLimit:   m.MonthlyBookLimit,
		BooksReadThisMonth: m.BooksReadThisMonth,
		TotalPagesRead:     m.TotalPagesRead,
		ReadingStreak:      m.ReadingStreak,
		LastReadDate:       m.LastReadDate,
		LastLogin:          m.LastLogin,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func bookToModel(b domain.Book) BookModel {
	var isbn *string
	if b.ISBN != "" {
		v := b.ISBN
		isbn = &v
	}
	return BookModel{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		ISBN:          isbn,
		Category:      string(b.Category),
		Description:   b.Description,
		TotalPages:    b.TotalPages,
		CoverKey:      b.CoverKey,
		PDFKey:        b.PDFKey,
		PublishedDate: datatypes.Date(b.PublishedDate),
		AddedBy:       b.AddedBy,
		IsActive:      b.IsActive,
		TotalReads:    b.TotalReads,
		AverageRating: b.AverageRating,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func bookFromModel(m BookModel) domain.Book {
	isbn := ""
	if m.ISBN != nil {
		isbn = *m.ISBN
	}
	return domain.Book{
		ID:            m.ID,
		Title:         m.Title,
		Author:        m.Author,
		ISBN:          isbn,
		Category:      domain.BookCategory(m.Category),
		Description:   m.Description,
		TotalPages:    m.TotalPages,
		CoverKey:      m.CoverKey,
		PDFKey:        m.PDFKey,
		PublishedDate: time.Time(m.PublishedDate),
		AddedBy:       m.AddedBy,
		IsActive:      m.IsActive,
		TotalReads:    m.TotalReads,
		AverageRating: m.AverageRating,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func userBookToModel(ub domain.UserBook) UserBookModel {
	return UserBookModel{
		ID:             ub.ID,
		UserID:         ub.UserID,
		BookID:         ub.BookID,
		Month:          ub.Month,
		CurrentPage:    ub.CurrentPage,
		PagesRead:      ub.PagesRead,
		IsCompleted:    ub.IsCompleted,
		FirstOpenedAt:  ub.FirstOpenedAt,
		LastReadAt:     ub.LastReadAt,
		ReadingSession: ub.ReadingSession,
		CreatedAt:      ub.CreatedAt,
		UpdatedAt:      ub.UpdatedAt,
	}
}

func userBookFromModel(m UserBookModel) domain.UserBook {
	return domain.UserBook{
		ID:             m.ID,
		UserID:         m.UserID,
		BookID:         m.BookID,
		Month:          m.Month,
		CurrentPage:    m.CurrentPage,
		PagesRead:      m.PagesRead,
		IsCompleted:    m.IsCompleted,
		FirstOpenedAt:  m.FirstOpenedAt,
		LastReadAt:     m.LastReadAt,
		ReadingSession: m.ReadingSession,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

func highlightToModel(h domain.Highlight) HighlightModel {
	return HighlightModel{
		ID:        h.ID,
		UserID:    h.UserID,
		BookID:    h.BookID,
		Page:      h.Page,
		Text:      h.Text,
		Color:     h.Color,
		Note:      h.Note,
		CreatedAt: h.CreatedAt,
		UpdatedAt: h.UpdatedAt,
	}
}

func highlightFromModel(m HighlightModel) domain.Highlight {
	return domain.Highlight{
		ID:        m.ID,
		UserID:    m.UserID,
		BookID:    m.BookID,
		Page:      m.Page,
		Text:      m.Text,
		Color:     m.Color,
		Note:      m.Note,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func todoToModel(t domain.Todo) TodoModel {
	return TodoModel{
		ID:        t.ID,
		UserID:    t.UserID,
		Text:      t.Text,
		Completed: t.Completed,
		Priority:  string(t.Priority),
		DueDate:   t.DueDate,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func todoFromModel(m TodoModel) domain.Todo {
	return domain.Todo{
		ID:        m.ID,
		UserID:    m.UserID,
		Text:      m.Text,
		Completed: m.Completed,
		Priority:  domain.TodoPriority(m.Priority),
		DueDate:   m.DueDate,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func eventToModel(e domain.Event) EventModel {
	return EventModel{
		ID:          e.ID,
		UserID:      e.UserID,
		Title:       e.Title,
		Date:        e.Date,
		Time:        e.Time,
		Type:        string(e.Type),
		Description: e.Description,
		Location:    e.Location,
		CreatedAt:   e.CreatedAt,
	}
}

func eventFromModel(m EventModel) domain.Event {
	return domain.Event{
		ID:          m.ID,
		UserID:      m.UserID,
		Title:       m.Title,
		Date:        m.Date,
		Time:        m.Time,
		Type:        domain.EventType(m.Type),
		Description: m.Description,
		Location:    m.Location,
		CreatedAt:   m.CreatedAt,
	}
}
