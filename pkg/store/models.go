package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID                 string `gorm:"primaryKey"`
	Username           string `gorm:"uniqueIndex;not null"`
	Email              string `gorm:"uniqueIndex;not null"`
	PasswordHash       string `gorm:"not null"`
	Role               string `gorm:"not null"`
	IsVerified         bool   `gorm:"not null"`
	AccountStatus      string `gorm:"not null"`
	ProfilePicture     string
	MonthlyBookLimit   int `gorm:"not null"`
	BooksReadThisMonth int `gorm:"not null"`
	TotalPagesRead     int `gorm:"not null"`
	ReadingStreak      int `gorm:"not null"`
	LastReadDate       *time.Time
	LastLogin          *time.Time
	CreatedAt          time.Time `gorm:"not null"`
	UpdatedAt          time.Time `gorm:"not null"`
}

type BookModel struct {
	ID            string  `gorm:"primaryKey"`
	Title         string  `gorm:"not null;index"`
	Author        string  `gorm:"not null"`
	ISBN          *string `gorm:"uniqueIndex"`
	Category      string  `gorm:"not null;index"`
	Description   string
	TotalPages    int `gorm:"not null"`
	CoverKey      string
	PDFKey        string
	PublishedDate datatypes.Date
	AddedBy       string    `gorm:"index"`
	IsActive      bool      `gorm:"not null;index"`
	TotalReads    int       `gorm:"not null"`
	AverageRating float64   `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// UserBookModel is the monthly access record. The composite unique index is
// the backstop against two concurrent opens creating duplicate rows.
type UserBookModel struct {
	ID             string    `gorm:"primaryKey"`
	UserID         string    `gorm:"not null;uniqueIndex:idx_user_book_month;index"`
	BookID         string    `gorm:"not null;uniqueIndex:idx_user_book_month;index"`
	Month          string    `gorm:"not null;uniqueIndex:idx_user_book_month;index"`
	CurrentPage    int       `gorm:"not null"`
	PagesRead      int       `gorm:"not null"`
	IsCompleted    bool      `gorm:"not null"`
	FirstOpenedAt  time.Time `gorm:"not null"`
	LastReadAt     time.Time `gorm:"not null"`
	ReadingSession int       `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

type HighlightModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index:idx_highlight_user_book"`
	BookID    string `gorm:"not null;index:idx_highlight_user_book"`
	Page      int    `gorm:"not null"`
	Text      string `gorm:"not null"`
	Color     string `gorm:"not null"`
	Note      string
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type TodoModel struct {
	ID        string `gorm:"primaryKey"`
	UserID    string `gorm:"not null;index"`
	Text      string `gorm:"not null"`
	Completed bool   `gorm:"not null"`
	Priority  string `gorm:"not null"`
	DueDate   *time.Time
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type EventModel struct {
	ID          string    `gorm:"primaryKey"`
	UserID      string    `gorm:"not null;index"`
	Title       string    `gorm:"not null"`
	Date        time.Time `gorm:"not null;index"`
	Time        string
	Type        string `gorm:"not null"`
	Description string
	Location    string
	CreatedAt   time.Time `gorm:"not null"`
}
