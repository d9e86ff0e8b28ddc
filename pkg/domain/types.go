package domain

import "time"

type UserRole string

const (
	RoleUser    UserRole = "user"
	RoleAdmin   UserRole = "admin"
	RoleTeacher UserRole = "teacher"
)

type AccountStatus string

const (
	StatusActive    AccountStatus = "active"
	StatusSuspended AccountStatus = "suspended"
	StatusDeleted   AccountStatus = "deleted"
)

type BookCategory string

const (
	CategoryMathematics     BookCategory = "Mathematics"
	CategoryScience         BookCategory = "Science"
	CategoryHistory         BookCategory = "History"
	CategoryLiterature      BookCategory = "Literature"
	CategoryComputerScience BookCategory = "Computer Science"
	CategoryPhysics         BookCategory = "Physics"
	CategoryChemistry       BookCategory = "Chemistry"
	CategoryBiology         BookCategory = "Biology"
	CategoryEnglish         BookCategory = "English"
	CategoryArts            BookCategory = "Arts"
	CategoryGeography       BookCategory = "Geography"
	CategoryOther           BookCategory = "Other"
)

// ValidCategory reports whether c is one of the closed category set.
func ValidCategory(c BookCategory) bool {
	switch c {
	case CategoryMathematics, CategoryScience, CategoryHistory, CategoryLiterature,
		CategoryComputerScience, CategoryPhysics, CategoryChemistry, CategoryBiology,
		CategoryEnglish, CategoryArts, CategoryGeography, CategoryOther:
		return true
	}
	return false
}

type TodoPriority string

const (
	PriorityHigh   TodoPriority = "high"
	PriorityMedium TodoPriority = "medium"
	PriorityLow    TodoPriority = "low"
)

type EventType string

const (
	EventMeeting  EventType = "meeting"
	EventDeadline EventType = "deadline"
	EventTask     EventType = "task"
	EventReminder EventType = "reminder"
)

type User struct {
	ID                 string        `json:"id"`
	Username           string        `json:"username"`
	Email              string        `json:"email"`
	PasswordHash       string        `json:"-"`
	Role               UserRole      `json:"role"`
	IsVerified         bool          `json:"isVerified"`
	AccountStatus      AccountStatus `json:"accountStatus"`
	ProfilePicture     string        `json:"profilePicture,omitempty"`
	MonthlyBookLimit   int           `json:"monthlyBookLimit"`
	BooksReadThisMonth int           `json:"booksReadThisMonth"`
	TotalPagesRead     int           `json:"totalPagesRead"`
	ReadingStreak      int           `json:"readingStreak"`
	LastReadDate       *time.Time    `json:"lastReadDate,omitempty"`
	LastLogin          *time.Time    `json:"lastLogin,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

type Book struct {
	ID            string       `json:"id"`
	Title         string       `json:"title"`
	Author        string       `json:"author"`
	ISBN          string       `json:"isbn,omitempty"`
	Category      BookCategory `json:"category"`
	Description   string       `json:"description"`
	TotalPages    int          `json:"totalPages"`
	CoverKey      string       `json:"-"`
	PDFKey        string       `json:"-"`
	PublishedDate time.Time    `json:"publishedDate"`
	AddedBy       string       `json:"addedBy"`
	IsActive      bool         `json:"isActive"`
	TotalReads    int          `json:"totalReads"`
	AverageRating float64      `json:"averageRating"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
}

// UserBook is the access/progress record: one row per (user, book, month).
// Its creation is what "unlocks" a book for a calendar month.
type UserBook struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	BookID         string    `json:"bookId"`
	Month          string    `json:"month"` // "YYYY-MM"
	CurrentPage    int       `json:"currentPage"`
	PagesRead      int       `json:"pagesRead"`
	IsCompleted    bool      `json:"isCompleted"`
	FirstOpenedAt  time.Time `json:"firstOpenedAt"`
	LastReadAt     time.Time `json:"lastReadAt"`
	ReadingSession int       `json:"readingSession"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Highlight struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	BookID    string    `json:"bookId"`
	Page      int       `json:"page"`
	Text      string    `json:"text"`
	Color     string    `json:"color"`
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Todo struct {
	ID        string       `json:"id"`
	UserID    string       `json:"userId"`
	Text      string       `json:"text"`
	Completed bool         `json:"completed"`
	Priority  TodoPriority `json:"priority"`
	DueDate   *time.Time   `json:"dueDate,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type Event struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Date        time.Time `json:"date"`
	Time        string    `json:"time,omitempty"`
	Type        EventType `json:"type"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MonthKey formats t as the "YYYY-MM" key that scopes book access counting.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
