package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"edushelf/internal/util"
	"edushelf/pkg/domain"
	"edushelf/pkg/store"
)

const defaultHighlightColor = "#fef3c7"

// Pagination mirrors the list-response metadata block.
type Pagination struct {
	Current    int   `json:"current"`
	Total      int   `json:"total"`
	TotalItems int64 `json:"totalItems"`
	Limit      int   `json:"limit"`
}

// BookListItem is a catalog entry annotated with the requesting user's
// progress for the current month.
type BookListItem struct {
	domain.Book
	CoverURL string           `json:"coverUrl,omitempty"`
	Progress *domain.UserBook `json:"progress,omitempty"`
}

// BookList is one page of the catalog.
type BookList struct {
	Books      []BookListItem `json:"books"`
	Pagination Pagination     `json:"pagination"`
}

// BookDetail is the full book view returned on open, including the assets,
// the user's highlights, and the quota remainder. IsNew reports whether this
// request created the month's access record.
type BookDetail struct {
	domain.Book
	CoverURL       string             `json:"coverUrl,omitempty"`
	PDFURL         string             `json:"pdfUrl,omitempty"`
	Progress       domain.UserBook    `json:"progress"`
	Highlights     []domain.Highlight `json:"highlights"`
	IsNew          bool               `json:"isNew"`
	MonthlyLimit   int                `json:"monthlyLimit"`
	BooksThisMonth int                `json:"booksThisMonth"`
	RemainingQuota int                `json:"remainingQuota"`
}

// MonthStat is one month of reading history.
type MonthStat struct {
	Month     string `json:"month"`
	Books     int    `json:"books"`
	PagesRead int    `json:"pagesRead"`
}

// RecentRead is a recently touched access record with its book title.
type RecentRead struct {
	BookID      string    `json:"bookId"`
	Title       string    `json:"title"`
	CurrentPage int       `json:"currentPage"`
	PagesRead   int       `json:"pagesRead"`
	IsCompleted bool      `json:"isCompleted"`
	LastReadAt  time.Time `json:"lastReadAt"`
}

// UserStats aggregates a user's reading counters.
type UserStats struct {
	BooksReadThisMonth int          `json:"booksReadThisMonth"`
	MonthlyBookLimit   int          `json:"monthlyBookLimit"`
	RemainingQuota     int          `json:"remainingQuota"`
	TotalPagesRead     int          `json:"totalPagesRead"`
	ReadingStreak      int          `json:"readingStreak"`
	CompletedBooks     int          `json:"completedBooks"`
	InProgressBooks    int          `json:"inProgressBooks"`
	AverageCompletion  int          `json:"averageCompletion"`
	History            []MonthStat  `json:"history"`
	RecentlyRead       []RecentRead `json:"recentlyRead"`
	LastReadDate       *time.Time   `json:"lastReadDate,omitempty"`
}

// ListBooks returns the active catalog page with per-user progress.
func (a *App) ListBooks(ctx context.Context, user domain.User, filter store.BookFilter) (BookList, error) {
	filter.IncludeInactive = false
	page, err := a.store.ListBooks(filter)
	if err != nil {
		return BookList{}, fmt.Errorf("list books: %w", err)
	}
	month := domain.MonthKey(time.Now())
	items := make([]BookListItem, 0, len(page.Books))
	for _, b := range page.Books {
		item := BookListItem{Book: b}
		if b.CoverKey != "" {
			if url, err := a.objects.URL(ctx, b.CoverKey); err == nil {
				item.CoverURL = url
			}
		}
		if ub, ok, err := a.store.GetUserBook(user.ID, b.ID, month); err == nil && ok {
			progress := ub
			item.Progress = &progress
		}
		items = append(items, item)
	}
	return BookList{
		Books: items,
		Pagination: Pagination{
			Current:    page.Page,
			Total:      page.TotalPages,
			TotalItems: page.TotalItems,
			Limit:      page.Limit,
		},
	}, nil
}

// OpenBook returns the book detail for the user, creating the monthly
// access record on first open. Quota is charged per book per month: a book
// already unlocked this month never re-checks the limit.
func (a *App) OpenBook(ctx context.Context, user domain.User, bookID string) (BookDetail, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return BookDetail{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok || !book.IsActive {
		return BookDetail{}, ErrBookNotFound
	}

	now := time.Now().UTC()
	month := domain.MonthKey(now)
	access, exists, err := a.store.GetUserBook(user.ID, book.ID, month)
	if err != nil {
		return BookDetail{}, fmt.Errorf("fetch access record: %w", err)
	}
	used, err := a.store.CountUserBooks(user.ID, month)
	if err != nil {
		return BookDetail{}, fmt.Errorf("count access records: %w", err)
	}
	isNew := false
	if !exists {
		if used >= user.MonthlyBookLimit {
			return BookDetail{}, &QuotaExceededError{Limit: user.MonthlyBookLimit, Current: used}
		}
		access = domain.UserBook{
			ID:             util.NewID(),
			UserID:         user.ID,
			BookID:         book.ID,
			Month:          month,
			FirstOpenedAt:  now,
			LastReadAt:     now,
			ReadingSession: 1,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := a.store.CreateUserBook(access); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				// A concurrent open won the insert; treat it as existing access.
				access, _, err = a.store.GetUserBook(user.ID, book.ID, month)
				if err != nil {
					return BookDetail{}, fmt.Errorf("fetch access record: %w", err)
				}
			} else {
				return BookDetail{}, fmt.Errorf("create access record: %w", err)
			}
		} else {
			isNew = true
			used++
			user.BooksReadThisMonth = used
			if err := a.store.UpdateUser(user); err != nil {
				return BookDetail{}, fmt.Errorf("update user counters: %w", err)
			}
			if err := a.store.IncrementBookReads(book.ID); err != nil {
				return BookDetail{}, fmt.Errorf("bump read counter: %w", err)
			}
			book.TotalReads++
		}
	}

	highlights, err := a.store.ListHighlights(user.ID, book.ID)
	if err != nil {
		return BookDetail{}, fmt.Errorf("list highlights: %w", err)
	}

	detail := BookDetail{
		Book:           book,
		Progress:       access,
		Highlights:     highlights,
		IsNew:          isNew,
		MonthlyLimit:   user.MonthlyBookLimit,
		BooksThisMonth: used,
		RemainingQuota: max(user.MonthlyBookLimit-used, 0),
	}
	if book.CoverKey != "" {
		if url, err := a.objects.URL(ctx, book.CoverKey); err == nil {
			detail.CoverURL = url
		}
	}
	if book.PDFKey != "" {
		if url, err := a.objects.URL(ctx, book.PDFKey); err == nil {
			detail.PDFURL = url
		}
	}
	return detail, nil
}

// UpdateProgress overwrites the user's page progress for this month's
// access record and recomputes the aggregate reading counters.
func (a *App) UpdateProgress(user domain.User, bookID string, currentPage, pagesRead int) (domain.UserBook, UserStats, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.UserBook{}, UserStats{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.UserBook{}, UserStats{}, ErrBookNotFound
	}
	now := time.Now().UTC()
	month := domain.MonthKey(now)
	access, exists, err := a.store.GetUserBook(user.ID, bookID, month)
	if err != nil {
		return domain.UserBook{}, UserStats{}, fmt.Errorf("fetch access record: %w", err)
	}
	if !exists {
		return domain.UserBook{}, UserStats{}, ErrProgressNotFound
	}

	if currentPage < 0 {
		currentPage = 0
	}
	if pagesRead < 0 {
		pagesRead = 0
	}
	access.CurrentPage = currentPage
	access.PagesRead = pagesRead
	access.ReadingSession++
	access.LastReadAt = now
	// Completion never reverts, even if the caller lowers pagesRead later.
	if !access.IsCompleted && book.TotalPages > 0 && pagesRead >= book.TotalPages {
		access.IsCompleted = true
	}
	if err := a.store.UpdateUserBook(access); err != nil {
		return domain.UserBook{}, UserStats{}, fmt.Errorf("update access record: %w", err)
	}

	all, err := a.store.ListAllUserBooks(user.ID)
	if err != nil {
		return domain.UserBook{}, UserStats{}, fmt.Errorf("list access records: %w", err)
	}
	totalPages := 0
	for _, ub := range all {
		totalPages += ub.PagesRead
	}
	user.TotalPagesRead = totalPages
	user.ReadingStreak = nextStreak(user.ReadingStreak, user.LastReadDate, now)
	user.LastReadDate = &now
	if err := a.store.UpdateUser(user); err != nil {
		return domain.UserBook{}, UserStats{}, fmt.Errorf("update user counters: %w", err)
	}

	stats, err := a.statsFor(user)
	if err != nil {
		return domain.UserBook{}, UserStats{}, err
	}
	return access, stats, nil
}

// GetUserStats returns the user's current reading counters.
func (a *App) GetUserStats(userID string) (UserStats, error) {
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return UserStats{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return UserStats{}, ErrUserNotFound
	}
	return a.statsFor(user)
}

const statsHistoryMonths = 6

func (a *App) statsFor(user domain.User) (UserStats, error) {
	now := time.Now()
	month := domain.MonthKey(now)
	used, err := a.store.CountUserBooks(user.ID, month)
	if err != nil {
		return UserStats{}, fmt.Errorf("count access records: %w", err)
	}
	all, err := a.store.ListAllUserBooks(user.ID)
	if err != nil {
		return UserStats{}, fmt.Errorf("list access records: %w", err)
	}

	books := map[string]domain.Book{}
	completed := 0
	completionSum := 0
	perMonth := map[string]MonthStat{}
	for _, ub := range all {
		if ub.IsCompleted {
			completed++
		}
		b, cached := books[ub.BookID]
		if !cached {
			b, _, err = a.store.GetBook(ub.BookID)
			if err != nil {
				return UserStats{}, fmt.Errorf("fetch book: %w", err)
			}
			books[ub.BookID] = b
		}
		if b.TotalPages > 0 {
			pct := ub.PagesRead * 100 / b.TotalPages
			if pct > 100 {
				pct = 100
			}
			completionSum += pct
		}
		stat := perMonth[ub.Month]
		stat.Books++
		stat.PagesRead += ub.PagesRead
		perMonth[ub.Month] = stat
	}
	avgCompletion := 0
	if len(all) > 0 {
		avgCompletion = completionSum / len(all)
	}

	// Walk back from the first of the current month so short months cannot
	// skew the month arithmetic.
	year, monthNum, _ := now.UTC().Date()
	base := time.Date(year, monthNum, 1, 0, 0, 0, 0, time.UTC)
	history := make([]MonthStat, 0, statsHistoryMonths)
	for i := statsHistoryMonths - 1; i >= 0; i-- {
		key := domain.MonthKey(base.AddDate(0, -i, 0))
		stat := perMonth[key]
		stat.Month = key
		history = append(history, stat)
	}

	recent := make([]domain.UserBook, len(all))
	copy(recent, all)
	sort.Slice(recent, func(i, j int) bool {
		return recent[i].LastReadAt.After(recent[j].LastReadAt)
	})
	if len(recent) > 5 {
		recent = recent[:5]
	}
	recentlyRead := make([]RecentRead, 0, len(recent))
	for _, ub := range recent {
		recentlyRead = append(recentlyRead, RecentRead{
			BookID:      ub.BookID,
			Title:       books[ub.BookID].Title,
			CurrentPage: ub.CurrentPage,
			PagesRead:   ub.PagesRead,
			IsCompleted: ub.IsCompleted,
			LastReadAt:  ub.LastReadAt,
		})
	}

	return UserStats{
		BooksReadThisMonth: used,
		MonthlyBookLimit:   user.MonthlyBookLimit,
		RemainingQuota:     max(user.MonthlyBookLimit-used, 0),
		TotalPagesRead:     user.TotalPagesRead,
		ReadingStreak:      user.ReadingStreak,
		CompletedBooks:     completed,
		InProgressBooks:    len(all) - completed,
		AverageCompletion:  avgCompletion,
		History:            history,
		RecentlyRead:       recentlyRead,
		LastReadDate:       user.LastReadDate,
	}, nil
}

// nextStreak applies the day-granularity streak rule: same day keeps the
// streak, a one-day gap extends it, anything longer restarts at 1.
func nextStreak(current int, lastRead *time.Time, now time.Time) int {
	if current < 1 {
		current = 0
	}
	if lastRead == nil {
		return 1
	}
	lastDay := lastRead.UTC().Truncate(24 * time.Hour)
	today := now.UTC().Truncate(24 * time.Hour)
	switch int(today.Sub(lastDay).Hours() / 24) {
	case 0:
		if current == 0 {
			return 1
		}
		return current
	case 1:
		return current + 1
	default:
		return 1
	}
}

// AddHighlight stores an annotation on a page of a book.
func (a *App) AddHighlight(user domain.User, bookID string, page int, text, color, note string) (domain.Highlight, error) {
	text = strings.TrimSpace(text)
	if page <= 0 || text == "" {
		return domain.Highlight{}, ErrHighlightInvalid
	}
	_, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Highlight{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Highlight{}, ErrBookNotFound
	}
	if strings.TrimSpace(color) == "" {
		color = defaultHighlightColor
	}
	now := time.Now().UTC()
	h := domain.Highlight{
		ID:        util.NewID(),
		UserID:    user.ID,
		BookID:    bookID,
		Page:      page,
		Text:      text,
		Color:     color,
		Note:      strings.TrimSpace(note),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateHighlight(h); err != nil {
		return domain.Highlight{}, fmt.Errorf("save highlight: %w", err)
	}
	return h, nil
}

// ListHighlights returns the user's highlights for a book sorted by page.
func (a *App) ListHighlights(user domain.User, bookID string) ([]domain.Highlight, error) {
	return a.store.ListHighlights(user.ID, bookID)
}

// UpdateHighlight edits an annotation. Another user's highlight reads as
// absent rather than forbidden.
func (a *App) UpdateHighlight(user domain.User, highlightID, text, color, note string) (domain.Highlight, error) {
	h, ok, err := a.store.GetHighlight(highlightID)
	if err != nil {
		return domain.Highlight{}, fmt.Errorf("fetch highlight: %w", err)
	}
	if !ok || h.UserID != user.ID {
		return domain.Highlight{}, ErrHighlightNotFound
	}
	if text = strings.TrimSpace(text); text != "" {
		h.Text = text
	}
	if color = strings.TrimSpace(color); color != "" {
		h.Color = color
	}
	h.Note = strings.TrimSpace(note)
	h.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateHighlight(h); err != nil {
		return domain.Highlight{}, fmt.Errorf("update highlight: %w", err)
	}
	return h, nil
}

// DeleteHighlight removes an annotation owned by the user.
func (a *App) DeleteHighlight(user domain.User, highlightID string) error {
	h, ok, err := a.store.GetHighlight(highlightID)
	if err != nil {
		return fmt.Errorf("fetch highlight: %w", err)
	}
	if !ok || h.UserID != user.ID {
		return ErrHighlightNotFound
	}
	return a.store.DeleteHighlight(h.ID)
}
