package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"edushelf/internal/pdfmeta"
	"edushelf/internal/util"
	"edushelf/pkg/domain"
	"edushelf/pkg/store"
)

// Upload is one received multipart file, fully buffered.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// BookInput carries the writable catalog fields.
type BookInput struct {
	Title         string
	Author        string
	ISBN          string
	Category      string
	Description   string
	TotalPages    int
	PublishedDate time.Time
	IsActive      *bool
}

// AdminStats is the admin dashboard counter block.
type AdminStats struct {
	TotalUsers           int `json:"totalUsers"`
	TotalBooks           int `json:"totalBooks"`
	ActiveBooks          int `json:"activeBooks"`
	BooksOpenedThisMonth int `json:"booksOpenedThisMonth"`
}

// CreateBook adds a catalog entry with its cover and PDF. Both files are
// required together; any failure after an asset write cleans the assets up
// so no orphaned files back a missing catalog row.
func (a *App) CreateBook(ctx context.Context, admin domain.User, in BookInput, cover, pdf *Upload) (domain.Book, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.TrimSpace(in.ISBN)
	if in.Title == "" || in.Author == "" || in.Category == "" {
		return domain.Book{}, ErrBookInvalid
	}
	if !domain.ValidCategory(domain.BookCategory(in.Category)) {
		return domain.Book{}, ErrInvalidCategory
	}
	if cover == nil || pdf == nil || len(cover.Data) == 0 || len(pdf.Data) == 0 {
		return domain.Book{}, ErrFilesRequired
	}
	if in.ISBN != "" {
		if _, exists, err := a.store.GetBookByISBN(in.ISBN); err != nil {
			return domain.Book{}, fmt.Errorf("check isbn: %w", err)
		} else if exists {
			return domain.Book{}, ErrISBNExists
		}
	}

	coverKey := assetKey("covers", cover.Filename)
	pdfKey := assetKey("pdfs", pdf.Filename)
	if err := a.objects.Put(ctx, coverKey, bytes.NewReader(cover.Data), int64(len(cover.Data)), cover.ContentType); err != nil {
		return domain.Book{}, fmt.Errorf("store cover: %w", err)
	}
	if err := a.objects.Put(ctx, pdfKey, bytes.NewReader(pdf.Data), int64(len(pdf.Data)), pdf.ContentType); err != nil {
		a.cleanupAssets(coverKey)
		return domain.Book{}, fmt.Errorf("store pdf: %w", err)
	}

	totalPages := in.TotalPages
	if totalPages <= 0 {
		count, err := pdfmeta.PageCount(bytes.NewReader(pdf.Data), int64(len(pdf.Data)))
		if err != nil {
			a.logger.Warn("pdf page count failed", "file", pdf.Filename, "error", err)
		} else {
			totalPages = count
		}
	}

	now := time.Now().UTC()
	book := domain.Book{
		ID:            util.NewID(),
		Title:         in.Title,
		Author:        in.Author,
		ISBN:          in.ISBN,
		Category:      domain.BookCategory(in.Category),
		Description:   strings.TrimSpace(in.Description),
		TotalPages:    totalPages,
		CoverKey:      coverKey,
		PDFKey:        pdfKey,
		PublishedDate: in.PublishedDate,
		AddedBy:       admin.ID,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.store.CreateBook(book); err != nil {
		a.cleanupAssets(coverKey, pdfKey)
		if errors.Is(err, store.ErrDuplicateKey) {
			return domain.Book{}, ErrISBNExists
		}
		return domain.Book{}, fmt.Errorf("save book: %w", err)
	}
	return book, nil
}

// UpdateBook changes any subset of fields. A replacement asset is written
// before the previous one is deleted, so a failed upload keeps the old file.
func (a *App) UpdateBook(ctx context.Context, bookID string, in BookInput, cover, pdf *Upload) (domain.Book, error) {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return domain.Book{}, fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return domain.Book{}, ErrBookNotFound
	}

	if v := strings.TrimSpace(in.Title); v != "" {
		book.Title = v
	}
	if v := strings.TrimSpace(in.Author); v != "" {
		book.Author = v
	}
	if v := strings.TrimSpace(in.Description); v != "" {
		book.Description = v
	}
	if in.Category != "" {
		if !domain.ValidCategory(domain.BookCategory(in.Category)) {
			return domain.Book{}, ErrInvalidCategory
		}
		book.Category = domain.BookCategory(in.Category)
	}
	if isbn := strings.TrimSpace(in.ISBN); isbn != "" && isbn != book.ISBN {
		if other, exists, err := a.store.GetBookByISBN(isbn); err != nil {
			return domain.Book{}, fmt.Errorf("check isbn: %w", err)
		} else if exists && other.ID != book.ID {
			return domain.Book{}, ErrISBNExists
		}
		book.ISBN = isbn
	}
	if in.TotalPages > 0 {
		book.TotalPages = in.TotalPages
	}
	if !in.PublishedDate.IsZero() {
		book.PublishedDate = in.PublishedDate
	}
	if in.IsActive != nil {
		book.IsActive = *in.IsActive
	}

	var replaced []string
	if cover != nil && len(cover.Data) > 0 {
		key := assetKey("covers", cover.Filename)
		if err := a.objects.Put(ctx, key, bytes.NewReader(cover.Data), int64(len(cover.Data)), cover.ContentType); err != nil {
			return domain.Book{}, fmt.Errorf("store cover: %w", err)
		}
		if book.CoverKey != "" {
			replaced = append(replaced, book.CoverKey)
		}
		book.CoverKey = key
	}
	if pdf != nil && len(pdf.Data) > 0 {
		key := assetKey("pdfs", pdf.Filename)
		if err := a.objects.Put(ctx, key, bytes.NewReader(pdf.Data), int64(len(pdf.Data)), pdf.ContentType); err != nil {
			return domain.Book{}, fmt.Errorf("store pdf: %w", err)
		}
		if book.PDFKey != "" {
			replaced = append(replaced, book.PDFKey)
		}
		book.PDFKey = key
		if in.TotalPages <= 0 {
			if count, err := pdfmeta.PageCount(bytes.NewReader(pdf.Data), int64(len(pdf.Data))); err == nil {
				book.TotalPages = count
			}
		}
	}

	book.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateBook(book); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return domain.Book{}, ErrISBNExists
		}
		return domain.Book{}, fmt.Errorf("update book: %w", err)
	}
	a.cleanupAssets(replaced...)
	return book, nil
}

// DeleteBook hard-deletes the catalog row with its access records and
// highlights, then removes both asset files.
func (a *App) DeleteBook(ctx context.Context, bookID string) error {
	book, ok, err := a.store.GetBook(bookID)
	if err != nil {
		return fmt.Errorf("fetch book: %w", err)
	}
	if !ok {
		return ErrBookNotFound
	}
	if err := a.store.DeleteBook(book.ID); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	a.cleanupAssets(book.CoverKey, book.PDFKey)
	return nil
}

// ListAllBooks returns the catalog including inactive entries.
func (a *App) ListAllBooks(filter store.BookFilter) (BookList, error) {
	filter.IncludeInactive = true
	page, err := a.store.ListBooks(filter)
	if err != nil {
		return BookList{}, fmt.Errorf("list books: %w", err)
	}
	items := make([]BookListItem, 0, len(page.Books))
	for _, b := range page.Books {
		items = append(items, BookListItem{Book: b})
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

// GetAdminStats returns the dashboard counters.
func (a *App) GetAdminStats() (AdminStats, error) {
	users, err := a.store.UserCount()
	if err != nil {
		return AdminStats{}, fmt.Errorf("count users: %w", err)
	}
	books, err := a.store.BookCount(false)
	if err != nil {
		return AdminStats{}, fmt.Errorf("count books: %w", err)
	}
	active, err := a.store.BookCount(true)
	if err != nil {
		return AdminStats{}, fmt.Errorf("count active books: %w", err)
	}
	opened, err := a.store.UserBookCountByMonth(domain.MonthKey(time.Now()))
	if err != nil {
		return AdminStats{}, fmt.Errorf("count monthly opens: %w", err)
	}
	return AdminStats{
		TotalUsers:           users,
		TotalBooks:           books,
		ActiveBooks:          active,
		BooksOpenedThisMonth: opened,
	}, nil
}

// ListUsers returns all accounts (admin use only).
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}

// UpdateUserLimit sets a user's monthly book quota.
func (a *App) UpdateUserLimit(userID string, limit int) (domain.User, error) {
	if limit < 1 {
		return domain.User{}, ErrLimitInvalid
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	user.MonthlyBookLimit = limit
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateUser(user); err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// cleanupAssets removes asset files in parallel, best-effort. Failures are
// logged, not returned: the catalog row is already the source of truth.
func (a *App) cleanupAssets(keys ...string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		if key == "" {
			continue
		}
		key := key
		g.Go(func() error {
			if err := a.objects.Delete(ctx, key); err != nil {
				a.logger.Warn("asset cleanup failed", "key", key, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func assetKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return prefix + "/" + util.NewID() + ext
}
