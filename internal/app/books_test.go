package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"edushelf/pkg/domain"
	"edushelf/pkg/store"
)

func TestOpenBookChargesQuotaOncePerMonth(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)
	env.seedBook(t, "b1", "Physics", 200)

	first, err := env.app.OpenBook(ctx, user, "b1")
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if first.BooksThisMonth != 1 || first.RemainingQuota != 9 {
		t.Fatalf("quota after first open = %d/%d, want 1 used, 9 left",
			first.BooksThisMonth, first.RemainingQuota)
	}
	if first.TotalReads != 1 {
		t.Fatalf("totalReads = %d, want 1", first.TotalReads)
	}

	second, err := env.app.OpenBook(ctx, user, "b1")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if second.BooksThisMonth != 1 {
		t.Fatalf("reopen charged quota: used = %d, want 1", second.BooksThisMonth)
	}
	if second.Progress.ID != first.Progress.ID {
		t.Fatal("reopen should reuse the existing access record")
	}
}

func TestOpenBookRejectsAtQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 2)
	env.seedBook(t, "b1", "One", 100)
	env.seedBook(t, "b2", "Two", 100)
	env.seedBook(t, "b3", "Three", 100)

	if _, err := env.app.OpenBook(ctx, user, "b1"); err != nil {
		t.Fatalf("open b1: %v", err)
	}
	if _, err := env.app.OpenBook(ctx, user, "b2"); err != nil {
		t.Fatalf("open b2: %v", err)
	}
	_, err := env.app.OpenBook(ctx, user, "b3")
	var quota *QuotaExceededError
	if !errors.As(err, &quota) {
		t.Fatalf("open b3 = %v, want QuotaExceededError", err)
	}
	if quota.Limit != 2 || quota.Current != 2 {
		t.Fatalf("quota payload = %d/%d, want limit 2, current 2", quota.Limit, quota.Current)
	}
	// An already-unlocked book stays readable at the limit.
	if _, err := env.app.OpenBook(ctx, user, "b1"); err != nil {
		t.Fatalf("reopen b1 at quota: %v", err)
	}
}

func TestOpenBookNewMonthNewRecord(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)
	env.seedBook(t, "b1", "Physics", 200)

	lastMonth := domain.MonthKey(time.Now().AddDate(0, -1, 0))
	old := domain.UserBook{
		ID: "ub-old", UserID: user.ID, BookID: "b1", Month: lastMonth,
		PagesRead: 50, FirstOpenedAt: time.Now().AddDate(0, -1, 0), LastReadAt: time.Now().AddDate(0, -1, 0),
	}
	if err := env.store.CreateUserBook(old); err != nil {
		t.Fatalf("seed old record: %v", err)
	}

	detail, err := env.app.OpenBook(ctx, user, "b1")
	if err != nil {
		t.Fatalf("open this month: %v", err)
	}
	if detail.Progress.ID == "ub-old" {
		t.Fatal("new month should create an independent access record")
	}
	all, _ := env.store.ListAllUserBooks(user.ID)
	if len(all) != 2 {
		t.Fatalf("access records = %d, want 2", len(all))
	}
}

func TestOpenBookHidesInactive(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)
	book := env.seedBook(t, "b1", "Physics", 200)
	book.IsActive = false
	if err := env.store.UpdateBook(book); err != nil {
		t.Fatalf("deactivate book: %v", err)
	}
	if _, err := env.app.OpenBook(context.Background(), user, "b1"); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("open inactive = %v, want ErrBookNotFound", err)
	}
}

func TestUpdateProgressCompletionIsOneWay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)
	env.seedBook(t, "b1", "Physics", 100)
	if _, err := env.app.OpenBook(ctx, user, "b1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	progress, stats, err := env.app.UpdateProgress(user, "b1", 100, 100)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !progress.IsCompleted {
		t.Fatal("pagesRead >= totalPages should complete the record")
	}
	if stats.TotalPagesRead != 100 {
		t.Fatalf("totalPagesRead = %d, want 100", stats.TotalPagesRead)
	}

	// Regressing progress keeps the completion flag set.
	user, _, _ = env.store.GetUserByID(user.ID)
	progress, stats, err = env.app.UpdateProgress(user, "b1", 10, 10)
	if err != nil {
		t.Fatalf("regress: %v", err)
	}
	if !progress.IsCompleted {
		t.Fatal("completion must not revert when pagesRead drops")
	}
	if stats.TotalPagesRead != 10 {
		t.Fatalf("totalPagesRead after regression = %d, want 10", stats.TotalPagesRead)
	}
}

func TestUpdateProgressRequiresAccess(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)
	env.seedBook(t, "b1", "Physics", 100)
	if _, _, err := env.app.UpdateProgress(user, "b1", 10, 10); !errors.Is(err, ErrProgressNotFound) {
		t.Fatalf("progress without open = %v, want ErrProgressNotFound", err)
	}
}

func TestUserStatsAggregates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)
	env.seedBook(t, "b1", "One", 100)
	env.seedBook(t, "b2", "Two", 100)

	if _, err := env.app.OpenBook(ctx, user, "b1"); err != nil {
		t.Fatalf("open b1: %v", err)
	}
	user, _, _ = env.store.GetUserByID(user.ID)
	if _, _, err := env.app.UpdateProgress(user, "b1", 100, 100); err != nil {
		t.Fatalf("progress b1: %v", err)
	}
	user, _, _ = env.store.GetUserByID(user.ID)
	if _, err := env.app.OpenBook(ctx, user, "b2"); err != nil {
		t.Fatalf("open b2: %v", err)
	}
	user, _, _ = env.store.GetUserByID(user.ID)
	if _, _, err := env.app.UpdateProgress(user, "b2", 40, 40); err != nil {
		t.Fatalf("progress b2: %v", err)
	}

	stats, err := env.app.GetUserStats(user.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.CompletedBooks != 1 || stats.InProgressBooks != 1 {
		t.Fatalf("completed/in-progress = %d/%d, want 1/1", stats.CompletedBooks, stats.InProgressBooks)
	}
	if stats.AverageCompletion != 70 {
		t.Fatalf("averageCompletion = %d, want 70", stats.AverageCompletion)
	}
	if len(stats.History) != 6 {
		t.Fatalf("history = %d months, want 6", len(stats.History))
	}
	current := stats.History[5]
	if current.Month != domain.MonthKey(time.Now()) || current.Books != 2 || current.PagesRead != 140 {
		t.Fatalf("current month = %+v, want 2 books, 140 pages", current)
	}
	if len(stats.RecentlyRead) != 2 || stats.RecentlyRead[0].Title != "Two" {
		t.Fatalf("recentlyRead = %+v, want Two first", stats.RecentlyRead)
	}
}

func TestOpenBookReportsIsNew(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)
	env.seedBook(t, "b1", "Physics", 100)

	first, err := env.app.OpenBook(ctx, user, "b1")
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if !first.IsNew {
		t.Fatal("first open should report a new access record")
	}
	second, err := env.app.OpenBook(ctx, user, "b1")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if second.IsNew {
		t.Fatal("reopen should not report a new access record")
	}
}

func TestNextStreak(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	earlier := now.Add(-2 * time.Hour)
	lastWeek := now.AddDate(0, 0, -7)

	if got := nextStreak(0, nil, now); got != 1 {
		t.Fatalf("first read = %d, want 1", got)
	}
	if got := nextStreak(3, &earlier, now); got != 3 {
		t.Fatalf("same day = %d, want 3", got)
	}
	if got := nextStreak(3, &yesterday, now); got != 4 {
		t.Fatalf("one day gap = %d, want 4", got)
	}
	if got := nextStreak(9, &lastWeek, now); got != 1 {
		t.Fatalf("long gap = %d, want reset to 1", got)
	}
}

func TestHighlightDefaultsAndOwnership(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)
	other := env.seedUser(t, "u2", "other@example.com", domain.RoleUser, 10)
	env.seedBook(t, "b1", "Physics", 100)

	h, err := env.app.AddHighlight(user, "b1", 12, "key passage", "", "check later")
	if err != nil {
		t.Fatalf("add highlight: %v", err)
	}
	if h.Color != "#fef3c7" {
		t.Fatalf("color = %q, want default #fef3c7", h.Color)
	}

	// Another user's highlight reads as absent, not forbidden.
	if err := env.app.DeleteHighlight(other, h.ID); !errors.Is(err, ErrHighlightNotFound) {
		t.Fatalf("foreign delete = %v, want ErrHighlightNotFound", err)
	}
	if _, err := env.app.UpdateHighlight(other, h.ID, "stolen", "", ""); !errors.Is(err, ErrHighlightNotFound) {
		t.Fatalf("foreign update = %v, want ErrHighlightNotFound", err)
	}
	if err := env.app.DeleteHighlight(user, h.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestAddHighlightValidation(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)
	env.seedBook(t, "b1", "Physics", 100)

	if _, err := env.app.AddHighlight(user, "b1", 0, "text", "", ""); !errors.Is(err, ErrHighlightInvalid) {
		t.Fatalf("page 0 = %v, want ErrHighlightInvalid", err)
	}
	if _, err := env.app.AddHighlight(user, "b1", 3, "  ", "", ""); !errors.Is(err, ErrHighlightInvalid) {
		t.Fatalf("blank text = %v, want ErrHighlightInvalid", err)
	}
	if _, err := env.app.AddHighlight(user, "missing", 3, "text", "", ""); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("missing book = %v, want ErrBookNotFound", err)
	}
}

func TestListBooksAnnotatesProgress(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "u1", "reader@example.com", domain.RoleUser, 10)
	env.seedBook(t, "b1", "Opened", 100)
	env.seedBook(t, "b2", "Untouched", 100)
	if _, err := env.app.OpenBook(ctx, user, "b1"); err != nil {
		t.Fatalf("open: %v", err)
	}

	list, err := env.app.ListBooks(ctx, user, store.BookFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	byID := map[string]BookListItem{}
	for _, item := range list.Books {
		byID[item.ID] = item
	}
	if byID["b1"].Progress == nil {
		t.Fatal("opened book should carry progress")
	}
	if byID["b2"].Progress != nil {
		t.Fatal("untouched book should not carry progress")
	}
}
