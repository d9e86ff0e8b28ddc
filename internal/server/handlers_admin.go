package server

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"edushelf/internal/app"
	"edushelf/pkg/domain"
)

type userLimitRequest struct {
	MonthlyBookLimit int `json:"monthlyBookLimit"`
}

func (s *Server) handleAdminBooks(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		list, err := s.app.ListAllBooks(bookFilterFromQuery(r))
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, list)
	case http.MethodPost:
		s.handleCreateBook(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request, user domain.User) {
	input, cover, pdf, ok := s.parseBookForm(w, r)
	if !ok {
		return
	}
	book, err := s.app.CreateBook(r.Context(), user, input, cover, pdf)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, book)
}

func (s *Server) handleAdminBookByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/books/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		input, cover, pdf, ok := s.parseBookForm(w, r)
		if !ok {
			return
		}
		book, err := s.app.UpdateBook(r.Context(), id, input, cover, pdf)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, book)
	case http.MethodDelete:
		if err := s.app.DeleteBook(r.Context(), id); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, map[string]string{"id": id})
	default:
		methodNotAllowed(w)
	}
}

// parseBookForm reads the multipart book form. A false return means the
// response was already written.
func (s *Server) parseBookForm(w http.ResponseWriter, r *http.Request) (app.BookInput, *app.Upload, *app.Upload, bool) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
		} else {
			writeError(w, http.StatusBadRequest, "Invalid form data")
		}
		return app.BookInput{}, nil, nil, false
	}

	input := app.BookInput{
		Title:       r.FormValue("title"),
		Author:      r.FormValue("author"),
		ISBN:        r.FormValue("isbn"),
		Category:    strings.TrimSpace(r.FormValue("category")),
		Description: r.FormValue("description"),
	}
	if v := strings.TrimSpace(r.FormValue("totalPages")); v != "" {
		pages, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "totalPages must be a number")
			return app.BookInput{}, nil, nil, false
		}
		input.TotalPages = pages
	}
	if v := strings.TrimSpace(r.FormValue("publishedDate")); v != "" {
		date, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "publishedDate must be YYYY-MM-DD")
			return app.BookInput{}, nil, nil, false
		}
		input.PublishedDate = date
	}
	if v := strings.TrimSpace(r.FormValue("isActive")); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "isActive must be a boolean")
			return app.BookInput{}, nil, nil, false
		}
		input.IsActive = &active
	}

	cover, err := readUpload(r, "coverImage")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read cover image")
		return app.BookInput{}, nil, nil, false
	}
	if cover != nil && !isImageUpload(cover) {
		writeError(w, http.StatusBadRequest, "Cover must be an image file")
		return app.BookInput{}, nil, nil, false
	}
	pdf, err := readUpload(r, "pdfFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read PDF file")
		return app.BookInput{}, nil, nil, false
	}
	if pdf != nil && !isPDFUpload(pdf) {
		writeError(w, http.StatusBadRequest, "Book file must be a PDF")
		return app.BookInput{}, nil, nil, false
	}
	return input, cover, pdf, true
}

// readUpload buffers one multipart file. A missing field is not an error,
// it returns nil so the caller can decide whether the file was required.
func readUpload(r *http.Request, field string) (*app.Upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}
	return &app.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

func isImageUpload(u *app.Upload) bool {
	if strings.HasPrefix(u.ContentType, "image/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(u.Filename)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	}
	return false
}

func isPDFUpload(u *app.Upload) bool {
	if u.ContentType == "application/pdf" {
		return true
	}
	return strings.EqualFold(filepath.Ext(u.Filename), ".pdf")
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.GetAdminStats()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, stats)
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"users": users, "count": len(users)})
}

// handleAdminUserLimit serves PUT /api/admin/users/{id}/limit.
func (s *Server) handleAdminUserLimit(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] != "limit" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req userLimitRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	updated, err := s.app.UpdateUserLimit(parts[0], req.MonthlyBookLimit)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, updated)
}
