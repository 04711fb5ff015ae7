package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/librisapp/libris-server/internal/http/response"
	"github.com/librisapp/libris-server/internal/service"
)

// handleListAuthors returns every author with their book count.
func (s *Server) handleListAuthors(w http.ResponseWriter, r *http.Request) {
	authors, err := s.catalog.ListAuthors(r.Context())
	if err != nil {
		s.logger.Error("Failed to list authors", "error", err)
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, authors, s.logger)
}

// handleListBooks returns books matching the optional author and genre filters.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	req := service.ListBooksRequest{
		AuthorName: r.URL.Query().Get("author"),
		Genre:      r.URL.Query().Get("genre"),
	}

	books, err := s.catalog.ListBooks(r.Context(), req)
	if err != nil {
		s.logger.Error("Failed to list books", "error", err)
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, books, s.logger)
}

// handleAddBook creates a book for the authenticated principal.
func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req service.AddBookRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	book, err := s.catalog.AddBook(r.Context(), principalFrom(r.Context()), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, book, s.logger)
}

// EditAuthorBody carries the birth year for an author update.
// The author is named by the URL, not the body.
type EditAuthorBody struct {
	SetBornTo int `json:"set_born_to"`
}

// handleEditAuthor sets an author's birth year. An unknown author name is a
// 404, not a server error.
func (s *Server) handleEditAuthor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		response.BadRequest(w, "Author name is required", s.logger)
		return
	}

	var body EditAuthorBody
	if err := json.UnmarshalRead(r.Body, &body); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	author, err := s.catalog.EditAuthor(r.Context(), principalFrom(r.Context()), service.EditAuthorRequest{
		Name:      name,
		SetBornTo: body.SetBornTo,
	})
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if author == nil {
		response.NotFound(w, "Author not found", s.logger)
		return
	}

	response.Success(w, author, s.logger)
}

// handleHealthCheck reports liveness.
func (s *Server) handleHealthCheck(w http.ResponseWriter, _ *http.Request) {
	response.Success(w, map[string]string{"status": "ok"}, s.logger)
}
