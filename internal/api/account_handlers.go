package api

import (
	"encoding/json/v2"
	"net/http"

	"github.com/librisapp/libris-server/internal/http/response"
	"github.com/librisapp/libris-server/internal/service"
)

// handleCreateUser registers a new account. Open to anonymous callers.
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	user, err := s.accounts.CreateUser(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Created(w, user, s.logger)
}

// handleLogin verifies credentials and returns a token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := json.UnmarshalRead(r.Body, &req); err != nil {
		response.BadRequest(w, "Invalid request body", s.logger)
		return
	}

	resp, err := s.accounts.Login(r.Context(), req)
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}

	response.Success(w, resp, s.logger)
}

// handleCurrentUser returns the account behind the request's principal, or
// an empty success envelope for an anonymous request.
func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.accounts.CurrentUser(r.Context(), principalFrom(r.Context()))
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if user == nil {
		response.Success(w, nil, s.logger)
		return
	}

	response.Success(w, user, s.logger)
}
