// Package httpapi binds the greeting and user directory operations to HTTP.
// It owns nothing but the mapping: request decoding, id parsing, and the
// translation of the error taxonomy to status codes (not-found 404,
// conflict and validation 400, everything else 500).
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/agentuity/go-common/logger"
	"github.com/cockroachdb/errors"

	"github.com/quietbay/greeter/greet"
	"github.com/quietbay/greeter/user"
)

// Server routes HTTP requests to the greeting service and user directory.
type Server struct {
	greeter *greet.Service
	users   *user.Directory
	log     logger.Logger
}

// New returns a Server over the given services.
func New(greeter *greet.Service, users *user.Directory, log logger.Logger) *Server {
	return &Server{greeter: greeter, users: users, log: log.WithPrefix("[http]")}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /hello", s.handleHello)
	mux.HandleFunc("POST /user", s.handleCreateUser)
	mux.HandleFunc("GET /user", s.handleListUsers)
	mux.HandleFunc("GET /user/{id}", s.handleGetUser)
	mux.HandleFunc("PUT /user/{id}", s.handleUpdateUser)
	mux.HandleFunc("DELETE /user/{id}", s.handleDeleteUser)
	return mux
}

func (s *Server) handleHello(w http.ResponseWriter, r *http.Request) {
	greeting, err := s.greeter.Hello(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(greeting))
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	candidate, err := decodeUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	created, err := s.users.Create(r.Context(), candidate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	record, err := s.users.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 0)
	size := queryInt(r, "size", user.DefaultPageSize)
	records, err := s.users.List(r.Context(), page, size)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	patch, err := decodeUser(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	updated, err := s.users.Update(r.Context(), id, patch)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.users.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeUser(r *http.Request) (*user.User, error) {
	var u user.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		return nil, user.Validationf("malformed request body")
	}
	return &u, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, user.Validationf("invalid user id %q", raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.Error("failed to encode response: %s", err)
	}
}

// writeError maps the error taxonomy to a status code. Not-found and
// conflict are expected outcomes and are not logged as errors.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, user.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, user.ErrConflict), errors.Is(err, user.ErrValidation):
		status = http.StatusBadRequest
	default:
		s.log.Error("request failed: %s", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
