package http

import (
	"net/http"

	"canteen/internal/core"
	"canteen/internal/log"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		malformedBody(w, r, err)
		return
	}

	_, err := s.deps.Auth.Register(r.Context(), p.Get("username"), p.Get("email"), p.Get("password"))
	if err != nil {
		writeError(w, r, scopeBody, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Message("Student registered successfully").
		Write(w)
}

type loginResponse struct {
	Refresh string    `json:"refresh"`
	Access  string    `json:"access"`
	User    userBrief `json:"user"`
}

type userBrief struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	IsStudent bool   `json:"is_student"`
	IsManager bool   `json:"is_manager"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		malformedBody(w, r, err)
		return
	}

	pair, u, err := s.deps.Auth.Login(r.Context(), p.Get("username"), p.Get("password"))
	if err != nil {
		writeError(w, r, scopeBody, err)
		return
	}
	NewJSONResponse().Payload(loginResponse{
		Refresh: pair.Refresh,
		Access:  pair.Access,
		User: userBrief{
			ID:        u.ID,
			Username:  u.Username,
			IsStudent: u.IsStudent,
			IsManager: u.IsManager || u.IsSuperuser,
		},
	}).Write(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		malformedBody(w, r, err)
		return
	}
	refresh := p.Get("refresh")
	if refresh == "" {
		FieldErrors("refresh", "This field is required.").Write(w)
		return
	}

	access, err := s.deps.Auth.Refresh(r.Context(), refresh)
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Refresh rejected",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeAuth)
		writeError(w, r, scopeBody, err)
		return
	}
	NewJSONResponse().Payload(map[string]string{"access": access}).Write(w)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request, caller core.Identity) {
	users, err := s.deps.Auth.ListUsers(r.Context(), caller)
	if err != nil {
		writeError(w, r, scopePath, err)
		return
	}
	NewJSONResponse().Payload(users).Write(w)
}
