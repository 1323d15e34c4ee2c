package server

import (
	"net/http"

	"github.com/zombor/receipt-keeper/internal/auth"
	"github.com/zombor/receipt-keeper/internal/metrics"
	"github.com/zombor/receipt-keeper/internal/models"
)

type registerRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	SecurityQuestion string `json:"security_question"`
	SecurityAnswer   string `json:"security_answer"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	Email       string `json:"email"`
	Name        string `json:"name"`
	HasRecovery bool   `json:"has_recovery,omitempty"`
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type recoveryRequest struct {
	Ticket   string `json:"ticket"`
	Email    string `json:"email"`
	Answer   string `json:"answer"`
	Password string `json:"password"`
}

type recoveryResponse struct {
	Ticket   string    `json:"ticket,omitempty"`
	Step     auth.Step `json:"step"`
	Question string    `json:"question,omitempty"`
}

// observeAuth counts an account operation. Domain failures are "rejected",
// anything else "error".
func (s *Server) observeAuth(op string, err error) {
	if s.Metrics == nil {
		return
	}
	label := "error"
	if auth.IsDomainError(err) {
		label = "rejected"
	}
	s.Metrics.AuthOps.WithLabelValues(op, metrics.Result(err, label)).Inc()
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.Accounts.Register(r.Context(), auth.RegisterRequest{
		Name:             req.Name,
		Email:            req.Email,
		Password:         req.Password,
		SecurityQuestion: req.SecurityQuestion,
		SecurityAnswer:   req.SecurityAnswer,
	})
	s.observeAuth("register", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.startSession(w, r, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.Accounts.Login(r.Context(), req.Email, req.Password)
	s.observeAuth("login", err)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.startSession(w, r, http.StatusOK, user)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request, status int, user *models.User) {
	token, err := s.Sessions.Issue(user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, sessionResponse{
		Token: token,
		User:  userResponse{Email: user.Email, Name: user.Name, HasRecovery: user.HasRecovery()},
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	err := s.Sessions.Logout(sessionFrom(r.Context()).token)
	s.observeAuth("logout", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := sessionFrom(r.Context()).claims
	writeJSON(w, http.StatusOK, userResponse{Email: claims.Email, Name: claims.Name})
}

func (s *Server) handleRecoveryEmail(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	recovery := s.Accounts.BeginRecovery()
	err := recovery.SubmitEmail(r.Context(), req.Email)
	s.observeAuth("recovery_email", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeRecovery(w, r, recovery)
}

func (s *Server) handleRecoveryAnswer(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	recovery, err := s.resumeRecovery(req.Ticket)
	if err == nil {
		err = recovery.SubmitAnswer(r.Context(), req.Answer)
	}
	s.observeAuth("recovery_answer", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.writeRecovery(w, r, recovery)
}

func (s *Server) handleRecoveryPassword(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	recovery, err := s.resumeRecovery(req.Ticket)
	if err == nil {
		err = recovery.SubmitNewPassword(r.Context(), req.Password)
	}
	s.observeAuth("recovery_password", err)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recoveryResponse{Step: recovery.Step()})
}

func (s *Server) resumeRecovery(ticket string) (*auth.Recovery, error) {
	state, err := s.Sessions.ParseRecoveryTicket(ticket)
	if err != nil {
		return nil, err
	}
	return s.Accounts.ResumeRecovery(state)
}

// writeRecovery hands the client a ticket for the next step.
func (s *Server) writeRecovery(w http.ResponseWriter, r *http.Request, recovery *auth.Recovery) {
	ticket, err := s.Sessions.IssueRecoveryTicket(recovery.State())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recoveryResponse{
		Ticket:   ticket,
		Step:     recovery.Step(),
		Question: recovery.Question(),
	})
}
