package app

import (
	"fmt"
	"net/http"

	"taskboard/internal/auth"
	"taskboard/internal/authpw"
)

func (s *HTTPServer) handleAuthSignUp(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	user, err := s.auth.SignUp(r.Context(), authpw.SignUpRequest{
		Email:    p.str("email"),
		Password: p.str("password"),
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"status":  true,
		"message": "Account created.",
		"result":  map[string]any{"id": user.ID, "email": user.Email},
	})
}

func (s *HTTPServer) handleAuthSignIn(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	user, err := s.auth.SignIn(r.Context(), authpw.SignInRequest{
		Email:    p.str("email"),
		Password: p.str("password"),
	})
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	token, expiresAt, err := auth.IssueToken(s.jwtSecret, user.ID, user.Email, s.accessTTL)
	if err != nil {
		writeFailure(w, r, fmt.Errorf("issue token: %w", err))
		return
	}
	writeOK(w, "", map[string]any{
		"token":     token,
		"expiresAt": expiresAt.Unix(),
		"userId":    user.ID,
	})
}
