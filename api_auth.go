package main

import (
	"net/http"
	"strings"

	"github.com/AndyMelnik/sensoriqua/apperr"
	"github.com/AndyMelnik/sensoriqua/auth"
)

type loginRequest struct {
	Email     string `json:"email"`
	IotDBURL  string `json:"iotDbUrl"`
	UserDBURL string `json:"userDbUrl"`
	Role      string `json:"role"`
}

type loginResponse struct {
	Success bool      `json:"success"`
	User    loginUser `json:"user"`
	Token   string    `json:"token"`
}

type loginUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	codec := sessionResolver.Codec()
	if !codec.Strict() {
		writeJSON(w, http.StatusNotImplemented, map[string]string{
			"detail": "login is not configured on this server; set JWT_SECRET (32+ characters) to enable sessions",
		})
		return
	}

	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || strings.TrimSpace(req.IotDBURL) == "" {
		writeError(w, r, apperr.New(apperr.InvalidInput, "email and iotDbUrl are required"))
		return
	}
	if err := auth.ValidateDSN(req.IotDBURL, serverConfig.Auth.AllowPrivateDSN); err != nil {
		writeError(w, r, err)
		return
	}
	if req.UserDBURL != "" {
		if err := auth.ValidateDSN(req.UserDBURL, serverConfig.Auth.AllowPrivateDSN); err != nil {
			writeError(w, r, err)
			return
		}
	}
	role := req.Role
	if role == "" {
		role = "admin"
	}

	session := sessionResolver.Registry().Register(auth.Credentials{
		Email:        req.Email,
		WarehouseDSN: strings.TrimSpace(req.IotDBURL),
		AppStateDSN:  strings.TrimSpace(req.UserDBURL),
	})
	token, err := codec.Issue(session.UserID, session.Email, role)
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.UpstreamQueryFailed, "could not issue session token", err))
		return
	}

	serverLogger.Info("Session established", "tenant", session.TenantID, "warehouse", auth.MaskDSN(session.WarehouseDSN))
	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		User:    loginUser{ID: session.UserID, Email: session.Email, Role: role},
		Token:   token,
	})
}

// handleConfig reports connection diagnostics for the current session. The
// warehouse DSN is masked so the password never round-trips to the browser.
func handleConfig(w http.ResponseWriter, r *http.Request) {
	session, err := requireSession(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dsn_placeholder": auth.MaskDSN(session.WarehouseDSN),
		"default_user_id": session.TenantID,
	})
}
