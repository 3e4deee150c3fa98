package main

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

func TestLiveSocketRequiresAuth(t *testing.T) {
	srv, _ := setupTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial succeeded without a token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Errorf("handshake status = %d, want 401", status)
	}
}

func TestLiveSocketRejectsGarbageToken(t *testing.T) {
	srv, _ := setupTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/live?token=bogus"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("dial succeeded with a garbage token")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Errorf("handshake status = %d, want 401", status)
	}
}
