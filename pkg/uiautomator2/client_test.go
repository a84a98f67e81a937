package uiautomator2

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// writeJSON encodes data as JSON to the response writer.
func writeJSON(w http.ResponseWriter, data interface{}) {
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	client := NewClient(server.URL)
	client.SetHTTPClient(server.Client())
	return client, server
}

// newErrorTestClient creates a client that will fail on any request.
func newErrorTestClient() *Client {
	client := NewClient("http://localhost:99999")
	client.SetSession("test")
	return client
}

func TestStatus(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/status" {
			t.Errorf("expected /status, got %s", r.URL.Path)
		}
		if r.Method != "GET" {
			t.Errorf("expected GET, got %s", r.Method)
		}
		writeJSON(w, map[string]interface{}{
			"status": 0,
			"value": map[string]interface{}{
				"ready":   true,
				"message": "ready",
				"build":   map[string]interface{}{"version": "1.2.3"},
			},
		})
	})
	defer server.Close()

	st, err := client.Status()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.Ready {
		t.Error("expected ready to be true")
	}
	if st.Build.Version != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %q", st.Build.Version)
	}
}

func TestStatusConnectionError(t *testing.T) {
	client := newErrorTestClient()
	if _, err := client.Status(); err == nil {
		t.Error("expected error")
	}
}

func TestCreateSession(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/session" || r.Method != "POST" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		var req SessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Capabilities["platformName"] != "Android" {
			t.Errorf("expected Android platform, got %v", req.Capabilities["platformName"])
		}
		writeJSON(w, map[string]interface{}{
			"sessionId": "session-123",
			"status":    0,
			"value":     map[string]interface{}{"sessionId": "session-123"},
		})
	})
	defer server.Close()

	if err := client.CreateSession(map[string]interface{}{"platformName": "Android"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.SessionID() != "session-123" || !client.HasSession() {
		t.Errorf("expected session-123, got %q", client.SessionID())
	}
}

func TestCreateSessionFromValue(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"status": 0,
			"value":  map[string]interface{}{"sessionId": "alt-session"},
		})
	})
	defer server.Close()

	if err := client.CreateSession(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.SessionID() != "alt-session" {
		t.Errorf("expected alt-session, got %q", client.SessionID())
	}
}

func TestCreateSessionNoID(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"status": 0, "value": map[string]interface{}{}})
	})
	defer server.Close()

	if err := client.CreateSession(nil); err == nil {
		t.Error("expected error for missing session ID")
	}
}

func TestStatusError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]interface{}{
			"sessionId": "s",
			"status":    StatusNoSuchDriver,
			"value":     "no such session",
		})
	})
	defer server.Close()
	client.SetSession("s")

	_, err := client.GetSession()
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StatusError, got %v", err)
	}
	if se.Status != StatusNoSuchDriver || se.Message != "no such session" {
		t.Errorf("unexpected status error: %+v", se)
	}
}

func TestW3CErrorValue(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]interface{}{
			"status": StatusUnknownError,
			"value":  map[string]interface{}{"error": "unknown error", "message": "boom"},
		})
	})
	defer server.Close()

	_, err := client.Status()
	var se *StatusError
	if !errors.As(err, &se) || se.Message != "unknown error: boom" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNonJSONError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})
	defer server.Close()

	if _, err := client.Status(); err == nil {
		t.Error("expected error for non-JSON response")
	}
}

func TestGetSessionNoSession(t *testing.T) {
	client := NewClient("http://localhost:1")
	if _, err := client.GetSession(); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	called := false
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != "DELETE" || r.URL.Path != "/session/s-1" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		writeJSON(w, map[string]interface{}{"sessionId": "s-1", "status": 0, "value": nil})
	})
	defer server.Close()
	client.SetSession("s-1")

	if err := client.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Error("DELETE not sent")
	}
	if client.HasSession() {
		t.Error("session still set after delete")
	}

	called = false
	if err := client.DeleteSession(); err != nil || called {
		t.Errorf("DeleteSession without session: err %v, called %v", err, called)
	}
}

func TestNewClientTrimsSlash(t *testing.T) {
	c := NewClient("http://127.0.0.1:6790/wd/hub/")
	if c.baseURL != "http://127.0.0.1:6790/wd/hub" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if NewClientTCP(6790).baseURL != "http://127.0.0.1:6790" {
		t.Errorf("NewClientTCP baseURL = %q", NewClientTCP(6790).baseURL)
	}
}
