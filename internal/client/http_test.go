package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/facepin/kiosk/internal/session"
)

func TestBaseURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"ws://127.0.0.1:5000/ws", "http://127.0.0.1:5000", false},
		{"wss://kiosk.example.com/socket.io/", "https://kiosk.example.com", false},
		{"http://localhost:5000", "http://localhost:5000", false},
		{"ftp://host/x", "", true},
		{"ws:///ws", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := BaseURL(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("BaseURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAddUser(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/add_user" {
			http.NotFound(w, r)
			return
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm: %v", err)
		}
		gotForm = map[string]string{}
		for k := range r.PostForm {
			gotForm[k] = r.PostForm.Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"message":"User alice_01 added."}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", 0)
	msg, err := c.AddUser(context.Background(), session.Enrollment{
		Username: "alice_01", PIN: "4821", Balance: "100", ImagePath: "/static/captures/alice_01.jpg",
	})
	if err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if msg != "User alice_01 added." {
		t.Errorf("message = %q", msg)
	}

	want := map[string]string{"username": "alice_01", "pin": "4821", "balance": "100", "image_path": "/static/captures/alice_01.jpg"}
	for k, v := range want {
		if gotForm[k] != v {
			t.Errorf("form[%s] = %q, want %q", k, gotForm[k], v)
		}
	}
}

func TestAddUserRejected(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"success false", http.StatusOK, `{"success":false,"message":"Username already exists."}`, "Username already exists."},
		{"server error with message", http.StatusBadRequest, `{"success":false,"message":"Invalid PIN."}`, "Invalid PIN."},
		{"server error without body", http.StatusInternalServerError, `oops`, "server returned 500"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPClient(srv.URL, 0).AddUser(context.Background(), session.Enrollment{Username: "a"})
			if !errors.Is(err, ErrSubmitRejected) {
				t.Fatalf("err = %v, want ErrSubmitRejected", err)
			}
			if got := RejectionMessage(err); got != tt.wantMsg {
				t.Errorf("RejectionMessage = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestAddUserMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(srv.URL, 0).AddUser(context.Background(), session.Enrollment{})
	if err == nil || errors.Is(err, ErrSubmitRejected) {
		t.Errorf("err = %v, want a decode error", err)
	}
}

func TestNavigatorFollow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/confirm_login/abc123":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte(`<html><head><title>Welcome</title><script>alert(1)</script></head>
<body><h1>Hello, alice</h1><p>Your balance is <b>100.00</b>.</p></body></html>`))
		case "/login_failed":
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Login failed.\n"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	nav := NewNavigator(NewHTTPClient(srv.URL, 0))

	page, err := nav.Follow(context.Background(), "/confirm_login/abc123")
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if page.Title != "Welcome" || page.Status != http.StatusOK {
		t.Errorf("title %q status %d", page.Title, page.Status)
	}
	if !strings.Contains(page.Markdown, "Hello, alice") || !strings.Contains(page.Markdown, "**100.00**") {
		t.Errorf("markdown = %q", page.Markdown)
	}
	if strings.Contains(page.Markdown, "alert") {
		t.Errorf("script survived sanitising: %q", page.Markdown)
	}

	page, err = nav.Follow(context.Background(), "/login_failed")
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if page.Status != http.StatusUnauthorized || page.Markdown != "Login failed." {
		t.Errorf("page = %+v", page)
	}
}

func TestFindTitleFallsBackToHeading(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<body><h1> Login <em>Failed</em> </h1></body>`))
	}))
	defer srv.Close()

	page, err := NewNavigator(NewHTTPClient(srv.URL, 0)).Follow(context.Background(), "/login_failed")
	if err != nil {
		t.Fatalf("Follow: %v", err)
	}
	if page.Title != "Login Failed" {
		t.Errorf("title = %q", page.Title)
	}
}
