// Package remotetest provides an in-memory attendance platform for tests.
package remotetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const isoMillis = "2006-01-02T15:04:05.000Z"

// Record is a stored attendance document.
type Record struct {
	ID        string `json:"_id"`
	UserID    string `json:"_userId"`
	OwnerID   string `json:"ownerId"`
	Date      string `json:"date"`
	StartTime int    `json:"startTime"`
	EndTime   int    `json:"endTime"`
	BreakTime int    `json:"breakTime"`
	Deleted   bool   `json:"_deleted"`
}

type TimeOff struct {
	ID        string   `json:"_id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Approvers []string `json:"approvers"`
}

type Holiday struct {
	HolidayKey  string `json:"holidayKey"`
	HolidayDate string `json:"holidayDate"`
}

type Template struct {
	TemplateKey string    `json:"templateKey"`
	Holidays    []Holiday `json:"holidays"`
}

// Server is a fake platform. Identity fields are fixed at construction.
type Server struct {
	*httptest.Server

	Username string
	Password string
	OwnerID  string
	Token    string

	mu        sync.Mutex
	timeOff   []TimeOff
	templates []Template
	failOn    map[string]int
	records   []Record
	calls     map[string]int
	revoked   bool
	origins   []string
	lastFind  map[string]any
}

// New starts a fake platform accepting the given login.
func New(username, password string) *Server {
	s := &Server{
		Username: username,
		Password: password,
		OwnerID:  uuid.NewString(),
		Token:    uuid.NewString(),
		failOn:   map[string]int{},
		calls:    map[string]int{},
	}

	r := chi.NewRouter()
	r.Use(s.track)
	r.Post("/auth/token", s.handleToken)
	r.Group(func(r chi.Router) {
		r.Use(s.requireBearer)
		r.Post("/auth/revoke", s.handleRevoke)
		r.Get("/user-account-db/user-accounts/me", s.handleMe)
		r.Post("/user-attendance-db/find", s.handleFind)
		r.Post("/user-attendance-db", s.handleCreate)
		r.Post("/user-time-off-request-db/find", s.handleTimeOff)
		r.Get("/calendar-template-db/templates", s.handleTemplates)
	})

	s.Server = httptest.NewServer(r)
	return s
}

// Seed stores an existing record for the fake user on day (YYYY-MM-DD).
func (s *Server) Seed(day string, deleted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, Record{
		ID:      uuid.NewString(),
		UserID:  s.OwnerID,
		OwnerID: s.OwnerID,
		Date:    day + "T00:00:00.000Z",
		Deleted: deleted,
	})
}

func (s *Server) SetTimeOff(reqs ...TimeOff) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeOff = reqs
}

func (s *Server) SetTemplates(tpls ...Template) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates = tpls
}

// Fail makes every request to path answer with status.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[path] = status
}

// Records returns a copy of every stored record.
func (s *Server) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

// Calls returns how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

func (s *Server) Revoked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked
}

// Origins lists the Origin header of every request, in order.
func (s *Server) Origins() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.origins...)
}

// LastFind is the decoded body of the most recent attendance find.
func (s *Server) LastFind() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFind
}

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.origins = append(s.origins, r.Header.Get("Origin"))
		code, fail := s.failOn[r.URL.Path]
		s.mu.Unlock()

		if fail {
			http.Error(w, `{"error":"injected"}`, code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		ok := !s.revoked && r.Header.Get("Authorization") == "Bearer "+s.Token
		s.mu.Unlock()
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("grant_type") != "password" ||
		r.PostForm.Get("username") != s.Username ||
		r.PostForm.Get("password") != s.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_grant"})
		return
	}
	s.mu.Lock()
	s.revoked = false
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": s.Token,
		"token_type":   "Bearer",
		"expires_in":   3600,
	})
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token != s.Token {
		http.Error(w, "bad token", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.revoked = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"ownerId": s.OwnerID, "email": s.Username})
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	var q struct {
		UserID string `json:"_userId"`
		Date   struct {
			GTE string `json:"$gte"`
			LTE string `json:"$lte"`
		} `json:"date"`
		Deleted bool `json:"_deleted"`
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal(body, &q); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	gte, err1 := time.Parse(isoMillis, q.Date.GTE)
	lte, err2 := time.Parse(isoMillis, q.Date.LTE)
	if err1 != nil || err2 != nil {
		http.Error(w, "bad date range", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.lastFind = raw
	out := []Record{}
	for _, rec := range s.records {
		if rec.UserID != q.UserID || rec.Deleted != q.Deleted {
			continue
		}
		d, err := time.Parse(time.RFC3339Nano, rec.Date)
		if err != nil || d.Before(gte) || d.After(lte) {
			continue
		}
		out = append(out, rec)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var rec Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if rec.UserID != s.OwnerID || rec.OwnerID != s.OwnerID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	rec.ID = uuid.NewString()

	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleTimeOff(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]TimeOff{}, s.timeOff...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	out := append([]Template{}, s.templates...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
