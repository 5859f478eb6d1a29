package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/whodle/whodle/internal/guess"
	"github.com/whodle/whodle/internal/persona"
	"github.com/whodle/whodle/internal/service"
	"github.com/whodle/whodle/internal/store"
)

const testSalt = "test-salt"

type testEnv struct {
	router http.Handler
	now    *time.Time
}

func setupTest(t *testing.T, maxGuesses int) *testEnv {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	catalog, err := persona.NewCatalog([]persona.Persona{
		{Name: "Alice", Bio: "**Mathematician**."},
		{Name: "Bob", Bio: "Builder."},
		{Name: "Carol"},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	env := &testEnv{now: &now}

	svc := service.New(store.NewMemoryStore(), log, maxGuesses, func() time.Time { return *env.now }, 0)
	env.router = NewRouter(svc, catalog, testSalt, log)
	return env
}

// do runs a request through the router, carrying the session cookie if set.
func (e *testEnv) do(t *testing.T, method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	return nil
}

func decodeGuesses(t *testing.T, rec *httptest.ResponseRecorder) guessesResponse {
	t.Helper()
	var out guessesResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return out
}

func TestGetDailyGuesses_NoCookie(t *testing.T) {
	env := setupTest(t, 8)

	rec := env.do(t, http.MethodGet, "/api/daily/guess", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	c := sessionCookie(t, rec)
	if c == nil {
		t.Fatal("a fresh session cookie should be issued")
	}
	if !c.HttpOnly {
		t.Error("session cookie must be HttpOnly")
	}

	out := decodeGuesses(t, rec)
	if len(out.Guesses) != 0 {
		t.Errorf("guesses = %v, want empty", out.Guesses)
	}
	if out.TodayPersona == "" {
		t.Error("today_persona should be set")
	}
}

func TestGetDailyGuesses_MalformedCookie(t *testing.T) {
	env := setupTest(t, 8)

	bad := &http.Cookie{Name: SessionCookieName, Value: "garbage"}
	rec := env.do(t, http.MethodGet, "/api/daily/guess", "", bad)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (malformed cookie is not an error)", rec.Code)
	}
	fresh := sessionCookie(t, rec)
	if fresh == nil {
		t.Fatal("a replacement session cookie should be issued")
	}
	if fresh.Value == "garbage" {
		t.Error("the malformed value must not be re-issued")
	}
}

func TestPostGuess_MintsThenAccumulates(t *testing.T) {
	env := setupTest(t, 8)

	rec := env.do(t, http.MethodPost, "/api/daily/guess", `{"guess": "Alice"}`, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	cookie := sessionCookie(t, rec)
	if cookie == nil {
		t.Fatal("first guess without a cookie should issue one")
	}

	// Submit A, B, A, C against the issued identity.
	for _, g := range []string{"Bob", "Alice", "Carol"} {
		rec := env.do(t, http.MethodPost, "/api/daily/guess", fmt.Sprintf(`{"guess": %q}`, g), cookie)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("status for %q = %d, want 204", g, rec.Code)
		}
		if sessionCookie(t, rec) != nil {
			t.Error("a valid cookie should not trigger re-issuance")
		}
	}

	get := env.do(t, http.MethodGet, "/api/daily/guess", "", cookie)
	out := decodeGuesses(t, get)

	want := []string{"Alice", "Bob", "Carol"}
	if len(out.Guesses) != len(want) {
		t.Fatalf("guesses = %v, want %v", out.Guesses, want)
	}
	for i := range want {
		if out.Guesses[i] != want[i] {
			t.Errorf("guesses[%d] = %q, want %q (first-seen order)", i, out.Guesses[i], want[i])
		}
	}
}

func TestPostGuess_CapExceeded(t *testing.T) {
	env := setupTest(t, 2)

	rec := env.do(t, http.MethodPost, "/api/daily/guess", `{"guess": "g1"}`, nil)
	cookie := sessionCookie(t, rec)

	if rec := env.do(t, http.MethodPost, "/api/daily/guess", `{"guess": "g2"}`, cookie); rec.Code != http.StatusNoContent {
		t.Fatalf("second guess status = %d, want 204", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/daily/guess", `{"guess": "g3"}`, cookie)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}

	var errBody map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&errBody); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if errBody["error"] != "GUESS_CAP_EXCEEDED" {
		t.Errorf("error code = %v, want GUESS_CAP_EXCEEDED", errBody["error"])
	}

	// The rejected guess must not be visible.
	get := env.do(t, http.MethodGet, "/api/daily/guess", "", cookie)
	out := decodeGuesses(t, get)
	if len(out.Guesses) != 2 {
		t.Errorf("guesses = %v, want the two recorded before the cap", out.Guesses)
	}
}

func TestPostGuess_BadBody(t *testing.T) {
	env := setupTest(t, 8)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"empty guess", `{"guess": ""}`},
		{"missing field", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/daily/guess", tt.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHistory_AcrossDays(t *testing.T) {
	env := setupTest(t, 8)

	rec := env.do(t, http.MethodPost, "/api/daily/guess", `{"guess": "Alice"}`, nil)
	cookie := sessionCookie(t, rec)

	*env.now = env.now.Add(24 * time.Hour)
	env.do(t, http.MethodPost, "/api/daily/guess", `{"guess": "Carol"}`, cookie)

	rec = env.do(t, http.MethodGet, "/api/daily/history", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var out struct {
		Days []struct {
			Date    guess.Date `json:"date"`
			Guesses []string   `json:"guesses"`
		} `json:"days"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding history: %v", err)
	}
	if len(out.Days) != 2 {
		t.Fatalf("days = %d, want 2", len(out.Days))
	}

	byDate := map[guess.Date][]string{}
	for _, d := range out.Days {
		byDate[d.Date] = d.Guesses
	}
	if got := byDate[guess.Date("2024-01-01")]; len(got) != 1 || got[0] != "Alice" {
		t.Errorf("2024-01-01 guesses = %v, want [Alice]", got)
	}
	if got := byDate[guess.Date("2024-01-02")]; len(got) != 1 || got[0] != "Carol" {
		t.Errorf("2024-01-02 guesses = %v, want [Carol]", got)
	}
}

func TestTodayPersona_StableForTheDay(t *testing.T) {
	env := setupTest(t, 8)

	first := decodeGuesses(t, env.do(t, http.MethodGet, "/api/daily/guess", "", nil))
	second := decodeGuesses(t, env.do(t, http.MethodGet, "/api/daily/guess", "", nil))

	if first.TodayPersona != second.TodayPersona {
		t.Errorf("persona changed within a day: %q vs %q", first.TodayPersona, second.TodayPersona)
	}
}

func TestListPersonas(t *testing.T) {
	env := setupTest(t, 8)

	rec := env.do(t, http.MethodGet, "/api/personas", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var out []personaResponse
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decoding personas: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("personas = %d, want 3", len(out))
	}
	if !strings.Contains(string(out[0].BioHTML), "<strong>") {
		t.Errorf("bio_html = %q, want rendered markdown", out[0].BioHTML)
	}
}

func TestHealthz(t *testing.T) {
	env := setupTest(t, 8)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequestID_Echoed(t *testing.T) {
	env := setupTest(t, 8)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("responses should carry a request id")
	}
}
