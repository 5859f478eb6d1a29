package web

import (
	"bytes"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"

	"github.com/whodle/whodle/internal/errors"
	"github.com/whodle/whodle/internal/guess"
	"github.com/whodle/whodle/internal/persona"
	"github.com/whodle/whodle/internal/service"
	"github.com/whodle/whodle/internal/session"
)

// SessionCookieName is the cookie carrying the encoded session identity.
const SessionCookieName = "whodle_session"

// sessionCookieMaxAge keeps the identity for a year; the ledger itself is
// day-scoped, the identity is not.
const sessionCookieMaxAge = int(365 * 24 * time.Hour / time.Second)

// Handlers contains the HTTP route handlers for the game API.
type Handlers struct {
	svc      *service.Service
	catalog  *persona.Catalog
	salt     string
	log      *logrus.Logger
	markdown goldmark.Markdown
}

// NewHandlers wires the handlers to their collaborators.
func NewHandlers(svc *service.Service, catalog *persona.Catalog, salt string, log *logrus.Logger) *Handlers {
	if log == nil {
		log = logrus.New()
	}
	return &Handlers{
		svc:      svc,
		catalog:  catalog,
		salt:     salt,
		log:      log,
		markdown: goldmark.New(),
	}
}

// guessesResponse is the GET /api/daily/guess payload.
type guessesResponse struct {
	TodayPersona guess.PersonaName `json:"today_persona"`
	Guesses      []string          `json:"guesses"`
}

// postGuessRequest is the POST /api/daily/guess body.
type postGuessRequest struct {
	Guess string `json:"guess"`
}

// historyDay is one entry of the GET /api/daily/history payload.
type historyDay struct {
	Date    guess.Date `json:"date"`
	Guesses []string   `json:"guesses"`
}

// personaResponse is one entry of the GET /api/personas payload.
type personaResponse struct {
	Name    guess.PersonaName `json:"name"`
	BioHTML template.HTML     `json:"bio_html,omitempty"`
}

// HandleGetDailyGuesses handles GET /api/daily/guess: today's persona plus
// the caller's guesses so far. A fresh identity is issued via Set-Cookie
// when none was presented.
func (h *Handlers) HandleGetDailyGuesses(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.CurrentGuesses(r.Context(), readSessionCookie(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if out.IssueToken != nil {
		setSessionCookie(w, *out.IssueToken)
	}

	names := make([]string, len(out.Guesses))
	for i, g := range out.Guesses {
		names[i] = string(g)
	}

	h.writeJSON(w, http.StatusOK, guessesResponse{
		TodayPersona: h.catalog.ForDate(h.svc.Today(), h.salt),
		Guesses:      names,
	})
}

// HandlePostGuess handles POST /api/daily/guess: records one guess for the
// caller's session today. Responds 204 on success and 429 when the daily cap
// is hit.
func (h *Handlers) HandlePostGuess(w http.ResponseWriter, r *http.Request) {
	var body postGuessRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, errors.NewInvalidRequest("request body must be JSON with a guess field"))
		return
	}
	if body.Guess == "" {
		h.writeError(w, r, errors.NewInvalidRequest("guess must not be empty"))
		return
	}

	out, err := h.svc.RecordGuess(r.Context(), readSessionCookie(r), guess.PersonaName(body.Guess))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if out.IssueToken != nil {
		setSessionCookie(w, *out.IssueToken)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetHistory handles GET /api/daily/history: every day the session has
// recorded guesses for, in no guaranteed order.
func (h *Handlers) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.GuessHistory(r.Context(), readSessionCookie(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if out.IssueToken != nil {
		setSessionCookie(w, *out.IssueToken)
	}

	days := make([]historyDay, len(out.Days))
	for i, d := range out.Days {
		days[i] = historyDay{Date: d.Date, Guesses: d.Names()}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// HandleListPersonas handles GET /api/personas: the catalog with bios
// rendered from markdown to HTML.
func (h *Handlers) HandleListPersonas(w http.ResponseWriter, r *http.Request) {
	personas := h.catalog.List()
	out := make([]personaResponse, len(personas))
	for i, p := range personas {
		out[i] = personaResponse{Name: p.Name, BioHTML: h.renderBio(p.Bio)}
	}
	h.writeJSON(w, http.StatusOK, out)
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// renderBio converts a markdown bio to HTML. Render failures degrade to an
// empty bio rather than failing the catalog listing.
func (h *Handlers) renderBio(bio string) template.HTML {
	if bio == "" {
		return ""
	}
	var buf bytes.Buffer
	if err := h.markdown.Convert([]byte(bio), &buf); err != nil {
		h.log.WithError(err).Warn("failed to render persona bio")
		return ""
	}
	return template.HTML(buf.String())
}

// readSessionCookie extracts the encoded session token from the request, or
// nil when no cookie is present. Validity is the service's concern.
func readSessionCookie(r *http.Request) *session.EncodedSessionID {
	c, err := r.Cookie(SessionCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	enc := session.EncodedSessionID(c.Value)
	return &enc
}

// setSessionCookie issues a freshly minted identity to the client.
func setSessionCookie(w http.ResponseWriter, enc session.EncodedSessionID) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    string(enc),
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeJSON writes a JSON response with the given status.
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.WithError(err).Error("failed to encode response")
	}
}

// writeError maps a service error onto its HTTP shape. Business-rule
// rejections (the guess cap) and transient faults (store down) carry
// distinct, stable codes so clients retry only the latter.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	gErr, ok := err.(*errors.GameError)
	if !ok {
		gErr = errors.NewInternal(err)
	}

	if gErr.Status >= 500 {
		h.log.WithFields(logrus.Fields{
			"code": gErr.Code,
			"path": r.URL.Path,
		}).WithError(err).Error("request failed")
	}

	h.writeJSON(w, gErr.Status, map[string]any{
		"error":   gErr.Code,
		"message": gErr.Message,
	})
}
