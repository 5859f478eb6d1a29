// Package persona holds the guessable persona catalog and picks the answer
// of the day from it.
package persona

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/whodle/whodle/internal/guess"
)

// Persona is one guessable candidate. Bio is markdown; it is rendered to
// HTML at the transport layer.
type Persona struct {
	Name guess.PersonaName `json:"name"`
	Bio  string            `json:"bio,omitempty"`
}

// Catalog is the fixed set of personas the game draws from. Immutable after
// load.
type Catalog struct {
	personas []Persona
	byName   map[guess.PersonaName]int
}

// LoadCatalog reads a JSON persona file: an array of {name, bio} objects.
// Names must be non-empty and unique.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read persona file: %w", err)
	}

	var personas []Persona
	if err := json.Unmarshal(data, &personas); err != nil {
		return nil, fmt.Errorf("failed to parse persona file: %w", err)
	}

	return NewCatalog(personas)
}

// NewCatalog validates a persona list and builds the catalog.
func NewCatalog(personas []Persona) (*Catalog, error) {
	if len(personas) == 0 {
		return nil, fmt.Errorf("persona catalog is empty")
	}

	byName := make(map[guess.PersonaName]int, len(personas))
	for i, p := range personas {
		if p.Name == "" {
			return nil, fmt.Errorf("persona %d has an empty name", i)
		}
		if _, dup := byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate persona name %q", p.Name)
		}
		byName[p.Name] = i
	}

	return &Catalog{personas: personas, byName: byName}, nil
}

// List returns the catalog in file order.
func (c *Catalog) List() []Persona {
	out := make([]Persona, len(c.personas))
	copy(out, c.personas)
	return out
}

// Len returns the catalog size.
func (c *Catalog) Len() int {
	return len(c.personas)
}

// Lookup returns the persona with the given name, if present.
func (c *Catalog) Lookup(name guess.PersonaName) (Persona, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Persona{}, false
	}
	return c.personas[i], true
}

// ForDate returns the persona of the day for a calendar date. The pick is
// HMAC-SHA256(salt, date) mod catalog size: deterministic per date, stable
// across restarts, and not derivable from the catalog without the salt.
func (c *Catalog) ForDate(date guess.Date, salt string) guess.PersonaName {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(date))
	sum := h.Sum(nil)

	n := binary.BigEndian.Uint64(sum[:8])
	return c.personas[int(n%uint64(len(c.personas)))].Name
}
