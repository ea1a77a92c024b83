// Package levels loads the level template catalog. Templates are authored
// content (string-art rows plus quantum annotations), not generated.
package levels

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Row legend: '#' wall, '.' floor, '+' door, ' ' void, '@' player start,
// 'M' hostile creature (assigned ids M01, M02, ... in row-major order).
type Level struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Rows []string `json:"rows"`

	MonsterHP int `json:"monster_hp"`

	Superposed         []SuperposedCell   `json:"superposed,omitempty"`
	SuperposedEntities []SuperposedEntity `json:"superposed_entities,omitempty"`
	Entangled          []EntangledPair    `json:"entangled,omitempty"`
}

type SuperposedCell struct {
	X    int     `json:"x"`
	Y    int     `json:"y"`
	Prob float64 `json:"prob"`
}

type SuperposedEntity struct {
	ID   string  `json:"id"`
	Prob float64 `json:"prob"`
}

type EntangledPair struct {
	A [2]int `json:"a"`
	B [2]int `json:"b"`
}

func (l *Level) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("level without id")
	}
	if len(l.Rows) == 0 {
		return fmt.Errorf("level %s: no rows", l.ID)
	}
	width := len(l.Rows[0])
	players := 0
	for y, row := range l.Rows {
		if len(row) != width {
			return fmt.Errorf("level %s: row %d width %d, want %d", l.ID, y, len(row), width)
		}
		for x, r := range row {
			switch r {
			case '#', '.', '+', ' ', 'M':
			case '@':
				players++
			default:
				return fmt.Errorf("level %s: unknown glyph %q at %d,%d", l.ID, r, x, y)
			}
		}
	}
	if players != 1 {
		return fmt.Errorf("level %s: %d player starts, want 1", l.ID, players)
	}
	for _, s := range l.Superposed {
		if s.Y < 0 || s.Y >= len(l.Rows) || s.X < 0 || s.X >= width {
			return fmt.Errorf("level %s: superposed cell %d,%d out of bounds", l.ID, s.X, s.Y)
		}
		if s.Prob < 0 || s.Prob > 1 {
			return fmt.Errorf("level %s: collapse prob %v out of [0,1]", l.ID, s.Prob)
		}
	}
	return nil
}

type Catalog struct {
	ByID   map[string]*Level
	Digest string
}

// Load reads every *.level.json under dir. The digest is a sha256 over the
// canonical (id-sorted) JSON of all levels, so WELCOME can advertise
// content identity the way catalogs do.
func Load(dir string) (*Catalog, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("levels dir: %w", err)
	}
	cat := &Catalog{ByID: make(map[string]*Level)}
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".level.json") {
			continue
		}
		raw, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var lv Level
		if err := json.Unmarshal(raw, &lv); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if err := lv.Validate(); err != nil {
			return nil, err
		}
		if _, dup := cat.ByID[lv.ID]; dup {
			return nil, fmt.Errorf("duplicate level id %s", lv.ID)
		}
		cat.ByID[lv.ID] = &lv
	}
	if len(cat.ByID) == 0 {
		return nil, fmt.Errorf("no levels in %s", dir)
	}
	cat.Digest = digest(cat.ByID)
	return cat, nil
}

func (c *Catalog) Get(id string) (*Level, bool) {
	lv, ok := c.ByID[id]
	return lv, ok
}

// IDs returns level ids sorted.
func (c *Catalog) IDs() []string {
	out := make([]string, 0, len(c.ByID))
	for id := range c.ByID {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func digest(byID map[string]*Level) string {
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	h := sha256.New()
	for _, id := range ids {
		b, _ := json.Marshal(byID[id])
		h.Write(b)
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
