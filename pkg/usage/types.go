package usage

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/storyloom/entitlement/pkg/localday"
)

// Type is a countable creation kind.
type Type string

const (
	TypeChapters Type = "chapters"
	TypeScenes   Type = "scenes"
)

// Valid reports whether the type is known.
func (t Type) Valid() bool {
	return t == TypeChapters || t == TypeScenes
}

var (
	// ErrQuotaExceeded is the user-facing denial for an exhausted daily
	// counter. Carries no detail itself; the Decision does.
	ErrQuotaExceeded = errors.New("usage: daily quota exceeded")

	// ErrInvalidTable indicates a malformed limits configuration.
	ErrInvalidTable = errors.New("usage: invalid limits table")
)

// Limits is the per-day allowance for one tier.
type Limits struct {
	Chapters int `yaml:"chapters"`
	Scenes   int `yaml:"scenes"`
}

// For returns the allowance for a type.
func (l Limits) For(typ Type) int {
	if typ == TypeScenes {
		return l.Scenes
	}
	return l.Chapters
}

// Table is the deployment's quota configuration. Limits live in config,
// not in the engine: product tunes them without a code change.
//
// PerCharacterPremium switches premium users from one shared counter to an
// independent counter per character. The free tier is always shared.
type Table struct {
	Free                Limits `yaml:"free"`
	Premium             Limits `yaml:"premium"`
	PerCharacterPremium bool   `yaml:"per_character_premium"`
}

// DefaultTable returns the standard limits.
func DefaultTable() Table {
	return Table{
		Free:    Limits{Chapters: 5, Scenes: 0},
		Premium: Limits{Chapters: 30, Scenes: 3},
	}
}

// LoadTable reads a Table from a YAML file and validates it.
func LoadTable(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("usage: read limits file: %w", err)
	}
	var t Table
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Table{}, errors.Join(ErrInvalidTable, err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Validate rejects negative limits.
func (t Table) Validate() error {
	for _, l := range []Limits{t.Free, t.Premium} {
		if l.Chapters < 0 || l.Scenes < 0 {
			return fmt.Errorf("%w: negative limit", ErrInvalidTable)
		}
	}
	return nil
}

// limitsFor picks the tier row.
func (t Table) limitsFor(premium bool) Limits {
	if premium {
		return t.Premium
	}
	return t.Free
}

// Key identifies one daily counter. CharacterID is uuid.Nil in shared mode.
type Key struct {
	UserID      uuid.UUID
	Day         localday.Day
	Type        Type
	CharacterID uuid.UUID
}

// Decision is the structured result of a quota check, detailed enough for
// the caller to render a useful denial message.
type Decision struct {
	Allowed  bool
	Used     int64
	Limit    int64
	ResetsAt time.Time
}

// Remaining returns how many creations are left today.
func (d Decision) Remaining() int64 {
	return max(d.Limit-d.Used, 0)
}
