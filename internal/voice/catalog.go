package voice

import (
	"errors"
	"fmt"
	"strings"
)

// ID identifies a synthesized speaking persona. Only catalog members are valid.
type ID string

func (v ID) String() string { return string(v) }

const (
	Alloy   ID = "alloy"
	Ash     ID = "ash"
	Coral   ID = "coral"
	Echo    ID = "echo"
	Fable   ID = "fable"
	Onyx    ID = "onyx"
	Nova    ID = "nova"
	Sage    ID = "sage"
	Shimmer ID = "shimmer"
)

// ErrInvalidVoice is returned when a voice string is not a catalog member.
var ErrInvalidVoice = errors.New("invalid voice")

// Info describes a catalog voice for display.
type Info struct {
	ID          ID
	Description string
}

// Catalog is the fixed, ordered set of voices. The zero value is not usable;
// use Default.
type Catalog struct {
	voices   []Info
	index    map[ID]struct{}
	fallback ID
}

var defaultCatalog = newCatalog(Alloy, []Info{
	{Alloy, "Neutral, balanced all-rounder"},
	{Ash, "Calm, measured male voice"},
	{Coral, "Bright, upbeat female voice"},
	{Echo, "Crisp, clear male voice"},
	{Fable, "Warm storyteller"},
	{Onyx, "Deep, grave male voice"},
	{Nova, "Energetic, friendly female voice"},
	{Sage, "Formal, composed announcer"},
	{Shimmer, "Soft, gentle female voice"},
})

func newCatalog(fallback ID, voices []Info) *Catalog {
	c := &Catalog{voices: voices, index: make(map[ID]struct{}, len(voices)), fallback: fallback}
	for _, v := range voices {
		c.index[v.ID] = struct{}{}
	}
	return c
}

// Default returns the process-wide catalog.
func Default() *Catalog { return defaultCatalog }

// IsValid reports whether candidate is a catalog member. Matching is exact.
func (c *Catalog) IsValid(candidate string) bool {
	_, ok := c.index[ID(candidate)]
	return ok
}

// Default returns the voice used when a recommendation is absent or malformed.
func (c *Catalog) Default() ID { return c.fallback }

// All returns the catalog voices in declaration order.
func (c *Catalog) All() []ID {
	ids := make([]ID, len(c.voices))
	for i, v := range c.voices {
		ids[i] = v.ID
	}
	return ids
}

// Infos returns catalog voices with their descriptions.
func (c *Catalog) Infos() []Info {
	out := make([]Info, len(c.voices))
	copy(out, c.voices)
	return out
}

// Parse validates s and returns it as an ID.
func (c *Catalog) Parse(s string) (ID, error) {
	if !c.IsValid(s) {
		return "", fmt.Errorf("%w %q: must be one of %s", ErrInvalidVoice, s, c.names())
	}
	return ID(s), nil
}

func (c *Catalog) names() string {
	names := make([]string, len(c.voices))
	for i, v := range c.voices {
		names[i] = string(v.ID)
	}
	return strings.Join(names, ", ")
}
