package profile

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Skill tiers understood by the skill-matching rubric.
const (
	LevelCore      = "core"
	LevelSecondary = "secondary"
	LevelFamiliar  = "familiar"
)

// Skill is one candidate skill with its weighting tier.
type Skill struct {
	Name  string `json:"name"`
	Level string `json:"level"`
}

// Profile is the candidate profile evaluated against each job posting.
// Raw keeps the full document so the holistic pass sees every field the
// candidate recorded, not only the ones this program models.
type Profile struct {
	Name            string   `json:"name"`
	Skills          []Skill  `json:"skills"`
	ExperienceYears float64  `json:"experience_years"`
	PreferredTitles []string `json:"preferred_titles"`
	Industries      []string `json:"industries"`

	Raw json.RawMessage `json:"-"`
}

// Load reads and validates the candidate profile. A missing or unparseable
// profile is a configuration error: scoring cannot run without it.
func Load(path string) (*Profile, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("candidate profile path is not configured")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading candidate profile %q: %w", path, err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing candidate profile %q: %w", path, err)
	}

	if len(p.Skills) == 0 {
		return nil, fmt.Errorf("candidate profile %q lists no skills", path)
	}

	p.Raw = json.RawMessage(data)
	return &p, nil
}
