package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Profile defines an OCR profile: the arguments for the layout pass and
// whether picture blocks get a second grounded pass.
type Profile struct {
	Profile ProfileInfo   `toml:"profile"`
	OCR     ProfileOCR    `toml:"ocr"`
	Output  ProfileOutput `toml:"output"`
}

type ProfileInfo struct {
	Name        string `toml:"name"`
	Description string `toml:"description"`
}

type ProfileOCR struct {
	FirstPassArgs []string `toml:"first_pass_args"`
	PicturePass   bool     `toml:"picture_pass"`
}

type ProfileOutput struct {
	DefaultTarget string `toml:"default_target"`
}

// Slug normalizes a profile display name into its store key: trimmed,
// lower case, spaces as dashes. "Layout Only" becomes "layout-only".
func Slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// ProfileStore manages OCR profiles loaded from TOML files.
type ProfileStore struct {
	profiles map[string]*Profile
}

// NewProfileStore creates a new profile store and loads profiles from the given directory.
func NewProfileStore(dir string) (*ProfileStore, error) {
	store := &ProfileStore{
		profiles: make(map[string]*Profile),
	}

	// Add built-in profiles
	store.profiles["standard"] = defaultStandardProfile()
	store.profiles["layout-only"] = defaultLayoutOnlyProfile()
	store.profiles["text"] = defaultTextProfile()

	// Load from directory if it exists
	if dir != "" {
		if err := store.loadFromDirectory(dir); err != nil {
			return nil, err
		}
	}

	return store, nil
}

// Get returns a profile by name.
func (s *ProfileStore) Get(name string) (*Profile, bool) {
	p, ok := s.profiles[name]
	return p, ok
}

// List returns all available profiles.
func (s *ProfileStore) List() []Profile {
	result := make([]Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		result = append(result, *p)
	}
	return result
}

// Set adds or updates a profile.
func (s *ProfileStore) Set(name string, p *Profile) {
	s.profiles[name] = p
}

func (s *ProfileStore) loadFromDirectory(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read profiles directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read profile %s: %w", entry.Name(), err)
		}

		var profile Profile
		if err := toml.Unmarshal(data, &profile); err != nil {
			return fmt.Errorf("parse profile %s: %w", entry.Name(), err)
		}

		name := strings.TrimSuffix(entry.Name(), ".toml")
		s.profiles[name] = &profile
	}

	return nil
}

func defaultStandardProfile() *Profile {
	return &Profile{
		Profile: ProfileInfo{
			Name:        "Standard",
			Description: "Full layout pass with grounded re-OCR of picture blocks",
		},
		OCR: ProfileOCR{
			FirstPassArgs: []string{"--mode", "layout_all"},
			PicturePass:   true,
		},
		Output: ProfileOutput{
			DefaultTarget: "filesystem",
		},
	}
}

func defaultLayoutOnlyProfile() *Profile {
	return &Profile{
		Profile: ProfileInfo{
			Name:        "Layout only",
			Description: "Full layout pass, pictures left without internal text",
		},
		OCR: ProfileOCR{
			FirstPassArgs: []string{"--mode", "layout_all"},
			PicturePass:   false,
		},
		Output: ProfileOutput{
			DefaultTarget: "filesystem",
		},
	}
}

func defaultTextProfile() *Profile {
	return &Profile{
		Profile: ProfileInfo{
			Name:        "Plain text",
			Description: "Text-only recognition without layout analysis",
		},
		OCR: ProfileOCR{
			FirstPassArgs: []string{"--mode", "ocr"},
			PicturePass:   false,
		},
		Output: ProfileOutput{
			DefaultTarget: "filesystem",
		},
	}
}
