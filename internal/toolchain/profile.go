package toolchain

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tool names the executable for one pipeline step plus any extra
// arguments inserted before the positional input path.
type Tool struct {
	Path string   `yaml:"path"`
	Args []string `yaml:"args"`
}

// Profile describes where the external border tools live
type Profile struct {
	Osmconvert      Tool `yaml:"osmconvert"`
	OsmborderFilter Tool `yaml:"osmborder_filter"`
	Osmborder       Tool `yaml:"osmborder"`
}

// DefaultProfile resolves every tool through PATH with no extra arguments
func DefaultProfile() Profile {
	return Profile{
		Osmconvert:      Tool{Path: "osmconvert"},
		OsmborderFilter: Tool{Path: "osmborder_filter"},
		Osmborder:       Tool{Path: "osmborder"},
	}
}

// LoadProfile reads a tool profile from a YAML file. Tools or fields the
// file does not mention keep their defaults.
func LoadProfile(path string) (Profile, error) {
	profile := DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("failed to read tool profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("failed to parse tool profile %s: %w", path, err)
	}
	return profile, nil
}
