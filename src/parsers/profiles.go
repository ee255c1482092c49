package parsers

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/username/wealthfolio/backend/src/schema"
)

//go:embed profiles.yaml
var profilesYAML []byte

// Profile is one broker's known header vocabulary.
type Profile struct {
	Broker     string                    `yaml:"broker"`
	AssetClass string                    `yaml:"asset_class"`
	Aliases    map[schema.Field][]string `yaml:"aliases"`
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles"`
	Ignored  []string  `yaml:"ignored"`
}

var (
	profiles       []Profile
	ignoredHeaders map[string]bool
)

func init() {
	var pf profileFile
	if err := yaml.Unmarshal(profilesYAML, &pf); err != nil {
		panic(fmt.Sprintf("parsers: embedded profiles.yaml is invalid: %v", err))
	}
	profiles = pf.Profiles
	ignoredHeaders = make(map[string]bool, len(pf.Ignored))
	for _, h := range pf.Ignored {
		ignoredHeaders[normalizeHeader(h)] = true
	}
}

// Profiles returns the known broker profiles in file order.
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

func profileFor(broker string) (Profile, bool) {
	b := strings.ToLower(strings.TrimSpace(broker))
	for _, p := range profiles {
		if p.Broker == b {
			return p, true
		}
	}
	return Profile{}, false
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}
