package classify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleFile is the on-disk YAML shape of a classification table.
type ruleFile struct {
	Direct []directEntry `yaml:"direct"`
	Rules  []Rule        `yaml:"rules"`
}

type directEntry struct {
	Procedure string  `yaml:"procedure"`
	StudyType string  `yaml:"study_type"`
	RVU       float64 `yaml:"rvu"`
}

// LoadFile parses a YAML rule file into an immutable Table. Rule order in the
// file is priority order.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadRules, err)
	}
	return Parse(raw)
}

// Parse builds a Table from YAML bytes.
func Parse(raw []byte) (*Table, error) {
	var f ruleFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadRules, err)
	}

	direct := make(map[string]Result, len(f.Direct))
	for _, d := range f.Direct {
		if d.Procedure == "" || d.StudyType == "" {
			return nil, fmt.Errorf("%w: direct entry missing procedure or study_type", ErrInvalidRules)
		}
		if d.RVU < 0 {
			return nil, fmt.Errorf("%w: direct entry %q has negative rvu", ErrInvalidRules, d.Procedure)
		}
		direct[d.Procedure] = Result{StudyType: d.StudyType, RVU: d.RVU}
	}

	for i, r := range f.Rules {
		if r.StudyType == "" {
			return nil, fmt.Errorf("%w: rule %d missing study_type", ErrInvalidRules, i)
		}
		if r.RVU < 0 {
			return nil, fmt.Errorf("%w: rule %q has negative rvu", ErrInvalidRules, r.StudyType)
		}
		if len(r.Groups) == 0 {
			return nil, fmt.Errorf("%w: rule %q has no condition groups", ErrInvalidRules, r.StudyType)
		}
		for _, g := range r.Groups {
			if len(g.Required) == 0 && len(g.AnyOf) == 0 {
				return nil, fmt.Errorf("%w: rule %q has a group with no positive conditions", ErrInvalidRules, r.StudyType)
			}
		}
	}

	return NewTable(direct, f.Rules), nil
}
