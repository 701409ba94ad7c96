package curriculum

import (
	_ "embed"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

var (
	ErrActivityNotFound = errors.New("activity not found")
	errEmptyCatalog     = errors.New("catalog has no activities")
)

type (
	Activity struct {
		ID   string `yaml:"id" json:"id"`
		Name string `yaml:"name" json:"name"`
		Path string `yaml:"path" json:"path"` // frontend route
	}

	Module struct {
		ID         string     `yaml:"id" json:"id"`
		Name       string     `yaml:"name" json:"name"`
		Activities []Activity `yaml:"activities" json:"activities"`
	}

	Course struct {
		ID      string   `yaml:"id" json:"id"`
		Name    string   `yaml:"name" json:"name"`
		Modules []Module `yaml:"modules" json:"modules"`
	}

	// Catalog is the read-only tree of courses, modules and activities.
	Catalog struct {
		Courses []Course `yaml:"courses" json:"courses"`

		activities map[string]activityRef
	}

	activityRef struct {
		activity Activity
		module   *Module
	}
)

// LoadCatalog parses the built-in catalog.
func LoadCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog parses a YAML catalog; IDs must be unique across courses, modules and activities.
func ParseCatalog(data []byte) (*Catalog, error) {
	cat := new(Catalog)
	if err := yaml.Unmarshal(data, cat); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	seen := make(map[string]bool)
	checkID := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("%s without id", kind)
		}
		if seen[id] {
			return fmt.Errorf("duplicate id %q", id)
		}
		seen[id] = true
		return nil
	}

	cat.activities = make(map[string]activityRef)
	for ci := range cat.Courses {
		course := &cat.Courses[ci]
		if err := checkID("course", course.ID); err != nil {
			return nil, err
		}
		for mi := range course.Modules {
			mod := &course.Modules[mi]
			if err := checkID("module", mod.ID); err != nil {
				return nil, err
			}
			for _, act := range mod.Activities {
				if err := checkID("activity", act.ID); err != nil {
					return nil, err
				}
				cat.activities[act.ID] = activityRef{activity: act, module: mod}
			}
		}
	}
	if len(cat.activities) == 0 {
		return nil, errEmptyCatalog
	}
	return cat, nil
}

// Activity returns the activity with this ID and the module holding it.
func (cat *Catalog) Activity(id string) (Activity, Module, error) {
	ref, ok := cat.activities[id]
	if !ok {
		return Activity{}, Module{}, ErrActivityNotFound
	}
	return ref.activity, *ref.module, nil
}

func (cat *Catalog) Modules() []Module {
	var mods []Module
	for _, course := range cat.Courses {
		mods = append(mods, course.Modules...)
	}
	return mods
}

func (cat *Catalog) ActivityCount() int {
	return len(cat.activities)
}
