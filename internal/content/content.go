// Package content loads the portfolio's copy (biography, skills, work
// history, projects, contact links) from a YAML file.
package content

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Profile struct {
	Name       string       `yaml:"name" json:"name"`
	Title      string       `yaml:"title" json:"title"`
	About      string       `yaml:"about" json:"about"`
	Skills     []SkillGroup `yaml:"skills" json:"skills"`
	Experience []Entry      `yaml:"experience" json:"experience"`
	Education  []Entry      `yaml:"education" json:"education"`
	Projects   []Project    `yaml:"projects" json:"projects"`
	Links      []Link       `yaml:"links" json:"links"`
}

type SkillGroup struct {
	Category string   `yaml:"category" json:"category"`
	Items    []string `yaml:"items" json:"items"`
}

// Entry is one job or one course of study.
type Entry struct {
	Title        string   `yaml:"title" json:"title"`
	Organization string   `yaml:"organization" json:"organization"`
	Start        string   `yaml:"start" json:"start"`
	End          string   `yaml:"end" json:"end"`
	Logo         string   `yaml:"logo,omitempty" json:"logo,omitempty"`
	Highlights   []string `yaml:"highlights" json:"highlights"`
}

type Project struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Tags        []string `yaml:"tags" json:"tags"`
	Repo        string   `yaml:"repo,omitempty" json:"repo,omitempty"`
	Demo        string   `yaml:"demo,omitempty" json:"demo,omitempty"`
}

type Link struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
	Href  string `yaml:"href" json:"href"`
}

// Load reads path. A missing file yields Default() and no error; a file that
// exists but does not parse is an error.
func Load(path string) (Profile, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("content: read %s: %w", path, err)
	}
	return Parse(b)
}

func Parse(b []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(b, &p); err != nil {
		return Profile{}, fmt.Errorf("content: parse: %w", err)
	}
	if err := p.validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (p Profile) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return errors.New("content: name is required")
	}
	for i, proj := range p.Projects {
		if strings.TrimSpace(proj.Name) == "" {
			return fmt.Errorf("content: projects[%d].name is required", i)
		}
	}
	for i, l := range p.Links {
		if l.Href == "" {
			return fmt.Errorf("content: links[%d].href is required", i)
		}
	}
	return nil
}
