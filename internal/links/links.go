// Package links holds the link catalogue served on the hub page.
package links

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed links.yml
var defaultCatalogue []byte

// Target is one destination of a link with several stores.
type Target struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

type Link struct {
	ID          string   `yaml:"id" json:"id"`
	Title       string   `yaml:"title" json:"title"`
	Description string   `yaml:"description" json:"description"`
	URL         string   `yaml:"url" json:"url,omitempty"`
	Icon        string   `yaml:"icon" json:"icon"`
	Category    string   `yaml:"category" json:"category"`
	Targets     []Target `yaml:"links" json:"links,omitempty"`
}

// HasModal reports whether the link opens a chooser instead of navigating.
func (l Link) HasModal() bool {
	return len(l.Targets) > 0
}

// Destination returns the URL for target index i, or the link URL when
// i is negative.
func (l Link) Destination(i int) (Target, bool) {
	if i < 0 {
		if l.URL == "" {
			return Target{}, false
		}
		return Target{Name: l.Title, URL: l.URL}, true
	}
	if i >= len(l.Targets) {
		return Target{}, false
	}
	return l.Targets[i], true
}

type Category struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Hidden      bool   `yaml:"hidden" json:"-"`
}

// Group is a visible category with its links.
type Group struct {
	Category
	Links []Link `json:"links"`
}

type Catalogue struct {
	Categories []Category `yaml:"categories"`
	Links      []Link     `yaml:"links"`

	byID map[string]int
}

// Load reads the catalogue at path, or the embedded one when path is empty.
func Load(path string) (*Catalogue, error) {
	if path == "" {
		return Parse(defaultCatalogue)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read links file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) (*Catalogue, error) {
	var c Catalogue
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("failed to parse links: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalogue) validate() error {
	if len(c.Links) == 0 {
		return errors.New("links: catalogue is empty")
	}
	known := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return errors.New("links: category without a name")
		}
		known[cat.Name] = true
	}

	c.byID = make(map[string]int, len(c.Links))
	for i, l := range c.Links {
		switch {
		case l.ID == "":
			return fmt.Errorf("links: link %d has no id", i)
		case l.Title == "":
			return fmt.Errorf("links: link %q has no title", l.ID)
		case l.URL == "" && len(l.Targets) == 0:
			return fmt.Errorf("links: link %q has no url", l.ID)
		case !known[l.Category]:
			return fmt.Errorf("links: link %q has unknown category %q", l.ID, l.Category)
		}
		if _, dup := c.byID[l.ID]; dup {
			return fmt.Errorf("links: duplicate id %q", l.ID)
		}
		for _, t := range l.Targets {
			if t.URL == "" {
				return fmt.Errorf("links: link %q has a target without url", l.ID)
			}
		}
		c.byID[l.ID] = i
	}
	return nil
}

// Grouped returns the visible categories in catalogue order, skipping
// categories without links.
func (c *Catalogue) Grouped() []Group {
	var groups []Group
	for _, cat := range c.Categories {
		if cat.Hidden {
			continue
		}
		g := Group{Category: cat}
		for _, l := range c.Links {
			if l.Category == cat.Name {
				g.Links = append(g.Links, l)
			}
		}
		if len(g.Links) > 0 {
			groups = append(groups, g)
		}
	}
	return groups
}

// Find looks a link up by id. Links in hidden categories are still found
// so old shared URLs keep redirecting.
func (c *Catalogue) Find(id string) (Link, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Link{}, false
	}
	return c.Links[i], true
}
