package feed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tndd/datadoggo-v3-rss/internal/model"
)

// sourceEntry accepts either a bare URL string or a detailed mapping with
// optional scrape hints.
type sourceEntry struct {
	URL             string
	WaitForSelector string
	Timeout         *int
}

func (e *sourceEntry) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		return value.Decode(&e.URL)
	}
	var detailed struct {
		URL             string `yaml:"url"`
		WaitForSelector string `yaml:"wait_for_selector"`
		Timeout         *int   `yaml:"timeout"`
	}
	if err := value.Decode(&detailed); err != nil {
		return err
	}
	e.URL = detailed.URL
	e.WaitForSelector = detailed.WaitForSelector
	e.Timeout = detailed.Timeout
	return nil
}

// LoadSources reads the feed definition file (group -> name -> url or
// detailed entry) and flattens it into a source list. An empty mapping is
// valid and yields an empty list. A missing or malformed file is the only
// fatal error of the ingestion stage.
func LoadSources(path string) ([]model.FeedSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feed sources %s: %w", path, err)
	}

	var groups map[string]map[string]sourceEntry
	if err := yaml.Unmarshal(raw, &groups); err != nil {
		return nil, fmt.Errorf("parse feed sources %s: %w", path, err)
	}

	var sources []model.FeedSource
	for group, feeds := range groups {
		for name, entry := range feeds {
			if entry.URL == "" {
				return nil, fmt.Errorf("feed sources %s: %s/%s has no url", path, group, name)
			}
			sources = append(sources, model.FeedSource{
				Group:           group,
				Name:            name,
				URL:             entry.URL,
				WaitForSelector: entry.WaitForSelector,
				Timeout:         entry.Timeout,
			})
		}
	}
	return sources, nil
}
