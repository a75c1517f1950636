package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

type SourceKind string

const (
	SourceRawURL        SourceKind = "raw_url"
	SourceGitHubRelease SourceKind = "git.github"
)

// Source describes where a bundle is fetched from. It is implemented by
// RawURL and GitHubRelease only.
type Source interface {
	Kind() SourceKind
	// Locator is the value persisted as source.meta.url: a URL for RawURL,
	// an owner/repo slug for GitHubRelease.
	Locator() string
	isSource()
}

// RawURL is a direct download link to a bundle.
type RawURL struct {
	URL string
}

func (RawURL) Kind() SourceKind  { return SourceRawURL }
func (s RawURL) Locator() string { return s.URL }
func (RawURL) isSource()         {}
func (s RawURL) String() string  { return s.URL }

// GitHubRelease is an owner/repo slug resolved against the release API at
// install and update time.
type GitHubRelease struct {
	Slug string
}

func (GitHubRelease) Kind() SourceKind  { return SourceGitHubRelease }
func (s GitHubRelease) Locator() string { return s.Slug }
func (GitHubRelease) isSource()         {}
func (s GitHubRelease) String() string  { return "github:" + s.Slug }

// Record is the persisted state of one installed bundle, keyed by Executable.
type Record struct {
	FilePath   string
	Executable string
	Source     Source
}

type recordWire struct {
	FilePath   string     `json:"file_path"`
	Executable string     `json:"executable"`
	Source     sourceWire `json:"source"`
}

type sourceWire struct {
	Identifier SourceKind     `json:"identifier"`
	Meta       sourceMetaWire `json:"meta"`
}

type sourceMetaWire struct {
	URL string `json:"url"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	if r.Source == nil {
		return nil, fmt.Errorf("record %q has no source", r.Executable)
	}

	return json.Marshal(recordWire{
		FilePath:   r.FilePath,
		Executable: r.Executable,
		Source: sourceWire{
			Identifier: r.Source.Kind(),
			Meta:       sourceMetaWire{URL: r.Source.Locator()},
		},
	})
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var wire recordWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	source, err := NewSource(wire.Source.Identifier, wire.Source.Meta.URL)
	if err != nil {
		return err
	}

	r.FilePath = wire.FilePath
	r.Executable = wire.Executable
	r.Source = source
	return nil
}

// NewSource builds the Source variant named by kind.
func NewSource(kind SourceKind, locator string) (Source, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, fmt.Errorf("source locator cannot be empty")
	}

	switch kind {
	case SourceRawURL:
		return RawURL{URL: locator}, nil
	case SourceGitHubRelease:
		return GitHubRelease{Slug: locator}, nil
	default:
		return nil, fmt.Errorf("unknown source identifier %q", kind)
	}
}
