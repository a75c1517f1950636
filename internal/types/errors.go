package models

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrInvalidPath is returned when a path cannot be used as an install target.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNoReleasesFound is returned when a repository has no release carrying an AppImage.
	ErrNoReleasesFound = errors.New("no releases with AppImage assets found")

	// ErrNothingToChoose is returned by a chooser given an empty list.
	ErrNothingToChoose = errors.New("nothing to choose from")

	// ErrAborted is returned when the user cancels a prompt.
	ErrAborted = errors.New("aborted")
)

// NotFoundError reports an index lookup for an app that is not installed.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s is not installed", e.Name)
}

// MalformedRecordError reports an index record that could not be decoded.
type MalformedRecordError struct {
	Name string
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("index record for %s is malformed: %v", e.Name, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// InvalidSlugError reports a GitHub source that is not of the form owner/repo.
type InvalidSlugError struct {
	Slug string
}

func (e *InvalidSlugError) Error() string {
	return fmt.Sprintf("invalid repository slug %q (expected owner/repo)", e.Slug)
}

// InvalidArtifactError reports a response that failed the pre-download sanity check.
type InvalidArtifactError struct {
	URL    string
	Reason string
}

func (e *InvalidArtifactError) Error() string {
	return fmt.Sprintf("%s does not look like an AppImage: %s", e.URL, e.Reason)
}

// CannotUpdateError reports an update request for a source without a notion of "latest".
type CannotUpdateError struct {
	Name   string
	Source Source
}

func (e *CannotUpdateError) Error() string {
	return fmt.Sprintf("%s was installed from a direct URL and cannot be updated; reinstall it instead", e.Name)
}

// DownloadErrorKind classifies download failures for user-facing messages.
type DownloadErrorKind int

const (
	// DownloadErrConnection covers dial failures, resets and other transport errors.
	DownloadErrConnection DownloadErrorKind = iota
	DownloadErrTimeout
	DownloadErrNotFound
	DownloadErrForbidden
	DownloadErrServer
	// DownloadErrStatus is any other non-2xx status.
	DownloadErrStatus
	// DownloadErrStream is a failure while reading the body or writing it to disk.
	DownloadErrStream
)

// DownloadError reports a failed download.
type DownloadError struct {
	URL        string
	Kind       DownloadErrorKind
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	msg := fmt.Sprintf("download of %s failed: %s", e.URL, e.describe())
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

func (e *DownloadError) describe() string {
	switch e.Kind {
	case DownloadErrTimeout:
		return "request timed out"
	case DownloadErrNotFound:
		return "file not found (404)"
	case DownloadErrForbidden:
		return "access denied (403)"
	case DownloadErrServer:
		return fmt.Sprintf("server error (%d)", e.StatusCode)
	case DownloadErrStatus:
		return fmt.Sprintf("unexpected status %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	case DownloadErrStream:
		return "transfer interrupted"
	default:
		return "could not connect"
	}
}

// Suggestion returns a hint for the user, or an empty string.
func (e *DownloadError) Suggestion() string {
	switch e.Kind {
	case DownloadErrTimeout, DownloadErrConnection, DownloadErrStream:
		return "Check your internet connection and try again"
	case DownloadErrNotFound:
		return "Verify the URL or pick another release"
	case DownloadErrForbidden:
		return "The asset may be private or rate limited; configure a GitHub token"
	case DownloadErrServer:
		return "The server is having trouble; try again later"
	default:
		return ""
	}
}

// RateLimitError reports an exhausted GitHub API quota.
type RateLimitError struct {
	Reset         time.Time
	Authenticated bool
	Err           error
}

func (e *RateLimitError) Error() string {
	return "GitHub API rate limit exceeded"
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

func (e *RateLimitError) Suggestion() string {
	minutes := int(time.Until(e.Reset).Minutes())
	if minutes < 1 {
		minutes = 1
	}
	suggestion := fmt.Sprintf("Try again in %d minutes", minutes)
	if !e.Authenticated {
		suggestion += ", or set ZAP_GITHUB_TOKEN (or github_token in config.toml) for higher limits"
	}
	return suggestion
}

// RepoNotFoundError reports a slug that does not name an accessible repository.
type RepoNotFoundError struct {
	Owner string
	Repo  string
	Err   error
}

func (e *RepoNotFoundError) Error() string {
	return fmt.Sprintf("repository not found: %s/%s", e.Owner, e.Repo)
}

func (e *RepoNotFoundError) Unwrap() error {
	return e.Err
}
