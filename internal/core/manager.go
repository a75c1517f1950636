package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/slobbe/zap/internal/config"
	util "github.com/slobbe/zap/internal/helpers"
	"github.com/slobbe/zap/internal/logging"
	repo "github.com/slobbe/zap/internal/repository"
	models "github.com/slobbe/zap/internal/types"
)

// Confirmer asks a yes/no question.
type Confirmer func(prompt string) (bool, error)

type ManagerOptions struct {
	HTTPClient   *http.Client
	Lister       ReleaseLister
	Chooser      Chooser
	Confirm      Confirmer
	Extractor    Extractor
	Progress     ProgressFunc
	// ProgressDone runs when a download returns, before any prompt.
	ProgressDone func()
	Integrate    config.IntegrateMode
}

// Manager installs, updates and removes apps. It keeps the index record, the
// cached bundle and the PATH symlink of every app in step.
type Manager struct {
	paths      config.Paths
	index      *repo.Index
	fetcher    *Fetcher
	resolver   *ReleaseResolver
	links      *SymlinkManager
	integrator *DesktopIntegrator
	confirm    Confirmer
	progress   ProgressFunc
	done       func()
	integrate  config.IntegrateMode
	log        zerolog.Logger
}

func NewManager(paths config.Paths, opts ManagerOptions) *Manager {
	client := opts.HTTPClient
	if client == nil {
		client = NewHTTPClient(DefaultClientOptions())
	}
	lister := opts.Lister
	if lister == nil {
		lister = NewGitHubLister(client, "")
	}
	chooser := opts.Chooser
	if chooser == nil {
		chooser = func(string, []string) (int, error) { return 0, models.ErrNothingToChoose }
	}
	integrate := opts.Integrate
	if integrate == "" {
		integrate = config.IntegrateAsk
	}

	return &Manager{
		paths:      paths,
		index:      repo.NewIndex(paths.IndexDir),
		fetcher:    NewFetcher(client, paths.AppImagesDir),
		resolver:   NewReleaseResolver(lister, chooser),
		links:      NewSymlinkManager(paths.LocalBinDir),
		integrator: NewDesktopIntegrator(paths, opts.Extractor),
		confirm:    opts.Confirm,
		progress:   opts.Progress,
		done:       opts.ProgressDone,
		integrate:  integrate,
		log:        logging.GetLogger("manager"),
	}
}

type InstallRequest struct {
	// Name is the app name given on the command line.
	Name string
	// From is a direct URL or an owner/repo slug.
	From string
	// Executable overrides the PATH name, which defaults to Slugify(Name).
	Executable string
	// GitHub forces From to be read as a slug.
	GitHub bool
}

type InstallResult struct {
	Record           models.Record
	AlreadyInstalled bool
	// Integration is nil when desktop integration was skipped.
	Integration *Integration
}

// ExecutableName derives the index key for an install request.
func ExecutableName(req InstallRequest) (string, error) {
	name := strings.TrimSpace(req.Executable)
	if name == "" {
		name = util.Slugify(req.Name)
	}
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: cannot derive an executable name from %q", models.ErrInvalidPath, req.Name)
	}
	return name, nil
}

// SourceFor classifies req.From: an http(s) URL is a direct link and anything
// else must be an owner/repo slug. With GitHub set, URLs are rejected.
func SourceFor(req InstallRequest) (models.Source, error) {
	from := strings.TrimSpace(req.From)
	if from == "" {
		return nil, errors.New("--from is required")
	}

	lower := strings.ToLower(from)
	isURL := strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "http://")

	if req.GitHub && isURL {
		return nil, &models.InvalidSlugError{Slug: from}
	}
	if !isURL {
		if _, _, err := SplitSlug(from); err != nil {
			return nil, err
		}
		return models.GitHubRelease{Slug: from}, nil
	}
	return models.RawURL{URL: from}, nil
}

// Install downloads, indexes and links an app, then optionally integrates
// it with the desktop. An app that is already indexed is left untouched.
func (m *Manager) Install(ctx context.Context, req InstallRequest) (InstallResult, error) {
	var result InstallResult

	executable, err := ExecutableName(req)
	if err != nil {
		return result, err
	}

	if m.index.Exists(executable) {
		record, err := m.index.Get(executable)
		if err != nil {
			m.log.Debug().Err(err).Str("app", executable).Msg("existing record unreadable")
			record = models.Record{Executable: executable}
		}
		m.log.Info().Str("app", executable).Msg("already installed")
		return InstallResult{Record: record, AlreadyInstalled: true}, nil
	}

	source, err := SourceFor(req)
	if err != nil {
		return result, err
	}

	url, err := m.downloadURL(ctx, source)
	if err != nil {
		return result, err
	}

	record := models.Record{
		FilePath:   m.bundlePath(url, executable),
		Executable: executable,
		Source:     source,
	}
	if err := m.download(ctx, url, record.FilePath); err != nil {
		return result, err
	}

	if err := m.index.Add(executable, record); err != nil {
		m.rollback(record, false)
		return result, err
	}
	if err := m.links.Create(record); err != nil {
		m.rollback(record, true)
		return result, err
	}
	result.Record = record
	m.log.Info().Str("app", executable).Str("path", record.FilePath).Msg("installed")

	if !m.shouldIntegrate(executable) {
		return result, nil
	}

	integration, err := m.integrator.Integrate(ctx, record)
	if err != nil {
		return result, fmt.Errorf("%s was installed but desktop integration failed: %w", executable, err)
	}
	result.Integration = &integration
	return result, nil
}

// bundlePath picks a cache path no other file occupies. The URL's file name
// is preferred, then {executable}.AppImage, then a numbered variant.
func (m *Manager) bundlePath(url, executable string) string {
	preferred := m.fetcher.PreparePath(url, executable)
	candidates := []string{preferred, filepath.Join(m.paths.AppImagesDir, executable+appImageExt)}
	for _, candidate := range candidates {
		if !pathTaken(candidate) {
			return candidate
		}
	}
	for i := 2; ; i++ {
		candidate := filepath.Join(m.paths.AppImagesDir, fmt.Sprintf("%s-%d%s", executable, i, appImageExt))
		if !pathTaken(candidate) {
			m.log.Debug().Str("preferred", preferred).Str("path", candidate).Msg("cache path taken")
			return candidate
		}
	}
}

func pathTaken(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func (m *Manager) download(ctx context.Context, url, destination string) error {
	err := m.fetcher.Download(ctx, url, destination, m.progress)
	if m.done != nil {
		m.done()
	}
	return err
}

// lookupName maps a name as typed on the command line to its index key:
// the name itself when indexed, otherwise the executable derived from it.
func (m *Manager) lookupName(name string) string {
	if m.index.Exists(name) {
		return name
	}
	if derived, err := ExecutableName(InstallRequest{Name: name}); err == nil && m.index.Exists(derived) {
		return derived
	}
	return name
}

// Update re-downloads a GitHub-sourced app over its cached bundle. The index
// record and symlink stay as they are.
func (m *Manager) Update(ctx context.Context, name string) (models.Record, error) {
	record, err := m.index.Get(m.lookupName(name))
	if err != nil {
		return record, err
	}

	source, ok := record.Source.(models.GitHubRelease)
	if !ok {
		return record, &models.CannotUpdateError{Name: name, Source: record.Source}
	}

	url, err := m.resolver.Resolve(ctx, source.Slug)
	if err != nil {
		return record, err
	}
	if err := m.download(ctx, url, record.FilePath); err != nil {
		return record, err
	}

	m.log.Info().Str("app", name).Str("url", url).Msg("updated")
	return record, nil
}

// Remove tears down every artifact of name: bundle, symlink, index record,
// then desktop entries and icon when present. A bundle or symlink that is
// already gone is skipped. Any other failure stops the sequence and leaves
// the remaining artifacts in place.
func (m *Manager) Remove(ctx context.Context, name string) error {
	name = m.lookupName(name)
	record, err := m.index.Get(name)
	if err != nil {
		return err
	}

	removed, err := util.RemoveIfExists(record.FilePath)
	if err != nil {
		return err
	}
	if !removed {
		m.log.Warn().Str("path", record.FilePath).Msg("bundle already missing")
	}

	if err := m.links.Remove(record.Executable); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		m.log.Warn().Str("app", record.Executable).Msg("symlink already missing")
	}

	if err := m.index.Remove(name); err != nil {
		return err
	}

	hadDesktopEntry := false
	for _, entry := range m.paths.DesktopEntries(record.Executable) {
		removed, err := util.RemoveIfExists(entry)
		if err != nil {
			return err
		}
		hadDesktopEntry = hadDesktopEntry || removed
	}
	if _, err := util.RemoveIfExists(m.paths.IconFile(record.Executable)); err != nil {
		return err
	}

	if hadDesktopEntry {
		if _, err := refreshDesktopDatabase(ctx, m.paths.LocalApplicationsDir); err != nil {
			m.log.Warn().Err(err).Msg("failed to refresh desktop database")
		}
	}

	m.log.Info().Str("app", name).Msg("removed")
	return nil
}

// List returns installed app names in lexicographic order.
func (m *Manager) List() ([]string, error) {
	return m.index.List()
}

func (m *Manager) downloadURL(ctx context.Context, source models.Source) (string, error) {
	switch s := source.(type) {
	case models.RawURL:
		return s.URL, nil
	case models.GitHubRelease:
		return m.resolver.Resolve(ctx, s.Slug)
	default:
		return "", fmt.Errorf("unsupported source %T", source)
	}
}

func (m *Manager) shouldIntegrate(executable string) bool {
	switch m.integrate {
	case config.IntegrateAlways:
		return true
	case config.IntegrateNever:
		return false
	}
	if m.confirm == nil {
		return false
	}
	ok, err := m.confirm(fmt.Sprintf("Add %s to the application menu?", executable))
	if err != nil {
		m.log.Warn().Err(err).Msg("skipping desktop integration")
		return false
	}
	return ok
}

// rollback undoes a partially completed install so the bundle, record and
// symlink never exist independently of each other.
func (m *Manager) rollback(record models.Record, indexed bool) {
	if indexed {
		if err := m.index.Remove(record.Executable); err != nil {
			m.log.Error().Err(err).Str("app", record.Executable).Msg("rollback: failed to remove index record")
		}
	}
	if err := os.Remove(record.FilePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.log.Error().Err(err).Str("path", record.FilePath).Msg("rollback: failed to remove bundle")
	}
}
