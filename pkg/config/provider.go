package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/museumhub/centralauth/pkg/observability"
)

// Provider hands out the source selection settings in effect for a
// request. Snapshot is taken once per request so a concurrent update
// cannot change the rules mid-login.
type Provider interface {
	Snapshot() AuthConfig
}

// Static is a Provider with a fixed configuration
type Static struct {
	cfg AuthConfig
}

// NewStatic creates a provider that always returns the given settings
func NewStatic(cfg AuthConfig) *Static {
	return &Static{cfg: cfg}
}

// Snapshot returns a copy of the fixed configuration
func (s *Static) Snapshot() AuthConfig {
	return s.cfg.Clone()
}

// authFile is the on-disk YAML shape
type authFile struct {
	SSO struct {
		Mode    string            `yaml:"mode"`
		Kind    string            `yaml:"kind"`
		Options map[string]string `yaml:"options"`
	} `yaml:"sso"`
	Directory struct {
		Mode    string            `yaml:"mode"`
		Options map[string]string `yaml:"options"`
	} `yaml:"directory"`
	MatchBy         string `yaml:"match_by"`
	EmailDomain     string `yaml:"email_domain"`
	UpstreamTimeout string `yaml:"upstream_timeout"`
}

// FileProvider loads auth settings from a YAML file and reloads them
// when the file changes on disk. A reload that fails validation keeps
// the previous snapshot in effect.
type FileProvider struct {
	path    string
	log     *observability.Logger
	watcher *fsnotify.Watcher

	mu  sync.RWMutex
	cfg AuthConfig
}

// NewFileProvider loads the file and starts watching it for changes
func NewFileProvider(path string, log *observability.Logger) (*FileProvider, error) {
	p := &FileProvider{path: path, log: log}

	cfg, err := loadAuthFile(path)
	if err != nil {
		return nil, err
	}
	p.cfg = cfg

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create config watcher: %w", err)
	}
	// Watch the directory, not the file: editors and config maps
	// replace the file by rename, which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}
	p.watcher = watcher

	go p.watch()
	return p, nil
}

// Snapshot returns a copy of the current settings
func (p *FileProvider) Snapshot() AuthConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cfg.Clone()
}

// Close stops watching the file
func (p *FileProvider) Close() error {
	return p.watcher.Close()
}

func (p *FileProvider) watch() {
	base := filepath.Base(p.path)
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			p.reload()
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.log.WithError(err).Warn("config watcher error")
		}
	}
}

func (p *FileProvider) reload() {
	cfg, err := loadAuthFile(p.path)
	if err != nil {
		p.log.WithError(err).WithField("path", p.path).Warn("ignoring config reload")
		return
	}

	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()

	p.log.WithField("path", p.path).Info("auth configuration reloaded")
}

// loadAuthFile reads, parses, and validates one file
func loadAuthFile(path string) (AuthConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AuthConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var file authFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return AuthConfig{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := AuthConfig{
		SSOMode:          ParseMode(file.SSO.Mode),
		SSOKind:          parseSSOKind(file.SSO.Kind),
		SSOOptions:       file.SSO.Options,
		DirectoryMode:    ParseMode(file.Directory.Mode),
		DirectoryOptions: file.Directory.Options,
		MatchBy:          parseMatchBy(file.MatchBy),
		EmailDomain:      file.EmailDomain,
		UpstreamTimeout:  10 * time.Second,
	}
	if cfg.SSOOptions == nil {
		cfg.SSOOptions = make(map[string]string)
	}
	if cfg.DirectoryOptions == nil {
		cfg.DirectoryOptions = make(map[string]string)
	}
	if file.UpstreamTimeout != "" {
		d, err := time.ParseDuration(file.UpstreamTimeout)
		if err != nil {
			return AuthConfig{}, fmt.Errorf("invalid upstream_timeout: %w", err)
		}
		cfg.UpstreamTimeout = d
	}
	if err := cfg.Validate(); err != nil {
		return AuthConfig{}, err
	}
	return cfg, nil
}
