package cli

import (
	"os"
	"path/filepath"
)

// Paths locates the per-app directories under ~/.rtconsole.
type Paths struct {
	// AppName is the application name
	AppName string

	// HomeDir is the user's home directory
	HomeDir string
}

// NewPaths creates a new Paths instance for the given app
func NewPaths(appName string) (*Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return &Paths{
		AppName: appName,
		HomeDir: home,
	}, nil
}

// BaseDir returns the base directory (~/.rtconsole)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns the app-specific directory (~/.rtconsole/<app>)
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns the config file path (~/.rtconsole/<app>/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// ArchiveDir returns the default event archive directory of a context
// (~/.rtconsole/<app>/archive/<context>).
func (p *Paths) ArchiveDir(context string) string {
	if context == "" {
		context = "default"
	}
	return filepath.Join(p.AppDir(), "archive", context)
}

// LogFile returns the diagnostics log path (~/.rtconsole/<app>/logs/<name>)
func (p *Paths) LogFile(name string) string {
	return filepath.Join(p.AppDir(), "logs", name)
}

// EnsureDir creates dir and its parents if they don't exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
