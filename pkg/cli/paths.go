package cli

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths provides access to an app's directories under ~/.ringbench
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
		return nil, fmt.Errorf("cli: home directory: %w", err)
	}
	return &Paths{
		AppName: appName,
		HomeDir: home,
	}, nil
}

// BaseDir returns the base directory (~/.ringbench)
func (p *Paths) BaseDir() string {
	return filepath.Join(p.HomeDir, DefaultBaseDir)
}

// AppDir returns the app-specific directory (~/.ringbench/<app>)
func (p *Paths) AppDir() string {
	return filepath.Join(p.BaseDir(), p.AppName)
}

// ConfigFile returns the config file path (~/.ringbench/<app>/config.yaml)
func (p *Paths) ConfigFile() string {
	return filepath.Join(p.AppDir(), DefaultConfigFile)
}

// HistoryDir returns the run history directory (~/.ringbench/<app>/history)
func (p *Paths) HistoryDir() string {
	return filepath.Join(p.AppDir(), "history")
}

// EnsureHistoryDir creates the history directory if it doesn't exist
func (p *Paths) EnsureHistoryDir() error {
	return os.MkdirAll(p.HistoryDir(), 0755)
}
