package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/keepmd/internal/render"
	"github.com/starford/keepmd/internal/stash"
	"github.com/starford/keepmd/internal/watch"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

var httpURL = regexp.MustCompile(`^https?://[^\s/]+`)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Folders   FoldersConfig     `yaml:"folders"`
	Templates TemplatesConfig   `yaml:"templates"`
	Convert   ConvertConfig     `yaml:"convert"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Stash     StashConfig       `yaml:"stash"`
	Auth      AuthConfig        `yaml:"auth"`
	Watch     WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return fmt.Errorf("app: %w", err)
	}
	if err := c.Folders.Validate(); err != nil {
		return fmt.Errorf("folders: %w", err)
	}
	if err := c.Convert.Validate(); err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	if err := c.Stash.Validate(); err != nil {
		return fmt.Errorf("stash: %w", err)
	}
	if err := c.Watch.Validate(); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
	// Timezone is the IANA zone used to derive note dates; empty means Local.
	Timezone string `yaml:"timezone"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// Location resolves Timezone.
func (c *ApplicationConfig) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone: %w", err)
	}
	return loc, nil
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// FoldersConfig locates the export, the converted notes, and the tag TOC.
type FoldersConfig struct {
	UnconvertedNotesFolder string `yaml:"unconverted_notes_folder"`
	ConvertedNotesFolder   string `yaml:"converted_notes_folder"`
	TagTOCFile             string `yaml:"tag_toc_file"`
	// TemplatesFolder optionally overrides the embedded templates by name.
	TemplatesFolder string `yaml:"templates_folder"`
}

// Validate validates the folders configuration.
func (c *FoldersConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.UnconvertedNotesFolder, validation.Required),
		validation.Field(&c.ConvertedNotesFolder, validation.Required),
		validation.Field(&c.TagTOCFile, validation.Required),
	)
}

// TemplatesConfig names the note and TOC templates.
type TemplatesConfig struct {
	Note   string `yaml:"note"`
	TagTOC string `yaml:"tag_toc"`
}

// ConvertConfig tunes a conversion run.
type ConvertConfig struct {
	Workers         int  `yaml:"workers"`
	SkipFailedNotes bool `yaml:"skip_failed_notes"`
	DedupeFilenames bool `yaml:"dedupe_filenames"`
}

// Validate validates the convert configuration.
func (c *ConvertConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(1), validation.Max(64)),
	)
}

// SQLiteConfig holds catalog database configuration. An empty Path disables
// the catalog.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Enabled reports whether a catalog is configured.
func (c *SQLiteConfig) Enabled() bool {
	return c.Path != ""
}

// StashConfig configures the optional CouchDB push.
type StashConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Address    string        `yaml:"address"`
	Database   string        `yaml:"database"`
	Username   string        `yaml:"username"`
	Password   string        `yaml:"password"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	DumpDir    string        `yaml:"dump_dir"`
}

// Validate validates the stash configuration. Connection fields are only
// required when the push is enabled.
func (c *StashConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Address, validation.When(c.Enabled, validation.Required), validation.Match(httpURL)),
		validation.Field(&c.Database, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// Client returns the stash client settings.
func (c *StashConfig) Client() stash.Config {
	return stash.Config{
		Address:    c.Address,
		Database:   c.Database,
		Username:   c.Username,
		Password:   c.Password,
		Timeout:    c.Timeout,
		MaxRetries: c.MaxRetries,
		DumpDir:    c.DumpDir,
	}
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// WatchConfig tunes the export-folder watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate validates the watch configuration.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Folders: FoldersConfig{
			UnconvertedNotesFolder: "./Takeout/Keep",
			ConvertedNotesFolder:   "./notes",
			TagTOCFile:             "./notes/tag_toc.md",
		},
		Templates: TemplatesConfig{
			Note:   render.NoteTemplate,
			TagTOC: render.TagTOCTemplate,
		},
		Convert: ConvertConfig{
			Workers: 4,
		},
		SQLite: SQLiteConfig{
			Path: "./keepmd.db",
		},
		Stash: StashConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 3,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Watch: WatchConfig{
			Debounce: watch.DefaultDebounce,
		},
	}
}
