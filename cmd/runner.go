package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playvert/internal/models"
	"github.com/desertthunder/playvert/internal/repositories"
	"github.com/desertthunder/playvert/internal/services"
	"github.com/desertthunder/playvert/internal/shared"
	"github.com/desertthunder/playvert/internal/tasks"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	services   []services.Service
	resolver   *services.Resolver
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	logSink    *logSink
	// openBrowser launches the system browser during `auth spotify`.
	openBrowser func(url string) error

	mu     sync.Mutex
	links  models.LinkStore
	stores *repositories.Stores
	engine *tasks.PlaylistEngine
}

// RunnerOpts contains configuration options for creating a Runner.
//
// When Links is nil the configured database is opened on first use.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Services   []services.Service
	Resolver   *services.Resolver
	Links      models.LinkStore
	HTTPClient *http.Client
	Logger     *log.Logger
	LogSink    *logSink
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		services:   opts.Services,
		resolver:   opts.Resolver,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		links:      opts.Links,
		logSink:    opts.LogSink,

		openBrowser: shared.OpenBrowser,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		serveCommand, setupCommand, authCommand, playlistCommand, searchCommand, convertCommand, shareCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Engine builds the conversion engine, opening the share-link store on first use.
func (r *Runner) Engine() (*tasks.PlaylistEngine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine != nil {
		return r.engine, nil
	}

	var conversions models.Repository[*models.Conversion]
	if r.links == nil {
		stores, err := repositories.Open(r.config.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		r.stores = stores
		r.links = stores.Links
		conversions = stores.Conversions
	}

	r.engine = tasks.NewPlaylistEngine(
		r.services, r.links, r.resolver, tasks.OptionsFromConfig(r.config.Conversion), r.logger,
	).WithImageClient(r.httpClient)
	if conversions != nil {
		r.engine = r.engine.WithConversions(conversions)
	}
	return r.engine, nil
}

// Close releases the store and the short-link resolver.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.resolver != nil {
		r.resolver.Close()
	}
	if r.stores != nil {
		return r.stores.Close()
	}
	return nil
}

// SetLogger replaces the runner's logger.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// saveTokens stores a Spotify token in the config and writes it to configPath when set.
func (r *Runner) saveTokens(token *oauth2.Token) error {
	if r.config == nil {
		return fmt.Errorf("%w: config is nil", shared.ErrMissingConfig)
	}

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		return fmt.Errorf("failed to update spotify configuration: %w", err)
	}

	if r.configPath == "" {
		return nil
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// logSink is the writer behind every logger derived from the root one, so the TUI can
// move all log output to a file while it owns the terminal.
type logSink struct {
	mu sync.Mutex
	w  io.Writer
}

func newLogSink(w io.Writer) *logSink {
	return &logSink{w: w}
}

func (s *logSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Swap replaces the destination and returns the previous one.
func (s *logSink) Swap(w io.Writer) io.Writer {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.w
	s.w = w
	return prev
}
