// Package cli implements the bjjexport command line tool, which renders
// community records read from JSON or YAML files into standalone HTML
// documents.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bjjsocial/bjjsocial/internal/exporter"
	"github.com/bjjsocial/bjjsocial/internal/sink"
)

// Config wires the command to its environment.
type Config struct {
	Version string
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  zerolog.Logger

	// Clock and Location stamp documents. Defaults: time.Now, time.Local.
	Clock    func() time.Time
	Location *time.Location

	// BatchDelay overrides the exporter's delay between batch items.
	BatchDelay time.Duration
}

type flags struct {
	out        string
	theme      string
	noStyles   bool
	stylesFile string
	title      string
	dryRun     bool
	verbose    bool
}

type runner struct {
	cfg   Config
	flags flags
}

// NewRootCommand builds the bjjexport command tree.
func NewRootCommand(cfg Config) *cobra.Command {
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	if cfg.Stderr == nil {
		cfg.Stderr = os.Stderr
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	r := &runner{cfg: cfg}

	root := &cobra.Command{
		Use:           "bjjexport",
		Short:         "Export BJJ Social records as standalone HTML documents",
		Version:       cfg.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if r.flags.verbose {
				r.cfg.Logger = r.cfg.Logger.Level(zerolog.DebugLevel)
			}
		},
	}
	root.SetOut(cfg.Stdout)
	root.SetErr(cfg.Stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&r.flags.out, "out", "o", ".", "directory to write documents into")
	pf.StringVar(&r.flags.theme, "theme", "light", "document theme (light or dark)")
	pf.BoolVar(&r.flags.noStyles, "no-styles", false, "omit the default stylesheet")
	pf.StringVar(&r.flags.stylesFile, "styles-file", "", "CSS file appended to the stylesheet")
	pf.StringVar(&r.flags.title, "title", "", "override the document title")
	pf.BoolVar(&r.flags.dryRun, "dry-run", false, "render without writing files")
	pf.BoolVarP(&r.flags.verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(
		r.profileCmd(),
		r.communityCmd(),
		r.tableCmd(),
		r.customCmd(),
		r.elementCmd(),
		r.schoolLeaderboardCmd(),
		r.schoolRankingsCmd(),
		r.schoolPositionCmd(),
		r.batchCmd(),
	)
	return root
}

// Execute runs the command tree with ctx and reports errors on Stderr.
func Execute(ctx context.Context, cfg Config, args []string) error {
	root := NewRootCommand(cfg)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return err
	}
	return nil
}

// options builds exporter options from the persistent flags.
func (r *runner) options() (exporter.Options, error) {
	opts := exporter.Options{
		Title:         r.flags.title,
		Theme:         exporter.ParseTheme(r.flags.theme),
		IncludeStyles: exporter.Bool(!r.flags.noStyles),
	}
	if r.flags.stylesFile != "" {
		css, err := os.ReadFile(r.flags.stylesFile)
		if err != nil {
			return opts, fmt.Errorf("read styles: %w", err)
		}
		opts.Styles = string(css)
	}
	return opts, nil
}

// reportingSink prints where each document went.
type reportingSink struct {
	next exporter.Sink
	out  io.Writer

	mu    sync.Mutex
	count int
}

func (s *reportingSink) Deliver(ctx context.Context, f exporter.File) error {
	location, err := sink.Put(ctx, s.next, f)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.count++
	s.mu.Unlock()
	fmt.Fprintf(s.out, "wrote %s (%d bytes)\n", location, len(f.Body))
	return nil
}

func (s *reportingSink) delivered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// exporter creates an exporter delivering into --out, or into memory on a
// dry run.
func (r *runner) exporter() (*exporter.Exporter, *reportingSink, error) {
	var target exporter.Sink = sink.NewDir(r.flags.out)
	if r.flags.dryRun {
		target = sink.NewMemory()
	}
	rs := &reportingSink{next: target, out: r.cfg.Stdout}

	e, err := exporter.New(exporter.Config{
		Sink:       rs,
		Logger:     r.cfg.Logger,
		Clock:      r.cfg.Clock,
		Location:   r.cfg.Location,
		BatchDelay: r.cfg.BatchDelay,
	})
	if err != nil {
		return nil, nil, err
	}
	return e, rs, nil
}

// run executes one export and reports when it produced nothing.
func (r *runner) run(cmd *cobra.Command, fn func(context.Context, *exporter.Exporter, exporter.Options) error) error {
	opts, err := r.options()
	if err != nil {
		return err
	}
	e, rs, err := r.exporter()
	if err != nil {
		return err
	}
	if err := fn(cmd.Context(), e, opts); err != nil {
		return err
	}
	if rs.delivered() == 0 {
		fmt.Fprintln(r.cfg.Stdout, "nothing to export")
	}
	return nil
}

// decodeFile reads JSON, or YAML for .yaml and .yml files, into v.
func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
