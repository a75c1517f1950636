package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/slobbe/zap/internal/config"
	"github.com/slobbe/zap/internal/core"
	"github.com/slobbe/zap/internal/logging"
	"github.com/slobbe/zap/internal/ui"
	"github.com/spf13/cobra"
)

var (
	defaultPaths = config.DefaultPaths
	loadSettings = config.LoadDefaultSettings
	newLister    = func(settings config.Settings, opts core.ClientOptions) core.ReleaseLister {
		return core.NewGitHubLister(core.NewHTTPClient(opts), settings.GitHubToken)
	}
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	verbosity int
	noColor   bool

	styles   ui.Styles
	progress *ui.Progress
	paths    config.Paths
	manager  *core.Manager
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:     "zap",
		Short:   "A personal AppImage package manager",
		Version: version,
		Long: `zap installs AppImages from direct links or GitHub releases, puts them
on your PATH and optionally adds them to the application menu.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().CountVarP(&a.verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	root.AddCommand(
		newInstallCmd(a),
		newRemoveCmd(a),
		newUpdateCmd(a),
		newListCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	logging.SetupLogger(a.verbosity, a.stderr, a.noColor)
	log.Debug().Str("command", cmd.Name()).Msg("command started")

	a.styles = ui.NewStyles(a.useColor())

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	paths, err := defaultPaths()
	if err != nil {
		return err
	}
	a.paths = paths

	clientOpts := core.DefaultClientOptions()
	clientOpts.Timeout = settings.HTTPTimeout
	clientOpts.UserAgent = "zap/" + version

	a.progress = ui.NewProgress(a.stderr, "downloading", isTerminal(a.stderr))
	prompter := ui.NewPrompter(a.stdin, a.stderr, isTerminal(a.stdin))

	a.manager = core.NewManager(paths, core.ManagerOptions{
		HTTPClient:   core.NewHTTPClient(clientOpts),
		Lister:       newLister(settings, clientOpts),
		Chooser:      prompter.Choose,
		Confirm:      prompter.Confirm,
		Progress:     a.progress.Update,
		ProgressDone: a.progress.Finish,
		Integrate:    settings.Integrate,
	})
	return nil
}

func (a *app) useColor() bool {
	if a.noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isTerminal(a.stdout)
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && ui.IsTerminal(f)
}

// suggester is implemented by errors that carry a hint for the user.
type suggester interface {
	Suggestion() string
}

// run executes one command line and returns the process exit code. It is the
// only place errors are printed.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, styles: ui.NewStyles(false)}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if a.progress != nil {
		a.progress.Finish()
	}
	if err == nil {
		return 0
	}

	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, a.styles.Error.Render("Error:"), "interrupted")
		return 1
	}
	fmt.Fprintln(stderr, a.styles.Error.Render("Error:"), err)

	var s suggester
	if errors.As(err, &s) {
		if hint := s.Suggestion(); hint != "" {
			fmt.Fprintln(stderr, a.styles.Notice.Render(hint))
		}
	}
	return 1
}
