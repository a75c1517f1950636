package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/slobbe/zap/internal/core"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type installOptions struct {
	from       string
	executable string
	github     bool
}

func addInstallFlags(fs *pflag.FlagSet, opts *installOptions) {
	fs.StringVar(&opts.from, "from", "", "Direct AppImage URL or GitHub owner/repo")
	fs.StringVar(&opts.executable, "executable", "", "Name on PATH (defaults to the app name, slugified)")
	fs.BoolVar(&opts.github, "github", false, "Optional: require --from to be a GitHub owner/repo slug")
}

func newInstallCmd(a *app) *cobra.Command {
	opts := &installOptions{}
	cmd := &cobra.Command{
		Use:     "install <name>",
		Aliases: []string{"i"},
		Short:   "Install an AppImage",
		Example: `  zap install obsidian --from obsidianmd/obsidian-releases
  zap install myapp --from https://example.com/MyApp-x86_64.AppImage --executable myapp`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.manager.Install(cmd.Context(), core.InstallRequest{
				Name:       args[0],
				From:       opts.from,
				Executable: opts.executable,
				GitHub:     opts.github,
			})

			if result.AlreadyInstalled {
				fmt.Fprintf(a.stdout, "%s %s\n", a.styles.Name.Render(result.Record.Executable), a.styles.Notice.Render("is already installed"))
				return nil
			}
			if result.Record.Executable != "" {
				link := a.paths.SymlinkFile(result.Record.Executable)
				fmt.Fprintf(a.stdout, "%s %s -> %s\n", a.styles.Success.Render("Installed"), a.styles.Name.Render(result.Record.Executable), link)
				if !onPath(a.paths.LocalBinDir) {
					fmt.Fprintf(a.stdout, "%s\n", a.styles.Notice.Render(fmt.Sprintf("%s is not on your PATH", a.paths.LocalBinDir)))
				}
			}
			if err != nil {
				return err
			}
			if result.Integration != nil {
				fmt.Fprintf(a.stdout, "%s %s to the application menu\n", a.styles.Success.Render("Added"), a.styles.Name.Render(result.Record.Executable))
			}
			return nil
		},
	}
	addInstallFlags(cmd.Flags(), opts)
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func newRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove an installed AppImage",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.manager.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s %s\n", a.styles.Success.Render("Removed"), a.styles.Name.Render(args[0]))
			return nil
		},
	}
}

func newUpdateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "update <name>",
		Aliases: []string{"up"},
		Short:   "Download the selected release of a GitHub-sourced AppImage",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := a.manager.Update(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%s %s\n", a.styles.Success.Render("Updated"), a.styles.Name.Render(record.Executable))
			return nil
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List installed AppImages",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.manager.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.stdout, name)
			}
			return nil
		},
	}
}

func onPath(dir string) bool {
	for _, entry := range filepath.SplitList(os.Getenv("PATH")) {
		if filepath.Clean(strings.TrimSpace(entry)) == filepath.Clean(dir) {
			return true
		}
	}
	return false
}
