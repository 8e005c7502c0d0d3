// Package main provides the tfvc CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"tfvc/internal/command"
	"tfvc/internal/config"
	"tfvc/internal/logging"
	"tfvc/internal/option"
	"tfvc/internal/prompt"
	"tfvc/internal/workspace"
)

// Version is the current tfvc CLI version
var Version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "tfvc",
	Short: "tfvc - pending-change workspace version control",
	Long: `tfvc manages a workspace of pending changes (add, delete, edit, rename,
undelete, lock) against a baseline and checks them in as numbered changesets.

Options may be written TFS style (-recursive, -lock:checkout) or with
double dashes (--recursive, --lock=checkout).`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runUnknown,
}

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a workspace in dir (default: current directory)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInit,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tfvc version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "tfvc version "+Version)
		exitCode = command.ExitSuccess
	},
}

var (
	initServerPath string
	initGitRef     string
)

// registry is the closed set of workspace commands.
var registry = command.DefaultRegistry()

// exitCode is set by the command that ran.
var exitCode = command.ExitUnknown

// unknownOptions holds the options of the current run that no flag is
// registered for. The resolver rejects them with the command's usage.
var unknownOptions []option.Option

func init() {
	for _, spec := range option.Catalog {
		shorthand := ""
		for _, a := range spec.Aliases {
			if len(a) == 1 {
				shorthand = a
			}
		}
		if spec.Type == option.SwitchValue {
			rootCmd.PersistentFlags().BoolP(string(spec.Kind), shorthand, false, spec.Usage)
		} else {
			rootCmd.PersistentFlags().StringP(string(spec.Kind), shorthand, "", spec.Usage)
		}
	}

	initCmd.Flags().StringVar(&initServerPath, "server-path", "", "Server folder mapped to the workspace root (default: $/<dir name>)")
	initCmd.Flags().StringVar(&initGitRef, "git", "", "Seed the baseline from a Git ref of the repository in dir")
	initCmd.Flags().Lookup("git").NoOptDefVal = "HEAD"
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)

	for _, c := range registry.Commands() {
		rootCmd.AddCommand(&cobra.Command{
			Use:     c.Name + " [itemspec...]",
			Aliases: c.Aliases,
			Short:   c.Short,
			Long:    c.Short + "\n\nUsage:\n  tfvc " + strings.Join(c.Usage(), "\n  tfvc "),
			Args:    cobra.ArbitraryArgs,
			RunE:    runWorkspaceCommand,
		})
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one command line and returns the process exit code.
func run(args []string) int {
	exitCode = command.ExitUnknown
	resetFlags(rootCmd)
	args, unknownOptions = stripUnknown(option.NormalizeArgs(args))
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "Error:", err)
		exitCode = exitCode.Compose(command.ExitFailure)
	}
	if exitCode == command.ExitUnknown {
		return int(command.ExitSuccess)
	}
	return int(exitCode)
}

// resetFlags clears values left by an earlier run in the same process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// stripUnknown removes the option tokens no flag answers to, so that
// workspace commands report them through the resolver instead of the flag
// parser. init and version keep the parser's own errors.
func stripUnknown(args []string) ([]string, []option.Option) {
	target, _, err := rootCmd.Find(args)
	if err != nil || target == initCmd || target == versionCmd {
		return args, nil
	}

	var (
		kept    = make([]string, 0, len(args))
		unknown []option.Option
	)
	for i, arg := range args {
		if arg == "--" {
			kept = append(kept, args[i:]...)
			break
		}
		name, ok := unknownFlag(arg)
		if !ok {
			kept = append(kept, arg)
			continue
		}
		unknown = append(unknown, option.Option{Kind: option.Kind(strings.ToLower(name)), Alias: name})
	}
	return kept, unknown
}

// unknownFlag returns the name of an option token that is neither in the
// catalog nor the help flag. Tokens are expected in NormalizeArgs form.
func unknownFlag(arg string) (string, bool) {
	if len(arg) < 2 || arg[0] != '-' {
		return "", false
	}
	var name string
	if strings.HasPrefix(arg, "--") {
		name, _, _ = strings.Cut(arg[2:], "=")
	} else {
		name, _, _ = strings.Cut(arg[1:], ":")
	}
	if name == "" || name == "help" || name == "h" {
		return "", false
	}
	if _, ok := option.LookupSpec(strings.ToLower(name)); ok {
		return "", false
	}
	return name, true
}

// suppliedOptions converts the flags set on the command line to an option
// set. extra options are added as they are.
func suppliedOptions(cmd *cobra.Command, extra ...option.Option) (option.Set, error) {
	var (
		opts []option.Option
		perr error
	)
	// the flag set remembers flags from earlier runs; only Changed ones
	// belong to this one
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if perr != nil || !f.Changed {
			return
		}
		if _, ok := option.LookupSpec(f.Name); !ok {
			return
		}
		o, err := option.Parse(f.Name, f.Value.String())
		if err != nil {
			perr = err
			return
		}
		opts = append(opts, o)
	})
	if perr != nil {
		return option.Set{}, perr
	}
	return option.NewSet(append(opts, extra...)...), nil
}

func runUnknown(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		if len(unknownOptions) > 0 {
			exitCode = command.ExitFailure
			return fmt.Errorf("unknown option %s", unknownOptions[0])
		}
		return cmd.Help()
	}
	return execute(cmd, args[0], args[1:])
}

func runWorkspaceCommand(cmd *cobra.Command, args []string) error {
	return execute(cmd, cmd.Name(), args)
}

func execute(cmd *cobra.Command, name string, args []string) error {
	opts, err := suppliedOptions(cmd, unknownOptions...)
	if err != nil {
		exitCode = command.ExitFailure
		fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
		return nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		exitCode = command.ExitFailure
		return fmt.Errorf("getting working directory: %w", err)
	}

	env, err := loadEnv(cwd, opts.Has(option.Verbose), cmd.ErrOrStderr())
	if err != nil {
		exitCode = command.ExitFailure
		return err
	}
	defer env.close()

	exec := &command.Executor{
		Registry: registry,
		Open:     env.opener(),
		Asker:    prompt.New(os.Stdin, cmd.ErrOrStderr()),
		Reporter: command.WriterReporter{Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()},
		Out:      cmd.OutOrStdout(),
		WorkDir:  cwd,
		Logger:   env.log,
		Global:   []option.Kind{option.Verbose},
		NoPrompt: env.cfg.NoPrompt,
	}
	// failures are already reported by the executor
	exitCode, _ = exec.Execute(cmd.Context(), name, opts, args)
	return nil
}

// env is the per-invocation configuration and logger.
type env struct {
	root  string // "" outside a workspace
	cfg   config.Config
	log   *slog.Logger
	close func() error
}

func loadEnv(cwd string, verbose bool, stderr io.Writer) (*env, error) {
	root, err := workspace.Find(cwd)
	if err != nil && !errors.Is(err, workspace.ErrNotWorkspace) {
		return nil, err
	}

	metaDir := ""
	if root != "" {
		metaDir = filepath.Join(root, workspace.DirName)
	}
	cfg, err := config.Load(metaDir)
	if err != nil {
		return nil, err
	}
	if root == "" {
		cfg.Log.File = ""
	}

	log, closeLog := logging.New(logging.Options{
		File:       cfg.Log.File,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Verbose:    verbose,
		Stderr:     stderr,
	})
	return &env{root: root, cfg: cfg, log: log, close: closeLog}, nil
}

func (e *env) opener() command.Opener {
	return func(_ context.Context, notify func(string)) (workspace.Workspace, error) {
		if e.root == "" {
			return nil, workspace.ErrNotWorkspace
		}
		return workspace.Open(e.root, workspace.Options{
			IgnoreFile: e.cfg.IgnoreFile,
			Logger:     e.log,
			Notify:     notify,
		})
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	exitCode = command.ExitFailure

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", dir, err)
	}
	metaDir := filepath.Join(root, workspace.DirName)

	cfg := config.Default()
	log, closeLog := logging.New(logging.Options{
		File:       filepath.Join(metaDir, cfg.Log.File),
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Verbose:    cmd.Flags().Changed(string(option.Verbose)),
		Stderr:     cmd.ErrOrStderr(),
	})
	defer closeLog()

	ws, err := workspace.Init(cmd.Context(), root, workspace.InitOptions{
		Options:    workspace.Options{Logger: log},
		ServerPath: initServerPath,
		GitRef:     initGitRef,
		FromGit:    cmd.Flags().Changed("git"),
	})
	if err != nil {
		return err
	}
	defer ws.Close()

	cfg.ServerPath = ws.ServerPath()
	if err := config.Write(metaDir, cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized tfvc workspace in %s\n", metaDir)
	fmt.Fprintf(cmd.OutOrStdout(), "Mapped %s to %s\n", ws.ServerPath(), root)
	exitCode = command.ExitSuccess
	return nil
}
