package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loykin/wgman"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, cleanup := buildRoot()
	err := root.ExecuteContext(ctx)
	cleanup()
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// session carries what PersistentPreRunE builds for the subcommand that runs.
type session struct {
	cmd    command
	closer []io.Closer
}

func (s *session) close() {
	for i := len(s.closer) - 1; i >= 0; i-- {
		_ = s.closer[i].Close()
	}
	s.closer = nil
}

// buildRoot creates the root command and a cleanup func that releases what the
// executed subcommand opened.
func buildRoot() (*cobra.Command, func()) {
	globalFlags := &GlobalFlags{}
	upFlags := &UpFlags{}
	lsFlags := &LsFlags{}
	statusFlags := &StatusFlags{}
	sess := &session{}

	root := createRootCommand(globalFlags, sess)
	root.AddCommand(
		createUpCommand(sess, upFlags),
		createLsCommand(sess, lsFlags),
		createDownCommand(sess),
		createStatusCommand(sess, statusFlags),
	)
	return root, sess.close
}

// createRootCommand creates the root command with the persistent flags shared by all subcommands
func createRootCommand(flags *GlobalFlags, sess *session) *cobra.Command {
	root := &cobra.Command{
		Use:   "wgman",
		Short: "Rotate between WireGuard configurations at random",
		Long: `wgman brings up a randomly chosen WireGuard configuration, never the one
that was active before unless it is the only candidate.

Examples:
  wgman up                  # any configuration in /etc/wireguard
  wgman up '^se-'           # only names starting with se-
  wgman ls '^se-'           # show what up would choose from
  wgman down                # bring the active configuration down
  wgman --mock up           # print the wg-quick commands instead of running them`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return sess.open(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional, or WGMAN_CONFIG)")
	pf.StringVarP(&flags.Dir, "dir", "d", "", "configuration directory (default /etc/wireguard)")
	pf.StringVarP(&flags.RunFile, "run-file", "r", "", "file recording the active configuration (default /run/wg-man.current)")
	pf.StringVar(&flags.Tool, "tool", "", "tool invoked as '<tool> up|down <name>' (default wg-quick)")
	pf.BoolVarP(&flags.Mock, "mock", "m", false, "print commands instead of running them")
	pf.StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.LogFormat, "log-format", "", "log format: text or json")
	return root
}

// resolveConfig layers explicitly set flags over the config file and environment.
func resolveConfig(cmd *cobra.Command, flags *GlobalFlags) (wgman.Config, error) {
	path := flags.ConfigPath
	if path == "" {
		path = wgman.ConfigPathFromEnv()
	}
	conf, err := wgman.LoadConfig(path)
	if err != nil {
		return wgman.Config{}, err
	}

	set := cmd.Flags()
	if set.Changed("dir") {
		conf.Dir = flags.Dir
	}
	if set.Changed("run-file") {
		conf.RunFile = flags.RunFile
	}
	if set.Changed("tool") {
		conf.Tool = flags.Tool
	}
	if set.Changed("mock") {
		conf.Mock = flags.Mock
	}
	if set.Changed("log-level") {
		conf.Log.Level = flags.LogLevel
	}
	if set.Changed("log-format") {
		conf.Log.Format = flags.LogFormat
	}
	return conf, nil
}

func (s *session) open(cmd *cobra.Command, flags *GlobalFlags) error {
	conf, err := resolveConfig(cmd, flags)
	if err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, logCloser := conf.Logger().NewSlogger()
	slog.SetDefault(logger)
	s.closer = append(s.closer, logCloser)

	mgr, err := wgman.New(conf, wgman.WithOutput(cmd.OutOrStdout()))
	if err != nil {
		return err
	}
	s.closer = append(s.closer, mgr)
	s.cmd = command{mgr: mgr, out: cmd.OutOrStdout()}
	return nil
}

func patternArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// createUpCommand creates the up subcommand
func createUpCommand(sess *session, upFlags *UpFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "up [REGEX]",
		Short: "Bring down the active configuration and bring up a random match",
		Long: `Choose a random configuration whose name matches REGEX (default: any) and
bring it up, after bringing the currently active one down. The previous
configuration is avoided when another candidate exists.

Examples:
  wgman up
  wgman up 'us|ca'`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upFlags.Pattern = patternArg(args)
			return sess.cmd.Up(cmd.Context(), *upFlags)
		},
	}
}

// createLsCommand creates the ls subcommand
func createLsCommand(sess *session, lsFlags *LsFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ls [REGEX]",
		Short: "List configurations matching REGEX",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lsFlags.Pattern = patternArg(args)
			return sess.cmd.Ls(*lsFlags)
		},
	}
}

// createDownCommand creates the down subcommand
func createDownCommand(sess *session) *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Bring the active configuration down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sess.cmd.Down(cmd.Context())
		},
	}
}

// createStatusCommand creates the status subcommand
func createStatusCommand(sess *session, statusFlags *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the active configuration and whether its interface exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return sess.cmd.Status(*statusFlags)
		},
	}
	cmd.Flags().BoolVar(&statusFlags.Compact, "compact", false, "print JSON on a single line")
	return cmd
}
