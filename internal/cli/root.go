// Package cli はrpgctlコマンドを実装する。
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/hitoshi/rpgtable/internal/client"
	"github.com/hitoshi/rpgtable/internal/logger"
	"github.com/hitoshi/rpgtable/internal/session"
)

const (
	envAPIURL      = "RPGCTL_API_URL"
	envSessionFile = "RPGCTL_SESSION_FILE"

	defaultAPIURL = "http://localhost:8080"
)

// ValidFormats は出力形式の一覧。
var ValidFormats = []string{"text", "json"}

// RootOptions は全コマンド共通のフラグと、実行時に組み立てる依存を保持する。
type RootOptions struct {
	APIURL      string
	SessionFile string
	Format      string
	Verbose     bool

	// HTTPClient はテスト時に差し替える。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client

	client  *client.Client
	manager *session.Manager
	logger  *slog.Logger
}

// NewRootCommand はrpgctlのルートコマンドを生成する。
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rpgctl",
		Short:         "rpgtable client",
		Long:          "Command line client for the rpgtable campaign manager API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.setup(cmd.ErrOrStderr())
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.manager != nil {
				opts.manager.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", envOr(envAPIURL, defaultAPIURL), "API base URL (env "+envAPIURL+")")
	cmd.PersistentFlags().StringVar(&opts.SessionFile, "session-file", os.Getenv(envSessionFile), "session file path (env "+envSessionFile+")")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewRPGsCommand(opts))
	cmd.AddCommand(NewCharactersCommand(opts))
	cmd.AddCommand(NewEventsCommand(opts))

	return cmd
}

// setup はHTTPクライアント、セッションストア、セッション管理を組み立てる。
func (o *RootOptions) setup(stderr io.Writer) error {
	o.logger = logger.SetupCLI(stderr, o.Verbose)

	o.client = client.New(o.HTTPClient, o.logger)
	if err := o.client.Configure(o.APIURL); err != nil {
		return WrapExitError(ExitCommandError, "invalid API URL", err)
	}

	path := o.SessionFile
	if path == "" {
		p, err := session.DefaultFilePath()
		if err != nil {
			return WrapExitError(ExitCommandError, "cannot locate session file", err)
		}
		path = p
	}
	store := session.NewFileStore(path)

	o.manager = session.NewManager(store, o.client, o.client.Auth(), o.logger)
	return nil
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Execute はargsでrpgctlを実行し、終了コードを返す。
// エラーは--formatに従って出力する。
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	return execute(ctx, opts, args, stdin, stdout, stderr)
}

func execute(ctx context.Context, opts *RootOptions, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		f := &OutputFormatter{Format: opts.Format, Writer: stdout, ErrWriter: stderr}
		f.Error(err)
		return GetExitCode(err)
	}
	return ExitSuccess
}
