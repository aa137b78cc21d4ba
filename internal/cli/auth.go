package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/rpgtable/internal/session"
)

// resolvingNotice はユーザー解決がこの時間を超えた場合にstderrへ表示する。
const resolvingNotice = 500 * time.Millisecond

// identityView はjson出力用のユーザー表現。
type identityView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Type  string `json:"type"`
}

func viewIdentity(i *session.Identity) identityView {
	return identityView{ID: i.ID, Name: i.Name, Email: i.Email, Type: i.Type}
}

func printIdentity(w io.Writer, i *session.Identity) {
	fmt.Fprintf(w, "%s <%s> (id %d, %s)\n", i.Name, i.Email, i.ID, i.Type)
}

// NewLoginCommand はloginコマンドを生成する。
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return NewExitError(ExitCommandError, "--email is required")
			}
			pw, err := passwordOrStdin(cmd, password)
			if err != nil {
				return err
			}
			if err := opts.manager.SignIn(cmd.Context(), email, pw); err != nil {
				return apiError("sign in failed", err)
			}
			return printSession(opts, cmd, "Signed in as")
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when omitted)")
	return cmd
}

// NewRegisterCommand はregisterコマンドを生成する。
func NewRegisterCommand(opts *RootOptions) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || email == "" {
				return NewExitError(ExitCommandError, "--name and --email are required")
			}
			pw, err := passwordOrStdin(cmd, password)
			if err != nil {
				return err
			}
			if err := opts.manager.Register(cmd.Context(), name, email, pw); err != nil {
				return apiError("registration failed", err)
			}
			return printSession(opts, cmd, "Registered as")
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (read from stdin when omitted)")
	return cmd
}

// NewLogoutCommand はlogoutコマンドを生成する。
func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and remove the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.manager.SignOut(cmd.Context())
			return opts.formatter(cmd).Success(map[string]string{"status": string(session.StatusAnonymous)}, func(w io.Writer) {
				fmt.Fprintln(w, "Signed out")
			})
		},
	}
}

// NewWhoamiCommand はwhoamiコマンドを生成する。
func NewWhoamiCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			state := mount(cmd.Context(), opts, f)
			if !state.Status.Settled() {
				return errUnresolved
			}
			if state.Status != session.StatusAuthenticated {
				return f.Success(map[string]any{"status": state.Status}, func(w io.Writer) {
					fmt.Fprintln(w, "Not signed in")
				})
			}
			return f.Success(map[string]any{"status": state.Status, "user": viewIdentity(state.Identity)}, func(w io.Writer) {
				printIdentity(w, state.Identity)
			})
		},
	}
}

// mount はセッションを解決し、完了した状態を返す。
// 解決に時間がかかる場合はその旨をstderrに表示する。
// ctxがキャンセルされた場合は未完了（Resolving）の状態を返すことがある。
func mount(ctx context.Context, opts *RootOptions, f *OutputFormatter) session.State {
	done := make(chan error, 1)
	go func() { done <- opts.manager.Mount(ctx) }()

	timer := time.NewTimer(resolvingNotice)
	defer timer.Stop()

	for {
		select {
		case err := <-done:
			if err != nil {
				opts.logger.Debug("session resolution failed", slog.String("error", err.Error()))
			}
			return opts.manager.Snapshot()
		case <-timer.C:
			f.Progress("resolving…")
		case <-ctx.Done():
			return opts.manager.Snapshot()
		}
	}
}

// errUnresolved は中断によりセッションの解決が完了しなかったことを示す。
var errUnresolved = NewExitError(ExitFailure, "session is still resolving; interrupted before the server answered")

// requireSession はセッションを解決し、未ログインの場合はエラーを返す。
func requireSession(cmd *cobra.Command, opts *RootOptions) (session.State, error) {
	state := mount(cmd.Context(), opts, opts.formatter(cmd))
	if !state.Status.Settled() {
		return state, errUnresolved
	}
	if state.Status != session.StatusAuthenticated {
		return state, NewExitError(ExitUnauthorized, "not signed in; run `rpgctl login`")
	}
	return state, nil
}

func printSession(opts *RootOptions, cmd *cobra.Command, prefix string) error {
	state := opts.manager.Snapshot()
	if state.Identity == nil {
		return NewExitError(ExitFailure, "session was not established")
	}
	return opts.formatter(cmd).Success(map[string]any{"status": state.Status, "user": viewIdentity(state.Identity)}, func(w io.Writer) {
		fmt.Fprint(w, prefix+" ")
		printIdentity(w, state.Identity)
	})
}

// passwordOrStdin はフラグ未指定の場合にstdinの1行目をパスワードとして読む。
func passwordOrStdin(cmd *cobra.Command, password string) (string, error) {
	if password != "" {
		return password, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", WrapExitError(ExitCommandError, "failed to read password", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", NewExitError(ExitCommandError, "password is required (--password or stdin)")
	}
	return line, nil
}
