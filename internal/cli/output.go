package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hitoshi/rpgtable/internal/client"
)

// 終了コード。
const (
	ExitSuccess      = 0
	ExitFailure      = 1 // APIがエラーを返した
	ExitCommandError = 2 // 引数や設定の誤り
	ExitUnauthorized = 3 // 未ログインまたはクレデンシャルが無効
)

// ExitError は終了コード付きのエラー。
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError はExitErrorを生成する。
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError はerrを終了コード付きで包む。
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode はerrの終了コードを返す。ExitErrorでない場合はExitFailure。
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// apiError はAPI呼び出しのエラーを終了コード付きエラーに変換する。
func apiError(action string, err error) error {
	if client.IsUnauthorized(err) {
		return WrapExitError(ExitUnauthorized, action, err)
	}
	return WrapExitError(ExitFailure, action, err)
}

// OutputFormatter はtext/jsonの出力を切り替える。
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer
	Verbose   bool
}

// Response はjson形式の出力の共通フォーマット。
type Response struct {
	Status string         `json:"status"`
	Data   any            `json:"data,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

// ResponseError はjson形式のエラー出力。
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
}

// Success はdataを出力する。text形式ではtextを呼び出して描画する。
func (f *OutputFormatter) Success(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(Response{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Table はヘッダーと行を揃えて出力する。
func (f *OutputFormatter) Table(w io.Writer, header []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	writeRow(tw, header)
	for _, row := range rows {
		writeRow(tw, row)
	}
	tw.Flush()
}

func writeRow(w io.Writer, cols []string) {
	for i, c := range cols {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, c)
	}
	fmt.Fprintln(w)
}

// Error はエラーを出力する。json形式ではstdoutに、text形式ではstderrに書き込む。
func (f *OutputFormatter) Error(err error) {
	re := &ResponseError{Code: "ERROR", Message: err.Error()}
	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		re.Status = httpErr.Status
		if httpErr.Code != "" {
			re.Code = httpErr.Code
		}
	}

	if f.Format == "json" {
		json.NewEncoder(f.Writer).Encode(Response{Status: "error", Error: re})
		return
	}
	fmt.Fprintf(f.errWriter(), "Error [%s]: %s\n", re.Code, re.Message)
}

// Progress は進行状況をstderrに出力する。json出力を汚さないためstdoutには書かない。
func (f *OutputFormatter) Progress(format string, args ...any) {
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
