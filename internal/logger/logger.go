package logger

import (
	"io"
	"log/slog"
	"os"
)

// level はSetup/SetupDefaultで生成したロガーが共有するログレベル。
// 設定読み込み後にSetLevelで変更できる。
var level = new(slog.LevelVar)

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// 本番ではos.Stdoutを渡すことを想定している。
func SetupDefault(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	logger := Setup(w)
	slog.SetDefault(logger)
}

// SetLevel は共有ログレベルを変更する。既に生成済みのロガーにも反映される。
func SetLevel(l slog.Level) {
	level.Set(l)
}

// SetupCLI はCLI向けにテキスト形式のロガーを生成する。
// verboseがfalseの場合はWARN以上のみ出力する。
func SetupCLI(w io.Writer, verbose bool) *slog.Logger {
	l := slog.LevelWarn
	if verbose {
		l = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}
