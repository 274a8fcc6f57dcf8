package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the console logger used across the bot
func NewLogger(debug bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{"stdout"}
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true
	config.InitialFields = map[string]any{}
	if debug {
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return config.Build()
}

// Install builds a logger and makes it the zap global. The returned func
// flushes buffered entries.
func Install(debug bool) (func(), error) {
	l, err := NewLogger(debug)
	if err != nil {
		return nil, err
	}
	undo := zap.ReplaceGlobals(l)
	return func() {
		_ = l.Sync()
		undo()
	}, nil
}

// BotLogger routes the Telegram client's own logging through zap
type BotLogger struct {
	s *zap.SugaredLogger
}

func NewBotLogger(l *zap.Logger) BotLogger {
	return BotLogger{s: l.Named("tgbotapi").Sugar()}
}

func (b BotLogger) Println(v ...interface{}) {
	b.s.Debug(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (b BotLogger) Printf(format string, v ...interface{}) {
	b.s.Debugf(strings.TrimSuffix(format, "\n"), v...)
}
