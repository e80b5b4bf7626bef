// Package logging builds the zap.Logger the rest of the pipeline
// accepts (sema.Analyzer, irgen.Emitter) and threads it through the
// compiler's -verbose flag. Neither package needs anything beyond a
// *zap.Logger, so this stays a thin constructor rather than a wrapper
// type.
package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a phase-trace logger writing to stderr when verbose is
// true, or a no-op logger otherwise. The no-op logger still satisfies
// every call site (sema.New/irgen.New both accept a nil logger and
// substitute their own zap.NewNop(), but the CLI always has one in
// hand to pass down uniformly).
func New(verbose bool) *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}

	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	encoder := zapcore.NewConsoleEncoder(cfg)
	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stderr)), zapcore.DebugLevel)
	return zap.New(core)
}
