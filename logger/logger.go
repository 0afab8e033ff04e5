// Package logger is the process-wide logging facility. Lines go to one
// file per calendar day under the configured directory and are mirrored to
// stdout, in the format
//
//	<dd-mm-yyyy HH:MM:SS>.<ms> *** <LEVEL> : <caller line> *** <message>
package logger

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// sugar defaults to a nop logger so packages can log before Init (tests).
var sugar = zap.NewNop().Sugar()

var bufPool = buffer.NewPool()

// lineEncoder renders entries in the fixed log-line format. Structured
// fields are folded into the message by the SugaredLogger before they
// reach the encoder.
type lineEncoder struct {
	zapcore.Encoder
}

func newLineEncoder() lineEncoder {
	cfg := zap.NewProductionEncoderConfig()
	return lineEncoder{Encoder: zapcore.NewConsoleEncoder(cfg)}
}

func (e lineEncoder) Clone() zapcore.Encoder {
	return lineEncoder{Encoder: e.Encoder.Clone()}
}

func (e lineEncoder) EncodeEntry(ent zapcore.Entry, _ []zapcore.Field) (*buffer.Buffer, error) {
	line := bufPool.Get()
	line.AppendString(ent.Time.Format("02-01-2006 15:04:05.000"))
	line.AppendString(" *** ")
	line.AppendString(ent.Level.CapitalString())
	line.AppendString(" : ")
	if ent.Caller.Defined {
		line.AppendInt(int64(ent.Caller.Line))
	} else {
		line.AppendInt(0)
	}
	line.AppendString(" *** ")
	line.AppendString(ent.Message)
	line.AppendString("\n")
	return line, nil
}

// fileName returns the log file path for the given day.
func fileName(dir string, t time.Time) string {
	return filepath.Join(dir, t.Format("02-01-2006")+".log")
}

// Init opens today's log file under dir and installs the global logger.
// Falls back to stdout only when the file cannot be opened.
func Init(dir string) {
	syncers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if err := os.MkdirAll(dir, os.ModePerm); err == nil {
		f, ferr := os.OpenFile(fileName(dir, time.Now()), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if ferr == nil {
			syncers = append(syncers, zapcore.AddSync(f))
		}
	}

	core := zapcore.NewCore(newLineEncoder(), zapcore.NewMultiWriteSyncer(syncers...), zap.InfoLevel)
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	sugar = l.Sugar()
}

func Info(msg string) {
	sugar.Info(msg)
}

func Infof(template string, args ...interface{}) {
	sugar.Infof(template, args...)
}

func Warnf(template string, args ...interface{}) {
	sugar.Warnf(template, args...)
}

func Errorf(template string, args ...interface{}) {
	sugar.Errorf(template, args...)
}

// ErrorAt logs an error tagged with the failing function name, mirroring
// the call-site convention used across handlers and gateways.
func ErrorAt(fn string, err error) {
	sugar.Errorf("%s | Exception : %v", fn, err)
}

func Fatalf(template string, args ...interface{}) {
	sugar.Fatalf(template, args...)
}

// Sync flushes buffered entries. Call before process exit.
func Sync() {
	_ = sugar.Sync()
}
