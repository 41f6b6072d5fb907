package xlog

import (
	"os"

	"go.uber.org/zap/zapcore"
)

func newStdOutWriteSyncer() (zapcore.WriteSyncer, func() error) {
	ws := zapcore.Lock(os.Stdout)
	return ws, func() error {
		// Stdout sync errors on terminals and pipes, nothing to report.
		_ = ws.Sync()
		return nil
	}
}

func consoleEncoderConfig(lvlEnc zapcore.LevelEncoder, tsEnc zapcore.TimeEncoder) zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:    "msg",
		LevelKey:      "lvl",
		EncodeLevel:   lvlEnc,
		TimeKey:       "ts",
		EncodeTime:    tsEnc,
		CallerKey:     "callAt",
		EncodeCaller:  zapcore.ShortCallerEncoder,
		FunctionKey:   "fn",
		NameKey:       "component",
		EncodeName:    zapcore.FullNameEncoder,
		StacktraceKey: coreKeyIgnored,
	}
}

func newConsoleCore(
	lvlEnabler zapcore.LevelEnabler,
	encoder logEncoderType,
	ws zapcore.WriteSyncer,
	lvlEnc zapcore.LevelEncoder,
	tsEnc zapcore.TimeEncoder,
) zapcore.Core {
	enc := getEncoderByType(encoder)
	return zapcore.NewCore(enc(consoleEncoderConfig(lvlEnc, tsEnc)), ws, lvlEnabler)
}
