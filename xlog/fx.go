package xlog

import (
	"strings"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxXLogger reports how the avlstress app is wired and how its lifecycle
// hooks ran. Successful wiring is debug output, the hook outcomes and the
// shutdown are info, failures are errors.
type FxXLogger struct {
	logger XLogger
}

// funcName drops the import path, "github.com/x/y/cmd/app.newLogger.func1()"
// becomes "app.newLogger.func1()".
func funcName(name string) string {
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

func hookFields(stage, function, caller string) []zap.Field {
	return []zap.Field{
		zap.String("stage", stage),
		zap.String("hook", funcName(function)),
		zap.String("registeredBy", funcName(caller)),
	}
}

func (l *FxXLogger) LogEvent(event fxevent.Event) {
	if l == nil || l.logger == nil {
		return
	}

	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		fields := append(hookFields("OnStart", e.FunctionName, e.CallerName), zap.Duration("took", e.Runtime))
		if e.Err != nil {
			l.logger.Error(e.Err, "lifecycle hook failed", fields...)
			return
		}
		l.logger.Debug("lifecycle hook done", fields...)
	case *fxevent.OnStopExecuted:
		fields := append(hookFields("OnStop", e.FunctionName, e.CallerName), zap.Duration("took", e.Runtime))
		if e.Err != nil {
			l.logger.Error(e.Err, "lifecycle hook failed", fields...)
			return
		}
		l.logger.Info("lifecycle hook done", fields...)
	case *fxevent.Supplied:
		if e.Err != nil {
			l.logger.Error(e.Err, "supply failed", zap.String("type", e.TypeName))
			return
		}
		l.logger.Debug("supplied", zap.String("type", e.TypeName))
	case *fxevent.Provided:
		if e.Err != nil {
			l.logger.Error(e.Err, "constructor wiring failed",
				zap.String("constructor", funcName(e.ConstructorName)),
			)
			return
		}
		l.logger.Debug("provided",
			zap.String("constructor", funcName(e.ConstructorName)),
			zap.Strings("types", e.OutputTypeNames),
		)
	case *fxevent.Invoked:
		// fx.Populate runs as an invoke.
		if e.Err != nil {
			l.logger.Error(e.Err, "populate failed", zap.String("function", funcName(e.FunctionName)))
		}
	case *fxevent.Started:
		if e.Err != nil {
			l.logger.Error(e.Err, "app start failed")
			return
		}
		l.logger.Debug("app started")
	case *fxevent.RollingBack:
		l.logger.Warn("app start failed, stopping the started hooks", zap.Error(e.StartErr))
	case *fxevent.RolledBack:
		if e.Err != nil {
			l.logger.Error(e.Err, "app rollback failed")
		}
	case *fxevent.Stopping:
		if e.Signal == nil {
			l.logger.Info("app stopping")
			return
		}
		l.logger.Info("app stopping", zap.String("signal", e.Signal.String()))
	case *fxevent.Stopped:
		if e.Err != nil {
			l.logger.Error(e.Err, "app stop failed")
			return
		}
		l.logger.Debug("app stopped")
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			l.logger.Error(e.Err, "fx logger init failed")
		}
	}
}

func NewFxXLogger(logger XLogger) *FxXLogger {
	return &FxXLogger{logger: logger.Named("Fx")}
}
