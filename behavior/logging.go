package behavior

import (
	"context"

	"github.com/kbukum/permgate/errors"
	"github.com/kbukum/permgate/logger"
)

// WithLogging returns a Behavior that logs failures passing through it
// without changing them. Place it inside an ErrorPolicy to see failures
// before they are swallowed.
func WithLogging(log *logger.Logger, operation string) Behavior {
	return &loggingBehavior{log: log, operation: operation}
}

type loggingBehavior struct {
	log       *logger.Logger
	operation string
}

func (l *loggingBehavior) Prepare(context.Context) error { return nil }

func (l *loggingBehavior) Recover(err error) (error, bool) {
	fields := logger.ErrorFields(l.operation, err)
	if code := errors.CodeOf(err); code != "" {
		fields[logger.FieldStatus] = string(code)
	}
	if errors.IsPermissionDenied(err) {
		fields[logger.FieldPermissions] = errors.DeniedPermissions(err)
		l.log.Warn("operation denied", fields)
	} else {
		l.log.Error("operation failed", fields)
	}
	return err, false
}
