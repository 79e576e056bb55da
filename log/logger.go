package log

import (
	"github.com/sirupsen/logrus"
	"strconv"
)

const (
	FieldsVirtualSpoutID = "virtualSpoutId"
	FieldsConsumerID     = "consumerId"
	FieldsSidelineID     = "sidelineId"
	FieldsPartition      = "partition"
)

type Logger interface {
	VirtualSpoutID(id string) Logger
	ConsumerID(id string) Logger
	SidelineID(id string) Logger
	Partition(partition int32) Logger

	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type logrusWrapper struct {
	l logrus.FieldLogger
}

func NewLoggerWithLogrus(logger *logrus.Logger, formatter logrus.Formatter) Logger {
	if formatter != nil {
		logger.SetFormatter(formatter)
	}
	return &logrusWrapper{l: logger}
}

// DefaultLogger wraps the logrus standard logger.
func DefaultLogger() Logger {
	return &logrusWrapper{l: logrus.StandardLogger()}
}

func (l *logrusWrapper) VirtualSpoutID(id string) Logger {
	return &logrusWrapper{
		l: l.l.WithFields(logrus.Fields{
			FieldsVirtualSpoutID: id,
		}),
	}
}

func (l *logrusWrapper) ConsumerID(id string) Logger {
	return &logrusWrapper{
		l: l.l.WithFields(logrus.Fields{
			FieldsConsumerID: id,
		}),
	}
}

func (l *logrusWrapper) SidelineID(id string) Logger {
	return &logrusWrapper{
		l: l.l.WithFields(logrus.Fields{
			FieldsSidelineID: id,
		}),
	}
}

func (l *logrusWrapper) Partition(partition int32) Logger {
	return &logrusWrapper{
		l: l.l.WithFields(logrus.Fields{
			FieldsPartition: strconv.Itoa(int(partition)),
		}),
	}
}

func (l *logrusWrapper) Debug(args ...interface{}) {
	l.l.Debug(args...)
}

func (l *logrusWrapper) Info(args ...interface{}) {
	l.l.Info(args...)
}

func (l *logrusWrapper) Warn(args ...interface{}) {
	l.l.Warn(args...)
}

func (l *logrusWrapper) Error(args ...interface{}) {
	l.l.Error(args...)
}

func (l *logrusWrapper) Debugf(format string, args ...interface{}) {
	l.l.Debugf(format, args...)
}

func (l *logrusWrapper) Infof(format string, args ...interface{}) {
	l.l.Infof(format, args...)
}

func (l *logrusWrapper) Warnf(format string, args ...interface{}) {
	l.l.Warnf(format, args...)
}

func (l *logrusWrapper) Errorf(format string, args ...interface{}) {
	l.l.Errorf(format, args...)
}
