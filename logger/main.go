package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var loggers = make(map[string]*zap.SugaredLogger)
var mu sync.Mutex

func createLogger(service string) *zap.SugaredLogger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(os.Stderr),
		zap.InfoLevel,
	)

	logger := zap.New(core, zap.AddCaller())

	return logger.Sugar().With("service", service)
}

func getLogger(service string) *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()

	if logger, ok := loggers[service]; ok {
		return logger
	}

	logger := createLogger(service)

	loggers[service] = logger

	return logger
}

type Logger struct {
	logger  *zap.SugaredLogger
	service string
}

func NewLogger(service string) (*Logger, error) {
	return &Logger{
		logger:  getLogger(service),
		service: service,
	}, nil
}

func (instance *Logger) Info(message string) {
	instance.logger.Info(message)
}

func (instance *Logger) Error(message string, err error) {
	instance.logger.Error(fmt.Sprintf("%s: %v", message, err))
}

func (instance *Logger) Fatal(message string, err error) {
	instance.logger.Fatal(fmt.Sprintf("%s: %v", message, err))
}
