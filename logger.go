package match

import "go.uber.org/zap"

var logger = zap.NewNop()

// SetLogger allows setting a custom logger.
func SetLogger(l *zap.Logger) {
	if l != nil {
		logger = l
	}
}
