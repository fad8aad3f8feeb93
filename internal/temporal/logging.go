package temporal

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/log"
)

// sdkLogAdapter bridges the Temporal SDK's keyval-style logger onto zerolog
// so client and worker logs land in the same stream as the rest of the
// process, with the same levels.
type sdkLogAdapter struct {
	logger zerolog.Logger
}

func NewSDKLogger(logger zerolog.Logger) log.Logger {
	return &sdkLogAdapter{
		logger: logger.With().Str("component", "temporal-sdk").Logger(),
	}
}

// emit folds the SDK's flat key/value list into structured fields. The SDK
// contract is an even-length list; a trailing unpaired value is kept rather
// than dropped so nothing the SDK logged is lost.
func (a *sdkLogAdapter) emit(event *zerolog.Event, msg string, keyvals []interface{}) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			key = fmt.Sprint(keyvals[i])
		}
		event = event.Interface(key, keyvals[i+1])
	}
	if len(keyvals)%2 != 0 {
		event = event.Interface("unpaired", keyvals[len(keyvals)-1])
	}
	event.Msg(msg)
}

func (a *sdkLogAdapter) Debug(msg string, keyvals ...interface{}) {
	a.emit(a.logger.Debug(), msg, keyvals)
}

func (a *sdkLogAdapter) Info(msg string, keyvals ...interface{}) {
	a.emit(a.logger.Info(), msg, keyvals)
}

func (a *sdkLogAdapter) Warn(msg string, keyvals ...interface{}) {
	a.emit(a.logger.Warn(), msg, keyvals)
}

func (a *sdkLogAdapter) Error(msg string, keyvals ...interface{}) {
	a.emit(a.logger.Error(), msg, keyvals)
}
