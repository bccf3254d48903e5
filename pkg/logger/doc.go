// Package logger provides structured logging for smdl on top of zerolog.
//
// Components accept a Logger and fall back to the global one (GetLogger)
// when given nil. The CLI calls Initialize once with the logging section of
// the configuration:
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.GetLogger().WithField("album", album.Name)
//	log.InfoWithFields("Album listed", map[string]interface{}{"items": n})
//
// Console output is human readable; when a log file is configured every
// event is additionally appended to it as a JSON line.
//
// Tests use NewTestLogger to capture and assert on messages, or
// NewNopLogger to discard them.
package logger
