// Package logging provides structured logging for the TaHoma bridge.
//
// It is a thin wrapper over log/slog that stamps every entry with the
// service name and version and applies the format, level and output
// destination from config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Component loggers hang off the root logger via With:
//
//	log := logging.New(cfg.Logging, version)
//	hubLog := log.With("component", "hub")
//	hubLog.Info("refresh complete", "devices", n)
//
// Never log hub credentials or broker passwords. Truncate identifiers
// where a prefix is enough:
//
//	log.Info("gateway seen", "pin_prefix", pin[:4]+"...")
package logging
