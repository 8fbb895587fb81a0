// Package logging builds the zap loggers used across the server and CLI.
//
// Production loggers write JSON lines with epoch-millisecond timestamps;
// development loggers write colored console lines. The level lives in a
// zap.AtomicLevel shared by every Named child.
//
//	logger := logging.For(cfg.Logging.Level, cfg.Logging.Development)
//	logger.Info("Server starting", zap.String("addr", cfg.Server.Addr()))
package logging
