// Package logger builds slog loggers and provides attribute helpers used
// across the service.
//
// Environment presets:
//
//	log := logger.New(logger.WithDevelopment("sessiond")) // text, debug
//	log := logger.New(logger.WithProduction("sessiond"))  // JSON, info
//
// Context extraction adds request-scoped values to every record logged with
// a *Context method:
//
//	log := logger.New(
//		logger.WithProduction("sessiond"),
//		logger.WithContextValue("request_id", requestIDKey{}),
//	)
//
// Attribute helpers keep key names consistent:
//
//	log.WarnContext(ctx, "broadcast dropped",
//		logger.Component("fabric"),
//		logger.PrincipalID(principalID),
//		logger.Error(err),
//	)
//
// Helpers such as Error and PrincipalID return an empty slog.Attr for zero
// input, which slog ignores.
package logger
