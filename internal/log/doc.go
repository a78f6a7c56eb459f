// Package log builds the slog loggers of freezedry.
//
// SecureHandler wraps any slog.Handler and cleans attributes before they are
// written:
//   - Values of credential-like keys (cookie, authorization, token, ...) are
//     masked. Site files carry cookies and headers, so these do reach log
//     calls.
//   - Bearer, basic and JWT tokens and private key blocks are masked
//     wherever they appear as a value.
//   - The userinfo part of URLs is masked.
//   - data: URIs are shortened to their first bytes, so an inlined image
//     never fills the log.
//
// Usage:
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("fetch", "url", u, "cookie", site.Cookie) // cookie=***REDACTED***
package log
