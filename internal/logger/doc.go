// Package logger wraps zap behind context helpers.
//
// Commands put a named logger into the context at startup and every
// layer below logs through it with the leveled helpers (InfoKV,
// Errorf, and so on). FromContext falls back to a shared console
// logger, so logging works even on a bare context.
package logger
