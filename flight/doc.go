// Package flight deduplicates concurrent fetches for the same query key.
//
// A Registry tracks at most one outstanding operation per key. Callers
// that request a key while an operation is in flight join it and
// observe the identical result. Each flight runs under its own
// cancelable context, so a superseded or abandoned flight can be
// cancelled without affecting other keys.
package flight
