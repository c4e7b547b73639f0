// Package observe provides observability primitives for query execution.
//
// It is a pure instrumentation library: no fetching, no caching, no
// I/O beyond exporter setup. The query package wires an Observer's
// logger, metrics, and tracer around its fetch lifecycle.
package observe
