// Package errors provides the structured error type shared by permgate
// packages. Every failure a gate or behavior produces itself is an *AppError
// carrying a machine-readable ErrorCode, so callers and error policies can
// classify failures without string matching.
package errors
