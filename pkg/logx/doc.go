// Package logx configures warden's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional escalation hook for unobserved worker errors
//     (min-level + rate limiting so a crash-looping worker cannot
//     flood the sink)
package logx
