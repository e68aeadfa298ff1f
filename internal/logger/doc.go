// Package logger wraps zap with:
//   - a global sugared logger using a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and configuration,
//   - context-aware helpers such as Infof and ErrorKV.
//
// Host components receive a context and pull their logger from it, so
// request and session scoped fields follow the call chain.
package logger
