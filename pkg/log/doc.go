// Package log provides a logging abstraction for wikibatch components.
//
// This package defines a Logger interface that can be implemented by any
// logging library. A zerolog adapter and a no-op logger are provided.
//
// # Usage
//
// Use the provided zerolog adapter:
//
//	logger := log.NewZerologAdapter()
//
// Or use the no-op logger for testing:
//
//	logger := log.NewNoop()
package log
