// Package core defines the core interfaces for the hedge advisor
package core

import "context"

// IPriceFeed provides the latest traded price for a symbol
type IPriceFeed interface {
	Price(ctx context.Context, symbol string) (float64, error)
}

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}
