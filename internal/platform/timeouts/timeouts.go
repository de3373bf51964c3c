// Package timeouts defines timeout constants shared by lama commands.
package timeouts

import "time"

// TelemetryShutdown caps how long span export may block process exit.
const TelemetryShutdown = 5 * time.Second

// RedisDial caps the wait when connecting to the shared search cache.
const RedisDial = 2 * time.Second

// RedisRequest caps a single search cache read or write.
const RedisRequest = 2 * time.Second
