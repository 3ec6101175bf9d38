package osm

import (
	"sync"
	"time"
)

// MonitoringHooks defines hooks for monitoring upstream requests
type MonitoringHooks struct {
	// OnRequest is called before making an HTTP request
	OnRequest func(service, operation string)

	// OnResponse is called after receiving an HTTP response
	OnResponse func(service, operation string, duration time.Duration, success bool)

	// OnRateLimit is called when the client had to wait for its limiter
	OnRateLimit func(service string, waitTime time.Duration)

	// OnError is called when an error occurs
	OnError func(service, errorType string)
}

var (
	// Global monitoring hooks
	globalHooks *MonitoringHooks
	hooksMutex  sync.RWMutex
)

// SetMonitoringHooks sets global monitoring hooks
func SetMonitoringHooks(hooks *MonitoringHooks) {
	hooksMutex.Lock()
	defer hooksMutex.Unlock()
	globalHooks = hooks
}

// getMonitoringHooks returns the current monitoring hooks
func getMonitoringHooks() *MonitoringHooks {
	hooksMutex.RLock()
	defer hooksMutex.RUnlock()
	return globalHooks
}

func hookRequest(service, operation string) {
	if h := getMonitoringHooks(); h != nil && h.OnRequest != nil {
		h.OnRequest(service, operation)
	}
}

func hookResponse(service, operation string, d time.Duration, success bool) {
	if h := getMonitoringHooks(); h != nil && h.OnResponse != nil {
		h.OnResponse(service, operation, d, success)
	}
}

func hookRateLimit(service string, wait time.Duration) {
	if h := getMonitoringHooks(); h != nil && h.OnRateLimit != nil {
		h.OnRateLimit(service, wait)
	}
}

func hookError(service, errorType string) {
	if h := getMonitoringHooks(); h != nil && h.OnError != nil {
		h.OnError(service, errorType)
	}
}
