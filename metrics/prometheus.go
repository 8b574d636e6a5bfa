package metrics

import (
	"net/http"

	"github.com/docker/go-metrics"
)

const (
	// NamespacePrefix is the namespace of prometheus metrics
	NamespacePrefix = "skynet"
)

var (
	// RegistryNamespace is the prometheus namespace of registry entry
	// lookups, writes and the revision cache.
	RegistryNamespace = metrics.NewNamespace(NamespacePrefix, "registry", nil)

	// SkyDBNamespace is the prometheus namespace of SkyDB operations.
	SkyDBNamespace = metrics.NewNamespace(NamespacePrefix, "skydb", nil)

	// TransportNamespace is the prometheus namespace of portal requests.
	TransportNamespace = metrics.NewNamespace(NamespacePrefix, "transport", nil)

	// ContentNamespace is the prometheus namespace of uploads, downloads
	// and the content cache.
	ContentNamespace = metrics.NewNamespace(NamespacePrefix, "content", nil)

	// PortalNamespace is the prometheus namespace of the development portal.
	PortalNamespace = metrics.NewNamespace(NamespacePrefix, "portal", nil)

	// NotificationsNamespace is the prometheus namespace of registry write
	// notifications.
	NotificationsNamespace = metrics.NewNamespace(NamespacePrefix, "notifications", nil)
)

// Instruments are created here, before the namespaces are registered, so
// every collector is described to prometheus.
var (
	// RegistryLatency times registry lookups and writes by operation.
	RegistryLatency = RegistryNamespace.NewLabeledTimer("request", "The latency of registry lookups and writes", "operation")

	// CacheLockWait times how long writers wait for a revision cache entry.
	CacheLockWait = RegistryNamespace.NewTimer("cache_lock_wait", "The time spent waiting for a revision cache entry lock")

	// CacheLockHold times how long a revision cache entry lock is held.
	CacheLockHold = RegistryNamespace.NewTimer("cache_lock_hold", "The time a revision cache entry lock is held")

	// CacheEntries counts the identities tracked by revision caches.
	CacheEntries = RegistryNamespace.NewGauge("cache_entries", "The number of identities tracked by revision caches", metrics.Total)

	// SkyDBOperations counts SkyDB operations by operation and outcome.
	SkyDBOperations = SkyDBNamespace.NewLabeledCounter("operations", "The number of SkyDB operations", "operation", "outcome")

	// SkyDBLatency times SkyDB operations.
	SkyDBLatency = SkyDBNamespace.NewLabeledTimer("operation", "The latency of SkyDB operations", "operation")

	// TransportRequests counts portal requests by method and status code.
	TransportRequests = TransportNamespace.NewLabeledCounter("requests", "The number of portal requests", "method", "code")

	// TransportRetries counts retried portal requests.
	TransportRetries = TransportNamespace.NewCounter("retries", "The number of retried portal requests")

	// ContentCacheRequests counts content cache lookups by result.
	ContentCacheRequests = ContentNamespace.NewLabeledCounter("cache_requests", "The number of content cache lookups", "result")

	// ContentBytes counts uploaded and downloaded bytes.
	ContentBytes = ContentNamespace.NewLabeledCounter("bytes", "The number of content bytes transferred", "direction")

	// NotificationEvents counts notification events by stage and endpoint.
	NotificationEvents = NotificationsNamespace.NewLabeledCounter("events", "The number of total events", "type", "endpoint")

	// NotificationsPending measures the events queued for an endpoint.
	NotificationsPending = NotificationsNamespace.NewLabeledGauge("pending", "The gauge of pending events in queue", metrics.Total, "endpoint")

	// NotificationStatus counts endpoint responses by status code.
	NotificationStatus = NotificationsNamespace.NewLabeledCounter("status", "The number of status code", "code", "endpoint")

	// PortalRequests times portal handlers by route.
	PortalRequests = PortalNamespace.NewLabeledTimer("request", "The latency of portal requests", "route")
)

func init() {
	for _, ns := range []*metrics.Namespace{RegistryNamespace, SkyDBNamespace, TransportNamespace, ContentNamespace, PortalNamespace, NotificationsNamespace} {
		metrics.Register(ns)
	}
}

// Handler serves the registered namespaces in the prometheus text format.
func Handler() http.Handler {
	return metrics.Handler()
}
