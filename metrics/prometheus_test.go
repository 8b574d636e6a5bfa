package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHandlerServesEveryNamespace(t *testing.T) {
	CacheEntries.Inc(1)
	SkyDBOperations.WithValues("SetJSON", "ok").Inc(1)
	TransportRetries.Inc(1)
	ContentBytes.WithValues("upload").Inc(1)
	PortalRequests.WithValues("registry").UpdateSince(time.Now())
	NotificationStatus.WithValues("200", "test").Inc(1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	for _, name := range []string{
		"skynet_registry_cache_entries",
		"skynet_skydb_operations",
		"skynet_transport_retries",
		"skynet_content_bytes",
		"skynet_portal_request",
		"skynet_notifications_status",
	} {
		require.Contains(t, string(body), name)
	}
}
