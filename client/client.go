// Package client assembles a Skynet client: one portal transport, one
// registry client, one revision cache and the SkyDB engine built on them.
package client

import (
	"context"
	"errors"
	"time"

	events "github.com/docker/go-events"
	"github.com/mitchellh/mapstructure"
	"github.com/skynetlabs/skynet/content"
	"github.com/skynetlabs/skynet/internal/client/transport"
	"github.com/skynetlabs/skynet/internal/dcontext"
	"github.com/skynetlabs/skynet/internal/uuid"
	"github.com/skynetlabs/skynet/notifications"
	"github.com/skynetlabs/skynet/registry/cache"
	regclient "github.com/skynetlabs/skynet/registry/client"
	"github.com/skynetlabs/skynet/skydb"
)

// Endpoint is a notification endpoint receiving committed SkyDB writes.
type Endpoint struct {
	Name     string
	URL      string
	Disabled bool
	notifications.EndpointConfig
}

// Options configures a Client.
type Options struct {
	transport.Options

	Upload   content.UploaderOptions
	Download content.DownloaderOptions

	// WriteTimeout bounds SkyDB writes once their entry is locked. Zero
	// selects skydb.DefaultWriteTimeout.
	WriteTimeout time.Duration

	// Endpoints receive an event for every committed write.
	Endpoints []Endpoint

	// InstanceID identifies this client in events. It defaults to a
	// random UUID.
	InstanceID string
}

// Client holds the capabilities of one portal connection.
type Client struct {
	InstanceID string

	Transport  *transport.Transport
	Registry   *regclient.Client
	Uploader   *content.Uploader
	Downloader *content.Downloader
	DB         *skydb.DB

	revisions   *cache.RevisionNumberCache
	broadcaster *events.Broadcaster
}

// New builds a Client. Every DB handed out by the client shares its
// revision cache.
func New(ctx context.Context, opts Options) (*Client, error) {
	tr, err := transport.New(opts.Options)
	if err != nil {
		return nil, err
	}
	down, err := content.NewDownloader(tr, opts.Download)
	if err != nil {
		return nil, err
	}

	c := &Client{
		InstanceID: opts.InstanceID,
		Transport:  tr,
		Registry:   regclient.New(tr),
		Uploader:   content.NewUploader(tr, opts.Upload),
		Downloader: down,
		revisions:  cache.New(),
	}
	if c.InstanceID == "" {
		c.InstanceID = uuid.NewString()
	}

	listener := c.configureEvents(ctx, opts.Endpoints)
	c.DB = skydb.New(c.Registry, c.Uploader, c.Downloader,
		skydb.WithRevisionCache(c.revisions),
		skydb.WithListener(listener),
		skydb.WithWriteTimeout(opts.WriteTimeout))
	return c, nil
}

// configureEvents broadcasts committed writes to the enabled endpoints.
func (c *Client) configureEvents(ctx context.Context, endpoints []Endpoint) notifications.Listener {
	var sinks []events.Sink
	for _, endpoint := range endpoints {
		if endpoint.Disabled {
			dcontext.GetLogger(ctx).Infof("endpoint %s disabled, skipping", endpoint.Name)
			continue
		}
		dcontext.GetLogger(ctx).Infof("configuring endpoint %v (%v), timeout=%s", endpoint.Name, endpoint.URL, endpoint.Timeout)
		sinks = append(sinks, notifications.NewEndpoint(endpoint.Name, endpoint.URL, endpoint.EndpointConfig))
	}
	if len(sinks) == 0 {
		return notifications.NopListener
	}

	c.broadcaster = events.NewBroadcaster(sinks...)
	return notifications.NewBridge(notifications.SourceRecord{
		InstanceID: c.InstanceID,
		Portal:     c.Transport.PortalURL(),
	}, c.broadcaster)
}

// RevisionCache returns the cache shared by the client's writers.
func (c *Client) RevisionCache() *cache.RevisionNumberCache {
	return c.revisions
}

// NewDB returns another DB over the client's capabilities. It shares the
// client's revision cache, so its writes are serialized with c.DB.
func (c *Client) NewDB(options ...skydb.Option) *skydb.DB {
	options = append([]skydb.Option{skydb.WithRevisionCache(c.revisions)}, options...)
	return skydb.New(c.Registry, c.Uploader, c.Downloader, options...)
}

// Close flushes pending notifications.
func (c *Client) Close() error {
	if c.broadcaster == nil {
		return nil
	}
	err := c.broadcaster.Close()
	if errors.Is(err, events.ErrSinkClosed) {
		return nil
	}
	return err
}

// DecodeParameters decodes a loosely typed parameter map, as found in
// configuration files, into out. Values are converted weakly so that
// environment overrides given as strings decode into numbers and bools.
// Keys match option names case-insensitively because environment
// overrides arrive lowercased. Unknown keys are rejected.
func DecodeParameters(params map[string]interface{}, out interface{}) error {
	if len(params) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(params)
}
