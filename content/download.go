package content

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"github.com/hashicorp/golang-lru/arc/v2"
	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/internal/client/transport"
	"github.com/skynetlabs/skynet/internal/dcontext"
	"github.com/skynetlabs/skynet/metrics"
	"github.com/skynetlabs/skynet/registry"
	"github.com/skynetlabs/skynet/registry/api/errcode"
	"github.com/skynetlabs/skynet/skylink"
)

const (
	// DefaultCacheSize is the number of files kept by a Downloader when no
	// size is configured.
	DefaultCacheSize = 1000

	// UnlimitedCacheSize disables eviction.
	UnlimitedCacheSize = math.MaxInt

	// ProofHeader carries the registry proof of a v2 skylink download.
	ProofHeader = "Skynet-Proof"

	// SkylinkHeader names the v1 skylink a download was served from.
	SkylinkHeader = "Skynet-Skylink"
)

// DownloaderOptions configures a Downloader.
type DownloaderOptions struct {
	// CacheSize is the number of v1 files kept in memory. Zero selects
	// DefaultCacheSize, a negative value disables the cache.
	CacheSize int `mapstructure:"cacheSize"`
}

// Downloader is a skynet.Downloader. Content behind v1 skylinks never
// changes and is cached; v2 skylinks are always fetched and their registry
// proof is validated.
type Downloader struct {
	exec  Executor
	cache *arc.ARCCache[skylink.Skylink, skynet.Content]
}

var _ skynet.Downloader = (*Downloader)(nil)

// NewDownloader returns a Downloader.
func NewDownloader(exec Executor, opts DownloaderOptions) (*Downloader, error) {
	d := &Downloader{exec: exec}
	size := opts.CacheSize
	if size == 0 {
		size = DefaultCacheSize
	}
	if size > 0 {
		c, err := arc.NewARC[skylink.Skylink, skynet.Content](size)
		if err != nil {
			return nil, err
		}
		d.cache = c
	}
	return d, nil
}

// FetchContent downloads the file behind link.
func (d *Downloader) FetchContent(ctx context.Context, link string) (skynet.Content, error) {
	sl, err := skylink.Parse(link)
	if err != nil {
		return skynet.Content{}, errcode.ErrorCodeInvalidArgument.WithArgs("skylink", err.Error())
	}

	if sl.IsV1() && d.cache != nil {
		if c, ok := d.cache.Get(sl); ok {
			metrics.ContentCacheRequests.WithValues("hit").Inc(1)
			return copyContent(c), nil
		}
		metrics.ContentCacheRequests.WithValues("miss").Inc(1)
	}

	var proofHeader, servedFrom string
	resp, err := d.exec.Execute(ctx, transport.Request{Method: http.MethodGet, Path: "/" + sl.String()}, func(resp *transport.Response) error {
		proofHeader = resp.Header.Get(ProofHeader)
		servedFrom = resp.Header.Get(SkylinkHeader)
		return nil
	})
	if transport.IsNotFound(err) {
		return skynet.Content{}, errcode.ErrorCodeContentUnknown.WithDetail(sl.String())
	}
	if err != nil {
		return skynet.Content{}, err
	}

	resolved := sl
	if sl.IsV2() {
		var proof []registry.ProofEntry
		if err := json.Unmarshal([]byte(proofHeader), &proof); err != nil {
			return skynet.Content{}, errcode.ErrorCodeProofInvalid.WithArgs(fmt.Sprintf("decoding %s header: %v", ProofHeader, err))
		}
		res, err := registry.ValidateProof(proof, registry.ProofOptions{AnchorLink: sl.String(), ExpectedContentID: servedFrom})
		if err != nil {
			return skynet.Content{}, err
		}
		if resolved, err = skylink.Parse(res.ContentID); err != nil {
			return skynet.Content{}, err
		}
	}

	c := skynet.Content{
		Data:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Skylink:     resolved.String(),
	}
	metrics.ContentBytes.WithValues("down").Inc(float64(len(c.Data)))
	if d.cache != nil && resolved.IsV1() {
		d.cache.Add(resolved, copyContent(c))
	}
	dcontext.GetLoggerWithField(ctx, "skylink", sl.String()).Debugf("downloaded %d bytes", len(c.Data))
	return c, nil
}

// Purge drops all cached content.
func (d *Downloader) Purge() {
	if d.cache != nil {
		d.cache.Purge()
	}
}

func copyContent(c skynet.Content) skynet.Content {
	c.Data = append([]byte(nil), c.Data...)
	return c
}
