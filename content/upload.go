// Package content uploads and downloads immutable files on a portal. It is
// what SkyDB stores documents with and resolves skylinks through.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/internal/client/transport"
	"github.com/skynetlabs/skynet/internal/dcontext"
	"github.com/skynetlabs/skynet/metrics"
	"github.com/skynetlabs/skynet/registry/api/errcode"
	"github.com/skynetlabs/skynet/skylink"
)

const (
	// DefaultUploadPath is the portal path of single file uploads.
	DefaultUploadPath = "/skynet/skyfile"

	// DefaultFileFieldName is the multipart field that carries the file.
	DefaultFileFieldName = "file"
)

// Executor performs portal requests. *transport.Transport implements it.
type Executor interface {
	Execute(ctx context.Context, req transport.Request, transform transport.ResponseTransform) (*transport.Response, error)
}

// UploaderOptions configures an Uploader.
type UploaderOptions struct {
	EndpointPath  string `mapstructure:"endpointPath"`
	FileFieldName string `mapstructure:"fileFieldName"`
}

// Uploader is a skynet.Uploader that posts single files to a portal.
type Uploader struct {
	exec Executor
	opts UploaderOptions
}

var _ skynet.Uploader = (*Uploader)(nil)

// NewUploader returns an Uploader. Empty options select the defaults.
func NewUploader(exec Executor, opts UploaderOptions) *Uploader {
	if opts.EndpointPath == "" {
		opts.EndpointPath = DefaultUploadPath
	}
	if opts.FileFieldName == "" {
		opts.FileFieldName = DefaultFileFieldName
	}
	return &Uploader{exec: exec, opts: opts}
}

// UploadContent stores data as a file named filename. The returned skylink
// carries the sia:// prefix.
func (u *Uploader) UploadContent(ctx context.Context, data []byte, filename string) (skynet.UploadResult, error) {
	if filename == "" {
		return skynet.UploadResult{}, errcode.ErrorCodeInvalidArgument.WithArgs("filename", "expected a non-empty string")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(u.opts.FileFieldName, filename)
	if err != nil {
		return skynet.UploadResult{}, err
	}
	if _, err := fw.Write(data); err != nil {
		return skynet.UploadResult{}, err
	}
	if err := mw.Close(); err != nil {
		return skynet.UploadResult{}, err
	}

	start := time.Now()
	var result skynet.UploadResult
	_, err = u.exec.Execute(ctx, transport.Request{
		Method:      http.MethodPost,
		Path:        u.opts.EndpointPath,
		Body:        body.Bytes(),
		ContentType: mw.FormDataContentType(),
	}, func(resp *transport.Response) error {
		return json.Unmarshal(resp.Body, &result)
	})
	if err != nil {
		return skynet.UploadResult{}, err
	}

	sl, err := skylink.Parse(result.Skylink)
	if err != nil {
		return skynet.UploadResult{}, fmt.Errorf("portal returned an invalid skylink: %w", err)
	}
	result.Skylink = sl.URI()

	metrics.ContentBytes.WithValues("up").Inc(float64(len(data)))
	dcontext.GetLoggerWithFields(ctx, map[any]any{
		"skylink":  result.Skylink,
		"filename": filename,
		"size":     len(data),
		"duration": time.Since(start),
	}).Debug("uploaded content")
	return result, nil
}
