package skydb

import (
	"github.com/skynetlabs/skynet"
)

// EntryOptions configures the registry side of SkyDB operations.
type EntryOptions struct {
	// HashedDataKeyHex indicates the data key is already hashed and hex
	// encoded.
	HashedDataKeyHex bool `mapstructure:"hashedDataKeyHex"`

	// EndpointGetEntry and EndpointSetEntry override the registry path.
	EndpointGetEntry string `mapstructure:"endpointGetEntry"`
	EndpointSetEntry string `mapstructure:"endpointSetEntry"`

	// Timeout is the registry lookup timeout in seconds.
	Timeout int `mapstructure:"timeout"`
}

// GetJSONOptions configures GetJSON.
type GetJSONOptions struct {
	EntryOptions `mapstructure:",squash"`

	// CachedDataLink is the data link the caller already holds. When the
	// entry still points at it the content is not downloaded again.
	CachedDataLink string `mapstructure:"cachedDataLink"`
}

// SetEntryDataOptions configures SetEntryData.
type SetEntryDataOptions struct {
	EntryOptions `mapstructure:",squash"`

	// AllowDeletionEntryData permits writing the deletion sentinel.
	AllowDeletionEntryData bool `mapstructure:"allowDeletionEntryData"`
}

// getEntryOptions addresses an already hashed data key.
func (o EntryOptions) getEntryOptions() skynet.GetEntryOptions {
	return skynet.GetEntryOptions{
		EndpointPath:     o.EndpointGetEntry,
		HashedDataKeyHex: true,
		Timeout:          o.Timeout,
	}
}

// setEntryOptions addresses an already hashed data key.
func (o EntryOptions) setEntryOptions() skynet.SetEntryOptions {
	return skynet.SetEntryOptions{
		EndpointPath:     o.EndpointSetEntry,
		HashedDataKeyHex: true,
	}
}
