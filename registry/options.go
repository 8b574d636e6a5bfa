package registry

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/skynetlabs/skynet"
	"github.com/skynetlabs/skynet/registry/api/errcode"
)

// DecodeOptions decodes an option map into out, which must be a pointer to
// an options struct. Keys must match the declared option names exactly;
// any other key is rejected.
func DecodeOptions(in map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		MatchName:        func(key, field string) bool { return key == field },
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(in); err != nil {
		return errcode.ErrorCodeInvalidArgument.WithArgs("options", err.Error())
	}
	return nil
}

// GetEntryOptionsWithDefaults fills in defaults and validates the timeout.
func GetEntryOptionsWithDefaults(opts skynet.GetEntryOptions) (skynet.GetEntryOptions, error) {
	if opts.EndpointPath == "" {
		opts.EndpointPath = skynet.DefaultRegistryEndpointPath
	}
	if opts.Timeout == 0 {
		opts.Timeout = skynet.DefaultGetEntryTimeout
	}
	if opts.Timeout < 1 || opts.Timeout > skynet.MaxGetEntryTimeout {
		return opts, errcode.ErrorCodeInvalidArgument.WithArgs("timeout", fmt.Sprintf("expected an integer between 1 and %d, got %d", skynet.MaxGetEntryTimeout, opts.Timeout))
	}
	return opts, nil
}

// SetEntryOptionsWithDefaults fills in defaults.
func SetEntryOptionsWithDefaults(opts skynet.SetEntryOptions) skynet.SetEntryOptions {
	if opts.EndpointPath == "" {
		opts.EndpointPath = skynet.DefaultRegistryEndpointPath
	}
	return opts
}
