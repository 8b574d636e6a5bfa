package errcode

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
)

var (
	errorCodeToDescriptors = map[ErrorCode]ErrorDescriptor{}
	idToDescriptors        = map[string]ErrorDescriptor{}
	groupToDescriptors     = map[string][]ErrorDescriptor{}
)

var (
	// ErrorCodeUnknown is a generic error that can be used as a last
	// resort if there is no situation-specific error message that can be used
	ErrorCodeUnknown = register("errcode", ErrorDescriptor{
		Value:   "UNKNOWN",
		Message: "unknown error",
		Description: `Generic error returned when the error does not have an
			                                            API classification.`,
		HTTPStatusCode: http.StatusInternalServerError,
	})

	// ErrorCodeUnsupported is returned when an operation is not supported.
	ErrorCodeUnsupported = register("errcode", ErrorDescriptor{
		Value:   "UNSUPPORTED",
		Message: "The operation is unsupported.",
		Description: `The operation was unsupported due to a missing
		implementation or invalid set of parameters.`,
		HTTPStatusCode: http.StatusMethodNotAllowed,
	})

	// ErrorCodeUnauthorized is returned if a request requires
	// authentication.
	ErrorCodeUnauthorized = register("errcode", ErrorDescriptor{
		Value:   "UNAUTHORIZED",
		Message: "authentication required",
		Description: `The access controller was unable to authenticate
		the client. Often this will be accompanied by a
		Www-Authenticate HTTP response header indicating how to
		authenticate.`,
		HTTPStatusCode: http.StatusUnauthorized,
	})

	// ErrorCodeDenied is returned if a client does not have sufficient
	// permission to perform an action.
	ErrorCodeDenied = register("errcode", ErrorDescriptor{
		Value:   "DENIED",
		Message: "requested access to the resource is denied",
		Description: `The access controller denied access for the
		operation on a resource.`,
		HTTPStatusCode: http.StatusForbidden,
	})

	// ErrorCodeUnavailable provides a common error to report unavailability
	// of a service or endpoint.
	ErrorCodeUnavailable = register("errcode", ErrorDescriptor{
		Value:          "UNAVAILABLE",
		Message:        "service unavailable",
		Description:    "Returned when a service is not available",
		HTTPStatusCode: http.StatusServiceUnavailable,
	})

	// ErrorCodeTooManyRequests is returned if a client attempts too many
	// times to contact a service endpoint.
	ErrorCodeTooManyRequests = register("errcode", ErrorDescriptor{
		Value:   "TOOMANYREQUESTS",
		Message: "too many requests",
		Description: `Returned when a client attempts to contact a
		service too many times`,
		HTTPStatusCode: http.StatusTooManyRequests,
	})
)

const errGroup = "skynet.registry"

var (
	// ErrorCodeInvalidArgument is returned when a caller supplied value fails
	// local validation. It is formatted with the offending field and the
	// constraint that was violated.
	ErrorCodeInvalidArgument = register(errGroup, ErrorDescriptor{
		Value:   "INVALID_ARGUMENT",
		Message: "invalid %s: %s",
		Description: `Returned before any network request when a key, data
		key, revision or payload does not satisfy its documented format.`,
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeEntryCorrupted is returned when a registry entry read from
	// the network fails signature verification.
	ErrorCodeEntryCorrupted = register(errGroup, ErrorDescriptor{
		Value:   "ENTRY_CORRUPTED",
		Message: "could not verify signature from retrieved, signed registry entry -- possible corrupted entry",
		Description: `The portal returned an entry whose signature does not
		match the owner public key. The data cannot be trusted and the read
		is not retried.`,
		HTTPStatusCode: http.StatusBadGateway,
	})

	// ErrorCodeProofInvalid is returned when a registry proof chain does not
	// link, verify or resolve to the expected content.
	ErrorCodeProofInvalid = register(errGroup, ErrorDescriptor{
		Value:   "PROOF_INVALID",
		Message: "could not verify registry proof: %s",
		Description: `Returned when a resolver proof is empty, contains an
		unsupported entry type, has a bad signature, a broken link, or ends at
		a different content identifier than expected.`,
		HTTPStatusCode: http.StatusBadGateway,
	})

	// ErrorCodeMaxRevision is returned when an entry already carries the
	// largest representable revision number and can never be updated.
	ErrorCodeMaxRevision = register(errGroup, ErrorDescriptor{
		Value:   "MAX_REVISION",
		Message: "current entry already has maximum allowed revision, could not update the entry",
		Description: `The revision number of an entry is a uint64. Once it
		reaches the maximum value no further write is possible.`,
		HTTPStatusCode: http.StatusConflict,
	})

	// ErrorCodeRevisionTooLow is returned by a portal when a write does not
	// increase the stored revision.
	ErrorCodeRevisionTooLow = register(errGroup, ErrorDescriptor{
		Value:   "REVISION_TOO_LOW",
		Message: "provided revision number is invalid: must be greater than %d",
		Description: `Returned by the registry when a signed entry presents a
		revision lower than or equal to the stored one.`,
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeDeletionEntryData is returned when the deletion sentinel is
	// written through a setter that has not opted in to it.
	ErrorCodeDeletionEntryData = register(errGroup, ErrorDescriptor{
		Value:   "DELETION_ENTRY_DATA",
		Message: "tried to set entry data that is the deletion sentinel, use DeleteEntryData instead",
		Description: `Guards against accidental deletion by writing the
		reserved all-zero payload through SetEntryData.`,
		HTTPStatusCode: http.StatusBadRequest,
	})

	// ErrorCodeEntryTooLarge is returned when entry data exceeds the
	// maximum size accepted by the registry.
	ErrorCodeEntryTooLarge = register(errGroup, ErrorDescriptor{
		Value:          "ENTRY_TOO_LARGE",
		Message:        "entry data of %d bytes exceeds the maximum of %d bytes",
		Description:    `Checked locally before any network request.`,
		HTTPStatusCode: http.StatusRequestEntityTooLarge,
	})

	// ErrorCodeEntryUnknown is returned by a portal when no entry exists for
	// the requested identity.
	ErrorCodeEntryUnknown = register(errGroup, ErrorDescriptor{
		Value:          "ENTRY_UNKNOWN",
		Message:        "registry entry not found",
		Description:    `Not an error for readers: clients map it to an empty result.`,
		HTTPStatusCode: http.StatusNotFound,
	})

	// ErrorCodeContentUnknown is returned by a portal when a skylink does
	// not resolve to any stored content.
	ErrorCodeContentUnknown = register(errGroup, ErrorDescriptor{
		Value:          "CONTENT_UNKNOWN",
		Message:        "skylink not found",
		Description:    `The skylink is well formed but no content is stored behind it.`,
		HTTPStatusCode: http.StatusNotFound,
	})
)

var (
	nextCode     = 1000
	registerLock sync.Mutex
)

// Register will make the passed-in error known to the environment and
// return a new ErrorCode
func Register(group string, descriptor ErrorDescriptor) ErrorCode {
	return register(group, descriptor)
}

// register will make the passed-in error known to the environment and
// return a new ErrorCode
func register(group string, descriptor ErrorDescriptor) ErrorCode {
	registerLock.Lock()
	defer registerLock.Unlock()

	descriptor.Code = ErrorCode(nextCode)

	if _, ok := idToDescriptors[descriptor.Value]; ok {
		panic(fmt.Sprintf("ErrorValue %q is already registered", descriptor.Value))
	}
	if _, ok := errorCodeToDescriptors[descriptor.Code]; ok {
		panic(fmt.Sprintf("ErrorCode %v is already registered", descriptor.Code))
	}

	groupToDescriptors[group] = append(groupToDescriptors[group], descriptor)
	errorCodeToDescriptors[descriptor.Code] = descriptor
	idToDescriptors[descriptor.Value] = descriptor

	nextCode++
	return descriptor.Code
}

type byValue []ErrorDescriptor

func (a byValue) Len() int           { return len(a) }
func (a byValue) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a byValue) Less(i, j int) bool { return a[i].Value < a[j].Value }

// GetGroupNames returns the list of Error group names that are registered
func GetGroupNames() []string {
	keys := []string{}

	for k := range groupToDescriptors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// GetErrorCodeGroup returns the named group of error descriptors
func GetErrorCodeGroup(name string) []ErrorDescriptor {
	desc := groupToDescriptors[name]
	sort.Sort(byValue(desc))
	return desc
}

// GetErrorAllDescriptors returns a slice of all ErrorDescriptors that are
// registered, irrespective of what group they're in
func GetErrorAllDescriptors() []ErrorDescriptor {
	result := []ErrorDescriptor{}

	for _, group := range GetGroupNames() {
		result = append(result, GetErrorCodeGroup(group)...)
	}
	sort.Sort(byValue(result))
	return result
}
