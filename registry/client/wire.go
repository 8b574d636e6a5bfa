package client

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"

	"github.com/skynetlabs/skynet/registry/api/errcode"
)

// EntryResponse is the body of a successful registry lookup.
type EntryResponse struct {
	Data      string      `json:"data"`
	Revision  json.Number `json:"revision"`
	Signature string      `json:"signature"`
}

// PostEntryRequest is the body of a registry write.
type PostEntryRequest struct {
	PublicKey PublicKey `json:"publickey"`
	DataKey   string    `json:"datakey"`
	Revision  uint64    `json:"revision"`
	Data      ByteArray `json:"data"`
	Signature ByteArray `json:"signature"`
}

// PublicKey is the wire form of an owner key.
type PublicKey struct {
	Algorithm string    `json:"algorithm"`
	Key       ByteArray `json:"key"`
}

// ByteArray is a byte slice that encodes as a JSON array of numbers rather
// than base64.
type ByteArray []byte

// MarshalJSON implements json.Marshaler.
func (b ByteArray) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, 2+4*len(b))
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return err
	}
	out := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte array element %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	*b = out
	return nil
}

var maxRevision = new(big.Int).SetUint64(^uint64(0))

// ParseRevision parses a decimal revision without going through a float,
// rejecting negative values and values beyond 64 bits.
func ParseRevision(n json.Number) (uint64, error) {
	v, ok := new(big.Int).SetString(n.String(), 10)
	if !ok {
		return 0, errcode.ErrorCodeInvalidArgument.WithArgs("revision", fmt.Sprintf("expected an integer, got %q", n.String()))
	}
	if v.Sign() < 0 || v.Cmp(maxRevision) > 0 {
		return 0, errcode.ErrorCodeInvalidArgument.WithArgs("revision", fmt.Sprintf("expected a value between 0 and %s, got %s", maxRevision, v))
	}
	return v.Uint64(), nil
}
