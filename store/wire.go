package store

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// cborEncMode holds CBOR encoding options with canonical mode for
// deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalRecord serializes a Record to CBOR bytes.
func MarshalRecord(r *Record) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalRecord deserializes a Record from CBOR bytes.
func UnmarshalRecord(data []byte) (*Record, error) {
	var r Record
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("store: unmarshal record: %w", err)
	}
	return &r, nil
}
