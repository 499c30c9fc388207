// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package optoforce

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var cborEncMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	mode, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("optoforce: cbor options: %v", err))
	}
	return mode
}()

// MarshalReadingCBOR encodes a reading as a CBOR map with integer keys
func MarshalReadingCBOR(r *Reading) ([]byte, error) {
	data, err := cborEncMode.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reading: %w", err)
	}
	return data, nil
}

// UnmarshalReadingCBOR decodes a reading produced by MarshalReadingCBOR
func UnmarshalReadingCBOR(data []byte) (*Reading, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR payload")
	}
	var r Reading
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR: %w", err)
	}
	return &r, nil
}
