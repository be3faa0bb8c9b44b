package repository

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Badger values are deterministic CBOR. Times keep nanoseconds so ordering
// and read receipts survive a round trip.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano

	var err error
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("repository: cbor encoder: %v", err))
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("repository: cbor decoder: %v", err))
	}
}

func marshal(v interface{}) ([]byte, error) {
	return encMode.Marshal(v)
}

func unmarshal(data []byte, v interface{}) error {
	return decMode.Unmarshal(data, v)
}
