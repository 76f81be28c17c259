// Package codec wraps the CBOR configuration used everywhere a payload
// is serialized: snapshot blobs and websocket boundary frames. Consumers
// import only this package, not the cbor library directly.
package codec

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding: sorted map keys, smallest
// integer encoding. The same logical data always produces the same bytes,
// which keeps snapshot blobs reproducible.
var encMode cbor.EncMode

// decMode accepts standard CBOR. Unknown fields are ignored for forward
// compatibility.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Payload maps are always string-keyed. Decoding into any-typed
		// targets must yield map[string]any, not the CBOR default
		// map[interface{}]interface{}, so decoded values are usable by
		// the transfer registry and by encoding/json.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to deterministic CBOR.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}
