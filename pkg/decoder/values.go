package decoder

import (
	"math/big"
	"reflect"
	"strings"

	"github.com/Layr-Labs/sidecar-events/pkg/parser"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// normalizeValue converts abi-decoded values into the forms transformers
// expect: lowercase hex strings for addresses, hashes and bytes, and
// *big.Int for every integer width.
func normalizeValue(v interface{}) interface{} {
	switch value := v.(type) {
	case nil:
		return nil
	case common.Address:
		return strings.ToLower(value.Hex())
	case *common.Address:
		if value == nil {
			return nil
		}
		return strings.ToLower(value.Hex())
	case common.Hash:
		return value.Hex()
	case []common.Address:
		out := make([]string, 0, len(value))
		for _, a := range value {
			out = append(out, strings.ToLower(a.Hex()))
		}
		return out
	case []byte:
		return hexutil.Encode(value)
	case *big.Int, bool, string:
		return value
	}

	if b, ok := parser.ToBigInt(v); ok {
		return b
	}

	// fixed size byte arrays (bytesN)
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		buf := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(buf), rv)
		return hexutil.Encode(buf)
	}
	return v
}
