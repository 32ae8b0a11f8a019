package config

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/spacemeshos/vdfcache/common/types"
)

var (
	bigIntType    = reflect.TypeOf(big.Int{})
	bigIntPtrType = reflect.TypeOf(&big.Int{})
)

// BigIntDecodeFunc decodes decimal or 0x-prefixed strings and plain integers into
// *big.Int. Values too large for the config format's integers must be strings.
func BigIntDecodeFunc() mapstructure.DecodeHookFuncType {
	return func(f, t reflect.Type, data any) (any, error) {
		if t != bigIntType && t != bigIntPtrType {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			n, err := types.ParseInt(v)
			if err != nil {
				return nil, fmt.Errorf("parse big integer: %w", err)
			}
			return n, nil
		case int:
			return big.NewInt(int64(v)), nil
		case int64:
			return big.NewInt(v), nil
		case uint64:
			return new(big.Int).SetUint64(v), nil
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("parse big integer: %v is not an integer", v)
			}
			return big.NewInt(int64(v)), nil
		}
		return data, nil
	}
}
