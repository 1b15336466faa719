package utils

import (
	"encoding/hex"
	"fmt"
	"strings"
)

var (
	NullEthereumAddress    = "0000000000000000000000000000000000000000"
	NullEthereumAddressHex = fmt.Sprintf("0x%s", NullEthereumAddress)
)

func AreAddressesEqual(a, b string) bool {
	return strings.EqualFold(a, b)
}

func IsNullAddress(a string) bool {
	return AreAddressesEqual(a, NullEthereumAddressHex)
}

func ConvertBytesToString(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// LowercaseAll lowercases every string, typically addresses or hashes.
func LowercaseAll(values []string) []string {
	lowered := make([]string, 0, len(values))
	for _, v := range values {
		lowered = append(lowered, strings.ToLower(v))
	}
	return lowered
}
