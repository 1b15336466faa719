package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Helpers(t *testing.T) {
	t.Run("Should compare addresses case-insensitively", func(t *testing.T) {
		assert.True(t, AreAddressesEqual("0xABCdef", "0xabcDEF"))
		assert.False(t, AreAddressesEqual("0xabc", "0xabd"))
	})
	t.Run("Should detect the null address", func(t *testing.T) {
		assert.True(t, IsNullAddress("0x0000000000000000000000000000000000000000"))
		assert.False(t, IsNullAddress("0x0000000000000000000000000000000000000001"))
	})
	t.Run("Should hex encode bytes", func(t *testing.T) {
		assert.Equal(t, "0x01ff", ConvertBytesToString([]byte{1, 255}))
	})
	t.Run("Should lowercase a list", func(t *testing.T) {
		assert.Equal(t, []string{"0xab", "0xcd"}, LowercaseAll([]string{"0xAB", "0xcD"}))
		assert.Equal(t, []string{}, LowercaseAll(nil))
	})
}
