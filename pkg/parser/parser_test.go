package parser

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Parser(t *testing.T) {
	t.Run("Should return logs sorted by index regardless of insertion order", func(t *testing.T) {
		tx := NewTransaction()
		tx.Logs.Set(5, &EncodedLog{LogIndex: 5})
		tx.Logs.Set(1, &DecodedLog{LogIndex: 1})
		tx.Logs.Set(3, &EncodedLog{LogIndex: 3})

		logs := tx.SortedLogs()
		assert.Len(t, logs, 3)
		assert.Equal(t, uint64(1), logs[0].GetLogIndex())
		assert.True(t, logs[0].IsDecoded())
		assert.Equal(t, uint64(5), logs[2].GetLogIndex())
	})
	t.Run("Should read typed arguments", func(t *testing.T) {
		lg := &DecodedLog{
			LogIndex:  2,
			EventName: "Transfer",
			Arguments: []Argument{
				{Name: "from", Type: "address", Value: "0xAAAA", Indexed: true},
				{Name: "value", Type: "uint256", Value: big.NewInt(100)},
				{Name: "small", Type: "uint8", Value: uint8(7)},
				{Name: "memo", Type: "string", Value: "123"},
			},
		}
		from, err := lg.GetAddressArgument("from")
		assert.Nil(t, err)
		assert.Equal(t, "0xaaaa", from)

		v, err := lg.GetBigInt("value")
		assert.Nil(t, err)
		assert.Equal(t, "100", v.String())

		small, err := lg.GetBigInt("small")
		assert.Nil(t, err)
		assert.Equal(t, int64(7), small.Int64())

		_, err = lg.GetBigInt("missing")
		assert.NotNil(t, err)
		_, err = lg.GetBigInt("from")
		assert.NotNil(t, err)
		_, err = lg.GetBigInt("memo")
		assert.NotNil(t, err)
	})
	t.Run("Should not alias big.Int arguments", func(t *testing.T) {
		orig := big.NewInt(10)
		v, ok := ToBigInt(orig)
		assert.True(t, ok)
		v.Add(v, big.NewInt(1))
		assert.Equal(t, int64(10), orig.Int64())
	})
}
