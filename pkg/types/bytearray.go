package types

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// ByteArray is a byte slice that crosses the ledger boundary as a JSON array
// of numbers. Base64 strings are also accepted on decode since some RPC
// surfaces emit that shape instead.
type ByteArray []byte

func (b ByteArray) MarshalJSON() ([]byte, error) {
	nums := make([]uint16, len(b))
	for i, v := range b {
		nums[i] = uint16(v)
	}
	return json.Marshal(nums)
}

func (b *ByteArray) UnmarshalJSON(data []byte) error {
	var nums []int64
	if err := json.Unmarshal(data, &nums); err == nil {
		out := make([]byte, len(nums))
		for i, n := range nums {
			if n < 0 || n > 255 {
				return fmt.Errorf("byte array: element %d out of range", n)
			}
			out[i] = byte(n)
		}
		*b = out
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("byte array: expected number array or base64 string")
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return fmt.Errorf("byte array: %w", err)
	}
	*b = decoded
	return nil
}
