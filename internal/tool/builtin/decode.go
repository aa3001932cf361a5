package builtin

import (
	"encoding/json"

	naviErrors "github.com/harunnryd/navi/internal/errors"
)

func decode(input json.RawMessage, dst interface{}) error {
	if len(input) == 0 {
		return nil
	}
	if err := json.Unmarshal(input, dst); err != nil {
		return naviErrors.WrapWithCategory(err, "decode tool arguments", naviErrors.ErrInvalidInput)
	}
	return nil
}

// number is an integer argument. Models often send 3.0 for 3.
type number int

func (n *number) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*n = number(f)
	return nil
}
