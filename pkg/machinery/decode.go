package machinery

import (
	"encoding/json"
	"fmt"
	"os"
)

// DecodeArgs splits a payload into exactly n raw positional arguments.
func DecodeArgs(payload string, n int) ([]json.RawMessage, error) {
	var args []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &args); err != nil {
		return nil, fmt.Errorf("decode arguments: %w", err)
	}
	if len(args) != n {
		return nil, fmt.Errorf("decode arguments: expected %d, got %d", n, len(args))
	}
	return args, nil
}

// DecodeArg decodes the i-th argument into dst.
func DecodeArg(args []json.RawMessage, i int, dst any) error {
	if i < 0 || i >= len(args) {
		return fmt.Errorf("decode argument %d: out of range", i)
	}
	if err := json.Unmarshal(args[i], dst); err != nil {
		return fmt.Errorf("decode argument %d: %w", i, err)
	}
	return nil
}

// ReadClientSource returns the generated client module at path.
func ReadClientSource(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read client source: %w", err)
	}
	return string(b), nil
}
