package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const hashHexLength = 64

// ParseHash decodes a 32-byte hash given as hex, with or without a 0x prefix.
func ParseHash(ref string) ([]byte, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return nil, fmt.Errorf("types: hash required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != hashHexLength {
		return nil, fmt.Errorf("types: hash must be 32 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("types: decode hash: %w", err)
	}
	return decoded, nil
}
