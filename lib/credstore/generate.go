// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credstore

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// GenerateSecret draws length characters uniformly from alphabet using
// crypto/rand. The alphabet is treated as runes and must have at least
// two distinct positions.
func GenerateSecret(alphabet string, length int) (string, error) {
	symbols := []rune(alphabet)
	if len(symbols) < 2 {
		return "", fmt.Errorf("credstore: alphabet needs at least two characters")
	}
	if length < 1 {
		return "", fmt.Errorf("credstore: secret length must be positive, got %d", length)
	}

	limit := big.NewInt(int64(len(symbols)))
	result := make([]rune, length)
	for i := range result {
		index, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("credstore: reading randomness: %w", err)
		}
		result[i] = symbols[index.Int64()]
	}
	return string(result), nil
}
