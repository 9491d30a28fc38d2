package schema

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/armtemiy/armlab/pkg/domain"
)

// Digest is the hex sha256 of the tree's canonical wire form. Two trees with
// the same digest present the same questions and results.
func Digest(tree *domain.Tree) (string, error) {
	data, err := Encode(tree)
	if err != nil {
		return "", &ValidationError{Key: "nodes", Reason: err.Error()}
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
