package storage

import (
	"bytes"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ContentHash computes the canonical content hash for a payload: a CIDv1 with
// the raw codec over a sha2-256 multihash, rendered in its default base32
// string form. The hash is computed before the storage write and recorded for
// idempotency and tamper detection.
func ContentHash(data []byte) (string, error) {
	hash, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("failed to compute multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, hash).String(), nil
}

// VerifyContent checks a payload against a previously recorded content hash.
// The hash is parsed so the check recomputes with whatever multihash function
// the recorded value used.
func VerifyContent(contentHash string, data []byte) error {
	id, err := cid.Decode(contentHash)
	if err != nil {
		return fmt.Errorf("invalid content hash %q: %w", contentHash, err)
	}

	prefix := id.Prefix()
	hash, err := multihash.Sum(data, prefix.MhType, prefix.MhLength)
	if err != nil {
		return fmt.Errorf("failed to compute multihash for verification: %w", err)
	}

	if !bytes.Equal(id.Hash(), hash) {
		return fmt.Errorf("content hash mismatch for %q", contentHash)
	}

	return nil
}
