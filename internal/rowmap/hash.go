package rowmap

import (
	"fmt"

	"github.com/zeebo/xxh3"
)

// DomainRow separates row identity hashes from any other digest.
// The version suffix allows the tuple encoding to change later.
const DomainRow = "sheetsync/row/v1"

// HashColumn is the reserved trailing sheet column holding row hashes.
const HashColumn = "_record_hash"

// hashWithDomain computes xxh3-64(domain + 0x00 + data) as 16 hex digits.
func hashWithDomain(domain string, data []byte) string {
	h := xxh3.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

// HashTuple returns the identity hash of an identifier tuple.
func HashTuple(tuple []any) (string, error) {
	data, err := marshalCanonical(tuple)
	if err != nil {
		return "", fmt.Errorf("encode identifier tuple: %w", err)
	}
	return hashWithDomain(DomainRow, data), nil
}
