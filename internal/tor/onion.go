package tor

import (
	"encoding/base32"
	"strings"

	"golang.org/x/crypto/sha3"
)

const (
	onionSuffix   = ".onion"
	onionV3Length = 56
	onionV2Length = 16
	onionVersion  = 0x03
)

// checksumPrefix salts the v3 address checksum (rend-spec-v3).
var checksumPrefix = []byte(".onion checksum")

// IsOnionHost reports whether host is in the .onion domain.
func IsOnionHost(host string) bool {
	return strings.HasSuffix(strings.ToLower(strings.TrimSuffix(host, ".")), onionSuffix)
}

// ValidateOnionHost checks that host is a well-formed v3 onion address.
// Subdomains of an onion address are accepted.
func ValidateOnionHost(host string) error {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	label := strings.TrimSuffix(host, onionSuffix)
	if i := strings.LastIndexByte(label, '.'); i >= 0 {
		label = label[i+1:]
	}

	switch len(label) {
	case onionV3Length:
	case onionV2Length:
		return ErrV2AddressDeprecated
	default:
		return ErrInvalidOnionAddress
	}

	decoded, err := base32.StdEncoding.DecodeString(strings.ToUpper(label))
	if err != nil || len(decoded) != 35 {
		return ErrInvalidOnionAddress
	}
	pubkey, checksum, version := decoded[:32], decoded[32:34], decoded[34]
	if version != onionVersion {
		return ErrInvalidOnionAddress
	}
	want := onionChecksum(pubkey, version)
	if checksum[0] != want[0] || checksum[1] != want[1] {
		return ErrInvalidOnionAddress
	}
	return nil
}

// onionChecksum is the first two bytes of
// SHA3-256(".onion checksum" || pubkey || version).
func onionChecksum(pubkey []byte, version byte) []byte {
	data := make([]byte, 0, len(checksumPrefix)+len(pubkey)+1)
	data = append(data, checksumPrefix...)
	data = append(data, pubkey...)
	data = append(data, version)
	sum := sha3.Sum256(data)
	return sum[:2]
}
