package crypto

import "parrhesia/internal/domain"

// Fingerprint returns the identity fingerprint of a signing public key.
//
// The fingerprint is the base64 of the raw key; it doubles as the TOFU
// lookup key and as the tie-breaker for rekey-initiator election.
func Fingerprint(signingPub []byte) domain.Fingerprint {
	return domain.Fingerprint(B64(signingPub))
}
