package crypto

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Domain-separation labels. Every derivation in the protocol goes through
// HKDF-SHA-256 with one of these info strings and an all-zero salt.
const (
	InfoTreeNode = "parrhesia-tree-node"
	InfoTreeRoot = "parrhesia-tree-root"
	InfoKEMWrap  = "parrhesia-kem-v2"
	InfoChain    = "parrhesia-chain-" // ∥ peer id
	InfoMsgKey   = "msg"
	InfoChainKey = "chain"
)

// KeySize is the output length of every symmetric derivation.
const KeySize = 32

var zeroSalt [sha256.Size]byte

// HKDF runs HKDF-SHA-256 extract-and-expand over ikm with a 32-zero-byte
// salt and returns length bytes of output keying material.
func HKDF(ikm []byte, info string, length int) []byte {
	out := make([]byte, length)
	r := hkdf.New(sha256.New, ikm, zeroSalt[:], []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		// Only reachable once more than 255*32 bytes are requested,
		// which no caller does.
		panic(err)
	}
	return out
}
