package domain

import (
	"crypto/sha256"
	"sort"
)

// Palette is the deterministic set of display colors. Twelve entries keeps
// a full 16-member room readable while leaving the derivation stable.
var Palette = []string{
	"#e06c75", "#98c379", "#e5c07b", "#61afef",
	"#c678dd", "#56b6c2", "#d19a66", "#7fbf7f",
	"#ef7fae", "#6fa8dc", "#b5895b", "#8abeb7",
}

// PreferredColorIndex derives a participant's first-choice palette slot
// from its signing public key.
func PreferredColorIndex(signingPub []byte) int {
	sum := sha256.Sum256(signingPub)
	return int(sum[0]) % len(Palette)
}

// AssignColors resolves palette conflicts deterministically. Participants
// are ordered by fingerprint; each takes its preferred slot if free,
// otherwise the next free slot in the preference order (wrapping). With
// more participants than palette entries, slots repeat in the same
// deterministic order.
func AssignColors(signingPubs map[Fingerprint][]byte) map[Fingerprint]string {
	fps := make([]Fingerprint, 0, len(signingPubs))
	for fp := range signingPubs {
		fps = append(fps, fp)
	}
	sort.Slice(fps, func(i, j int) bool { return fps[i] < fps[j] })

	taken := make(map[int]bool, len(fps))
	out := make(map[Fingerprint]string, len(fps))
	for _, fp := range fps {
		idx := PreferredColorIndex(signingPubs[fp])
		if len(taken) < len(Palette) {
			for taken[idx] {
				idx = (idx + 1) % len(Palette)
			}
		}
		taken[idx] = true
		out[fp] = Palette[idx]
	}
	return out
}
