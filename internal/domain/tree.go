package domain

// CommitPathEntry rotates one node on the committer's direct path.
//
// KEMCiphertext encapsulates to the copath sibling's effective public key
// and AEADCiphertext carries the node secret sealed under the wrapped
// shared secret. Both are empty when the copath side has no effective key;
// those recipients are reached with a targeted Welcome instead.
type CommitPathEntry struct {
	NodeIndex      int    `json:"node_index"`
	NewPublicKey   []byte `json:"new_pk"`
	KEMCiphertext  []byte `json:"kem_ct,omitempty"`
	AEADCiphertext []byte `json:"aead_ct,omitempty"`
}

// Commit rotates the committer's leaf and direct path, advancing the
// group to the embedded epoch.
type Commit struct {
	CommitterLeafPos int               `json:"committer_leaf_pos"`
	NewLeafPublicKey []byte            `json:"new_leaf_pk"`
	Path             []CommitPathEntry `json:"path"`
	Epoch            uint64            `json:"epoch"`
}

// WelcomePathSecret delivers one path-node secret directly to the
// welcome target's KEM public key.
type WelcomePathSecret struct {
	NodeIndex      int    `json:"node_index"`
	KEMCiphertext  []byte `json:"kem_ct"`
	AEADCiphertext []byte `json:"aead_ct"`
}

// Welcome initialises a member's view of the tree at a specific epoch.
// TreePublicKeys holds one entry per node index; blank nodes are null.
type Welcome struct {
	TreePublicKeys [][]byte            `json:"tree_public_keys"`
	NumLeaves      int                 `json:"num_leaves"`
	MyLeafPos      int                 `json:"my_leaf_pos"`
	PathSecrets    []WelcomePathSecret `json:"path_secrets"`
	Epoch          uint64              `json:"epoch"`
}
