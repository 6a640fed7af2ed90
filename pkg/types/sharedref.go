package types

import "github.com/Talus-Network/nexus-sdk-sub002/pkg/chain"

// SharedObjectRef names a shared object along with the reference mode a call
// wants over it.
type SharedObjectRef struct {
	ID     chain.ObjectID `json:"id"`
	RefMut bool           `json:"ref_mut"`
}

// ImmSharedRef builds an immutable shared reference.
func ImmSharedRef(id chain.ObjectID) SharedObjectRef {
	return SharedObjectRef{ID: id}
}

// MutSharedRef builds a mutable shared reference.
func MutSharedRef(id chain.ObjectID) SharedObjectRef {
	return SharedObjectRef{ID: id, RefMut: true}
}
