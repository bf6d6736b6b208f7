package security

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const MinCost = bcrypt.DefaultCost

// bcrypt only looks at the first 72 bytes, so longer inputs are rejected.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

type Hasher struct {
	cost int

	dummyOnce sync.Once
	dummy     []byte
}

// NewHasher clamps cost into [MinCost, bcrypt.MaxCost].
func NewHasher(cost int) *Hasher {
	if cost < MinCost {
		cost = MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}

	return &Hasher{cost: cost}
}

func (h *Hasher) Cost() int {
	return h.cost
}

// Hash salts and hashes a plain text password with bcrypt.
func (h *Hasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)

	if err != nil {
		return "", err
	}

	return string(hash), nil
}

// Check compares a bcrypt hash with a plaintext password.
// Malformed hashes simply do not match.
func (h *Hasher) Check(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// CheckDummy burns the same time as a real comparison. Used when there is no
// stored hash to compare against.
func (h *Hasher) CheckDummy(plain string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("taskhub-dummy-password"), h.cost)
	})

	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
}
