package credential

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes credentials and checks them against stored hashes.
type Hasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher hashes with bcrypt. A zero Cost means bcrypt.DefaultCost.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) cost() int {
	if b.Cost == 0 {
		return bcrypt.DefaultCost
	}
	return b.Cost
}

func (b BcryptHasher) Hash(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), b.cost())
	if err != nil {
		return "", fmt.Errorf("hash credential: %w", err)
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

type dummyHash struct {
	once sync.Once
	hash []byte
}

// dummyHashes holds one throwaway hash per cost, built on first use.
var dummyHashes sync.Map

func (b BcryptHasher) dummy() []byte {
	v, _ := dummyHashes.LoadOrStore(b.cost(), &dummyHash{})
	d := v.(*dummyHash)
	d.once.Do(func() {
		d.hash, _ = bcrypt.GenerateFromPassword([]byte("00000000"), b.cost())
	})
	return d.hash
}

// Burn performs one throwaway comparison at the hasher's cost, so an unknown
// email costs the same as a wrong credential.
func (b BcryptHasher) Burn(pw string) {
	_ = bcrypt.CompareHashAndPassword(b.dummy(), []byte(pw))
}
