package auth

import "math/rand"

// Demo key-exchange parameters, displayed to clients next to each user.
// The values are cosmetic: nothing is ever encrypted with them, they exist
// so the UI can walk through the exchange arithmetic.
const (
	DemoPrime = 47
	DemoBase  = 3
	DemoSeed  = 5
)

// NewKeyPair derives the display keypair assigned once at user creation.
// The private key is uniform in [2,15] and the public key is
// (base^priv mod p * seed) mod p.
func NewKeyPair() (privateKey, publicKey int64) {
	privateKey = int64(2 + rand.Intn(14))
	publicKey = (powMod(DemoBase, privateKey, DemoPrime) * DemoSeed) % DemoPrime
	return privateKey, publicKey
}

// powMod computes base^exp mod m by square-and-multiply. Inputs are tiny but
// the intermediate products still must not overflow.
func powMod(base, exp, m int64) int64 {
	result := int64(1)
	base = base % m
	for exp > 0 {
		if exp&1 == 1 {
			result = (result * base) % m
		}
		exp >>= 1
		base = (base * base) % m
	}
	return result
}
