// Package srp - SRP-6a client and server over the RFC 5054 3072-bit group
// with SHA-512, as used by HAP pair-setup.
//
// The client private exponent is supplied by the caller instead of being
// generated internally: pair-setup reuses the fresh Ed25519 seed as the SRP
// secret and the peer expects that.
package srp

import (
	"crypto/sha512"
	"errors"
	"math/big"
)

// RFC 5054, appendix A, 3072-bit group
const hexN = "FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E088A67CC74" +
	"020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B302B0A6DF25F1437" +
	"4FE1356D6D51C245E485B576625E7EC6F44C42E9A637ED6B0BFF5CB6F406B7ED" +
	"EE386BFB5A899FA5AE9F24117C4B1FE649286651ECE45B3DC2007CB8A163BF05" +
	"98DA48361C55D39A69163FA8FD24CF5F83655D23DCA3AD961C62F356208552BB" +
	"9ED529077096966D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3B" +
	"E39E772C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718" +
	"3995497CEA956AE515D2261898FA051015728E5A8AAAC42DAD33170D04507A33" +
	"A85521ABDF1CBA64ECFB850458DBEF0A8AEA71575D060C7DB3970F85A6E1E4C7" +
	"ABF5AE8CDB0933D71E8C94E04A25619DCEE3D2261AD2EE6BF12FFA06D98A0864" +
	"D87602733EC86A64521F2B18177B200CBBE117577A615D6C770988C0BAD946E2" +
	"08E24FA074E5AB3143DB5BFCE0FD108E4B82D120A93AD2CAFFFFFFFFFFFFFFFF"

var groupN, groupG *big.Int

func init() {
	groupN, _ = new(big.Int).SetString(hexN, 16)
	groupG = big.NewInt(5)
}

var ErrBadPublicKey = errors.New("srp: bad peer public key")

type Client struct {
	username []byte
	password []byte

	a *big.Int // private exponent
	A *big.Int

	salt []byte
	B    *big.Int

	key []byte // K = H(S)
	m1  []byte
}

// NewClient creates a client session with the caller-supplied private
// exponent bytes.
func NewClient(username, password, secret []byte) *Client {
	c := &Client{
		username: username,
		password: password,
		a:        new(big.Int).SetBytes(secret),
	}
	c.A = new(big.Int).Exp(groupG, c.a, groupN)
	return c
}

// PublicKey returns A.
func (c *Client) PublicKey() []byte {
	return c.A.Bytes()
}

// SetServer consumes the server salt and public key B and derives the
// session key.
func (c *Client) SetServer(salt, serverPublic []byte) error {
	c.salt = salt
	c.B = new(big.Int).SetBytes(serverPublic)

	if new(big.Int).Mod(c.B, groupN).Sign() == 0 {
		return ErrBadPublicKey
	}

	u := hashInt(pad(c.A), pad(c.B))
	if u.Sign() == 0 {
		return ErrBadPublicKey
	}

	x := derivePrivateKey(c.username, c.password, salt)
	k := multiplier()

	// S = (B - k*g^x) ^ (a + u*x) mod N
	base := new(big.Int).Exp(groupG, x, groupN)
	base.Mul(base, k)
	base.Sub(c.B, base)
	base.Mod(base, groupN)

	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, c.a)

	S := new(big.Int).Exp(base, exp, groupN)

	c.key = hashBytes(S.Bytes())
	c.m1 = proofM1(c.username, salt, c.A, c.B, c.key)

	return nil
}

// SessionKey returns K.
func (c *Client) SessionKey() []byte {
	return c.key
}

// Proof returns the client evidence M1.
func (c *Client) Proof() []byte {
	return c.m1
}

// VerifyServerProof checks M2 = H(A | M1 | K).
func (c *Client) VerifyServerProof(m2 []byte) bool {
	if c.key == nil {
		return false
	}
	return equal(m2, proofM2(c.A, c.m1, c.key))
}

// ComputeVerifier returns v = g^x for storing on the server side.
func ComputeVerifier(username, password, salt []byte) []byte {
	x := derivePrivateKey(username, password, salt)
	return new(big.Int).Exp(groupG, x, groupN).Bytes()
}

type Server struct {
	username []byte
	salt     []byte
	v        *big.Int

	b *big.Int
	B *big.Int

	A   *big.Int
	key []byte
	m1  []byte
}

func NewServer(username, salt, verifier, secret []byte) *Server {
	s := &Server{
		username: username,
		salt:     salt,
		v:        new(big.Int).SetBytes(verifier),
		b:        new(big.Int).SetBytes(secret),
	}

	// B = k*v + g^b mod N
	B := new(big.Int).Exp(groupG, s.b, groupN)
	kv := new(big.Int).Mul(multiplier(), s.v)
	B.Add(B, kv)
	B.Mod(B, groupN)
	s.B = B

	return s
}

func (s *Server) PublicKey() []byte {
	return s.B.Bytes()
}

func (s *Server) SetClient(clientPublic []byte) error {
	s.A = new(big.Int).SetBytes(clientPublic)

	if new(big.Int).Mod(s.A, groupN).Sign() == 0 {
		return ErrBadPublicKey
	}

	u := hashInt(pad(s.A), pad(s.B))

	// S = (A * v^u) ^ b mod N
	S := new(big.Int).Exp(s.v, u, groupN)
	S.Mul(S, s.A)
	S.Mod(S, groupN)
	S.Exp(S, s.b, groupN)

	s.key = hashBytes(S.Bytes())
	s.m1 = proofM1(s.username, s.salt, s.A, s.B, s.key)

	return nil
}

func (s *Server) SessionKey() []byte {
	return s.key
}

func (s *Server) VerifyClientProof(m1 []byte) bool {
	if s.key == nil {
		return false
	}
	return equal(m1, s.m1)
}

// Proof returns the server evidence M2.
func (s *Server) Proof() []byte {
	return proofM2(s.A, s.m1, s.key)
}

// derivePrivateKey is the RFC 2945 key derivation:
// x = H(salt | H(username ":" password))
func derivePrivateKey(username, password, salt []byte) *big.Int {
	h := sha512.New()
	h.Write(username)
	h.Write([]byte(":"))
	h.Write(password)
	inner := h.Sum(nil)

	h.Reset()
	h.Write(salt)
	h.Write(inner)
	return new(big.Int).SetBytes(h.Sum(nil))
}

// multiplier is the SRP-6a k = H(N | pad(g))
func multiplier() *big.Int {
	return hashInt(groupN.Bytes(), pad(groupG))
}

// proofM1 = H((H(N) xor H(pad(g))) | H(username) | salt | A | B | K)
func proofM1(username, salt []byte, A, B *big.Int, key []byte) []byte {
	hN := hashBytes(groupN.Bytes())
	hg := hashBytes(pad(groupG))
	for i := range hN {
		hN[i] ^= hg[i]
	}

	h := sha512.New()
	h.Write(hN)
	h.Write(hashBytes(username))
	h.Write(salt)
	h.Write(A.Bytes())
	h.Write(B.Bytes())
	h.Write(key)
	return h.Sum(nil)
}

func proofM2(A *big.Int, m1, key []byte) []byte {
	h := sha512.New()
	h.Write(A.Bytes())
	h.Write(m1)
	h.Write(key)
	return h.Sum(nil)
}

func hashBytes(items ...[]byte) []byte {
	h := sha512.New()
	for _, item := range items {
		h.Write(item)
	}
	return h.Sum(nil)
}

func hashInt(items ...[]byte) *big.Int {
	return new(big.Int).SetBytes(hashBytes(items...))
}

// pad left-pads to the size of N
func pad(i *big.Int) []byte {
	b := i.Bytes()
	if n := len(groupN.Bytes()) - len(b); n > 0 {
		b = append(make([]byte, n), b...)
	}
	return b
}

func equal(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}
