// Package adaptive provides adaptive encryption for stashkv.
//
// Supported Algorithms:
//
//   - AES-256-GCM: preferred when the platform accelerates AES
//   - ChaCha20-Poly1305: fallback for other platforms
//   - XChaCha20-Poly1305: extended nonce, opt-in through configuration
//
// Every cipher takes a 32-byte key, typically produced by DeriveKey
// (PBKDF2-HMAC-SHA256) or DeriveKeyWith(KDFArgon2id, ...). Ciphertexts
// carry their random nonce as a prefix.
//
// Usage:
//
//	key, err := adaptive.DeriveKey(password, salt, 0)
//	c, err := adaptive.New(key)
//	sealed, err := c.Encrypt(plaintext, aad)
//	plaintext, err := c.Decrypt(sealed, aad)
package adaptive
