// Package vault encrypts exchange credentials at rest.
//
// Tokens have the form iv:authTag:ciphertext, each part hex encoded. The data
// key and the fingerprint key are both derived with PBKDF2-SHA256 from the
// process secret and salt.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"exchangelink/internal/errs"
	"exchangelink/models"
)

const (
	keySize   = 32
	ivSize    = 16
	tagSize   = 16
	separator = ":"

	DefaultIterations = 100000
)

type Vault struct {
	aead   cipher.AEAD
	macKey []byte
}

// New derives the vault keys. An empty secret or salt is a deployment error
// and is rejected.
func New(secret, salt string, iterations int) (*Vault, error) {
	if secret == "" {
		return nil, fmt.Errorf("vault secret is not configured")
	}
	if salt == "" {
		return nil, fmt.Errorf("vault salt is not configured")
	}
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	material := pbkdf2.Key([]byte(secret), []byte(salt), iterations, 2*keySize, sha256.New)

	block, err := aes.NewCipher(material[:keySize])
	if err != nil {
		return nil, fmt.Errorf("cipher creation failed: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("GCM creation failed: %w", err)
	}

	return &Vault{aead: aead, macKey: material[keySize:]}, nil
}

// Encrypt seals plaintext under a fresh random IV.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("iv generation failed: %w", err)
	}

	sealed := v.aead.Seal(nil, iv, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(tag),
		hex.EncodeToString(ciphertext),
	}, separator), nil
}

// Decrypt opens a token produced by Encrypt. A malformed token yields a
// format error; a token that fails tag verification yields an
// authentication error.
func (v *Vault) Decrypt(token string) (string, error) {
	parts := strings.Split(token, separator)
	if len(parts) != 3 {
		return "", errs.Format("credential token must have 3 components, got %d", len(parts))
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != ivSize {
		return "", errs.Format("credential token has an invalid iv")
	}
	tag, err := hex.DecodeString(parts[1])
	if err != nil || len(tag) != tagSize {
		return "", errs.Format("credential token has an invalid auth tag")
	}
	ciphertext, err := hex.DecodeString(parts[2])
	if err != nil {
		return "", errs.Format("credential token has an invalid ciphertext")
	}

	plaintext, err := v.aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return "", errs.Authentication(nil, "credential token failed authentication")
	}
	return string(plaintext), nil
}

// Fingerprint returns a keyed hash of value. It identifies a secret without
// revealing it.
func (v *Vault) Fingerprint(value string) string {
	mac := hmac.New(sha256.New, v.macKey)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// EncryptCredentials seals every non-empty field of c.
func (v *Vault) EncryptCredentials(c models.Credentials) (models.EncryptedCredentials, error) {
	var out models.EncryptedCredentials
	var err error
	if out.APIKey, err = v.Encrypt(c.APIKey); err != nil {
		return out, err
	}
	if out.APISecret, err = v.Encrypt(c.APISecret); err != nil {
		return out, err
	}
	if c.Passphrase != "" {
		if out.Passphrase, err = v.Encrypt(c.Passphrase); err != nil {
			return out, err
		}
	}
	return out, nil
}

// DecryptCredentials opens a stored credential set.
func (v *Vault) DecryptCredentials(e models.EncryptedCredentials) (models.Credentials, error) {
	var out models.Credentials
	var err error
	if out.APIKey, err = v.Decrypt(e.APIKey); err != nil {
		return models.Credentials{}, fmt.Errorf("api key: %w", err)
	}
	if out.APISecret, err = v.Decrypt(e.APISecret); err != nil {
		return models.Credentials{}, fmt.Errorf("api secret: %w", err)
	}
	if e.Passphrase != "" {
		if out.Passphrase, err = v.Decrypt(e.Passphrase); err != nil {
			return models.Credentials{}, fmt.Errorf("passphrase: %w", err)
		}
	}
	return out, nil
}
