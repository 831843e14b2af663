package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mtzanidakis/synedrio/internal/store"
	"golang.org/x/crypto/argon2"
)

// RefPrefix marks a config value that names a vault secret instead of
// holding the value itself.
const RefPrefix = "secret:"

var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrInvalidName    = errors.New("secret names use lowercase letters, digits, '.', '_' and '-'")
)

var namePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{0,63}$`)

// ValidateName checks that name can appear in a "secret:<name>" reference.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Vault seals secrets with AES-256-GCM under an Argon2id-derived key.
type Vault struct {
	key [32]byte
}

// New derives the key from the passphrase. The salt is the SHA-256 of the
// passphrase, so a restart with the same passphrase opens existing secrets.
func New(passphrase string) *Vault {
	salt := sha256.Sum256([]byte(passphrase))
	v := &Vault{}
	copy(v.key[:], argon2.IDKey([]byte(passphrase), salt[:16], 1, 64*1024, 4, 32))
	return v
}

func (v *Vault) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

func (v *Vault) Encrypt(plaintext []byte) (ciphertext, nonce []byte, err error) {
	gcm, err := v.aead()
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

func (v *Vault) Decrypt(ciphertext, nonce []byte) ([]byte, error) {
	gcm, err := v.aead()
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

// SecretStore is the subset of the store the vault reads and writes.
type SecretStore interface {
	GetSecret(id string) (*store.Secret, error)
	SaveSecret(sec *store.Secret) error
}

// Put encrypts value and saves it under name.
func (v *Vault) Put(s SecretStore, name, description string, value []byte) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	ciphertext, nonce, err := v.Encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", name, err)
	}
	return s.SaveSecret(&store.Secret{
		ID:          name,
		Description: description,
		Value:       ciphertext,
		Nonce:       nonce,
	})
}

// Get loads and decrypts the secret stored under name.
func (v *Vault) Get(s SecretStore, name string) ([]byte, error) {
	sec, err := s.GetSecret(name)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return v.Decrypt(sec.Value, sec.Nonce)
}

// Resolve expands a "secret:<name>" reference. Plain values are returned
// unchanged; a nil vault cannot resolve references.
func Resolve(v *Vault, s SecretStore, value string) (string, error) {
	if !strings.HasPrefix(value, RefPrefix) {
		return value, nil
	}
	name := strings.TrimPrefix(value, RefPrefix)
	if v == nil {
		return "", fmt.Errorf("resolve %s: vault passphrase not set", name)
	}
	plaintext, err := v.Get(s, name)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	return string(plaintext), nil
}
