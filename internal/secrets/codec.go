// Package secrets implements envelope encryption for household provider
// credentials.
//
// An envelope is a self-describing string: its prefix selects the decryption
// path, so a codec can always decrypt secrets written under either deployment
// mode even after the mode for new writes changes. Two formats exist:
//
//	kms:<base64 ciphertext>                      — AWS KMS under a key ARN
//	local:<base64 iv>:<base64 tag>:<base64 ct>   — AES-256-GCM under a
//	                                               process-derived key
package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/kms"
)

const (
	kmsPrefix   = "kms:"
	localPrefix = "local:"

	nonceSize = 12
	tagSize   = 16
)

// KMSClient is the subset of the AWS KMS API the codec uses.
type KMSClient interface {
	Encrypt(ctx context.Context, params *kms.EncryptInput, optFns ...func(*kms.Options)) (*kms.EncryptOutput, error)
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

// Codec encrypts and decrypts credential strings. New envelopes are written
// under KMS when a key ARN is configured, otherwise under the local derived
// key. Both decryption paths stay available regardless of the write mode.
// A Codec is read-only after construction and safe for concurrent use.
type Codec struct {
	kms      KMSClient
	keyARN   string
	localKey []byte // 32 bytes, SHA-256 of the configured seed
}

// NewCodec builds a codec. kmsClient and keyARN select the KMS write path
// when both are set; seed derives the local AES-256 key.
func NewCodec(kmsClient KMSClient, keyARN, seed string) *Codec {
	sum := sha256.Sum256([]byte(seed))
	return &Codec{
		kms:      kmsClient,
		keyARN:   keyARN,
		localKey: sum[:],
	}
}

// UnavailableError reports that the KMS write path was selected but the
// encrypt call failed or returned no ciphertext.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return "encryption unavailable: " + e.Err.Error()
	}
	return "encryption unavailable: kms returned no ciphertext"
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// UnconfiguredError reports a kms: envelope reaching a codec without a
// KMS client.
type UnconfiguredError struct{}

func (e *UnconfiguredError) Error() string {
	return "decryption unconfigured: envelope requires a kms client"
}

// FormatError reports an envelope whose tag prefix or field layout is not
// one of the known formats. The envelope itself is never included.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "unknown envelope format: " + e.Reason
}

// Encrypt wraps plaintext into a brand-new envelope under the currently
// configured write mode.
func (c *Codec) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if c.keyARN != "" {
		return c.encryptKMS(ctx, plaintext)
	}
	return c.encryptLocal(plaintext)
}

// Decrypt unwraps an envelope, dispatching on its tag prefix.
func (c *Codec) Decrypt(ctx context.Context, envelope string) (string, error) {
	switch {
	case strings.HasPrefix(envelope, kmsPrefix):
		return c.decryptKMS(ctx, strings.TrimPrefix(envelope, kmsPrefix))
	case strings.HasPrefix(envelope, localPrefix):
		return c.decryptLocal(strings.TrimPrefix(envelope, localPrefix))
	default:
		return "", &FormatError{Reason: "unrecognized tag prefix"}
	}
}

// ── KMS path ────────────────────────────────────────────────

func (c *Codec) encryptKMS(ctx context.Context, plaintext string) (string, error) {
	if c.kms == nil {
		return "", &UnavailableError{Err: fmt.Errorf("kms key %s configured but no client", c.keyARN)}
	}

	out, err := c.kms.Encrypt(ctx, &kms.EncryptInput{
		KeyId:     &c.keyARN,
		Plaintext: []byte(plaintext),
	})
	if err != nil {
		return "", &UnavailableError{Err: err}
	}
	if out == nil || len(out.CiphertextBlob) == 0 {
		return "", &UnavailableError{}
	}

	return kmsPrefix + base64.StdEncoding.EncodeToString(out.CiphertextBlob), nil
}

func (c *Codec) decryptKMS(ctx context.Context, encoded string) (string, error) {
	if c.kms == nil {
		return "", &UnconfiguredError{}
	}

	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", &FormatError{Reason: "kms ciphertext is not valid base64"}
	}

	out, err := c.kms.Decrypt(ctx, &kms.DecryptInput{CiphertextBlob: blob})
	if err != nil {
		return "", fmt.Errorf("kms decrypt: %w", err)
	}

	return string(out.Plaintext), nil
}

// ── Local path ──────────────────────────────────────────────

func (c *Codec) encryptLocal(plaintext string) (string, error) {
	aead, err := c.localAEAD()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	// Seal appends the auth tag to the ciphertext; the envelope stores
	// them as separate fields.
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	enc := base64.StdEncoding
	return localPrefix + enc.EncodeToString(nonce) + ":" + enc.EncodeToString(tag) + ":" + enc.EncodeToString(ct), nil
}

func (c *Codec) decryptLocal(rest string) (string, error) {
	fields := strings.Split(rest, ":")
	if len(fields) != 3 {
		return "", &FormatError{Reason: fmt.Sprintf("local envelope has %d fields, want 3", len(fields))}
	}

	enc := base64.StdEncoding
	nonce, err := enc.DecodeString(fields[0])
	if err != nil {
		return "", &FormatError{Reason: "local iv is not valid base64"}
	}
	tag, err := enc.DecodeString(fields[1])
	if err != nil {
		return "", &FormatError{Reason: "local auth tag is not valid base64"}
	}
	ct, err := enc.DecodeString(fields[2])
	if err != nil {
		return "", &FormatError{Reason: "local ciphertext is not valid base64"}
	}
	if len(nonce) != nonceSize {
		return "", &FormatError{Reason: fmt.Sprintf("local iv is %d bytes, want %d", len(nonce), nonceSize)}
	}

	aead, err := c.localAEAD()
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", fmt.Errorf("local decrypt: %w", err)
	}

	return string(plaintext), nil
}

func (c *Codec) localAEAD() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.localKey)
	if err != nil {
		return nil, fmt.Errorf("init local cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
