// Package security provides cryptographic tamper-evidence for computed
// summaries so downstream consumers can verify results were produced by this
// adapter.
package security

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// ResultSigner signs computed summaries with an Ethereum-style secp256k1 key,
// producing signatures that are verifiable both off-chain and by contracts.
type ResultSigner struct {
	privateKey *ecdsa.PrivateKey
	address    string
	opts       SignerOptions
}

// SignerOptions configures signing behavior
type SignerOptions struct {
	// SignatureValidity bounds how long a signed result is considered fresh
	SignatureValidity time.Duration `json:"signature_validity"`
}

// SignedResult wraps a payload with its keccak256 digest, the signature over
// that digest and the signer identity.
type SignedResult struct {
	Payload       json.RawMessage `json:"payload"`
	Keccak256Hash string          `json:"keccak256Hash"`
	Signature     string          `json:"signature"`
	SignerAddress string          `json:"signerAddress"`
	Timestamp     int64           `json:"timestamp"`
	ValidUntil    int64           `json:"validUntil"`
}

// NewResultSigner creates a signer with a freshly generated key pair.
func NewResultSigner(opts SignerOptions) (*ResultSigner, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	if opts.SignatureValidity == 0 {
		opts.SignatureValidity = 24 * time.Hour
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey).Hex()

	logrus.Infof("Result signer initialized with address %s", address)
	return &ResultSigner{
		privateKey: privateKey,
		address:    address,
		opts:       opts,
	}, nil
}

// Sign wraps a payload in a SignedResult. The payload is serialized once and
// embedded verbatim so verification hashes exactly the signed bytes.
func (s *ResultSigner) Sign(payload interface{}) (*SignedResult, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	hash := crypto.Keccak256Hash(payloadBytes)
	signature, err := crypto.Sign(hash.Bytes(), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign result: %w", err)
	}

	now := time.Now()
	return &SignedResult{
		Payload:       payloadBytes,
		Keccak256Hash: hash.Hex(),
		Signature:     fmt.Sprintf("0x%x", signature),
		SignerAddress: s.address,
		Timestamp:     now.Unix(),
		ValidUntil:    now.Add(s.opts.SignatureValidity).Unix(),
	}, nil
}

// Verify checks a SignedResult: digest integrity, signature recovery and
// freshness. Returns an error describing the first failed check.
func (s *ResultSigner) Verify(result *SignedResult) error {
	if time.Now().Unix() > result.ValidUntil {
		return fmt.Errorf("signature expired at %v", time.Unix(result.ValidUntil, 0))
	}

	hash := crypto.Keccak256Hash(result.Payload)
	if hash.Hex() != result.Keccak256Hash {
		return fmt.Errorf("keccak256 hash mismatch")
	}

	var sig []byte
	if _, err := fmt.Sscanf(result.Signature, "0x%x", &sig); err != nil {
		return fmt.Errorf("invalid signature encoding: %w", err)
	}

	pubKey, err := crypto.SigToPub(hash.Bytes(), sig)
	if err != nil {
		return fmt.Errorf("failed to recover public key: %w", err)
	}

	if crypto.PubkeyToAddress(*pubKey).Hex() != result.SignerAddress {
		return fmt.Errorf("signature verification failed: signer mismatch")
	}

	return nil
}

// Address returns the hex Ethereum address of the signing key
func (s *ResultSigner) Address() string {
	return s.address
}
