package crypto

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io/ioutil"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/lagoon-network/lagoon/src/crypto/keys"
)

const (
	pemKeyPath = "priv_key.pem"
)

// PemKey reads and writes the node's private key as a PEM file under a base
// directory.
type PemKey struct {
	l    sync.Mutex
	path string
}

// NewPemKey points at <base>/priv_key.pem without touching the filesystem.
func NewPemKey(base string) *PemKey {
	path := filepath.Join(base, pemKeyPath)

	pemKey := &PemKey{
		path: path,
	}

	return pemKey
}

// ReadKey loads the private key from the underlying file.
func (k *PemKey) ReadKey() (*ecdsa.PrivateKey, error) {
	k.l.Lock()
	defer k.l.Unlock()

	buf, err := ioutil.ReadFile(k.path)

	if err != nil {
		return nil, err
	}

	return k.ReadKeyFromBuf(buf)
}

// ReadKeyFromBuf parses a PEM-encoded private key from a byte buffer.
func (k *PemKey) ReadKeyFromBuf(buf []byte) (*ecdsa.PrivateKey, error) {
	if len(buf) == 0 {
		return nil, nil
	}

	block, _ := pem.Decode(buf)

	if block == nil {
		return nil, fmt.Errorf("error decoding PEM block from data")
	}

	return x509.ParseECPrivateKey(block.Bytes)
}

// WriteKey dumps the private key to the underlying file, creating the base
// directory if needed.
func (k *PemKey) WriteKey(key *ecdsa.PrivateKey) error {
	k.l.Lock()
	defer k.l.Unlock()

	pemKey, err := ToPemKey(key)

	if err != nil {
		return err
	}

	if err := os.MkdirAll(path.Dir(k.path), 0700); err != nil {
		return err
	}

	return ioutil.WriteFile(k.path, []byte(pemKey.PrivateKey), 0600)
}

// PemDump contains the PEM private key and the hex public key of a keypair.
type PemDump struct {
	PublicKey  string
	PrivateKey string
}

// GeneratePemKey creates a fresh keypair in PemDump form.
func GeneratePemKey() (*PemDump, error) {
	key, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	return ToPemKey(key)
}

// ToPemKey converts an ecdsa.PrivateKey into PemDump form.
func ToPemKey(priv *ecdsa.PrivateKey) (*PemDump, error) {
	pub := keys.PublicKeyHex(&priv.PublicKey)

	b, err := x509.MarshalECPrivateKey(priv)

	if err != nil {
		return nil, err
	}

	pemBlock := &pem.Block{Type: "EC PRIVATE KEY", Bytes: b}

	data := pem.EncodeToMemory(pemBlock)

	return &PemDump{
		PublicKey:  pub,
		PrivateKey: string(data),
	}, nil
}
