package wallet

import (
	"crypto/ecdsa"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Manager owns the encrypted keystore holding the staking account. One
// account per keystore directory; the first account is the session account.
type Manager struct {
	keystore   *keystore.KeyStore
	dir        string
	address    common.Address
	privateKey *ecdsa.PrivateKey
}

// Load opens an existing wallet. It returns (nil, nil) when the directory
// holds no account, which signals read-only mode: state can be read and
// derived but no transaction can be signed.
func Load(keystoreDir string) (*Manager, error) {
	ks, err := openKeystore(keystoreDir)
	if err != nil {
		return nil, err
	}

	accounts := ks.Accounts()
	if len(accounts) == 0 {
		return nil, nil
	}
	return &Manager{
		keystore: ks,
		dir:      keystoreDir,
		address:  accounts[0].Address,
	}, nil
}

// Create makes a new wallet encrypted with password. It refuses when an
// account already exists so a typo cannot shadow real funds.
func Create(keystoreDir, password string) (*Manager, error) {
	ks, err := openKeystore(keystoreDir)
	if err != nil {
		return nil, err
	}
	if len(ks.Accounts()) > 0 {
		return nil, fmt.Errorf("wallet already exists in %s", keystoreDir)
	}

	account, err := ks.NewAccount(password)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return &Manager{
		keystore: ks,
		dir:      keystoreDir,
		address:  account.Address,
	}, nil
}

// Import brings an existing private key into a fresh keystore.
func Import(keystoreDir, privKeyHex, password string) (*Manager, error) {
	ks, err := openKeystore(keystoreDir)
	if err != nil {
		return nil, err
	}
	if len(ks.Accounts()) > 0 {
		return nil, fmt.Errorf("wallet already exists in %s", keystoreDir)
	}

	privateKey, err := crypto.HexToECDSA(privKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key hex: %w", err)
	}
	account, err := ks.ImportECDSA(privateKey, password)
	if err != nil {
		return nil, fmt.Errorf("failed to import key: %w", err)
	}
	return &Manager{
		keystore: ks,
		dir:      keystoreDir,
		address:  account.Address,
	}, nil
}

func openKeystore(dir string) (*keystore.KeyStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return keystore.NewKeyStore(dir, keystore.StandardScryptN, keystore.StandardScryptP), nil
}

// Address returns the session account address.
func (m *Manager) Address() common.Address {
	return m.address
}

// KeystoreDir returns the keystore directory path.
func (m *Manager) KeystoreDir() string {
	return m.dir
}

// PrivateKey decrypts and caches the signing key.
func (m *Manager) PrivateKey(password string) (*ecdsa.PrivateKey, error) {
	if m.privateKey != nil {
		return m.privateKey, nil
	}

	accounts := m.keystore.Accounts()
	if len(accounts) == 0 {
		return nil, fmt.Errorf("no accounts in keystore")
	}

	keyJSON, err := os.ReadFile(accounts[0].URL.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := keystore.DecryptKey(keyJSON, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}

	m.privateKey = key.PrivateKey
	return key.PrivateKey, nil
}

// ClearCachedKey zeros the cached private key; the next use decrypts again.
func (m *Manager) ClearCachedKey() {
	if m.privateKey != nil {
		m.privateKey.D.SetUint64(0)
		m.privateKey = nil
	}
}
