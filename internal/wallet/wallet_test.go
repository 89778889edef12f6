package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestLoad_EmptyDirIsReadOnly(t *testing.T) {
	m, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load on empty dir: %v", err)
	}
	if m != nil {
		t.Fatal("Empty keystore should load as nil (read-only mode)")
	}
}

func TestLoad_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "keystore")

	if _, err := Load(dir); err != nil {
		t.Fatalf("Load: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("Keystore directory was not created: %v", err)
	}
}

func TestCreateAndLoad(t *testing.T) {
	dir := t.TempDir()
	password := "correct horse battery staple"

	created, err := Create(dir, password)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Address() == (common.Address{}) {
		t.Error("Created wallet has zero address")
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded == nil {
		t.Fatal("Load after Create returned nil")
	}
	if loaded.Address() != created.Address() {
		t.Errorf("Loaded address %s != created %s", loaded.Address(), created.Address())
	}

	key, err := loaded.PrivateKey(password)
	if err != nil {
		t.Fatalf("PrivateKey: %v", err)
	}
	if crypto.PubkeyToAddress(key.PublicKey) != created.Address() {
		t.Error("Decrypted key does not match wallet address")
	}
}

func TestCreate_RefusesSecondWallet(t *testing.T) {
	dir := t.TempDir()
	if _, err := Create(dir, "pw"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := Create(dir, "pw"); err == nil {
		t.Error("Second Create in the same dir should fail")
	}
}

func TestImport_KnownKey(t *testing.T) {
	// Well-known hardhat development key
	const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	const devAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	m, err := Import(t.TempDir(), devKey, "pw")
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if m.Address().Hex() != devAddr {
		t.Errorf("Imported address = %s, want %s", m.Address().Hex(), devAddr)
	}
}

func TestImport_RejectsBadHex(t *testing.T) {
	if _, err := Import(t.TempDir(), "not-a-key", "pw"); err == nil {
		t.Error("Import should reject invalid hex")
	}
}

func TestPrivateKey_WrongPassword(t *testing.T) {
	dir := t.TempDir()
	if _, err := Create(dir, "right"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	m, _ := Load(dir)

	if _, err := m.PrivateKey("wrong"); err == nil {
		t.Error("Wrong password should fail to decrypt")
	}
}

func TestClearCachedKey(t *testing.T) {
	dir := t.TempDir()
	m, err := Create(dir, "pw")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := m.PrivateKey("pw"); err != nil {
		t.Fatalf("PrivateKey: %v", err)
	}
	m.ClearCachedKey()

	// Re-derives from the keystore after the cache was dropped
	key, err := m.PrivateKey("pw")
	if err != nil {
		t.Fatalf("PrivateKey after clear: %v", err)
	}
	if key.D.Sign() == 0 {
		t.Error("Re-derived key is zeroed")
	}
}
