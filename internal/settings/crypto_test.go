package settings

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const (
	gcmNonceSize = 12
	gcmTagSize   = 16
)

func mustCrypto(t *testing.T, passphrase string) *Crypto {
	t.Helper()
	c, err := NewCrypto(passphrase)
	if err != nil {
		t.Fatalf("NewCrypto() error = %v", err)
	}
	return c
}

func TestCrypto_SealedLayout(t *testing.T) {
	c := mustCrypto(t, "layout")
	payload := []byte(`{"api_keys":{}}`)

	a, err := c.Encrypt(payload)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	b, err := c.Encrypt(payload)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if want := saltSize + gcmNonceSize + len(payload) + gcmTagSize; len(a) != want {
		t.Fatalf("sealed length = %d, want salt+nonce+payload+tag = %d", len(a), want)
	}
	if bytes.Equal(a[:saltSize], b[:saltSize]) {
		t.Error("expected a fresh salt per seal")
	}
	if bytes.Equal(a[saltSize:saltSize+gcmNonceSize], b[saltSize:saltSize+gcmNonceSize]) {
		t.Error("expected a fresh nonce per seal")
	}
	if bytes.Contains(a, payload) {
		t.Error("payload visible in sealed output")
	}

	for _, sealed := range [][]byte{a, b} {
		got, err := c.Decrypt(sealed)
		if err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("Decrypt() = %q, want %q", got, payload)
		}
	}
}

func TestCrypto_TooShort(t *testing.T) {
	c := mustCrypto(t, "short")

	tests := []struct {
		name string
		size int
	}{
		{"empty", 0},
		{"partial salt", saltSize - 1},
		{"salt only", saltSize},
		{"partial nonce", saltSize + gcmNonceSize - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(make([]byte, tt.size))
			if !errors.Is(err, errCiphertextTooShort) {
				t.Errorf("Decrypt(%d bytes) error = %v, want %v", tt.size, err, errCiphertextTooShort)
			}
		})
	}
}

func TestCrypto_DecryptRejects(t *testing.T) {
	c := mustCrypto(t, "owner")
	sealed, err := c.Encrypt([]byte(`{"api_keys":{"newsapi":{"api_key":"nk"}}}`))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	flip := func(i int) []byte {
		out := append([]byte(nil), sealed...)
		out[i] ^= 0x01
		return out
	}

	tests := []struct {
		name   string
		crypto *Crypto
		data   []byte
	}{
		{"wrong passphrase", mustCrypto(t, "intruder"), sealed},
		{"salt changed", c, flip(0)},
		{"nonce changed", c, flip(saltSize)},
		{"payload changed", c, flip(saltSize + gcmNonceSize)},
		{"tag truncated", c, sealed[:len(sealed)-1]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.crypto.Decrypt(tt.data)
			if err == nil {
				t.Fatal("expected decryption to fail")
			}
			if errors.Is(err, errCiphertextTooShort) {
				t.Errorf("expected an authentication failure, got %v", err)
			}
		})
	}
}

func TestStore_DefaultPassphraseFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir, "")
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := store.SetAPIKey(&APIKeyConfig{ServiceName: ServiceAlphaVantage, APIKey: "AV-DEMO-KEY"}); err != nil {
		t.Fatalf("SetAPIKey() error = %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "settings.enc"))
	if err != nil {
		t.Fatalf("settings file not written: %v", err)
	}
	if bytes.Contains(raw, []byte("AV-DEMO-KEY")) {
		t.Fatal("API key stored in clear text")
	}

	plain, err := mustCrypto(t, "ai-exchange-local-settings").Decrypt(raw)
	if err != nil {
		t.Fatalf("file not sealed with the default passphrase: %v", err)
	}
	var onDisk Settings
	if err := json.Unmarshal(plain, &onDisk); err != nil {
		t.Fatalf("settings payload is not JSON: %v", err)
	}
	if got := onDisk.APIKeys[ServiceAlphaVantage]; got == nil || got.APIKey != "AV-DEMO-KEY" {
		t.Errorf("unexpected payload %s", plain)
	}

	reopened, err := NewStore(dir, "")
	if err != nil {
		t.Fatalf("NewStore() reopen error = %v", err)
	}
	if got := reopened.FeedConfig("alphavantage"); got.APIKey != "AV-DEMO-KEY" {
		t.Errorf("reopened FeedConfig().APIKey = %q, want AV-DEMO-KEY", got.APIKey)
	}
}

func TestStore_UnreadableFileStartsEmpty(t *testing.T) {
	sealed, err := mustCrypto(t, "other").Encrypt([]byte(`{"api_keys":{"newsapi":{"api_key":"nk"}}}`))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", make([]byte, saltSize+1)},
		{"foreign passphrase", sealed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, "settings.enc"), tt.data, 0600); err != nil {
				t.Fatal(err)
			}

			store, err := NewStore(dir, "")
			if err != nil {
				t.Fatalf("NewStore() error = %v", err)
			}
			if store.IsConfigured(ServiceNewsAPI) {
				t.Error("expected empty settings")
			}
		})
	}
}
