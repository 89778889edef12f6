package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func newCapturedRedactingLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(NewRedactingHandler(inner)), &buf
}

func TestRedact_SensitiveKeys(t *testing.T) {
	logger, buf := newCapturedRedactingLogger()

	logger.Info("wallet unlocked",
		"password", "hunter2",
		"private_key", "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
	)

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Error("Password value leaked into log output")
	}
	if strings.Contains(out, "4c0883a6") {
		t.Error("Private key value leaked into log output")
	}
	if !strings.Contains(out, "[REDACTED]") {
		t.Error("Expected redaction marker in output")
	}
}

func TestRedact_RPCURLProjectKey(t *testing.T) {
	logger, buf := newCapturedRedactingLogger()

	logger.Info("connecting",
		"rpc_url", "https://eth-sepolia.g.alchemy.com/v2/AbCdEf0123456789AbCdEf0123456789")

	out := buf.String()
	if strings.Contains(out, "AbCdEf0123456789") {
		t.Error("RPC project key leaked into log output")
	}
	if !strings.Contains(out, "eth-sepolia.g.alchemy.com") {
		t.Error("Host portion of the RPC URL should survive redaction")
	}
}

func TestRedact_InlinePrivateKey(t *testing.T) {
	logger, buf := newCapturedRedactingLogger()

	key := "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	logger.Error("import failed", "detail", "could not parse key "+key)

	out := buf.String()
	if strings.Contains(out, key) {
		t.Error("Full private key leaked into log output")
	}
	// Masked form keeps a short prefix and suffix for correlation
	if !strings.Contains(out, "0x4c08...2318") {
		t.Errorf("Expected masked key form, got: %s", out)
	}
}

func TestRedact_AddressesPassThrough(t *testing.T) {
	logger, buf := newCapturedRedactingLogger()

	addr := "0x1234567890123456789012345678901234567890"
	logger.Info("staked", "account", addr)

	if !strings.Contains(buf.String(), addr) {
		t.Error("Account address (40 hex chars) should not be redacted")
	}
}

func TestEnableRedaction_Idempotent(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(bytes.NewBuffer(nil))

	EnableRedaction()
	EnableRedaction() // second call must not double-wrap

	Info("check", "secret_phrase", "do not log this")
	if strings.Contains(buf.String(), "do not log this") {
		t.Error("Secret value leaked after EnableRedaction")
	}
}
