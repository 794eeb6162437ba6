package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", path}, "", "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample config: %v", err)
	}
	if !strings.Contains(string(data), "[paths]") {
		t.Fatalf("sample config missing [paths] section:\n%s", data)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", path}, "", ""); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", path, "--overwrite"}, "", ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	writeTestConfigAt(t, path, base)

	out, _, err := runCLI(t, []string{"config", "validate"}, "", path)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+path)
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("storage_root = [broken\n"), 0o644); err != nil {
		t.Fatalf("write broken config: %v", err)
	}

	if _, _, err := runCLI(t, []string{"config", "validate"}, "", path); err == nil {
		t.Fatal("expected validate to reject broken config")
	}
}

func TestConfigShowMasksToken(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	writeTestConfigAt(t, path, base)
	if err := appendLine(path, "api_token = \"super-secret\""); err != nil {
		t.Fatalf("append token: %v", err)
	}

	out, _, err := runCLI(t, []string{"config", "show"}, "", path)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "storage_root")
	requireContains(t, out, "********")
	if strings.Contains(out, "super-secret") {
		t.Fatalf("expected api token to be masked, got:\n%s", out)
	}
}

// writeTestConfigAt writes a minimal config whose paths live under base.
func writeTestConfigAt(t *testing.T, path, base string) {
	t.Helper()
	content := "[paths]\n" +
		"storage_root = \"" + filepath.Join(base, "recordings") + "\"\n" +
		"scratch_dir = \"" + filepath.Join(base, "scratch") + "\"\n" +
		"export_dir = \"" + filepath.Join(base, "export") + "\"\n" +
		"log_dir = \"" + filepath.Join(base, "logs") + "\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}
