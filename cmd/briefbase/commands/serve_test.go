package commands

import (
	"testing"
)

func TestResolveBind_EnvAppliedWhenFlagsUnset(t *testing.T) {
	t.Setenv("SERVER_HOST", "0.0.0.0")
	t.Setenv("SERVER_PORT", "9090")

	cmd := NewServeCmd()
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	host, port := resolveBind(cmd, "127.0.0.1", 8080)
	if host != "0.0.0.0" {
		t.Errorf("host: want 0.0.0.0 from SERVER_HOST, got %q", host)
	}
	if port != 9090 {
		t.Errorf("port: want 9090 from SERVER_PORT, got %d", port)
	}
}

func TestResolveBind_FlagsWinOverEnv(t *testing.T) {
	t.Setenv("SERVER_HOST", "0.0.0.0")
	t.Setenv("SERVER_PORT", "9090")

	cmd := NewServeCmd()
	if err := cmd.ParseFlags([]string{"--host", "10.1.2.3", "--port", "7070"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	host, port := resolveBind(cmd, "10.1.2.3", 7070)
	if host != "10.1.2.3" {
		t.Errorf("host: explicit flag must win, got %q", host)
	}
	if port != 7070 {
		t.Errorf("port: explicit flag must win, got %d", port)
	}
}

func TestResolveBind_DefaultsWithoutEnv(t *testing.T) {
	t.Setenv("SERVER_HOST", "")
	t.Setenv("SERVER_PORT", "")

	cmd := NewServeCmd()
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	host, port := resolveBind(cmd, "127.0.0.1", 8080)
	if host != "127.0.0.1" || port != 8080 {
		t.Errorf("want flag defaults, got %s:%d", host, port)
	}
}
