package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dkeye/CineMatch/internal/auth"
	"github.com/dkeye/CineMatch/internal/config"
	"github.com/dkeye/CineMatch/internal/domain"
)

const testSecret = "cmd-test-secret-0123456789"

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "auth:\n  secret: " + testSecret + "\n  issuer: cinematch\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestTokenCommand(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"token", "--config", writeConfig(t), "--id", "u-42", "--name", "Ada"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	tokens, err := auth.NewTokenService(auth.Config{Secret: testSecret, Issuer: "cinematch"})
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	p, err := tokens.Verify(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("verify printed token: %v", err)
	}
	if want := (domain.Participant{ID: "u-42", Name: "Ada"}); p != want {
		t.Fatalf("participant = %+v, want %+v", p, want)
	}
}

func TestTokenCommandRequiresName(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--config", writeConfig(t)})
	if err := cmd.ExecuteContext(context.Background()); err == nil {
		t.Fatalf("token without --name succeeded")
	}
}

func TestOpenStore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.StorageConfig
		wantErr bool
	}{
		{name: "memory", cfg: config.StorageConfig{Driver: config.DriverMemory}},
		{name: "sqlite", cfg: config.StorageConfig{Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "c.db")}},
		{name: "unknown", cfg: config.StorageConfig{Driver: "etcd"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := openStore(context.Background(), tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if store != nil {
				if err := store.Close(); err != nil {
					t.Fatalf("close: %v", err)
				}
			}
		})
	}
}
