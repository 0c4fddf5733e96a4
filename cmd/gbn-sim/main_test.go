package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCase(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestRun_Transports(t *testing.T) {
	path := writeCase(t, "case.txt", "N 3, S 5\n0 0 2 0 0\n")

	for _, transport := range []string{"udp", "mem"} {
		t.Run(transport, func(t *testing.T) {
			faultLog := filepath.Join(t.TempDir(), "corrupted.log")

			var stdout, stderr bytes.Buffer
			code := run(context.Background(), []string{
				"-transport", transport,
				"-ack-timeout", "200ms",
				"-fault-log", faultLog,
				"-log-level", "error",
				path,
			}, &stdout, &stderr)
			require.Equal(t, 0, code, stderr.String())

			assert.Contains(t, stdout.String(), "sender:   Test passed!")
			assert.Contains(t, stdout.String(), "receiver: Test passed! Delivered 5 packets successfully.")

			data, err := os.ReadFile(faultLog)
			require.NoError(t, err)
			assert.Equal(t, "Corrupted packet: seq=3, payload=C\n", string(data))
		})
	}
}

func TestRun_YAMLCase(t *testing.T) {
	path := writeCase(t, "case.yaml", "window_size: 2\ntotal_units: 5\nactions: [1, 0, 0, 0, 0]\n")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-transport", "mem", "-ack-timeout", "50ms", "-log-level", "error", path}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())
	assert.Contains(t, stdout.String(), "receiver: Test passed! Delivered 5 packets successfully.")
}

func TestRun_Errors(t *testing.T) {
	path := writeCase(t, "case.txt", "N 1, S 1\n")

	tests := []struct {
		name string
		args []string
	}{
		{"no args", nil},
		{"unknown flag", []string{"-bogus", path}},
		{"missing file", []string{filepath.Join(t.TempDir(), "missing.txt")}},
		{"bad header", []string{writeCase(t, "bad.txt", "window 3\n")}},
		{"unknown transport", []string{"-transport", "tcp", path}},
		{"bad log level", []string{"-log-level", "loud", path}},
		{"bad retries", []string{"-max-retries", "0", path}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, 1, run(context.Background(), tt.args, &stdout, &stderr))
			assert.NotEmpty(t, stderr.String())
		})
	}
}
