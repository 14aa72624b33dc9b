package main

import (
	"fmt"
	"os"
	"testing"
)

func TestResolveSocketPath(t *testing.T) {
	tests := []struct {
		name     string
		envSetup func(t *testing.T)
		expected string
	}{
		{
			name: "RETOUCH_SOCKET",
			envSetup: func(t *testing.T) {
				t.Setenv("RETOUCH_SOCKET", "/custom/retouch.sock")
			},
			expected: "/custom/retouch.sock",
		},
		{
			name: "XDG_RUNTIME_DIR",
			envSetup: func(t *testing.T) {
				t.Setenv("RETOUCH_SOCKET", "")
				t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
			},
			expected: "/run/user/1000/retouch.sock",
		},
		{
			name: "fallback",
			envSetup: func(t *testing.T) {
				t.Setenv("RETOUCH_SOCKET", "")
				t.Setenv("XDG_RUNTIME_DIR", "")
			},
			expected: fmt.Sprintf("/tmp/retouch-%d.sock", os.Getuid()),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.envSetup(t)
			if got := resolveSocketPath(); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestSendControlWithoutAgent(t *testing.T) {
	_, err := sendControl(fmt.Sprintf("/tmp/retouch-missing-%d.sock", os.Getpid()), "status")
	if err == nil {
		t.Fatal("expected error when no agent is listening")
	}
}
