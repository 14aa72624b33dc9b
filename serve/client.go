package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	retouch "github.com/Paranoid-AF/retouch"
)

const controlTimeout = 5 * time.Second

func resolveSocketPath() string {
	if path := os.Getenv("RETOUCH_SOCKET"); path != "" {
		return path
	}
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir + "/retouch.sock"
	}
	return fmt.Sprintf("/tmp/retouch-%d.sock", os.Getuid())
}

// sendControl sends one request to the running agent and waits for its reply.
func sendControl(sockPath, action string) (*retouch.ControlResponse, error) {
	conn, err := net.DialTimeout("unix", sockPath, controlTimeout)
	if err != nil {
		return nil, fmt.Errorf("agent is not running (%s): %w", sockPath, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(controlTimeout))

	data, err := json.Marshal(retouch.ControlRequest{Action: action})
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(data, '\n')); err != nil {
		return nil, fmt.Errorf("send %s: %w", action, err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read %s response: %w", action, err)
		}
		return nil, errors.New("agent closed the connection")
	}

	var resp retouch.ControlResponse
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", action, err)
	}
	return &resp, nil
}
