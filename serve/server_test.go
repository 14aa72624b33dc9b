package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	retouch "github.com/Paranoid-AF/retouch"
	"github.com/Paranoid-AF/retouch/controller"
)

// stubAgent answers control requests from fixed values.
type stubAgent struct {
	mu        sync.Mutex
	session   *controller.Session
	state     controller.State
	cfg       retouch.Config
	reloadErr error
	triggers  int
	reloads   int
}

func (s *stubAgent) Trigger() (controller.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.triggers++
	if s.session != nil {
		return *s.session, false
	}
	s.session = &controller.Session{ID: fmt.Sprintf("s%d", s.triggers), State: controller.SessionInFlight}
	s.state = controller.RequestPending
	return *s.session, true
}

func (s *stubAgent) State() controller.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == "" {
		return controller.Idle
	}
	return s.state
}

func (s *stubAgent) Session() (controller.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return controller.Session{}, false
	}
	return *s.session, true
}

func (s *stubAgent) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloads++
	return s.reloadErr
}

func (s *stubAgent) Config() retouch.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

var testSocketCounter atomic.Int64

func newTestServer(t *testing.T, agent Agent) *Server {
	t.Helper()
	// Use /tmp directly to avoid macOS 104-char Unix socket path limit
	n := testSocketCounter.Add(1)
	sockPath := fmt.Sprintf("/tmp/retouch-t%d.sock", n)
	srv, err := NewServer(sockPath, agent)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { srv.Close() })
	go srv.Serve()
	return srv
}

func send(t *testing.T, sockPath, action string) *retouch.ControlResponse {
	t.Helper()
	resp, err := sendControl(sockPath, action)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestTriggerAction(t *testing.T) {
	agent := &stubAgent{}
	srv := newTestServer(t, agent)

	resp := send(t, srv.sockPath, retouch.ActionTrigger)
	if !resp.OK {
		t.Fatalf("expected ok, got %+v", resp)
	}
	if resp.SessionID != "s1" {
		t.Errorf("expected session s1, got %q", resp.SessionID)
	}
	if resp.State != string(controller.RequestPending) {
		t.Errorf("expected state request_pending, got %q", resp.State)
	}
}

func TestTriggerActionWhileBusy(t *testing.T) {
	agent := &stubAgent{}
	srv := newTestServer(t, agent)

	first := send(t, srv.sockPath, retouch.ActionTrigger)
	second := send(t, srv.sockPath, retouch.ActionTrigger)

	if second.OK {
		t.Error("second trigger should be refused")
	}
	if second.SessionID != first.SessionID {
		t.Errorf("expected active session %q, got %q", first.SessionID, second.SessionID)
	}
	if second.Error != nil {
		t.Errorf("refused trigger is not an error: %+v", second.Error)
	}
}

func TestStatusAction(t *testing.T) {
	agent := &stubAgent{}
	srv := newTestServer(t, agent)

	resp := send(t, srv.sockPath, retouch.ActionStatus)
	if !resp.OK || resp.State != "idle" || resp.SessionID != "" {
		t.Errorf("unexpected idle status: %+v", resp)
	}

	send(t, srv.sockPath, retouch.ActionTrigger)
	resp = send(t, srv.sockPath, retouch.ActionStatus)
	if resp.SessionID != "s1" || resp.State != "request_pending" {
		t.Errorf("unexpected busy status: %+v", resp)
	}
}

func TestConfigActionMasksKey(t *testing.T) {
	agent := &stubAgent{cfg: retouch.Config{Model: "gpt-4o-mini", APIKey: "sk-proj-secret-abcd"}}
	srv := newTestServer(t, agent)

	resp := send(t, srv.sockPath, retouch.ActionConfig)
	if resp.Config == nil {
		t.Fatal("expected config")
	}
	if resp.Config.APIKey != "********abcd" {
		t.Errorf("expected masked key, got %q", resp.Config.APIKey)
	}
	if resp.Config.Model != "gpt-4o-mini" {
		t.Errorf("expected model, got %q", resp.Config.Model)
	}
}

func TestReloadAction(t *testing.T) {
	agent := &stubAgent{}
	srv := newTestServer(t, agent)

	resp := send(t, srv.sockPath, retouch.ActionReload)
	if !resp.OK || resp.Config == nil {
		t.Errorf("unexpected reload response: %+v", resp)
	}
	agent.mu.Lock()
	reloads := agent.reloads
	agent.mu.Unlock()
	if reloads != 1 {
		t.Errorf("expected 1 reload, got %d", reloads)
	}
}

func TestReloadActionError(t *testing.T) {
	agent := &stubAgent{reloadErr: errors.New("binding taken")}
	srv := newTestServer(t, agent)

	resp := send(t, srv.sockPath, retouch.ActionReload)
	if resp.OK {
		t.Error("expected ok=false")
	}
	if resp.Error == nil || resp.Error.Code != "config_error" {
		t.Errorf("expected config_error, got %+v", resp.Error)
	}
}

func TestUnknownAction(t *testing.T) {
	srv := newTestServer(t, &stubAgent{})

	resp := send(t, srv.sockPath, "explode")
	if resp.Error == nil || resp.Error.Code != "unknown_action" {
		t.Errorf("expected unknown_action, got %+v", resp.Error)
	}
}

func TestInvalidJSONClosesConnection(t *testing.T) {
	srv := newTestServer(t, &stubAgent{})

	conn, err := net.Dial("unix", srv.sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.Write([]byte("not json\n"))

	scanner := bufio.NewScanner(conn)
	if scanner.Scan() {
		t.Errorf("expected no response, got %q", scanner.Text())
	}
}

func TestResponseIsSingleJSONLine(t *testing.T) {
	srv := newTestServer(t, &stubAgent{})

	conn, err := net.Dial("unix", srv.sockPath)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.Write([]byte(`{"action":"status"}` + "\n"))

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		t.Fatal("no response from server")
	}
	var raw map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if raw["ok"] != true || raw["state"] != "idle" {
		t.Errorf("unexpected response %v", raw)
	}
	if _, ok := raw["config"]; ok {
		t.Error("status should not carry config")
	}
}

func TestServeReturnsNilAfterClose(t *testing.T) {
	sockPath := fmt.Sprintf("/tmp/retouch-t%d.sock", testSocketCounter.Add(1))
	srv, err := NewServer(sockPath, &stubAgent{})
	if err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	srv.Close()
	srv.Close()
	if err := <-done; err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}
