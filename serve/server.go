package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"

	retouch "github.com/Paranoid-AF/retouch"
	"github.com/Paranoid-AF/retouch/controller"
)

// Agent is the part of the controller exposed on the control socket.
type Agent interface {
	Trigger() (controller.Session, bool)
	State() controller.State
	Session() (controller.Session, bool)
	Reload() error
	Config() retouch.Config
}

// Server listens on a Unix domain socket for control requests.
type Server struct {
	listener net.Listener
	sockPath string
	agent    Agent

	closeOnce sync.Once
}

// NewServer creates a control server bound to the given socket path.
func NewServer(sockPath string, agent Agent) (*Server, error) {
	// Remove stale socket file if it exists
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}
	if err := os.Chmod(sockPath, 0600); err != nil {
		listener.Close()
		return nil, err
	}

	return &Server{
		listener: listener,
		sockPath: sockPath,
		agent:    agent,
	}, nil
}

// Serve accepts connections until Close is called.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handleConn(conn)
	}
}

// Close stops the listener and removes the socket file.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.listener.Close()
		os.Remove(s.sockPath)
	})
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}

	raw := scanner.Bytes()
	slog.Debug("control request", "data", string(raw))

	var req retouch.ControlRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		slog.Warn("invalid control request", "error", err)
		return
	}

	resp := s.dispatch(req.Action)

	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error("failed to marshal control response", "error", err)
		return
	}

	slog.Debug("control response", "data", string(data))

	conn.Write(append(data, '\n'))
}

func (s *Server) dispatch(action string) retouch.ControlResponse {
	var resp retouch.ControlResponse

	switch action {
	case retouch.ActionTrigger:
		session, ok := s.agent.Trigger()
		resp.OK = ok
		resp.SessionID = session.ID
		resp.State = string(s.agent.State())

	case retouch.ActionStatus:
		resp.OK = true
		resp.State = string(s.agent.State())
		if session, ok := s.agent.Session(); ok {
			resp.SessionID = session.ID
		}

	case retouch.ActionReload:
		resp.State = string(s.agent.State())
		if err := s.agent.Reload(); err != nil {
			resp.Error = &retouch.ControlError{Code: "config_error", Message: err.Error()}
		} else {
			resp.OK = true
		}
		cfg := s.agent.Config().Masked()
		resp.Config = &cfg

	case retouch.ActionConfig:
		resp.OK = true
		cfg := s.agent.Config().Masked()
		resp.Config = &cfg

	default:
		resp.Error = &retouch.ControlError{
			Code:    "unknown_action",
			Message: "unknown action: " + action,
		}
	}

	return resp
}
