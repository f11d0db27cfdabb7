package main

import (
	"bufio"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/RamonWill/strata/engine"
)

// Server is a TCP SQL server that exposes a strata engine. Each server
// holds one engine connection; query execution is serialized over it.
type Server struct {
	listener   net.Listener
	engine     *engine.Engine
	authConfig *AuthConfig

	mu   sync.Mutex
	conn *engine.Connection

	tlsEnabled bool

	done chan struct{}
	wg   sync.WaitGroup
}

// NewServer creates a new SQL server over the given engine.
func NewServer(eng *engine.Engine, authConfig *AuthConfig) *Server {
	return &Server{
		engine:     eng,
		authConfig: authConfig,
		done:       make(chan struct{}),
	}
}

// Start connects to the backend and begins listening on the specified
// address.
func (s *Server) Start(addr string) error {
	conn, err := s.engine.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to backend: %w", err)
	}
	s.conn = conn

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	log.Printf("SQL server listening on %s (dialect %s)", addr, s.engine.Dialect().Name())

	go s.acceptLoop()
	return nil
}

// StartTLS is Start over a TLS listener using the given certificate
// pair.
func (s *Server) StartTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	conn, err := s.engine.Connect()
	if err != nil {
		return fmt.Errorf("failed to connect to backend: %w", err)
	}
	s.conn = conn

	listener, err := tls.Listen("tcp", addr, &tls.Config{Certificates: []tls.Certificate{cert}})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start TLS server: %w", err)
	}
	s.listener = listener
	s.tlsEnabled = true

	log.Printf("SQL server listening on %s with TLS (dialect %s)", addr, s.engine.Dialect().Name())

	go s.acceptLoop()
	return nil
}

// TLSEnabled reports whether the server accepts TLS connections.
func (s *Server) TLSEnabled() bool { return s.tlsEnabled }

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.Printf("Accept error: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) authRequired() bool {
	return s.authConfig != nil && s.authConfig.Enabled
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	log.Printf("Client connected: %s", conn.RemoteAddr())

	state := &ConnectionState{}
	reader := bufio.NewReader(conn)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		// Read until newline (one query per line)
		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				log.Printf("Read error from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		query := strings.TrimSpace(line)
		if query == "" {
			continue
		}

		lower := strings.ToLower(query)
		if lower == "quit" || lower == "exit" {
			log.Printf("Client disconnected: %s", conn.RemoteAddr())
			return
		}

		var response Response
		switch {
		case strings.HasPrefix(strings.ToUpper(query), "AUTH "):
			response = s.handleAuth(query, state)
		case s.authRequired() && !state.IsAuthenticated():
			response = Response{
				Success: false,
				Error:   "authentication required: AUTH JWT <token>",
			}
		default:
			response = s.executeQuery(query)
		}

		data, err := EncodeResponse(response)
		if err != nil {
			log.Printf("Failed to encode response: %v", err)
			continue
		}

		if _, err := conn.Write(data); err != nil {
			log.Printf("Write error to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

func (s *Server) executeQuery(query string) Response {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	res, err := s.conn.ExecuteText(query)
	if err != nil {
		return Response{
			Success: false,
			Error:   err.Error(),
		}
	}
	defer res.Close()

	elapsed := float64(time.Since(start).Microseconds()) / 1000

	if res.ReturnsRows() {
		rows, err := res.FetchAll()
		if err != nil {
			return Response{
				Success: false,
				Error:   err.Error(),
			}
		}
		qr := QueryResponse{
			Columns: res.Columns(),
			Data:    stringify(rows),
			Rows:    len(rows),
			TimeMs:  elapsed,
		}
		data, _ := json.Marshal(qr)
		return Response{
			Success: true,
			Type:    "query",
			Result:  data,
		}
	}

	er := ExecResponse{
		RowsAffected: res.RowCount(),
		TimeMs:       elapsed,
	}
	if id, ok := res.LastInsertID(); ok {
		er.LastInsertID = id
	}
	data, _ := json.Marshal(er)
	return Response{
		Success: true,
		Type:    "exec",
		Result:  data,
	}
}

func stringify(rows [][]any) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, v := range row {
			if v == nil {
				cells[j] = "NULL"
			} else {
				cells[j] = fmt.Sprint(v)
			}
		}
		out[i] = cells
	}
	return out
}
