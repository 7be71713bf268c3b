// Package sshtest runs an in-process SSH server with exec and SFTP support.
package sshtest

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/sftp"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Exec is one exec request as seen by an ExecHandler.
type Exec struct {
	// Command is the command line sent by the client.
	Command string
	// Dir is the server's working directory.
	Dir string
	// Stdin streams what the client writes; it ends when the client closes stdin.
	Stdin io.Reader
	// Stdout is returned to the client as standard output.
	Stdout io.Writer
	// Stderr is returned to the client as standard error.
	Stderr io.Writer
}

// ExecHandler plays the remote shell for one exec request and returns the
// exit status.
type ExecHandler func(exec *Exec) uint32

// Server is a running test server.
type Server struct {
	// Addr is the listening host:port.
	Addr string
	// Dir is the SFTP working directory; relative remote paths resolve here.
	Dir string

	hostKey  ssh.PublicKey
	handler  ExecHandler
	username string
	password string

	mu       sync.Mutex
	commands []string
}

// Start listens on a loopback port and accepts username/password logins.
// The server stops when the test ends.
func Start(t *testing.T, username, password string, handler ExecHandler) *Server {
	t.Helper()

	_, private, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	signer, err := ssh.NewSignerFromKey(private)
	require.NoError(t, err)

	server := &Server{
		Dir:      t.TempDir(),
		hostKey:  signer.PublicKey(),
		handler:  handler,
		username: username,
		password: password,
	}

	config := &ssh.ServerConfig{
		PasswordCallback: server.checkPassword,
	}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	t.Cleanup(func() { _ = listener.Close() })

	server.Addr = listener.Addr().String()

	go func() {
		for {
			conn, acceptErr := listener.Accept()
			if acceptErr != nil {
				return
			}

			go server.serveConn(conn, config)
		}
	}()

	return server
}

// Commands returns every exec request received, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.commands...)
}

// KnownHostsFile writes a known_hosts file trusting this server.
func (s *Server) KnownHostsFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{s.Addr}, s.hostKey) + "\n"

	require.NoError(t, os.WriteFile(path, []byte(line), 0o600))

	return path
}

func (s *Server) checkPassword(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
	if meta.User() == s.username && string(password) == s.password {
		return &ssh.Permissions{}, nil
	}

	return nil, errors.New("access denied")
}

func (s *Server) serveConn(conn net.Conn, config *ssh.ServerConfig) {
	serverConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		_ = conn.Close()

		return
	}

	defer serverConn.Close()

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unsupported")

			continue
		}

		channel, requests, acceptErr := newChannel.Accept()
		if acceptErr != nil {
			continue
		}

		go s.serveSession(channel, requests)
	}
}

func (s *Server) serveSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	for req := range requests {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }

			if ssh.Unmarshal(req.Payload, &payload) != nil {
				_ = req.Reply(false, nil)

				continue
			}

			_ = req.Reply(true, nil)

			s.mu.Lock()
			s.commands = append(s.commands, payload.Command)
			s.mu.Unlock()

			go func() {
				status := s.handler(&Exec{
					Command: payload.Command,
					Dir:     s.Dir,
					Stdin:   channel,
					Stdout:  channel,
					Stderr:  channel.Stderr(),
				})

				_, _ = channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{status}))
				_ = channel.Close()
			}()
		case "subsystem":
			var payload struct{ Name string }

			if ssh.Unmarshal(req.Payload, &payload) != nil || payload.Name != "sftp" {
				_ = req.Reply(false, nil)

				continue
			}

			_ = req.Reply(true, nil)

			go func() {
				server, err := sftp.NewServer(channel, sftp.WithServerWorkingDirectory(s.Dir))
				if err == nil {
					_ = server.Serve()
				}

				_ = channel.Close()
			}()
		default:
			if req.WantReply {
				_ = req.Reply(false, nil)
			}
		}
	}
}
