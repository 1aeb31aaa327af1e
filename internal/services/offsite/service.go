// Package offsite mirrors backup artifacts to a remote host over SSH,
// optionally waking it with Wake-on-LAN first.
package offsite

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sutaaa0/cashier-app-sub000/internal/models"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Service defines the interface for offsite replication.
type Service interface {
	Replicate(ctx context.Context, cfg models.OffsiteConfig, artifact models.BackupArtifact) (*models.ReplicationResult, error)
}

// Impl implements the offsite Service.
type Impl struct {
	wakeClient    WakeClient
	dialer        Dialer
	clientFactory ClientFactory
	logger        zerolog.Logger
}

// New creates a new offsite service.
func New(logger zerolog.Logger) *Impl {
	return NewWithClients(logger, &DefaultWakeClient{}, &net.Dialer{Timeout: 5 * time.Second}, &DefaultClientFactory{})
}

// NewWithClients creates a new offsite service with custom clients (for testing).
func NewWithClients(logger zerolog.Logger, wakeClient WakeClient, dialer Dialer, factory ClientFactory) *Impl {
	return &Impl{
		wakeClient:    wakeClient,
		dialer:        dialer,
		clientFactory: factory,
		logger:        logger.With().Str("component", "offsite").Logger(),
	}
}

// Replicate copies one artifact to cfg.RemoteDir. The upload goes to a hidden
// partial file that is renamed once complete.
func (s *Impl) Replicate(ctx context.Context, cfg models.OffsiteConfig, artifact models.BackupArtifact) (*models.ReplicationResult, error) {
	start := time.Now()
	result := &models.ReplicationResult{
		RemotePath: path.Join(cfg.RemoteDir, artifact.Filename),
	}
	done := func(err error) (*models.ReplicationResult, error) {
		result.Error = err
		result.Duration = time.Since(start)
		return result, nil
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	if cfg.WOL != nil {
		woken, err := s.wake(ctx, *cfg.WOL, addr)
		result.Woken = woken
		if err != nil {
			return done(err)
		}
	}

	sshConfig, err := s.buildConfig(cfg)
	if err != nil {
		return done(err)
	}

	f, err := os.Open(artifact.StoragePath)
	if err != nil {
		return done(fmt.Errorf("failed to open artifact: %w", err))
	}
	defer func() { _ = f.Close() }()

	s.logger.Info().
		Str("host", cfg.Host).
		Str("filename", artifact.Filename).
		Str("remote_path", result.RemotePath).
		Msg("Uploading backup to offsite mirror")

	client, err := s.connect(ctx, addr, sshConfig)
	if err != nil {
		return done(err)
	}
	defer func() { _ = client.Close() }()

	session, err := client.NewSession()
	if err != nil {
		return done(fmt.Errorf("failed to create session: %w", err))
	}
	defer func() { _ = session.Close() }()

	// Close the connection on cancellation so a stuck upload returns.
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	counter := &countingReader{r: f}
	output, err := session.Upload(uploadCommand(cfg.RemoteDir, artifact.Filename), counter)
	result.BytesSent = counter.n.Load()
	if err != nil {
		if ctx.Err() != nil {
			return done(fmt.Errorf("upload interrupted: %w", ctx.Err()))
		}
		return done(fmt.Errorf("upload failed: %w: %s", err, strings.TrimSpace(string(output))))
	}
	if result.BytesSent != artifact.SizeBytes {
		return done(fmt.Errorf("upload incomplete: sent %d of %d bytes", result.BytesSent, artifact.SizeBytes))
	}

	result.Duration = time.Since(start)
	s.logger.Info().
		Str("remote_path", result.RemotePath).
		Int64("bytes_sent", result.BytesSent).
		Dur("duration", result.Duration).
		Msg("Offsite upload completed")

	return result, nil
}

// wake sends a magic packet unless the SSH port already answers, then waits
// until it does. It reports whether a packet was sent.
func (s *Impl) wake(ctx context.Context, cfg models.WOLConfig, addr string) (bool, error) {
	if s.reachable(ctx, addr) {
		s.logger.Debug().Str("addr", addr).Msg("Mirror host is already up")
		return false, nil
	}

	mac, err := net.ParseMAC(cfg.MACAddress)
	if err != nil {
		return false, fmt.Errorf("invalid MAC address %q: %w", cfg.MACAddress, err)
	}

	s.logger.Info().
		Str("mac", cfg.MACAddress).
		Str("broadcast", cfg.BroadcastIP).
		Msg("Sending WOL packet")

	if err := s.wakeClient.Wake(cfg.BroadcastIP, mac); err != nil {
		return false, err
	}

	if err := s.waitForPort(ctx, addr, cfg.Timeout, cfg.PollInterval); err != nil {
		return true, err
	}

	s.logger.Info().Str("addr", addr).Msg("Mirror host is up")
	return true, nil
}

func (s *Impl) waitForPort(ctx context.Context, addr string, timeout, interval time.Duration) error {
	deadline := time.Now().Add(timeout)

	for {
		if s.reachable(ctx, addr) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for %s", addr)
		}

		s.logger.Debug().Str("addr", addr).Msg("Mirror host not ready yet")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (s *Impl) reachable(ctx context.Context, addr string) bool {
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func (s *Impl) connect(ctx context.Context, addr string, sshConfig *ssh.ClientConfig) (SSHClient, error) {
	type dialResult struct {
		client SSHClient
		err    error
	}
	ch := make(chan dialResult, 1)

	go func() {
		client, err := s.clientFactory.NewClient("tcp", addr, sshConfig)
		ch <- dialResult{client, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.client != nil {
				_ = res.client.Close()
			}
		}()
		return nil, ctx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("failed to connect: %w", res.err)
		}
		return res.client, nil
	}
}

func (s *Impl) buildConfig(cfg models.OffsiteConfig) (*ssh.ClientConfig, error) {
	var key []byte
	var err error

	switch {
	case len(cfg.PrivateKey) > 0:
		key = cfg.PrivateKey
	case cfg.KeyPath != "":
		key, err = os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key from %s: %w", cfg.KeyPath, err)
		}
	default:
		return nil, fmt.Errorf("no private key provided")
	}

	signer, err := ssh.ParsePrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey() //nolint:gosec // opt-in verification via known_hosts
	if cfg.KnownHostsPath != "" {
		hostKeyCallback, err = knownhosts.New(cfg.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load known hosts: %w", err)
		}
	}

	return &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         30 * time.Second,
	}, nil
}

// uploadCommand writes stdin to a hidden partial file and renames it into place.
func uploadCommand(remoteDir, filename string) string {
	partial := path.Join(remoteDir, ".partial-"+filename)
	final := path.Join(remoteDir, filename)
	return fmt.Sprintf("mkdir -p %s && cat > %s && mv %s %s",
		shellQuote(remoteDir), shellQuote(partial), shellQuote(partial), shellQuote(final))
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}
