package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"github.com/dubaivisaervices/builder-pixel-hub-sub003/internal/retry"
)

// ErrFTPNotConfigured is returned when no host or credentials are set.
var ErrFTPNotConfigured = errors.New("ftp storage is not configured")

// FTPConfig holds the connection settings of the static host.
type FTPConfig struct {
	Addr       string
	User       string
	Password   string
	RemoteRoot string
	PublicBase string
	Timeout    time.Duration
}

type ftpConn interface {
	Login(user, password string) error
	MakeDir(path string) error
	Stor(path string, r io.Reader) error
	List(path string) ([]*ftp.Entry, error)
	NoOp() error
	Quit() error
}

type dialFunc func(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error)

func dialFTP(ctx context.Context, addr string, timeout time.Duration) (ftpConn, error) {
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// FTPStore uploads over a single lazily opened FTP session. The session is
// not safe for concurrent use so uploads are serialized.
type FTPStore struct {
	cfg    FTPConfig
	dial   dialFunc
	retry  retry.Policy
	logger *zap.Logger

	mu      sync.Mutex
	conn    ftpConn
	created map[string]bool
}

// NewFTPStore validates the configuration and returns a store. No connection
// is opened until the first upload.
func NewFTPStore(cfg FTPConfig, logger *zap.Logger) (*FTPStore, error) {
	if cfg.Addr == "" || strings.HasPrefix(cfg.Addr, ":") || cfg.User == "" || cfg.PublicBase == "" {
		return nil, ErrFTPNotConfigured
	}
	if cfg.RemoteRoot == "" {
		cfg.RemoteRoot = "/public_html/business-images"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FTPStore{
		cfg:     cfg,
		dial:    dialFTP,
		retry:   retry.DefaultPolicy,
		logger:  logger,
		created: make(map[string]bool),
	}, nil
}

// Name implements ImageStore.
func (s *FTPStore) Name() string { return "ftp" }

// Put uploads r to <remoteRoot>/<name> and returns its public URL.
func (s *FTPStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	remote := path.Join(s.cfg.RemoteRoot, name)
	err = retry.Do(ctx, s.retry, func(ctx context.Context) error {
		conn, err := s.session(ctx)
		if err != nil {
			return err
		}
		if err := s.ensureDir(conn, path.Dir(remote)); err != nil {
			s.reset()
			return err
		}
		if err := conn.Stor(remote, bytes.NewReader(data)); err != nil {
			s.reset()
			return fmt.Errorf("store %s: %w", remote, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Debug("uploaded object", zap.String("name", name), zap.Int("bytes", len(data)))
	return PublicURL(s.cfg.PublicBase, name), nil
}

// Probe connects, lists the remote root and disconnects.
func (s *FTPStore) Probe(ctx context.Context) (ProbeResult, error) {
	result := ProbeResult{Backend: s.Name(), Target: s.cfg.Addr, RemoteRoot: s.cfg.RemoteRoot}
	started := time.Now()

	conn, err := s.open(ctx)
	if err != nil {
		result.Message = err.Error()
		return result, err
	}
	defer conn.Quit()

	if err := conn.NoOp(); err != nil {
		result.Message = err.Error()
		return result, fmt.Errorf("ftp noop: %w", err)
	}
	entries, err := conn.List(s.cfg.RemoteRoot)
	if err != nil {
		result.Message = err.Error()
		return result, fmt.Errorf("list %s: %w", s.cfg.RemoteRoot, err)
	}

	result.Connected = true
	result.Entries = len(entries)
	result.Latency = time.Since(started)
	result.Message = "connected"
	return result, nil
}

// Close ends the upload session, if any.
func (s *FTPStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Quit()
	s.conn = nil
	return err
}

func (s *FTPStore) session(ctx context.Context) (ftpConn, error) {
	if s.conn != nil {
		if err := s.conn.NoOp(); err == nil {
			return s.conn, nil
		}
		s.reset()
	}
	conn, err := s.open(ctx)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return conn, nil
}

func (s *FTPStore) open(ctx context.Context) (ftpConn, error) {
	conn, err := s.dial(ctx, s.cfg.Addr, s.cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("dial ftp %s: %w", s.cfg.Addr, err)
	}
	if err := conn.Login(s.cfg.User, s.cfg.Password); err != nil {
		_ = conn.Quit()
		return nil, retry.Permanent(fmt.Errorf("ftp login: %w", err))
	}
	return conn, nil
}

func (s *FTPStore) reset() {
	if s.conn != nil {
		_ = s.conn.Quit()
		s.conn = nil
	}
	s.created = make(map[string]bool)
}

// ensureDir creates every missing segment of dir. MakeDir errors are ignored
// because most servers reject creating a directory that already exists.
func (s *FTPStore) ensureDir(conn ftpConn, dir string) error {
	if dir == "" || dir == "/" || s.created[dir] {
		return nil
	}
	current := ""
	if strings.HasPrefix(dir, "/") {
		current = "/"
	}
	for _, segment := range strings.Split(strings.Trim(dir, "/"), "/") {
		current = path.Join(current, segment)
		if s.created[current] {
			continue
		}
		_ = conn.MakeDir(current)
		s.created[current] = true
	}
	return nil
}
