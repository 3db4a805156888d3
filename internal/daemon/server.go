// Package daemon implements tagfdd's HTTP-over-Unix-domain-socket
// transport: it translates the client-visible <root>/<tag_name> namespace
// into calls against a tagcore.Core.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/hmsnyder/tagfd/internal/config"
	"github.com/hmsnyder/tagfd/internal/daemonapi"
	"github.com/hmsnyder/tagfd/internal/tagcore"
	"github.com/hmsnyder/tagfd/internal/tagerr"
	"github.com/hmsnyder/tagfd/internal/tagtype"
)

// Server is tagfdd: one Core fronted by two HTTP listeners over distinct
// Unix domain sockets — a world-accessible one serving tag reads/writes,
// and an owner-only sibling serving administrative creation. The two never
// share a listener or a file descriptor, so holding the tag socket open
// never grants the administrative one.
type Server struct {
	cfg      config.Config
	core     *tagcore.Core
	tagSrv   *http.Server
	adminSrv *http.Server
	lockFile *os.File

	mu            sync.Mutex
	tagListener   net.Listener
	adminListener net.Listener

	shutdown    sync.Once
	shutdownErr error
}

// NewServer constructs a Server fronting a freshly built Core sized by
// cfg.RegistryCapacity.
func NewServer(cfg config.Config) *Server {
	return NewServerWithCore(cfg, tagcore.New(cfg.RegistryCapacity))
}

// NewServerWithCore constructs a Server fronting an existing Core, letting
// tests and cmd/tagfdd share a Core across a running server and direct
// calls.
func NewServerWithCore(cfg config.Config, core *tagcore.Core) *Server {
	tagMux := http.NewServeMux()
	s := &Server{
		cfg:  cfg,
		core: core,
		tagSrv: &http.Server{
			ReadHeaderTimeout: 5 * time.Second,
		},
		adminSrv: &http.Server{
			ReadHeaderTimeout: 5 * time.Second,
		},
	}

	tagMux.HandleFunc("/v1/health", s.healthHandler)
	tagMux.HandleFunc("/v1/tags", s.tagsHandler)
	tagMux.HandleFunc("/v1/tags/", s.tagByNameHandler)
	s.tagSrv.Handler = withSessionLogging(tagMux)

	adminMux := http.NewServeMux()
	adminMux.HandleFunc("/v1/admin", s.adminHandler)
	s.adminSrv.Handler = withSessionLogging(adminMux)

	return s
}

// withSessionLogging tags every request with a session ID for log
// correlation only — it never participates in protocol semantics, unlike
// a watch cursor's stream ID, which is threaded through long-poll state.
func withSessionLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := uuid.NewString()
		start := time.Now()
		next.ServeHTTP(w, r)
		logErr(fmt.Sprintf("session=%s %s %s (%s)", session, r.Method, r.URL.Path, time.Since(start)), nil)
	})
}

func logErr(scope string, err error) {
	if err == nil {
		fmt.Fprintf(os.Stderr, "tagfdd: %s\n", scope)
		return
	}
	fmt.Fprintf(os.Stderr, "tagfdd: %s: %v\n", scope, err)
}

// bindSocket removes any stale socket file at path, listens on it, and
// chmods it to mode. It refuses to clobber a path that exists but isn't a
// socket.
func bindSocket(path string, mode os.FileMode) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}
	if st, err := os.Lstat(path); err == nil {
		if st.Mode()&os.ModeSocket == 0 {
			return nil, fmt.Errorf("socket path exists and is not a unix socket: %s", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat socket path: %w", err)
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen uds: %w", err)
	}
	if err := os.Chmod(path, mode); err != nil {
		ln.Close() //nolint:errcheck
		return nil, fmt.Errorf("chmod socket: %w", err)
	}
	return ln, nil
}

// Start listens on cfg.SocketPath (world read/write, 0666) for tag traffic
// and cfg.AdminSocketPath (owner-only, 0600) for administrative creation,
// and serves both until ctx is cancelled or either listener fails. It
// blocks.
func (s *Server) Start(ctx context.Context) error {
	if err := s.acquireLock(); err != nil {
		return err
	}

	tagLn, err := bindSocket(s.cfg.SocketPath, 0o666)
	if err != nil {
		s.releaseLock() //nolint:errcheck
		return err
	}
	adminLn, err := bindSocket(s.cfg.AdminSocketPath, 0o600)
	if err != nil {
		tagLn.Close() //nolint:errcheck
		s.releaseLock() //nolint:errcheck
		return err
	}

	s.mu.Lock()
	s.tagListener = tagLn
	s.adminListener = adminLn
	s.mu.Unlock()

	errCh := make(chan error, 2)
	serve := func(srv *http.Server, ln net.Listener) {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}
	go serve(s.tagSrv, tagLn)
	go serve(s.adminSrv, adminLn)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("serve uds: %w", err)
		}
		return nil
	}
}

// Shutdown tears the server down exactly once: stop accepting on both
// listeners, close them, remove both socket files, release the process
// lock.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Do(func() {
		var errs []error
		if err := s.tagSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := s.adminSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.mu.Lock()
		tagLn, adminLn := s.tagListener, s.adminListener
		s.tagListener, s.adminListener = nil, nil
		s.mu.Unlock()
		if tagLn != nil {
			if err := tagLn.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if adminLn != nil {
			if err := adminLn.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if s.cfg.SocketPath != "" {
			if err := os.Remove(s.cfg.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
		if s.cfg.AdminSocketPath != "" {
			if err := os.Remove(s.cfg.AdminSocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
		}
		if err := s.releaseLock(); err != nil {
			errs = append(errs, err)
		}
		if len(errs) > 0 {
			s.shutdownErr = fmt.Errorf("shutdown errors: %v", errs)
		}
	})
	return s.shutdownErr
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, daemonapi.HealthResponse{
		SchemaVersion: daemonapi.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Status:        "ok",
	})
}

func (s *Server) tagsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	tags := s.core.List()
	summaries := make([]daemonapi.TagSummary, 0, len(tags))
	for _, tag := range tags {
		summaries = append(summaries, daemonapi.TagSummary{Name: tag.Name, DType: tag.DType.String()})
	}
	s.writeJSON(w, http.StatusOK, daemonapi.TagsEnvelope{
		SchemaVersion: daemonapi.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Tags:          summaries,
	})
}

func (s *Server) tagByNameHandler(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/v1/tags/")
	if name == "" {
		s.writeError(w, http.StatusNotFound, tagerr.NameInvalid, "missing tag name")
		return
	}
	switch r.Method {
	case http.MethodGet:
		s.readTag(w, r, name)
	case http.MethodPost:
		s.writeTag(w, r, name)
	default:
		s.methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (s *Server) readTag(w http.ResponseWriter, r *http.Request, name string) {
	nonblocking := r.URL.Query().Get("nonblocking") == "1"

	ep, err := s.core.OpenEndpoint(name)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	defer ep.Close()

	ctx := r.Context()
	var cancel context.CancelFunc
	if !nonblocking {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.LongPollWindow)
		defer cancel()
	}

	start := time.Now()
	v, err := ep.Read(ctx, nonblocking)
	if !nonblocking {
		s.core.Metrics.PollWaitLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		s.writeCoreError(w, err)
		return
	}

	record := tagtype.EncodeRecord(v)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(record[:])
}

func (s *Server) writeTag(w http.ResponseWriter, r *http.Request, name string) {
	body := make([]byte, tagtype.RecordSize)
	n, err := readFull(r.Body, body)
	if err != nil || n < tagtype.RecordSize {
		s.writeError(w, http.StatusBadRequest, tagerr.BufferTooSmall, "request body shorter than one value record")
		return
	}

	ep, err := s.core.OpenEndpoint(name)
	if err != nil {
		s.writeCoreError(w, err)
		return
	}
	defer ep.Close()

	written, err := ep.WriteFrom(body)
	if err != nil {
		code, _ := tagerr.Of(err)
		s.core.Metrics.CommitRejected.WithLabelValues(string(code)).Inc()
		s.writeCoreError(w, err)
		return
	}
	s.core.Metrics.Commits.WithLabelValues(name).Inc()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "%d", written)
}

func (s *Server) adminHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	body := make([]byte, tagtype.AdminRecordSize)
	n, err := readFull(r.Body, body)
	if err != nil || n < tagtype.AdminRecordSize {
		s.writeError(w, http.StatusBadRequest, tagerr.TransferFault, "request body shorter than one admin record")
		return
	}

	sess, err := s.core.Admin.Open()
	if err != nil {
		s.core.Metrics.AdminBusyTotal.Inc()
		s.writeCoreError(w, err)
		return
	}
	defer sess.Close()

	tag, err := sess.Create(body)
	if err != nil {
		code, _ := tagerr.Of(err)
		s.core.Metrics.CreateRejected.WithLabelValues(string(code)).Inc()
		s.writeCoreError(w, err)
		return
	}
	s.core.Metrics.TagsCreated.Inc()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusCreated)
	_, _ = fmt.Fprintf(w, "%s %s", tag.Name, tag.DType)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code tagerr.Code, msg string) {
	s.writeJSON(w, status, daemonapi.ErrorResponse{
		SchemaVersion: daemonapi.SchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Error: daemonapi.APIError{
			Code:    string(code),
			Message: msg,
		},
	})
}

func (s *Server) writeCoreError(w http.ResponseWriter, err error) {
	code, ok := tagerr.Of(err)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "", err.Error())
		return
	}
	s.writeError(w, tagerr.HTTPStatus(code), code, err.Error())
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allow ...string) {
	w.Header().Set("Allow", strings.Join(allow, ", "))
	s.writeError(w, http.StatusMethodNotAllowed, "", "method not allowed")
}

// acquireLock enforces single-daemon-per-socket-pair exclusivity: an
// flock on a sibling ".lock" file next to the tag socket, held for the
// process lifetime. This is a process-level exclusivity check, distinct
// from the per-session exclusivity the administrative endpoint itself
// enforces once the daemon is up (see internal/admin).
func (s *Server) acquireLock() error {
	lockPath := s.cfg.SocketPath + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close() //nolint:errcheck
		return fmt.Errorf("tagfdd already running on socket %s (lock %s held)", s.cfg.SocketPath, lockPath)
	}
	s.mu.Lock()
	s.lockFile = f
	s.mu.Unlock()
	return nil
}

func (s *Server) releaseLock() error {
	s.mu.Lock()
	f := s.lockFile
	s.lockFile = nil
	s.mu.Unlock()
	if f == nil {
		return nil
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}

// readFull reads exactly len(buf) bytes, or returns however many it got
// along with the first error (including io.EOF on a short body).
func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			if total == len(buf) {
				// A reader may hand back its last bytes together with io.EOF.
				return total, nil
			}
			return total, err
		}
	}
	return total, nil
}
