package notifier

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/logger"
	"github.com/julianstephens/affirm/internal/models"
)

type AgentOptions struct {
	Lockfile string
	Display  Display
	// Body picks a fresh body for every notification, typically a random affirmation.
	Body BodyFunc
	// OnReminders receives UPDATE_REMINDERS messages. Nil means they are only logged.
	OnReminders func(models.ReminderConfig)
	Now         func() time.Time
}

// Server is the background agent: a localhost HTTP endpoint that shows notifications on
// behalf of foreground processes.
type Server struct {
	opts   AgentOptions
	secret string

	mu    sync.Mutex
	shown map[string]time.Time
}

func NewServer(opts AgentOptions) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{opts: opts, secret: uuid.NewString(), shown: map[string]time.Time{}}
}

func (s *Server) Secret() string {
	return s.secret
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+MessagePath, s.handleMessage)
	return mux
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(constants.AgentSecretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var msg models.AgentMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&msg); err != nil {
		http.Error(w, "invalid message", http.StatusBadRequest)
		return
	}

	switch msg.Type {
	case constants.MessageShowNotification:
		if msg.Title == "" {
			http.Error(w, "title is required", http.StatusBadRequest)
			return
		}
		if err := s.show(msg.Title); err != nil {
			logger.Error("Failed to show notification", "title", msg.Title, "error", err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	case constants.MessageUpdateReminders:
		if msg.Settings != nil && s.opts.OnReminders != nil {
			s.opts.OnReminders(*msg.Settings)
		}
		logger.Info("Reminder settings updated", "advisory", s.opts.OnReminders == nil)
	default:
		http.Error(w, fmt.Sprintf("unknown message type %q", msg.Type), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// show displays title unless the same tag was shown within the dedupe window, which
// absorbs a message delivered twice.
func (s *Server) show(title string) error {
	n := Build(title, s.opts.Body)
	now := s.opts.Now()

	s.mu.Lock()
	if last, ok := s.shown[n.Tag]; ok && now.Sub(last) < constants.NotificationDedupe {
		s.mu.Unlock()
		logger.Debug("Duplicate notification dropped", "tag", n.Tag)
		return nil
	}
	s.shown[n.Tag] = now
	s.mu.Unlock()

	return s.opts.Display.Show(n)
}

// Run listens on a random localhost port, publishes the lockfile and serves until ctx ends.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port

	if err := writeLockfile(s.opts.Lockfile, port, os.Getpid(), s.secret); err != nil {
		ln.Close()
		return fmt.Errorf("failed to write lockfile: %w", err)
	}
	defer func() {
		if err := os.Remove(s.opts.Lockfile); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove lockfile", "path", s.opts.Lockfile, "error", err)
		}
	}()

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Info("Agent listening", "port", port, "lockfile", s.opts.Lockfile)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
