package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/models"
)

var (
	findProcessFunc = ps.FindProcess

	ErrAgentNotRunning = errors.New("affirm agent is not running")
)

// MessagePath is the agent endpoint messages are posted to.
const MessagePath = "/message"

// Client talks to a running background agent found through its lockfile.
type Client struct {
	lockfile string
	http     *http.Client
}

func NewClient(lockfile string) *Client {
	return &Client{lockfile: lockfile, http: &http.Client{Timeout: 5 * time.Second}}
}

// Available reports whether a live agent owns the lockfile.
func (c *Client) Available() bool {
	_, _, err := findAndValidateAgent(c.lockfile)
	return err == nil
}

// Notify asks the agent to show a notification with title and a body of its choosing.
func (c *Client) Notify(ctx context.Context, title string) error {
	return c.Send(ctx, models.AgentMessage{Type: constants.MessageShowNotification, Title: title})
}

// UpdateReminders tells the agent about new reminder settings. Agents may ignore it.
func (c *Client) UpdateReminders(ctx context.Context, cfg models.ReminderConfig) error {
	return c.Send(ctx, models.AgentMessage{Type: constants.MessageUpdateReminders, Settings: &cfg})
}

func (c *Client) Send(ctx context.Context, msg models.AgentMessage) error {
	port, secret, err := findAndValidateAgent(c.lockfile)
	if err != nil {
		return err
	}
	return sendMessage(ctx, c.http, port, secret, msg)
}

func findAndValidateAgent(lockfilePath string) (string, string, error) {
	content, err := os.ReadFile(lockfilePath)
	if err != nil {
		return "", "", ErrAgentNotRunning
	}

	parts := strings.Split(strings.TrimSpace(string(content)), "|")
	if len(parts) != 3 {
		return "", "", errors.New("lockfile is malformed")
	}

	port := parts[0]
	if strings.TrimSpace(port) == "" {
		return "", "", errors.New("port in lockfile is empty")
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return "", "", errors.New("invalid port number in lockfile")
	}
	if portNum < 1 || portNum > 65535 {
		return "", "", fmt.Errorf("port number %d is outside valid range (1-65535)", portNum)
	}

	pid, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", "", errors.New("invalid process ID in lockfile")
	}
	secret := parts[2]
	if strings.TrimSpace(secret) == "" {
		return "", "", errors.New("secret in lockfile is empty")
	}

	process, err := findProcessFunc(pid)
	if err != nil || process == nil {
		return "", "", ErrAgentNotRunning
	}
	if !strings.HasPrefix(process.Executable(), constants.AgentExecutablePrefix) {
		return "", "", fmt.Errorf("process with PID %d is not affirm (is %s)", pid, process.Executable())
	}

	return port, secret, nil
}

func sendMessage(ctx context.Context, client *http.Client, port, secret string, msg models.AgentMessage) error {
	url := fmt.Sprintf("http://127.0.0.1:%s%s", port, MessagePath)

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(constants.AgentSecretHeader, secret)

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, _ := io.ReadAll(res.Body)
	return fmt.Errorf("agent rejected %s with status %d: %s", msg.Type, res.StatusCode, strings.TrimSpace(string(body)))
}

// writeLockfile publishes the agent address as port|pid|secret, readable only by the owner.
func writeLockfile(path string, port, pid int, secret string) error {
	content := fmt.Sprintf("%d|%d|%s", port, pid, secret)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
