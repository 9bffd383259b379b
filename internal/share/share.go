// Package share hands an affirmation to the platform, degrading from a native share command
// to the clipboard to plain output.
package share

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/julianstephens/affirm/internal/constants"
	"github.com/julianstephens/affirm/internal/logger"
)

type Method string

const (
	MethodNative    Method = "native"
	MethodClipboard Method = "clipboard"
	MethodManual    Method = "manual"
)

// TextPlaceholder in a share command argument is replaced by the share text. Without it the
// text is written to the command's stdin.
const TextPlaceholder = "{text}"

var (
	runCommandFunc = runCommand
	clipboardWrite = clipboard.WriteAll
	clipboardOK    = func() bool { return !clipboard.Unsupported }
)

// Text formats an affirmation for sharing.
func Text(affirmation string) string {
	return `"` + affirmation + `"` + constants.ShareSuffix
}

type Sharer struct {
	// Command is the native share command and its arguments, if any.
	Command []string
	// Out receives the text when no other method works.
	Out io.Writer
}

// Share tries each method in order and reports which one succeeded. It only fails when even
// writing to Out fails.
func (s Sharer) Share(ctx context.Context, text string) (Method, error) {
	if len(s.Command) > 0 {
		err := runCommandFunc(ctx, s.Command, text)
		if err == nil {
			return MethodNative, nil
		}
		logger.Warn("Share command failed", "command", s.Command[0], "error", err)
	}

	if clipboardOK() {
		err := clipboardWrite(text)
		if err == nil {
			return MethodClipboard, nil
		}
		logger.Warn("Clipboard unavailable", "error", err)
	}

	if s.Out == nil {
		return "", errors.New("no share method available")
	}
	if _, err := fmt.Fprintln(s.Out, text); err != nil {
		return "", err
	}
	return MethodManual, nil
}

func runCommand(ctx context.Context, command []string, text string) error {
	args := make([]string, 0, len(command)-1)
	substituted := false
	for _, a := range command[1:] {
		if strings.Contains(a, TextPlaceholder) {
			a = strings.ReplaceAll(a, TextPlaceholder, text)
			substituted = true
		}
		args = append(args, a)
	}

	cmd := exec.CommandContext(ctx, command[0], args...)
	if !substituted {
		cmd.Stdin = strings.NewReader(text)
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
