package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrUnknownIntent is returned by Dispatch for intents with no handler.
var ErrUnknownIntent = errors.New("session: unknown intent")

// Intent is a discrete user action.
type Intent interface {
	IntentName() string
}

const (
	intentFileSelected  = "file_selected"
	intentChatSubmitted = "chat_submitted"
	intentExportClicked = "export_clicked"
)

// FileSelected starts an upload. Open is called once, after the busy
// indicator is acquired.
type FileSelected struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// ChatSubmitted sends one chat message.
type ChatSubmitted struct {
	Text string
}

// ExportClicked requests the PDF report.
type ExportClicked struct{}

func (FileSelected) IntentName() string  { return intentFileSelected }
func (ChatSubmitted) IntentName() string { return intentChatSubmitted }
func (ExportClicked) IntentName() string { return intentExportClicked }

// FileFromPath builds a FileSelected that reads path from disk.
func FileFromPath(path string) FileSelected {
	return FileSelected{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("failed to open %s: %w", path, err)
			}
			return f, nil
		},
	}
}

// FileFromBytes builds a FileSelected over in-memory content.
func FileFromBytes(name string, content []byte) FileSelected {
	return FileSelected{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(content)), nil
		},
	}
}

type handler func(ctx context.Context, in Intent) error

// dispatchTable maps intent names to coordinator operations.
func (c *Coordinator) dispatchTable() map[string]handler {
	return map[string]handler{
		intentFileSelected: func(ctx context.Context, in Intent) error {
			switch v := in.(type) {
			case FileSelected:
				return c.upload(ctx, v)
			case *FileSelected:
				return c.upload(ctx, *v)
			}
			return fmt.Errorf("%w: %T", ErrUnknownIntent, in)
		},
		intentChatSubmitted: func(ctx context.Context, in Intent) error {
			switch v := in.(type) {
			case ChatSubmitted:
				return c.submitChat(ctx, v)
			case *ChatSubmitted:
				return c.submitChat(ctx, *v)
			}
			return fmt.Errorf("%w: %T", ErrUnknownIntent, in)
		},
		intentExportClicked: func(ctx context.Context, in Intent) error {
			return c.export(ctx)
		},
	}
}

// Dispatch routes an intent to its handler.
func (c *Coordinator) Dispatch(ctx context.Context, in Intent) error {
	if in == nil {
		return ErrUnknownIntent
	}
	h, ok := c.handlers[in.IntentName()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownIntent, in.IntentName())
	}
	return h(ctx, in)
}
