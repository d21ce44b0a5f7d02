package transport

import (
	"context"
	"errors"
)

// ErrPermissionDenied is returned by adapters when the platform rejects a send
// because the bot lacks the right to post in the target chat. Callers treat it
// as a non-fatal delivery failure.
var ErrPermissionDenied = errors.New("permission denied")

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

func (t ChatTarget) IsZero() bool { return t.ChatID == 0 }

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// File is an in-memory attachment (one rendered menu page).
type File struct {
	Name string
	Data []byte
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)

	// SendAlbum delivers a caption plus a set of image files to one chat.
	// Adapters are responsible for platform chunking limits.
	SendAlbum(ctx context.Context, to ChatTarget, caption string, files []File) error

	// ChatByID resolves a destination handle. Absence is a valid outcome,
	// reported as ok=false without an error.
	ChatByID(ctx context.Context, id int64) (ChatTarget, bool)
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
