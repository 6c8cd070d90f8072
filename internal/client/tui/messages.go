package tui

import (
	"github.com/bryanwahyu/resolve-ai/internal/domain/repair"
)

// ChangedMsg is posted by the session or tracker after a background change.
type ChangedMsg struct{}

// MediaEncodedMsg carries the outcome of an add-media batch.
type MediaEncodedMsg struct {
	Items  []repair.MediaItem
	Errors []error
}

// ActionErrorMsg surfaces a failed user action in the status line.
type ActionErrorMsg struct {
	Err error
}

// NoticeMsg shows a transient status message.
type NoticeMsg struct {
	Text string
}

// ClearNoticeMsg fires after a delay to clear the status line.
type ClearNoticeMsg struct{}
