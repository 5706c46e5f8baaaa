// ABOUTME: Error taxonomy for conversation loading
// ABOUTME: ValidationError is terminal; LoadError wraps upstream failures and is retryable

package chat

import (
	"errors"
	"fmt"

	"github.com/tripdesk/tripdesk-admin/internal/apiclient"
)

// Message keys for user-visible errors. The UI translates them.
const (
	MsgParticipantsUnknown = "chat.error.participants"
	MsgLoadFailed          = "chat.error.load"
	MsgSessionExpired      = "chat.error.session"
	MsgNetwork             = "chat.error.network"
	MsgRenderFailed        = "chat.error.render"
	MsgNotFound            = "chat.error.not_found"
)

// ValidationError means the input is structurally unusable. Retrying the
// same request cannot help.
type ValidationError struct {
	ConversationID ID
	Reason         string
}

func (e *ValidationError) Error() string {
	if e.ConversationID != "" {
		return fmt.Sprintf("conversation %s: %s", e.ConversationID, e.Reason)
	}
	return e.Reason
}

// MessageKey is the localization key shown to the operator.
func (e *ValidationError) MessageKey() string {
	return MsgParticipantsUnknown
}

// NotFoundError means the conversation is not on any list page the
// dashboard looked at. Reloading the list may find it.
type NotFoundError struct {
	ConversationID ID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("conversation %s not found in the loaded list", e.ConversationID)
}

// MessageKey is the localization key shown to the operator.
func (e *NotFoundError) MessageKey() string {
	return MsgNotFound
}

// LoadError wraps a failed fetch or an undecodable response.
type LoadError struct {
	Op  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// MessageKey picks the localization key from the underlying cause.
func (e *LoadError) MessageKey() string {
	var httpErr *apiclient.HTTPError
	var netErr *apiclient.NetworkError
	switch {
	case errors.As(e.Err, &httpErr) && httpErr.Unauthorized():
		return MsgSessionExpired
	case errors.As(e.Err, &netErr):
		return MsgNetwork
	default:
		return MsgLoadFailed
	}
}

// Retryable reports whether repeating the identical request may succeed.
func Retryable(err error) bool {
	var v *ValidationError
	return err != nil && !errors.As(err, &v)
}

// MessageKeyFor maps any error to a localization key.
func MessageKeyFor(err error) string {
	var keyed interface{ MessageKey() string }
	if errors.As(err, &keyed) {
		return keyed.MessageKey()
	}
	return MsgLoadFailed
}
