package reusable

import (
	"errors"
	"fmt"

	"pageblocks/api/internal/schema"
)

const (
	MsgBannerTitle        = "banner.title"
	MsgBannerDescription  = "banner.description"
	MsgBannerButton       = "banner.button"
	MsgToastSuccessTitle  = "toast.success-title"
	MsgToastSuccessDesc   = "toast.success-description"
	MsgToastErrorTitle    = "toast.error-title"
	MsgNoDocumentID       = "error.no-document-id"
	MsgErrorFallbackTitle = "error-fallback.title"
	MsgErrorFallbackRetry = "error-fallback.retry-button"
	MsgNoticeEditing      = "notice.editing-reusable"
)

var messages = map[string]string{
	MsgBannerTitle:        "Transform into a reusable page block",
	MsgBannerDescription:  "Is this a commonly used page block? Turn it into a reusable page block",
	MsgBannerButton:       "Make Reusable",
	MsgToastSuccessTitle:  "Block transformed",
	MsgToastSuccessDesc:   "Block has been transformed to a reusable block",
	MsgToastErrorTitle:    "Block could not be transformed",
	MsgNoDocumentID:       "No document ID found",
	MsgErrorFallbackTitle: "Failed to make block reusable",
	MsgErrorFallbackRetry: "Try Again",
	MsgNoticeEditing:      "You are editing a Reusable Page Block.",
}

// Message returns the English text for key, or the key itself when unknown.
func Message(key string) string {
	if text, ok := messages[key]; ok {
		return text
	}
	return key
}

// Notification is the toast shown after a promote action settles.
type Notification struct {
	Status      string `json:"status"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

func SuccessNotification() Notification {
	return Notification{
		Status:      "success",
		Title:       Message(MsgToastSuccessTitle),
		Description: Message(MsgToastSuccessDesc),
	}
}

func ErrorNotification(err error) Notification {
	n := Notification{Status: "error", Title: Message(MsgToastErrorTitle)}
	if err != nil {
		n.Description = err.Error()
	}
	if errors.Is(err, ErrNoDocumentID) {
		n.Description = Message(MsgNoDocumentID)
	}
	return n
}

func pluralize(n int, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}

// Subtitle describes a shareable document in lists, e.g.
// "Reusable Text Block (used in 3 pages)". An unknown count omits usage.
func Subtitle(blockType string, known bool, count int) string {
	label := "Reusable Page Block"
	if blockType == "" {
		return label + " (empty)"
	}
	if name := schema.DisplayName(blockType); name != "" {
		label = "Reusable " + name
	}
	return withUsage(label, known, count)
}

// MissingSubtitle labels a target that has referrers but is not stored.
func MissingSubtitle(known bool, count int) string {
	return withUsage("Reusable Page Block", known, count)
}

func withUsage(label string, known bool, count int) string {
	if !known {
		return label
	}
	return fmt.Sprintf("%s (used in %d %s)", label, count, pluralize(count, "page", "pages"))
}
