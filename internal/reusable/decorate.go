package reusable

import "pageblocks/api/internal/schema"

type DecorationKind string

const (
	DecorationNone   DecorationKind = "none"
	DecorationBanner DecorationKind = "banner"
	DecorationNotice DecorationKind = "notice"
)

type Decoration struct {
	Kind        DecorationKind `json:"kind"`
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Button      string         `json:"button,omitempty"`
}

// Decorate picks what to show next to a value of type t, depth levels below
// the root of a document of type documentType. Inside a shareable document the
// promote action is replaced by a notice. The banner is offered only for items
// of a top-level array field, the only place a promotion can patch.
func Decorate(documentType string, t *schema.Type, depth int) Decoration {
	if !IsPromotable(t, depth) {
		return Decoration{Kind: DecorationNone}
	}
	if documentType == schema.ShareableType {
		return Decoration{Kind: DecorationNotice, Title: Message(MsgNoticeEditing)}
	}
	if depth != 1 {
		return Decoration{Kind: DecorationNone}
	}
	return Decoration{
		Kind:        DecorationBanner,
		Title:       Message(MsgBannerTitle),
		Description: Message(MsgBannerDescription),
		Button:      Message(MsgBannerButton),
	}
}
