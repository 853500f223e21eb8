package domain

// Kind identifies what a payload carries on the wire.
type Kind string

const (
	KindText        Kind = "text"
	KindImage       Kind = "image"
	KindAudio       Kind = "audio"
	KindVoice       Kind = "voice"
	KindVideo       Kind = "video"
	KindVideoNote   Kind = "video_note"
	KindDocument    Kind = "document"
	KindSticker     Kind = "sticker"
	KindUnsupported Kind = "unsupported"
)

// Button is an inline action attached to an outbound payload. Pressing it
// comes back through the gateway as a callback event carrying Data.
type Button struct {
	Label string
	Data  string
}

// Payload is a single relayable message body. Text carries the body for
// KindText; media kinds carry a platform file reference and an optional
// caption. One Payload value travels through the whole relay path so the
// primary delivery and the mirror can never branch on kind differently.
type Payload struct {
	Kind    Kind
	Text    string
	FileID  string
	Caption string
	Buttons []Button
}

// TextPayload builds a plain text payload.
func TextPayload(text string) Payload {
	return Payload{Kind: KindText, Text: text}
}

// Supported reports whether the payload kind can be relayed.
func (p Payload) Supported() bool {
	return p.Kind != KindUnsupported && p.Kind != ""
}

// hasCaptionField reports whether the kind carries an inline caption that can
// hold the oversight annotation.
func (p Payload) hasCaptionField() bool {
	switch p.Kind {
	case KindImage, KindAudio, KindVideo, KindDocument:
		return true
	}
	return false
}

// Annotated returns the oversight-sink copies of p, annotated with the
// sender's handle. Kinds with a text or caption field get the handle
// prefixed in place; caption-less kinds (voice, video note, sticker) get a
// separate handle line followed by the copy. Buttons never reach the sink.
func (p Payload) Annotated(handle string) []Payload {
	p.Buttons = nil
	tag := "@" + handle
	switch {
	case p.Kind == KindText:
		p.Text = tag + " " + p.Text
		return []Payload{p}
	case p.hasCaptionField():
		if p.Caption != "" {
			p.Caption = tag + " " + p.Caption
		} else {
			p.Caption = tag
		}
		return []Payload{p}
	default:
		return []Payload{TextPayload(tag), p}
	}
}
