// Package channel connects the conversation engine to the WhatsApp bridge:
// it decodes raw inbound envelopes, keeps a bounded message history, and
// maintains the websocket link used for sending replies.
package channel

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Placeholder bodies for inbound content the engine cannot act on.
const (
	BodyImage       = "[Imagen recibida]"
	BodyVideo       = "[Video recibido]"
	BodyDocument    = "[Documento recibido]"
	BodyAudio       = "[Audio recibido]"
	BodySticker     = "[Sticker recibido]"
	BodyLocation    = "[Ubicación recibida]"
	BodyUnsupported = "[Mensaje no soportado]"
)

const jidSuffix = "@s.whatsapp.net"

// Inbound is one decoded message from the bridge.
type Inbound struct {
	UserID    string
	Text      string
	Type      string
	PushName  string
	Timestamp time.Time
}

// rawEnvelope mirrors the bridge's wire shape. Only the content variants the
// gateway understands are declared; everything else decodes to nil.
type rawEnvelope struct {
	Key struct {
		RemoteJID string `json:"remoteJid"`
		FromMe    bool   `json:"fromMe"`
		ID        string `json:"id"`
	} `json:"key"`
	PushName         string `json:"pushName"`
	MessageTimestamp int64  `json:"messageTimestamp"`
	Message          *struct {
		Conversation        string `json:"conversation"`
		ExtendedTextMessage *struct {
			Text string `json:"text"`
		} `json:"extendedTextMessage"`
		ImageMessage *struct {
			Caption string `json:"caption"`
		} `json:"imageMessage"`
		VideoMessage *struct {
			Caption string `json:"caption"`
		} `json:"videoMessage"`
		DocumentMessage *struct {
			Caption  string `json:"caption"`
			FileName string `json:"fileName"`
		} `json:"documentMessage"`
		AudioMessage    json.RawMessage `json:"audioMessage"`
		StickerMessage  json.RawMessage `json:"stickerMessage"`
		LocationMessage json.RawMessage `json:"locationMessage"`
	} `json:"message"`
}

// ErrSkip marks envelopes that are valid but not conversational input (own
// messages, status broadcasts, empty envelopes).
var ErrSkip = fmt.Errorf("channel: envelope skipped")

// Decode parses one bridge envelope into an Inbound message. Envelopes that
// should not reach the engine return ErrSkip.
func Decode(raw []byte) (*Inbound, error) {
	var env rawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("channel: decode envelope: %w", err)
	}

	if env.Key.FromMe || env.Message == nil {
		return nil, ErrSkip
	}
	if env.Key.RemoteJID == "" || strings.HasPrefix(env.Key.RemoteJID, "status@") {
		return nil, ErrSkip
	}
	// Group chats carry a different namespace; the gateway is 1:1 only.
	if !strings.HasSuffix(env.Key.RemoteJID, jidSuffix) {
		return nil, ErrSkip
	}

	in := &Inbound{
		UserID:   StripJID(env.Key.RemoteJID),
		PushName: env.PushName,
	}
	if env.MessageTimestamp > 0 {
		in.Timestamp = time.Unix(env.MessageTimestamp, 0)
	} else {
		in.Timestamp = time.Now()
	}

	m := env.Message
	switch {
	case strings.TrimSpace(m.Conversation) != "":
		in.Type = "text"
		in.Text = strings.TrimSpace(m.Conversation)
	case m.ExtendedTextMessage != nil && strings.TrimSpace(m.ExtendedTextMessage.Text) != "":
		in.Type = "text"
		in.Text = strings.TrimSpace(m.ExtendedTextMessage.Text)
	case m.ImageMessage != nil:
		in.Type = "image"
		in.Text = captionOr(m.ImageMessage.Caption, BodyImage)
	case m.VideoMessage != nil:
		in.Type = "video"
		in.Text = captionOr(m.VideoMessage.Caption, BodyVideo)
	case m.DocumentMessage != nil:
		in.Type = "document"
		in.Text = captionOr(m.DocumentMessage.Caption, BodyDocument)
	case m.AudioMessage != nil:
		in.Type = "audio"
		in.Text = BodyAudio
	case m.StickerMessage != nil:
		in.Type = "sticker"
		in.Text = BodySticker
	case m.LocationMessage != nil:
		in.Type = "location"
		in.Text = BodyLocation
	default:
		in.Type = "unsupported"
		in.Text = BodyUnsupported
	}

	return in, nil
}

func captionOr(caption, placeholder string) string {
	if trimmed := strings.TrimSpace(caption); trimmed != "" {
		return trimmed
	}
	return placeholder
}

// StripJID removes the channel namespace from a WhatsApp address, yielding
// the stable user identity the rest of the system keys on.
func StripJID(jid string) string {
	return strings.TrimSuffix(jid, jidSuffix)
}

// ToJID is the inverse of StripJID for outbound sends.
func ToJID(userID string) string {
	if strings.Contains(userID, "@") {
		return userID
	}
	return userID + jidSuffix
}
