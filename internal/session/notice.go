package session

import (
	"fmt"
	"time"
)

// NoticeKind tells the UI how to present a notice.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeWarning
	NoticeGain
	NoticeLoss
	NoticeFatal
)

// DefaultNoticeWindow is how long a transient notice stays visible.
const DefaultNoticeWindow = 2 * time.Second

// Notice is a user-visible message. A zero Expires means it never clears by itself.
type Notice struct {
	Kind    NoticeKind
	Text    string
	Expires time.Time
}

// Active reports whether the notice should still be shown at now.
func (n Notice) Active(now time.Time) bool {
	if n.Text == "" {
		return false
	}
	return n.Expires.IsZero() || now.Before(n.Expires)
}

// Texts shown to the player.
const (
	textWaitTurn        = "¡Espera tu turno!"
	textTimeUp          = "¡Tiempo agotado para este turno!"
	textTurnExpired     = "¡Tiempo agotado!"
	textServerTimeout   = "¡Tu tiempo se agotó!"
	textBlocked         = "Tu cuenta ha sido bloqueada por el administrador."
	textProfileBlocked  = "Tu cuenta está bloqueada. Contacta al administrador."
	textReconnected     = "Reconectado al servidor"
	textConnectionError = "Error de conexión con el servidor: %v"
	textRowFull         = "¡Límite de %d fichas por hilera alcanzado en hilera %d!"
)

// pointsNotice builds the alert shown when a tile's value is known.
func pointsNotice(value int) Notice {
	if value > 0 {
		return Notice{Kind: NoticeGain, Text: fmt.Sprintf("¡Ganaste %d puntos!", value)}
	}
	return Notice{Kind: NoticeLoss, Text: fmt.Sprintf("¡Perdiste %d puntos!", -value)}
}

// pointsMessage is the banner text of a local reveal.
func pointsMessage(value int) string {
	if value > 0 {
		return fmt.Sprintf("¡Ganaste %d puntos!", value)
	}
	return fmt.Sprintf("Perdiste %d puntos", -value)
}
