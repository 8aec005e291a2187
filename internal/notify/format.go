package notify

import (
	"fmt"
	"time"
)

const timestampLayout = "02/01/2006, 15:04"

// FormatPlayerOnline is the text sent when a player joins a table.
func FormatPlayerOnline(player, mesa string, at time.Time) string {
	return formatPlayer(player, mesa, at, "🟢 CONECTADO")
}

// FormatPlayerOffline is the text sent when a player leaves a table.
func FormatPlayerOffline(player, mesa string, at time.Time) string {
	return formatPlayer(player, mesa, at, "🔴 DESCONECTADO")
}

// SMS are short: one line per field.
func formatPlayer(player, mesa string, at time.Time, status string) string {
	return fmt.Sprintf("🎮 MJAPPGAME\n👤 %s\n🎯 Mesa %s 5.000\n⏰ %s\n%s",
		player, mesa, at.Format(timestampLayout), status)
}
