package banner

import (
	"github.com/charmbracelet/lipgloss"

	"mqttlat/internal/tui/styles"
)

func GetString() string {
	renderer := lipgloss.DefaultRenderer()

	style := renderer.NewStyle().
		Foreground(styles.ColorBanner).
		Bold(true)

	ascii := `
                  __  __  __      __
   ____ ___  ____ _/ /_/ /_/ /___ _/ /_
  / __ '__ \/ __ '/ __/ __/ / __ '/ __/
 / / / / / / /_/ / /_/ /_/ / /_/ / /_
/_/ /_/ /_/\__, /\__/\__/_/\__,_/\__/
             /_/                       `

	return "\n" + style.Render(ascii) + "\n"
}
