package banner

import (
	"github.com/charmbracelet/lipgloss"
)

func GetString() string {
	style := lipgloss.DefaultRenderer().NewStyle().
		Foreground(lipgloss.Color("#7D56F4")).
		Bold(true)

	ascii := `
   ______      ______ __________ ___
  / ___/ | /| / / __ '/ ___/ __ '__ \
 (__  )| |/ |/ / /_/ / /  / / / / / /
/____/ |__/|__/\__,_/_/  /_/ /_/ /_/
   _____/ /________  __________
  / ___/ __/ ___/ _ \/ ___/ ___/
 (__  ) /_/ /  /  __(__  |__  )
/____/\__/_/   \___/____/____/       `

	return "\n" + style.Render(ascii) + "\n"
}
