package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`   ____ _                           ____                  `, "#5eead4"},
	{`  / ___| | __ _ _   _  ___ ___  ___/ ___|  ___ __ _ _ __  `, "#2dd4bf"},
	{` | |  _| |/ _' | | | |/ __/ _ \/ __\___ \ / __/ _' | '_ \ `, "#14b8a6"},
	{` | |_| | | (_| | |_| | (_| (_) \__ \___) | (_| (_| | | | |`, "#0d9488"},
	{`  \____|_|\__,_|\__,_|\___\___/|___/____/ \___\__,_|_| |_|`, "#0f766e"},
}

// PrintBanner writes the GlaucoScan banner, coloured when the terminal supports it.
func PrintBanner(w io.Writer) {
	p := termenv.ColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
