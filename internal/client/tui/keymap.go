package tui

// Key binding constants used in handleKey.
const (
	KeyQuit      = "q"
	KeyCtrlC     = "ctrl+c"
	KeyEnter     = "enter"
	KeyEsc       = "esc"
	KeySpace     = " "
	KeyUp        = "up"
	KeyDown      = "down"
	KeyJ         = "j"
	KeyK         = "k"
	KeyAdd       = "a"
	KeyRemove    = "x"
	KeyQuery     = "e"
	KeySkill     = "s"
	KeyHistory   = "h"
	KeyAPIKey    = "K"
	KeyCancel    = "c"
	KeyReset     = "r"
	KeyNext      = "n"
	KeyBack      = "b"
	KeyNarrate   = "v"
	KeyListen    = "l"
	KeyDelete    = "d"
	KeyBackspace = "backspace"
)
