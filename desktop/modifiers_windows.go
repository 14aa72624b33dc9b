package desktop

import (
	"golang.design/x/hotkey"

	"github.com/Paranoid-AF/retouch/keybind"
)

var modifierCodes = map[keybind.Modifier]hotkey.Modifier{
	keybind.Command: hotkey.ModWin,
	keybind.Control: hotkey.ModCtrl,
	keybind.Alt:     hotkey.ModAlt,
	keybind.Shift:   hotkey.ModShift,
}
