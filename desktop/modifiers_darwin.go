package desktop

import (
	"golang.design/x/hotkey"

	"github.com/Paranoid-AF/retouch/keybind"
)

var modifierCodes = map[keybind.Modifier]hotkey.Modifier{
	keybind.Command: hotkey.ModCmd,
	keybind.Control: hotkey.ModCtrl,
	keybind.Alt:     hotkey.ModOption,
	keybind.Shift:   hotkey.ModShift,
}
