package desktop

import (
	"golang.design/x/hotkey"

	"github.com/Paranoid-AF/retouch/keybind"
)

// X11 maps Alt to Mod1 and Super to Mod4 on every common keymap.
var modifierCodes = map[keybind.Modifier]hotkey.Modifier{
	keybind.Command: hotkey.Mod4,
	keybind.Control: hotkey.ModCtrl,
	keybind.Alt:     hotkey.Mod1,
	keybind.Shift:   hotkey.ModShift,
}
