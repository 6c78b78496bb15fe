package compositor

import "github.com/templelinux/templelinux/internal/ipc"

// ClientEvent is an inbound message from a connected client, already
// decoded from its raw ipc.Message into UI-loop terms.
type ClientEvent struct {
	Session   *Session
	Kind      ClientEventKind
	Seq       uint32
	Index     uint8
	PackedRGB uint32
	Text      string
	Ona       int32
	Mute      bool

	GfxOp  ipc.GfxOp
	Color  int32
	Coords []int32
}

// ClientEventKind enumerates the events the reader coroutine produces
// from inbound client messages.
type ClientEventKind int

const (
	EvPresent ClientEventKind = iota
	EvPaletteColorSet
	EvClipboardSet
	EvSnd
	EvMute
	EvSettingsPush
	EvSettingsPop
	EvGfx
	EvDisconnect
)

// HostEvent is a keyboard/mouse event from the host toolkit, fed into
// the UI loop's multiplexed event stream.
type HostEvent struct {
	Kind  HostEventKind
	X, Y  int
	DX, DY int
	Button int
	Down  bool
	Key   int
	Alt   bool
	Ctrl  bool
	Shift bool
}

// HostEventKind enumerates the raw host input events the UI loop
// consumes before translating them into outbound KEY/MOUSE_* messages.
type HostEventKind int

const (
	HostMouseMove HostEventKind = iota
	HostMouseButton
	HostMouseWheel
	HostKey
)
