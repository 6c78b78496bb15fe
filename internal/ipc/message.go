// Copyright 2015 Google Inc. All rights reserved
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ipc implements the wire protocol between a HolyC interpreter
// process and the compositor: a 20-byte fixed header plus an optional
// payload and, for HELLO_ACK, one ancillary file descriptor carrying the
// shared-memory framebuffer.
package ipc

// Kind enumerates the message kinds exchanged between a client
// (interpreter) and the compositor.
type Kind uint32

const (
	Hello Kind = iota
	HelloAck
	Present
	PresentAck
	MouseMove
	MouseButton
	MouseWheel
	MouseEnter
	MouseLeave
	Key
	PaletteColorSet
	SettingsPush
	SettingsPop
	ClipboardSet
	Snd
	Mute
	Shutdown
	Cmd
)

func (k Kind) String() string {
	switch k {
	case Hello:
		return "HELLO"
	case HelloAck:
		return "HELLO_ACK"
	case Present:
		return "PRESENT"
	case PresentAck:
		return "PRESENT_ACK"
	case MouseMove:
		return "MOUSE_MOVE"
	case MouseButton:
		return "MOUSE_BUTTON"
	case MouseWheel:
		return "MOUSE_WHEEL"
	case MouseEnter:
		return "MOUSE_ENTER"
	case MouseLeave:
		return "MOUSE_LEAVE"
	case Key:
		return "KEY"
	case PaletteColorSet:
		return "PALETTE_COLOR_SET"
	case SettingsPush:
		return "SETTINGS_PUSH"
	case SettingsPop:
		return "SETTINGS_POP"
	case ClipboardSet:
		return "CLIPBOARD_SET"
	case Snd:
		return "SND"
	case Mute:
		return "MUTE"
	case Shutdown:
		return "SHUTDOWN"
	case Cmd:
		return "CMD"
	default:
		return "UNKNOWN"
	}
}

// HeaderSize is the fixed wire size of a Header: 5 little-endian u32s.
const HeaderSize = 20

// Header is the fixed part of every message: kind, a client-chosen
// sequence number (meaningful for PRESENT/PRESENT_ACK), two general
// purpose signed fields (a, b) and a payload length (c) read verbatim
// as the number of payload bytes following the header.
type Header struct {
	Kind Kind
	Seq  uint32
	A    int32
	B    int32
	C    uint32
}

// Message is a decoded Header plus any payload bytes (CLIPBOARD_SET's
// UTF-8 text) and, for HELLO_ACK, the received ancillary fd.
type Message struct {
	Header
	Payload []byte
	FD      int // -1 if none
}

// MaxPayload bounds the c field so a corrupt or hostile header can't
// force an unbounded allocation.
const MaxPayload = 1 << 20

// GfxOp enumerates the graphics primitives a CMD message can carry in
// Header.A, with the draw color in Header.B and packed little-endian
// int32 coordinates in the payload.
type GfxOp int32

const (
	GfxSetPixel GfxOp = iota
	GfxLine
	GfxRectFill
	GfxRectBorder
	GfxCircleFill
	GfxCircleBorder
	GfxEllipseFill
	GfxEllipseBorder
	GfxFloodFill
)

func (g GfxOp) String() string {
	switch g {
	case GfxSetPixel:
		return "SET_PIXEL"
	case GfxLine:
		return "LINE"
	case GfxRectFill:
		return "RECT_FILL"
	case GfxRectBorder:
		return "RECT_BORDER"
	case GfxCircleFill:
		return "CIRCLE_FILL"
	case GfxCircleBorder:
		return "CIRCLE_BORDER"
	case GfxEllipseFill:
		return "ELLIPSE_FILL"
	case GfxEllipseBorder:
		return "ELLIPSE_BORDER"
	case GfxFloodFill:
		return "FLOOD_FILL"
	default:
		return "UNKNOWN"
	}
}
