// Package wire defines the client<->server JSON message shapes. Every
// message carries its discriminant in the "k" field so a single JSON
// array of mixed kinds can be dispatched element-by-element.
package wire

// Inbound (client -> server).

// Prelogin requests the instance list.
type Prelogin struct {
	K string `json:"k"` // "prelogin"
}

// Login logs in to instance N as user U with password P.
type Login struct {
	K string `json:"k"` // "l"
	U string `json:"u"`
	P string `json:"p"`
	N string `json:"n"`
}

// FrameInput carries a per-frame input string at frame F.
type FrameInput struct {
	K string `json:"k"` // "f"
	F uint64 `json:"f"`
	I string `json:"i"`
}

// CommandIn is a one-shot command: serial S, verb O, optional arg A.
type CommandIn struct {
	K string `json:"k"` // "o"
	F uint64 `json:"f"`
	S int64  `json:"s"`
	O string `json:"o"`
	A string `json:"a,omitempty"`
}

// ChatIn is a global chat message.
type ChatIn struct {
	K string `json:"k"` // "g"
	M string `json:"m"`
}

// SelfServeCreateUser requests a self-serve account.
type SelfServeCreateUser struct {
	K string `json:"k"` // "selfServeCreateUser"
	U string `json:"u"`
	P string `json:"p"`
	D string `json:"d"`
}

// ChangeMyPassword changes U's password from P to N.
type ChangeMyPassword struct {
	K string `json:"k"` // "changeMyPassword"
	U string `json:"u"`
	P string `json:"p"`
	N string `json:"n"`
}

// GetMyConfig reads the caller's opaque config string.
type GetMyConfig struct {
	K string `json:"k"` // "getMyConfig"
	U string `json:"u"`
	P string `json:"p"`
}

// SetMyConfig writes the caller's opaque config string.
type SetMyConfig struct {
	K string `json:"k"` // "setMyConfig"
	U string `json:"u"`
	P string `json:"p"`
	D string `json:"d"`
}

// AdminShutdown is the shared shape of cleanShutdown/dirtyShutdown.
type AdminShutdown struct {
	K string `json:"k"` // "cleanShutdown" or "dirtyShutdown"
	U string `json:"u"`
	P string `json:"p"`
	R string `json:"r"`
}

// Outbound (server -> client).

// PreloginList is the prelogin response.
type PreloginList struct {
	K string   `json:"k"` // "U"
	N string   `json:"n"` // default/suggested instance name, if any
	L []string `json:"l"` // instance list
}

// WaitOrWelcome ("W") is the login-accepted initial pong; a snapshot
// follows for LIVE logins, nothing further for INBOX holdovers.
type WaitOrWelcome struct {
	K string `json:"k"` // "W"
	T int64  `json:"t"` // timing pong, ms
}

// ControllerStatusEntry is one entry of the initial snapshot's controller
// status map.
type ControllerStatusEntry struct {
	Username        string `json:"u"`
	LastInputString string `json:"i"`
}

// Snapshot ("S") is the initial-state message sent on login.
type Snapshot struct {
	K string                        `json:"k"` // "S"
	P string                        `json:"p"` // playset name
	C int                           `json:"c"` // own controller id
	X map[int]ControllerStatusEntry `json:"x"` // controller status
	G string                        `json:"g"` // serialized state
	F uint64                        `json:"f"` // past horizon frame
	E []interface{}                 `json:"e"` // pending events, unsorted
	R int                           `json:"r"` // frame rate
	L int                           `json:"l"` // chat message max bytes
	M int                           `json:"m"` // chat tokens
}

// FrameAdvance ("F") announces the past horizon advanced to frame F, with
// an optional structural hash.
type FrameAdvance struct {
	K    string `json:"k"` // "F"
	F    uint64 `json:"f"`
	Hash *int64 `json:"h,omitempty"`
}

// RelayedConnect ("c") relays an admitted Connect event.
type RelayedConnect struct {
	K        string `json:"k"` // "c"
	Frame    uint64 `json:"f"`
	C        int    `json:"c"`
	Username string `json:"u"`
	Profile  string `json:"p,omitempty"`
}

// RelayedCommand ("o") relays an admitted Command event.
type RelayedCommand struct {
	K     string `json:"k"` // "o"
	Frame uint64 `json:"f"`
	C     int    `json:"c"`
	S     int64  `json:"s"`
	O     string `json:"o"`
	A     string `json:"a,omitempty"`
}

// RelayedFrame ("f") relays an admitted Frame event; T carries the timing
// pong when this copy is addressed back to the sender.
type RelayedFrame struct {
	K     string `json:"k"` // "f"
	Frame uint64 `json:"f"`
	C     int    `json:"c"`
	I     string `json:"i"`
	T     *int64 `json:"t,omitempty"`
}

// RelayedDisconnect ("d") relays an admitted Disconnect event.
type RelayedDisconnect struct {
	K     string `json:"k"` // "d"
	Frame uint64 `json:"f"`
	C     int    `json:"c"`
}

// ChatOut ("g") relays a global chat message.
type ChatOut struct {
	K string `json:"k"` // "g"
	C int    `json:"c"`
	U string `json:"u"`
	M string `json:"m"`
}

// ChatTokenGrant ("G") grants the recipient +1 chat token.
type ChatTokenGrant struct {
	K string `json:"k"` // "G"
}

// ErrorOut ("E") reports an error; the server closes the connection after
// sending it.
type ErrorOut struct {
	K string `json:"k"` // "E"
	E string `json:"e"`
}

// Done ("D") reports success for a one-shot API call; the server closes
// the connection after sending it.
type Done struct {
	K string `json:"k"` // "D"
	D string `json:"d"`
}
