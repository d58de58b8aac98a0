package session

// Status is the connection state of the session.
type Status int

// Connection states.
const (
	StatusIdle Status = iota
	StatusNetDisconnected
	StatusNetConnectFailed
	StatusNetConnected
	StatusConnecting
	StatusConnectFailed
	StatusDisconnected
	StatusConnected
	StatusConnectedInsecure
)

var statusText = map[Status]string{
	StatusIdle:              "Idle. Waiting for connect to be called...",
	StatusNetDisconnected:   "Network disconnected.",
	StatusNetConnectFailed:  "Network connection failed.",
	StatusNetConnected:      "Network connected.",
	StatusConnecting:        "Connecting to the broker...",
	StatusConnectFailed:     "Broker connection failed. Check the account credentials and client id.",
	StatusDisconnected:      "Disconnected from the broker.",
	StatusConnected:         "Connected to the broker.",
	StatusConnectedInsecure: "Connected to the broker. **THIS CONNECTION IS INSECURE** SSL/TLS not enabled.",
}

var statusCode = map[Status]string{
	StatusIdle:              "idle",
	StatusNetDisconnected:   "net_disconnected",
	StatusNetConnectFailed:  "net_connect_failed",
	StatusNetConnected:      "net_connected",
	StatusConnecting:        "connecting",
	StatusConnectFailed:     "connect_failed",
	StatusDisconnected:      "disconnected",
	StatusConnected:         "connected",
	StatusConnectedInsecure: "connected_insecure",
}

// String returns the human-readable explanation.
func (s Status) String() string {
	if t, ok := statusText[s]; ok {
		return t
	}
	return "Unknown status."
}

// Code returns the stable snake_case code.
func (s Status) Code() string {
	if c, ok := statusCode[s]; ok {
		return c
	}
	return "unknown"
}

// Fatal reports whether the status ends the session.
func (s Status) Fatal() bool {
	return s == StatusConnectFailed
}

// Online reports whether the broker session is usable.
func (s Status) Online() bool {
	return s == StatusConnected || s == StatusConnectedInsecure
}

// MarshalText encodes the status as its code.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.Code()), nil
}

// BoardStatus is the registration state of the device.
type BoardStatus int

// Registration states.
const (
	BoardIdle BoardStatus = iota
	BoardRegistering
	BoardOperational
	BoardFailed
)

// String returns the human-readable explanation.
func (b BoardStatus) String() string {
	switch b {
	case BoardRegistering:
		return "Registering board with the broker..."
	case BoardOperational:
		return "Board registered and operational."
	case BoardFailed:
		return "Board registration failed. Operator intervention required."
	default:
		return "Board not registered."
	}
}

// Code returns the stable snake_case code.
func (b BoardStatus) Code() string {
	switch b {
	case BoardRegistering:
		return "registering"
	case BoardOperational:
		return "operational"
	case BoardFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Fatal reports whether the board state is terminal.
func (b BoardStatus) Fatal() bool {
	return b == BoardFailed
}

// MarshalText encodes the board status as its code.
func (b BoardStatus) MarshalText() ([]byte, error) {
	return []byte(b.Code()), nil
}
