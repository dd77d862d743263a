package types

// ProbeConf holds the [probe] section: what to probe and how long to keep going.
type ProbeConf struct {
	Host             string `ini:"host"`
	Port             int    `ini:"port"`
	BufferSize       int    `ini:"buffer_size"`
	Payload          string `ini:"payload"`
	IterationLimit   int    `ini:"iteration_limit"`
	Unbounded        bool   `ini:"unbounded"` // required for iteration_limit = 0
	IntervalMs       int    `ini:"interval_ms"`
	ConnectTimeoutMs int    `ini:"connect_timeout_ms"`
	IOTimeoutMs      int    `ini:"io_timeout_ms"`
	Strict           bool   `ini:"strict"` // treat an echo mismatch as a failure
	ReportFile       string `ini:"report_file"`
}

// TransportConf holds the [transport] section. Type selects the carrier
// the echo bytes travel over: tcp (default), ws, mux, tls or socks5.
type TransportConf struct {
	Type           string `ini:"type"`
	WSPath         string `ini:"ws_path"`
	TLSFingerprint string `ini:"tls_fingerprint"`
	TLSServerName  string `ini:"tls_server_name"`
	TLSInsecure    bool   `ini:"tls_insecure"`
	Socks5Address  string `ini:"socks5_address"`
	Socks5Username string `ini:"socks5_username"` // empty means no authentication
	Socks5Password string `ini:"socks5_password"`
	SocketMark     int    `ini:"socket_mark"`
}

// LogConf contains logging specific configuration
type LogConf struct {
	Level string `ini:"level"`
}

// ServerConf holds the [server] section used by the echoserver binary.
type ServerConf struct {
	Listen     string `ini:"listen"`
	Mode       string `ini:"mode"`
	Path       string `ini:"path"`
	CloseAfter int    `ini:"close_after"`
}

// Config is the unified configuration mapped from echoprobe.ini.
type Config struct {
	ProbeConf     `ini:"probe"`
	TransportConf `ini:"transport"`
	LogConf       `ini:"log"`
	ServerConf    `ini:"server"`
}

const (
	DefaultBufferSize       = 1024
	DefaultPayload          = "Hello, World! Sending some data to test echo of my TCP"
	DefaultConnectTimeoutMs = 5000
	DefaultIOTimeoutMs      = 5000
	DefaultTransport        = "tcp"
	DefaultWSPath           = "/echo"
	DefaultListen           = "0.0.0.0:7778"
)

// DefaultConfig returns a Config with every optional key populated.
// Host, Port and IterationLimit stay zero: the caller must supply them.
func DefaultConfig() *Config {
	return &Config{
		ProbeConf: ProbeConf{
			BufferSize:       DefaultBufferSize,
			Payload:          DefaultPayload,
			ConnectTimeoutMs: DefaultConnectTimeoutMs,
			IOTimeoutMs:      DefaultIOTimeoutMs,
		},
		TransportConf: TransportConf{
			Type:           DefaultTransport,
			WSPath:         DefaultWSPath,
			TLSFingerprint: "chrome",
		},
		LogConf: LogConf{Level: "info"},
		ServerConf: ServerConf{
			Listen: DefaultListen,
			Mode:   "tcp",
			Path:   DefaultWSPath,
		},
	}
}
