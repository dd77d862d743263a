package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"

	"echoprobe/internal/shared/types"
)

// Environment variables that override the INI file.
const (
	EnvHost  = "ECHOPROBE_HOST"
	EnvPort  = "ECHOPROBE_PORT"
	EnvCount = "ECHOPROBE_COUNT"
)

var supportedTransports = map[string]bool{
	"tcp":    true,
	"ws":     true,
	"mux":    true,
	"tls":    true,
	"socks5": true,
}

// LoadIni maps echoprobe.ini onto cfg and then applies environment overrides.
// Keys missing from the file keep the values already present in cfg.
func LoadIni(cfg *types.Config, fileName string) error {
	return Load(cfg, fileName)
}

// Load accepts anything ini.Load accepts: a file name, []byte or an io.Reader.
func Load(cfg *types.Config, source interface{}) error {
	iniFile, err := ini.Load(source)
	if err != nil {
		return err
	}
	if err := iniFile.MapTo(cfg); err != nil {
		return err
	}
	ApplyEnv(cfg)
	return nil
}

// ApplyEnv overrides host, port and iteration count from the environment.
func ApplyEnv(cfg *types.Config) {
	overrideFromEnvString(&cfg.ProbeConf.Host, EnvHost)
	overrideFromEnvInt(&cfg.ProbeConf.Port, EnvPort)
	overrideFromEnvInt(&cfg.ProbeConf.IterationLimit, EnvCount)
}

// Validate checks the probe and transport sections. Server settings are
// validated by the echoserver binary itself.
func Validate(cfg *types.Config) error {
	var errs []error
	p := cfg.ProbeConf
	if strings.TrimSpace(p.Host) == "" {
		errs = append(errs, errors.New("probe.host is required"))
	}
	if p.Port <= 0 || p.Port > 65535 {
		errs = append(errs, fmt.Errorf("probe.port %d is out of range 1-65535", p.Port))
	}
	if p.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("probe.buffer_size must be positive, got %d", p.BufferSize))
	}
	if p.Payload == "" {
		errs = append(errs, errors.New("probe.payload must not be empty"))
	}
	if p.IterationLimit < 0 {
		errs = append(errs, fmt.Errorf("probe.iteration_limit must not be negative, got %d", p.IterationLimit))
	}
	if p.IterationLimit == 0 && !p.Unbounded {
		errs = append(errs, errors.New("probe.iteration_limit is 0; set unbounded = true to probe until stopped"))
	}
	if p.IntervalMs < 0 || p.ConnectTimeoutMs < 0 || p.IOTimeoutMs < 0 {
		errs = append(errs, errors.New("probe intervals and timeouts must not be negative"))
	}

	t := cfg.TransportConf
	if !supportedTransports[strings.ToLower(t.Type)] {
		errs = append(errs, fmt.Errorf("unknown transport.type '%s'", t.Type))
	}
	if strings.EqualFold(t.Type, "socks5") && t.Socks5Address == "" {
		errs = append(errs, errors.New("transport.socks5_address is required for the socks5 transport"))
	}
	return errors.Join(errs...)
}

// SaveReport writes a session report as indented JSON.
func SaveReport(fileName string, report interface{}) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return os.WriteFile(fileName, data, 0644)
}

func overrideFromEnvString(target *string, envName string) {
	if envValue := os.Getenv(envName); envValue != "" {
		*target = envValue
	}
}

func overrideFromEnvInt(target *int, envName string) {
	envValue := os.Getenv(envName)
	if envValue != "" {
		if intValue, err := strconv.Atoi(envValue); err == nil {
			*target = intValue
		}
	}
}
