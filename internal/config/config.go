package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const (
	defaultHost        = "0.0.0.0"
	defaultPort        = 2222
	defaultHostKeyPath = ".data/host_ed25519"
	defaultIdleTimeout = 5 * time.Minute

	maximumReadyFD = 1 << 16
)

// Config captures startup settings for the chat server.
type Config struct {
	Host        string
	Port        int
	HostKeyPath string
	IdleTimeout time.Duration

	// ReadyFD, when positive, names an inherited file descriptor that
	// receives a readiness handshake once the listener is bound.
	ReadyFD int
}

// LoadFromEnv loads runtime configuration from environment variables.
func LoadFromEnv() (Config, error) {
	host, err := readRequiredOrDefault("CLAMOR_HOST", defaultHost)
	if err != nil {
		return Config{}, err
	}

	port, err := readInt("CLAMOR_PORT", defaultPort, 1, 65535)
	if err != nil {
		return Config{}, err
	}

	hostKeyPath, err := readRequiredOrDefault("CLAMOR_HOST_KEY_PATH", defaultHostKeyPath)
	if err != nil {
		return Config{}, err
	}
	cleanHostKeyPath := filepath.Clean(hostKeyPath)
	if cleanHostKeyPath == "." {
		return Config{}, fmt.Errorf("CLAMOR_HOST_KEY_PATH must not resolve to current directory")
	}

	idleTimeout, err := readDuration("CLAMOR_IDLE_TIMEOUT", defaultIdleTimeout)
	if err != nil {
		return Config{}, err
	}

	readyFD, err := readInt("CLAMOR_READY_FD", 0, 0, maximumReadyFD)
	if err != nil {
		return Config{}, err
	}

	return Config{
		Host:        host,
		Port:        port,
		HostKeyPath: cleanHostKeyPath,
		IdleTimeout: idleTimeout,
		ReadyFD:     readyFD,
	}, nil
}

func readRequiredOrDefault(key, fallback string) (string, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	if raw == "" {
		return "", fmt.Errorf("%s must not be empty", key)
	}

	return raw, nil
}

func readInt(key string, fallback, min, max int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	if parsed < min || parsed > max {
		return 0, fmt.Errorf("%s must be between %d and %d", key, min, max)
	}

	return parsed, nil
}

func readDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}
