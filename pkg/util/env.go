package util

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"
)

// LoadEnv loads the .env file for the given environment (.env.development,
// .env.production ...) and falls back to plain .env. Existing process
// variables are never overwritten.
func LoadEnv(env string) error {
	candidates := []string{".env." + env, ".env"}
	loaded := false
	for _, name := range candidates {
		if err := loadEnvFile(name); err == nil {
			loaded = true
		}
	}
	if !loaded {
		return fmt.Errorf("no env file found for environment %q", env)
	}
	return nil
}

func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

// GetEnv returns the environment variable value, or "" if unset.
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvDefault returns the environment variable value, or def if unset.
func GetEnvDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

// GetIntEnv returns the environment variable as int64, 0 if unset or invalid.
func GetIntEnv(key string) int64 {
	return cast.ToInt64(os.Getenv(key))
}

// GetBoolEnv returns the environment variable as bool, false if unset.
func GetBoolEnv(key string) bool {
	return cast.ToBool(os.Getenv(key))
}

// GetDurationEnvSeconds interprets the variable as a number of seconds.
func GetDurationEnvSeconds(key string) int64 {
	return cast.ToInt64(os.Getenv(key))
}
