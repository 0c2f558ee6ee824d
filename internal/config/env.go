package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}

// envInt falls back to def when the variable is unset or not a number.
func envInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func envSeconds(k string, def time.Duration) time.Duration {
	return time.Duration(envInt(k, int(def/time.Second))) * time.Second
}

func envMillis(k string, def time.Duration) time.Duration {
	return time.Duration(envInt(k, int(def/time.Millisecond))) * time.Millisecond
}
