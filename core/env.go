package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type envBinding struct {
	section string
	key     string
	kind    string
}

// envBindings maps environment variables onto config keys. WEBHOOK_SECRET and
// PORT keep the names integrators already use for the receiver.
var envBindings = map[string]envBinding{
	"WHATSFLOW_SERVICE_NAME":       {key: "service_name", kind: "string"},
	"WHATSFLOW_API_KEY":            {section: "client", key: "api_key", kind: "string"},
	"WHATSFLOW_BASE_URL":           {section: "client", key: "base_url", kind: "string"},
	"WHATSFLOW_TIMEOUT":            {section: "client", key: "timeout_seconds", kind: "int"},
	"WHATSFLOW_LOW_RATE_LIMIT":     {section: "client", key: "low_rate_limit_threshold", kind: "int"},
	"WEBHOOK_SECRET":               {section: "receiver", key: "secret", kind: "string"},
	"PORT":                         {section: "receiver", key: "port", kind: "int"},
	"WHATSFLOW_WEBHOOK_PATH":       {section: "receiver", key: "path", kind: "string"},
	"WHATSFLOW_MAX_BODY_BYTES":     {section: "receiver", key: "max_body_bytes", kind: "int"},
	"WHATSFLOW_ASYNC":              {section: "receiver", key: "async", kind: "bool"},
	"WHATSFLOW_STORE_DRIVER":       {section: "store", key: "driver", kind: "string"},
	"WHATSFLOW_STORE_DSN":          {section: "store", key: "dsn", kind: "string"},
	"WHATSFLOW_REDIS_ADDR":         {section: "store", key: "redis_addr", kind: "string"},
	"WHATSFLOW_DELIVERY_TTL_HOURS": {section: "store", key: "delivery_ttl_hours", kind: "int"},
	"WHATSFLOW_LOG_LEVEL":          {section: "log", key: "level", kind: "string"},
	"WHATSFLOW_LOG_FORMAT":         {section: "log", key: "format", kind: "string"},
}

// EnvLoader builds the raw config map from the process environment. Values
// from the optional dotenv files fill in variables the environment lacks.
type EnvLoader struct {
	Files  []string
	Lookup func(key string) (string, bool)
}

func NewEnvLoader(files ...string) EnvLoader {
	return EnvLoader{Files: files, Lookup: os.LookupEnv}
}

func (l EnvLoader) LoadRaw(context.Context) (map[string]any, error) {
	lookup := l.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	fileValues := map[string]string{}
	for _, file := range l.Files {
		file = strings.TrimSpace(file)
		if file == "" {
			continue
		}
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		values, err := godotenv.Read(file)
		if err != nil {
			return nil, fmt.Errorf("core: read env file %s: %w", file, err)
		}
		for key, value := range values {
			fileValues[key] = value
		}
	}

	raw := map[string]any{}
	for name, binding := range envBindings {
		value, ok := lookup(name)
		if !ok {
			value, ok = fileValues[name]
		}
		value = strings.TrimSpace(value)
		if !ok || value == "" {
			continue
		}
		typed, err := convertEnvValue(value, binding.kind)
		if err != nil {
			return nil, fmt.Errorf("core: env %s: %w", name, err)
		}
		target := raw
		if binding.section != "" {
			section, _ := raw[binding.section].(map[string]any)
			if section == nil {
				section = map[string]any{}
				raw[binding.section] = section
			}
			target = section
		}
		target[binding.key] = typed
	}
	return raw, nil
}

func convertEnvValue(value string, kind string) (any, error) {
	switch kind {
	case "int":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %q", value)
		}
		return parsed, nil
	case "bool":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("expected boolean, got %q", value)
		}
		return parsed, nil
	default:
		return value, nil
	}
}
