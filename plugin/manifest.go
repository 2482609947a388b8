package plugin

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FSMode enumerates filesystem permission modes.
type FSMode string

const (
	FSNone       FSMode = "none"
	FSReadOnly   FSMode = "ro"
	FSReadWrite  FSMode = "rw"
	FSFull       FSMode = "full"
	FSRestricted FSMode = "restricted"
)

// NetMode enumerates network permission modes.
type NetMode string

const (
	NetNone       NetMode = "none"
	NetLocalhost  NetMode = "localhost"
	NetInternal   NetMode = "internal"
	NetInternet   NetMode = "internet"
	NetRestricted NetMode = "restricted"
)

// SystemMode enumerates system permission modes.
type SystemMode string

const (
	SysNone        SystemMode = "none"
	SysProcQuery   SystemMode = "proc_query"
	SysProcControl SystemMode = "proc_control"
	SysEnvRead     SystemMode = "env_read"
	SysEnvWrite    SystemMode = "env_write"
	SysFull        SystemMode = "full"
)

type (
	// Manifest is the persisted tool.json discovery file.
	Manifest struct {
		ID             string                 `json:"id" validate:"required"`
		Name           string                 `json:"name" validate:"required"`
		Version        string                 `json:"version" validate:"required"`
		Description    string                 `json:"description"`
		Author         string                 `json:"author"`
		PluginType     string                 `json:"plugin_type" validate:"required,manifest_plugin_type"`
		EntryPoint     string                 `json:"entry_point" validate:"required"`
		Permissions    ManifestPermissions    `json:"permissions"`
		ConfigSchema   json.RawMessage        `json:"configuration_schema,omitempty"`
		DefaultConfig  json.RawMessage        `json:"default_config,omitempty"`
	}

	// ManifestPermissions is the manifest's permissions block.
	ManifestPermissions struct {
		FS     FSPermission     `json:"fs"`
		Net    NetPermission    `json:"net"`
		System SystemPermission `json:"system"`
		Custom map[string]bool `json:"custom,omitempty"`
	}

	FSPermission struct {
		Mode         FSMode   `json:"mode" validate:"required,oneof=none ro rw full restricted"`
		AllowedPaths []string `json:"allowed_paths,omitempty"`
	}

	NetPermission struct {
		Mode         NetMode  `json:"mode" validate:"required,oneof=none localhost internal internet restricted"`
		AllowedHosts []string `json:"allowed_hosts,omitempty"`
	}

	SystemPermission struct {
		Mode SystemMode `json:"mode" validate:"required,oneof=none proc_query proc_control env_read env_write full"`
	}
)

var manifestValidate = newManifestValidator()

func newManifestValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("manifest_plugin_type", validatePluginType); err != nil {
		panic(fmt.Sprintf("plugin: failed to register manifest_plugin_type validator: %v", err))
	}
	return v
}

func validatePluginType(fl validator.FieldLevel) bool {
	t := fl.Field().String()
	switch t {
	case "wasm", "external", "shared", "container":
		return true
	default:
		return strings.HasPrefix(t, "script:") && len(t) > len("script:")
	}
}

// ParseManifest decodes and validates a tool.json payload, including the
// per-type entry_point rule: ".wasm" for WASM, a valid extension for
// script types.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("plugin: decode manifest: %w", err)
	}
	if m.DefaultConfig == nil {
		m.DefaultConfig = json.RawMessage(`{}`)
	}
	if err := manifestValidate.Struct(m); err != nil {
		return nil, fmt.Errorf("plugin: invalid manifest: %w", err)
	}
	if err := validateEntryPoint(m.PluginType, m.EntryPoint); err != nil {
		return nil, err
	}
	return &m, nil
}

func validateEntryPoint(pluginType, entryPoint string) error {
	switch {
	case pluginType == "wasm":
		if path.Ext(entryPoint) != ".wasm" {
			return fmt.Errorf("plugin: wasm entry_point must have .wasm extension, got %q", entryPoint)
		}
	case strings.HasPrefix(pluginType, "script:"):
		if path.Ext(entryPoint) == "" {
			return fmt.Errorf("plugin: script entry_point must have a file extension, got %q", entryPoint)
		}
	}
	return nil
}
