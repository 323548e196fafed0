package auth

import (
	"encoding/hex"
	"fmt"

	"github.com/pelletier/go-toml"
)

// FileConfig represents authd link configuration described by a TOML
// file.
// Ref: https://github.com/toml-lang/toml
type FileConfig struct {
	// entire tree as a map
	cm map[string]interface{}
	// map of link name to link config
	links map[string]*LinkConfig
}

// LinkConfig describes one peer-to-peer link to authenticate.
type LinkConfig struct {
	Role Role
	// SharedKey overrides the built-in default when non-nil.
	SharedKey *[SharedKeyLen]byte
	RecvPort  uint16
	SendPort  uint16
	RecvIP    string
	SendIP    string
}

func toString(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("supplied value could not be parsed as a string")
}

func toRole(v interface{}) (Role, error) {
	s, err := toString(v)
	if err != nil {
		return 0, err
	}
	switch s {
	case "client":
		return RoleClient, nil
	case "server":
		return RoleServer, nil
	}
	return 0, fmt.Errorf("expect 'client' or 'server'")
}

func toUDPPort(v interface{}) (uint16, error) {
	switch n := v.(type) {
	case int64:
		if n < 0 || n > 0xffff {
			return 0, fmt.Errorf("port %v out of range", n)
		}
		return uint16(n), nil
	case uint64:
		if n > 0xffff {
			return 0, fmt.Errorf("port %v out of range", n)
		}
		return uint16(n), nil
	}
	return 0, fmt.Errorf("expected integer port number")
}

func toSharedKey(v interface{}) (*[SharedKeyLen]byte, error) {
	s, err := toString(v)
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("shared_key must be hex encoded: %v", err)
	}
	if len(b) != SharedKeyLen {
		return nil, fmt.Errorf("shared_key must be %d bytes, got %d", SharedKeyLen, len(b))
	}
	var key [SharedKeyLen]byte
	copy(key[:], b)
	return &key, nil
}

func newLinkConfig(lcfg map[string]interface{}) (*LinkConfig, error) {
	lc := LinkConfig{}
	for k, v := range lcfg {
		var err error
		switch k {
		case "role":
			lc.Role, err = toRole(v)
		case "shared_key":
			lc.SharedKey, err = toSharedKey(v)
		case "recv_port":
			lc.RecvPort, err = toUDPPort(v)
		case "send_port":
			lc.SendPort, err = toUDPPort(v)
		case "recv_ip":
			lc.RecvIP, err = toString(v)
		case "send_ip":
			lc.SendIP, err = toString(v)
		default:
			return nil, fmt.Errorf("unrecognised parameter '%v'", k)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to process %v: %v", k, err)
		}
	}
	return &lc, nil
}

func (cfg *FileConfig) loadLinks() error {
	var links map[string]interface{}

	if got, ok := cfg.cm["link"]; ok {
		links, ok = got.(map[string]interface{})
		if !ok {
			return fmt.Errorf("link instances must be named, e.g. '[link.mylink]'")
		}
	} else {
		return fmt.Errorf("no link table present")
	}

	for name, got := range links {
		lmap, ok := got.(map[string]interface{})
		if !ok {
			return fmt.Errorf("config for link %v isn't a map", name)
		}
		lcfg, err := newLinkConfig(lmap)
		if err != nil {
			return fmt.Errorf("link %v: %v", name, err)
		}
		cfg.links[name] = lcfg
	}
	return nil
}

func newConfig(tree *toml.Tree) (*FileConfig, error) {
	cfg := &FileConfig{
		cm:    tree.ToMap(),
		links: make(map[string]*LinkConfig),
	}
	if err := cfg.loadLinks(); err != nil {
		return nil, fmt.Errorf("failed to parse links: %v", err)
	}
	return cfg, nil
}

// LoadFile loads configuration from the specified file.
func LoadFile(path string) (*FileConfig, error) {
	tree, err := toml.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %v", err)
	}
	return newConfig(tree)
}

// LoadString loads configuration from the specified string.
func LoadString(content string) (*FileConfig, error) {
	tree, err := toml.Load(content)
	if err != nil {
		return nil, fmt.Errorf("failed to load config string: %v", err)
	}
	return newConfig(tree)
}

// GetLinks returns a map of link name to link config for all the
// links described by the configuration.
func (cfg *FileConfig) GetLinks() map[string]*LinkConfig {
	return cfg.links
}

// ToMap provides access to the configuration for application-specific
// information to be handled.
func (cfg *FileConfig) ToMap() map[string]interface{} {
	return cfg.cm
}
