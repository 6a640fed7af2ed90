package nexus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/Talus-Network/nexus-sdk-sub002/pkg/canonicalize"
)

// Environment overrides, each taking precedence over the file value.
const (
	EnvRPCURL           = "NEXUS_RPC_URL"
	EnvFaucetURL        = "NEXUS_FAUCET_URL"
	EnvObjectsPath      = "NEXUS_OBJECTS_PATH"
	EnvGasBudget        = "NEXUS_GAS_BUDGET"
	EnvSessionStatePath = "NEXUS_SESSION_STATE_PATH"
)

// Conf is the on-disk CLI and client configuration.
type Conf struct {
	// RPCURL is the ledger JSON-RPC endpoint.
	RPCURL string `yaml:"rpc_url"`
	// FaucetURL is the test-funds endpoint, empty outside test networks.
	FaucetURL string `yaml:"faucet_url,omitempty"`
	// ObjectsPath points at the deployment registry JSON file.
	ObjectsPath string `yaml:"objects_path"`
	// GasBudget is the per-transaction budget in mist.
	GasBudget uint64 `yaml:"gas_budget"`
	// SessionStatePath points at the session-state database.
	SessionStatePath string `yaml:"session_state_path,omitempty"`
}

// DefaultGasBudget is generous enough for every composed transaction in
// this module.
const DefaultGasBudget = 50_000_000

// DefaultConf returns the configuration used when no file exists yet.
func DefaultConf() Conf {
	return Conf{
		RPCURL:    "http://localhost:9000",
		GasBudget: DefaultGasBudget,
	}
}

// LoadConf reads a YAML configuration file and applies environment
// overrides. A missing file yields the defaults, still overridable.
func LoadConf(path string) (Conf, error) {
	conf := DefaultConf()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return Conf{}, configurationf("read conf: %v", err)
	default:
		if err := yaml.Unmarshal(data, &conf); err != nil {
			return Conf{}, configurationf("parse conf: %v", err)
		}
	}

	if v := os.Getenv(EnvRPCURL); v != "" {
		conf.RPCURL = v
	}
	if v := os.Getenv(EnvFaucetURL); v != "" {
		conf.FaucetURL = v
	}
	if v := os.Getenv(EnvObjectsPath); v != "" {
		conf.ObjectsPath = v
	}
	if v := os.Getenv(EnvGasBudget); v != "" {
		budget, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return Conf{}, configurationf("parse %s: %v", EnvGasBudget, err)
		}
		conf.GasBudget = budget
	}
	if v := os.Getenv(EnvSessionStatePath); v != "" {
		conf.SessionStatePath = v
	}

	return conf, nil
}

// Save writes the configuration back, creating parent directories as
// needed.
func (c Conf) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return configurationf("encode conf: %v", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return configurationf("create conf dir: %v", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return configurationf("write conf: %v", err)
	}
	return nil
}

// Fingerprint is a canonical hash of the effective configuration, stable
// across key order and formatting. Used to detect drift between processes
// sharing a session store.
func (c Conf) Fingerprint() (string, error) {
	sum, err := canonicalize.CanonicalHash(map[string]any{
		"rpc_url":            c.RPCURL,
		"faucet_url":         c.FaucetURL,
		"objects_path":       c.ObjectsPath,
		"gas_budget":         fmt.Sprintf("%d", c.GasBudget),
		"session_state_path": c.SessionStatePath,
	})
	if err != nil {
		return "", configurationf("fingerprint conf: %v", err)
	}
	return sum, nil
}
