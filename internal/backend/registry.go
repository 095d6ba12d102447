package backend

import (
	"os"
	"strconv"
	"sync"

	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Constructor creates a backend bound to id.
type Constructor func(id DeviceID, seed uint64) (Backend, error)

var (
	registryMu   sync.RWMutex
	constructors = make(map[tensor.Device]Constructor)
)

// Register makes a backend available for a device type.
//
// To be safe, call Register during initialization of a package.
func Register(device tensor.Device, constructor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	constructors[device] = constructor
}

// ByDeviceID creates the registered backend for id.
func ByDeviceID(id DeviceID, seed uint64) (Backend, error) {
	registryMu.RLock()
	constructor, found := constructors[id.Type]
	registryMu.RUnlock()
	if !found {
		return nil, errors.Errorf("no backend registered for device %s -- maybe import the backend package, e.g. _ %q?",
			id, "github.com/born-ml/exprgraph/backend/cpu")
	}
	b, err := constructor(id, seed)
	if err != nil {
		return nil, errors.WithMessagef(err, "creating backend for device %s", id)
	}
	klog.V(1).Infof("backend %s bound to %s (seed %d)", b.Name(), id, seed)
	return b, nil
}

// ConfigEnvVar is the environment variable with the default device
// configuration, formatted as "<type>[:<index>]" (e.g. "cpu", "gpu:0").
const ConfigEnvVar = "EXPRGRAPH_BACKEND"

// SeedEnvVar is the environment variable with the default random seed.
const SeedEnvVar = "EXPRGRAPH_SEED"

// DefaultSeed is used when no seed is configured.
const DefaultSeed uint64 = 1234

// DefaultConfig is the device configuration used when ConfigEnvVar is unset.
var DefaultConfig string

// New returns a backend for the default configuration.
//
// The device comes from ConfigEnvVar if set, else DefaultConfig, else CPU.
// The seed comes from SeedEnvVar if set, else DefaultSeed.
func New() (Backend, error) {
	config := DefaultConfig
	if env, found := os.LookupEnv(ConfigEnvVar); found {
		config = env
	}
	seed := DefaultSeed
	if env, found := os.LookupEnv(SeedEnvVar); found {
		s, err := strconv.ParseUint(env, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s=%q", SeedEnvVar, env)
		}
		seed = s
	}
	return NewWithConfig(config, seed)
}

// NewWithConfig parses config with ParseDeviceID and creates the backend.
func NewWithConfig(config string, seed uint64) (Backend, error) {
	id, err := ParseDeviceID(config)
	if err != nil {
		return nil, err
	}
	return ByDeviceID(id, seed)
}
