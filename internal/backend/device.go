package backend

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/born-ml/exprgraph/internal/tensor"
	"github.com/pkg/errors"
)

// DeviceID identifies a specific device, e.g. GPU 0.
type DeviceID struct {
	Type tensor.Device
	No   int
}

// CPU0 is the default CPU device.
var CPU0 = DeviceID{Type: tensor.CPU}

// String returns the device in config form ("cpu:0", "gpu:1").
func (id DeviceID) String() string {
	return fmt.Sprintf("%s:%d", id.Type, id.No)
}

// ParseDeviceID parses "<type>[:<index>]", where type is "cpu" or "gpu".
func ParseDeviceID(config string) (DeviceID, error) {
	name, index, hasIndex := strings.Cut(strings.TrimSpace(config), ":")
	var id DeviceID
	switch strings.ToLower(name) {
	case "", "cpu":
		id.Type = tensor.CPU
	case "gpu", "webgpu":
		id.Type = tensor.GPU
	default:
		return DeviceID{}, errors.Errorf("unknown device type %q in %q", name, config)
	}
	if hasIndex {
		n, err := strconv.Atoi(index)
		if err != nil || n < 0 {
			return DeviceID{}, errors.Errorf("invalid device index %q in %q", index, config)
		}
		id.No = n
	}
	return id, nil
}
