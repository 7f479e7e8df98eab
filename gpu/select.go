package gpu

import "fmt"

// AutoDevice asks SelectDevice to pick a device by capability.
const AutoDevice = -1

// SelectDevice picks the device used for the shared context.
//
// With index >= 0 the device at that position is returned as-is. Otherwise
// the first GL-sharing GPU wins, then the first GL-sharing device of any
// type. Devices that cannot share with OpenGL are never auto-selected.
func SelectDevice(devices []DeviceInfo, index int) (DeviceInfo, error) {
	if len(devices) == 0 {
		return DeviceInfo{}, ErrNoDevice
	}
	if index >= 0 {
		if index >= len(devices) {
			return DeviceInfo{}, fmt.Errorf("%w: index %d out of range (%d devices)", ErrNoDevice, index, len(devices))
		}
		return devices[index], nil
	}
	for _, d := range devices {
		if d.GLSharing && d.Type == DeviceGPU {
			return d, nil
		}
	}
	for _, d := range devices {
		if d.GLSharing {
			return d, nil
		}
	}
	return DeviceInfo{}, ErrNoInteropDevice
}
