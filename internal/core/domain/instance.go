package domain

// InstanceStatus is the emulator-reported state of an instance
type InstanceStatus string

const (
	InstanceRunning  InstanceStatus = "Running"
	InstanceStarting InstanceStatus = "Starting"
	InstanceStopping InstanceStatus = "Stopping"
	InstanceStopped  InstanceStatus = "Stopped"
	InstanceUnknown  InstanceStatus = "Unknown"
)

// Instance is a single emulator VM
type Instance struct {
	Index  int            `json:"index"`
	Name   string         `json:"name"`
	Status InstanceStatus `json:"status"`
}

// IsRunning reports whether the instance can receive adb commands
func (i Instance) IsRunning() bool {
	return i.Status == InstanceRunning
}

// FindInstance returns the instance with the given name
func FindInstance(instances []Instance, name string) (Instance, bool) {
	for _, inst := range instances {
		if inst.Name == name {
			return inst, true
		}
	}
	return Instance{}, false
}
