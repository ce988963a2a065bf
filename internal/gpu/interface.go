package gpu

// Reader exposes the GPU readings the bridge reports
type Reader interface {
	Name() string
	Temperature() (Temperature, error)
	FanSpeed() (FanSpeed, error)
	Shutdown() error
}

// Domain types for type safety and validation
type (
	Temperature int
	FanSpeed    int
)
