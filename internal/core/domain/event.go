package domain

// Category is the toast style of an event.
type Category string

const (
	CategorySuccess Category = "success"
	CategoryError   Category = "error"
)

// Event is a notification pushed to live clients. Timestamp is in seconds since the epoch.
type Event struct {
	Text      string   `json:"text"`
	Category  Category `json:"category"`
	Timestamp float64  `json:"timestamp"`
}

// Well known bus channels.
const (
	ChannelServerMessages = "server_messages"
	ChannelContainerList  = "containers_list"
	ChannelImageList      = "images_list"
	ChannelHostMetrics    = "host_metrics"
	containerMetricsFmt   = "container_metrics_"
)

// ContainerMetricsChannel returns the stats channel of one container.
func ContainerMetricsChannel(id string) string {
	return containerMetricsFmt + id
}

// PruneTarget names one object type for system prune.
type PruneTarget string

const (
	PruneContainers PruneTarget = "containers"
	PruneImages     PruneTarget = "images"
	PruneVolumes    PruneTarget = "volumes"
	PruneNetworks   PruneTarget = "networks"
)

// Valid reports whether t is a known prune target.
func (t PruneTarget) Valid() bool {
	switch t {
	case PruneContainers, PruneImages, PruneVolumes, PruneNetworks:
		return true
	}
	return false
}

// PruneReport is the result of pruning one or more object types.
type PruneReport struct {
	Deleted        map[PruneTarget]int `json:"deleted"`
	SpaceReclaimed uint64              `json:"space_reclaimed"`
}

// Total returns the number of deleted objects across all targets.
func (r PruneReport) Total() int {
	n := 0
	for _, c := range r.Deleted {
		n += c
	}
	return n
}

// HostMetrics is a sample of host resource usage.
type HostMetrics struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryTotal   uint64  `json:"memory_total"`
	MemoryUsed    uint64  `json:"memory_used"`
	MemoryPercent float64 `json:"memory_percent"`
	Timestamp     float64 `json:"timestamp"`
}
