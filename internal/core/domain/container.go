package domain

// Container represents a container as shown in the dashboard list.
type Container struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Names     []string `json:"names"`
	Image     string   `json:"image"`
	ImageID   string   `json:"image_id"`
	Status    string   `json:"status"` // human readable, e.g. "Up 3 minutes"
	State     Status   `json:"state"`  // running, exited, etc.
	Ports     []Port   `json:"ports"`
	IPAddress string   `json:"ip_address,omitempty"`
}

// Port is a published container port.
type Port struct {
	IP          string `json:"ip,omitempty"`
	PrivatePort uint16 `json:"private_port"`
	PublicPort  uint16 `json:"public_port,omitempty"`
	Type        string `json:"type"`
}

// Image represents a local image as shown in the dashboard list.
type Image struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Tag           string `json:"tag"`
	Created       int64  `json:"created"`
	Size          int64  `json:"size"`
	NumContainers int    `json:"num_containers"`
}
