package env

import (
	"os"

	"github.com/denisbrodbeck/machineid"
)

// AppID scopes the machine ID to this application.
const AppID = "currentloop"

// MachineID retrieves the unique ID identifying the machine. It falls back
// to the host name when the ID is not available.
func MachineID() string {
	id, err := machineid.ProtectedID(AppID)
	if err != nil {
		host, _ := os.Hostname()
		return host
	}
	return id
}

// HostID is a short form of MachineID used in topics.
func HostID() string {
	id := MachineID()
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}
