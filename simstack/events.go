package simstack

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/blesm/logger"
	"github.com/user/blesm/util"
)

// ConnectionEvent records one lifecycle event for post-run inspection
type ConnectionEvent struct {
	Timestamp int64  `json:"timestamp"` // nanoseconds since epoch
	Event     string `json:"event"`     // init, advertising_started, connected, pairing_request, ...
	Handle    uint16 `json:"handle,omitempty"`
	Peer      string `json:"peer,omitempty"` // peer central UUID if known
	Detail    string `json:"detail,omitempty"`
}

// EventLogger appends lifecycle events to a per-device JSONL file
type EventLogger struct {
	logPath string
	mutex   sync.Mutex
	enabled bool
}

// NewEventLogger creates an event logger for a device. A disabled logger
// discards everything.
func NewEventLogger(deviceUUID string, enabled bool) *EventLogger {
	if !enabled {
		return &EventLogger{}
	}
	return &EventLogger{
		logPath: filepath.Join(util.GetDeviceDir(deviceUUID), "connection_events.jsonl"),
		enabled: true,
	}
}

// Log appends one event. Failures are logged and swallowed; the event log
// never disturbs the simulation.
func (el *EventLogger) Log(event ConnectionEvent) {
	if !el.enabled {
		return
	}
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixNano()
	}

	el.mutex.Lock()
	defer el.mutex.Unlock()

	if err := os.MkdirAll(filepath.Dir(el.logPath), 0755); err != nil {
		logger.Warn("simstack", "creating event log dir: %v", err)
		return
	}
	f, err := os.OpenFile(el.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		logger.Warn("simstack", "opening event log: %v", err)
		return
	}
	defer f.Close()

	line, err := json.Marshal(event)
	if err != nil {
		logger.Warn("simstack", "marshaling event: %v", err)
		return
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		logger.Warn("simstack", "writing event log: %v", err)
	}
}

// Path returns the JSONL file path, or empty when disabled
func (el *EventLogger) Path() string {
	return el.logPath
}
