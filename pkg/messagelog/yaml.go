package messagelog

import (
	"encoding/hex"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// entryYAML is the exported form of an Entry.
type entryYAML struct {
	Direction string    `yaml:"direction"`
	Timestamp time.Time `yaml:"timestamp"`
	Data      string    `yaml:"data"`
}

// MarshalYAML writes the entry with its data in hex.
func (e Entry) MarshalYAML() (interface{}, error) {
	return entryYAML{
		Direction: e.Direction.String(),
		Timestamp: e.Timestamp,
		Data:      hex.EncodeToString(e.Data),
	}, nil
}

// UnmarshalYAML reads an entry written by MarshalYAML.
func (e *Entry) UnmarshalYAML(value *yaml.Node) error {
	var raw entryYAML
	if err := value.Decode(&raw); err != nil {
		return err
	}
	switch raw.Direction {
	case "send":
		e.Direction = DirectionSend
	case "receive":
		e.Direction = DirectionReceive
	default:
		return fmt.Errorf("messagelog: unknown direction %q", raw.Direction)
	}
	data, err := hex.DecodeString(raw.Data)
	if err != nil {
		return fmt.Errorf("messagelog: entry data: %w", err)
	}
	e.Timestamp = raw.Timestamp
	e.Data = data
	return nil
}

// Export encodes the log as a YAML list of entries.
func (l *Log) Export() ([]byte, error) {
	return yaml.Marshal(l.Entries())
}

// ParseExport decodes entries produced by Log.Export.
func ParseExport(data []byte) ([]Entry, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
