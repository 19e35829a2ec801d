package mapper

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/anicoll/knx-integration/internal/pkg/model"
)

// ReadOnly marks a mapped device as observable but not actionable. Lookups
// collapse it to "no command" so callers cannot accidentally dispatch to it.
const ReadOnly = "READONLY"

var ErrDuplicateKey = errors.New("duplicate command mapping key")

// Mappings is the on-disk shape of the command table, grouped by device
// category purely for the config author's benefit.
type Mappings struct {
	Lights      map[string]string `yaml:"lights"`
	Blinds      map[string]string `yaml:"blinds"`
	Dimmers     map[string]string `yaml:"dimmers"`
	Ventilation map[string]string `yaml:"ventilation"`
	Scenes      map[string]string `yaml:"scenes"`
	Switches    map[string]string `yaml:"switches"`
	Sensors     map[string]string `yaml:"sensors"`
}

// CoverCommands holds the three pulse commands of a motorised covering.
type CoverCommands struct {
	Up   string
	Stop string
	Down string
}

// CommandMapper resolves device keys to vendor control strings. Immutable
// after Load; safe for concurrent reads.
type CommandMapper struct {
	commands map[string]string
}

// Load reads and flattens the category-grouped mapping file. A key that
// appears in more than one category is a load-time error rather than a
// silent overwrite, so a misconfigured table fails fast at startup.
func Load(path string) (*CommandMapper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read command mappings: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*CommandMapper, error) {
	mappings := Mappings{}
	if err := yaml.Unmarshal(data, &mappings); err != nil {
		return nil, fmt.Errorf("failed to parse command mappings: %w", err)
	}

	commands := make(map[string]string)
	for _, category := range []map[string]string{
		mappings.Lights,
		mappings.Blinds,
		mappings.Dimmers,
		mappings.Ventilation,
		mappings.Scenes,
		mappings.Switches,
		mappings.Sensors,
	} {
		for key, command := range category {
			if _, exists := commands[key]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateKey, key)
			}
			commands[key] = command
		}
	}

	zap.L().Info("loaded command mappings", zap.Int("count", len(commands)))
	return &CommandMapper{commands: commands}, nil
}

// GetCommand returns the control string for a device. Absent keys and
// read-only devices both report false.
func (m *CommandMapper) GetCommand(deviceID, page string) (string, bool) {
	key := model.DeviceKey(deviceID, page)
	command, ok := m.commands[key]
	if !ok || command == ReadOnly {
		return "", false
	}
	return command, true
}

// GetCoverCommands returns all three suffixed commands of a covering, or
// false if any is missing or marked read-only.
func (m *CommandMapper) GetCoverCommands(deviceID, page string) (CoverCommands, bool) {
	base := model.DeviceKey(deviceID, page)

	up, okUp := m.commands[base+"_up"]
	stop, okStop := m.commands[base+"_stop"]
	down, okDown := m.commands[base+"_down"]
	if !okUp || !okStop || !okDown {
		return CoverCommands{}, false
	}
	if up == ReadOnly || stop == ReadOnly || down == ReadOnly {
		return CoverCommands{}, false
	}
	return CoverCommands{Up: up, Stop: stop, Down: down}, true
}

func (m *CommandMapper) IsReadOnly(deviceID, page string) bool {
	return m.commands[model.DeviceKey(deviceID, page)] == ReadOnly
}

// Keys lists every mapped key in stable order.
func (m *CommandMapper) Keys() []string {
	keys := lo.Keys(m.commands)
	sort.Strings(keys)
	return keys
}

func (m *CommandMapper) Len() int {
	return len(m.commands)
}
