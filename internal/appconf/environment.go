package appconf

import "strings"

// Environment is the operating environment the fixture runs in.
type Environment int

const (
	Development Environment = iota
	Test
	Production
)

// EnvFlagToEnvironment maps a flag value to an Environment. Unknown values
// fall back to Development.
func EnvFlagToEnvironment(env string) Environment {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "test":
		return Test
	case "production", "prod":
		return Production
	default:
		return Development
	}
}

func (e Environment) String() string {
	switch e {
	case Test:
		return "test"
	case Production:
		return "production"
	default:
		return "development"
	}
}

// MarshalText lets Environment round-trip through YAML and env files.
func (e Environment) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

func (e *Environment) UnmarshalText(text []byte) error {
	*e = EnvFlagToEnvironment(string(text))
	return nil
}
