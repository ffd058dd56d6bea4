package config

// Default configuration values.
const (
	DefaultSchemaFile = "schema.yaml"
	DefaultStatePath  = ".vegabase/state.db"
	DefaultTargetType = "sqlite"
)

// defaultPorts are the listening ports assumed when a network target omits one.
var defaultPorts = map[string]int{
	"postgres": 5432,
	"mysql":    3306,
}

// ApplyDefaults applies default values to a ProjectConfig.
func ApplyDefaults(c *ProjectConfig) {
	if c == nil {
		return
	}
	if c.SchemaFile == "" {
		c.SchemaFile = DefaultSchemaFile
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStatePath
	}
	ApplyTargetDefaults(c.Target)
}

// ApplyTargetDefaults applies default values to a TargetConfig based on the target type.
func ApplyTargetDefaults(t *TargetConfig) {
	if t == nil {
		return
	}

	if t.Schema == "" {
		t.Schema = DefaultSchemaForType(t.Type)
	}

	if t.Host != "" && t.Port == 0 {
		t.Port = defaultPorts[t.Type]
	}
}

// ValidateTarget validates a target configuration.
func ValidateTarget(t *TargetConfig) error {
	if t == nil {
		return nil
	}
	return t.Validate()
}
