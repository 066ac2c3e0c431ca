// Package config loads the table metadata core's configuration: registry
// tunables, the META log location, and logging, via a YAML file that falls
// back to a baked-in default when absent.
package config

// Config is the root configuration structure.
type Config struct {
	Logger LoggerConfig `yaml:"logger"`
	Server ServerConfig `yaml:"http-server"`
	Meta   MetaConfig   `yaml:"meta"`
}

// LoggerConfig selects the slog handler.
type LoggerConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ServerConfig covers the read-only introspection HTTP server.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// MetaConfig carries the Meta registry's tunables (spec §3) plus the
// on-disk location of its action log.
type MetaConfig struct {
	ShardID            uint32 `yaml:"shard_id"`
	MaxTables          uint32 `yaml:"max_tables"`
	MaxSchemasPerTable int    `yaml:"max_schemas_per_table"`
	MaxNameLen         int    `yaml:"max_name_len"`
	RootDir            string `yaml:"root_dir"`
	MaxLogSegmentBytes int    `yaml:"max_log_segment_bytes"`
}

// Default returns a baseline development config, used when no config file
// is present at the requested path.
func Default() Config {
	return Config{
		Logger: LoggerConfig{Level: "INFO", JSON: false},
		Server: ServerConfig{Address: "127.0.0.1:8090"},
		Meta: MetaConfig{
			ShardID:            1,
			MaxTables:          4096,
			MaxSchemasPerTable: 16,
			MaxNameLen:         192,
			RootDir:            "./data/meta",
			MaxLogSegmentBytes: 64 * 1024,
		},
	}
}
