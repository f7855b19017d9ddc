package config

// Definition is the raw shape of the configuration file before
// resolution and validation.
type Definition struct {
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"logFormat"`
	Quiet     bool   `mapstructure:"quiet"`

	Paths    pathsDef    `mapstructure:"paths"`
	Store    storeDef    `mapstructure:"store"`
	Engine   engineDef   `mapstructure:"engine"`
	Frontend frontendDef `mapstructure:"frontend"`
}

type pathsDef struct {
	DataDir      string `mapstructure:"dataDir"`
	ArtifactDir  string `mapstructure:"artifactDir"`
	MetadataFile string `mapstructure:"metadataFile"`
}

type storeDef struct {
	Backend  string      `mapstructure:"backend"`
	InfluxDB influxdbDef `mapstructure:"influxdb"`
}

type influxdbDef struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

type engineDef struct {
	Interval      string `mapstructure:"interval"`
	Schedule      string `mapstructure:"schedule"`
	MaxActiveRuns int    `mapstructure:"maxActiveRuns"`
}

type frontendDef struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	AuthToken string `mapstructure:"authToken"`
}
