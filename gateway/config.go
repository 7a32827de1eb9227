package gateway

// Setting is the gateway's yaml configuration, following the same
// yaml-tagged, `default`-tagged shape the teacher's GatewayOption uses
// (gateway/gateway.go), adapted for a pre-composed supergraph file instead
// of a list of per-subgraph schema files.
type Setting struct {
	Endpoint          string                  `yaml:"endpoint"`
	ServiceName       string                  `yaml:"service_name"`
	Port              int                     `yaml:"port"`
	TimeoutDuration   string                  `yaml:"timeout_duration" default:"5s"`
	SupergraphSDLFile string                  `yaml:"supergraph_sdl_file"`
	RegistrationAddr  string                  `yaml:"registration_addr" default:":8080"`
	PersistedQueries  PersistedQueriesSetting `yaml:"persisted_queries"`
	Opentelemetry     OpentelemetrySetting    `yaml:"opentelemetry"`
}

// PersistedQueriesSetting toggles automatic persisted query support
// (store-on-miss, replay-by-hash), the same opt-in shape as the teacher's
// OpentelemetryTracingSetting.
type PersistedQueriesSetting struct {
	Enable bool `yaml:"enable" default:"false"`
}

type OpentelemetrySetting struct {
	Tracing OpentelemetryTracingSetting `yaml:"tracing"`
}

type OpentelemetryTracingSetting struct {
	Enable bool `yaml:"enable" default:"false"`
}
