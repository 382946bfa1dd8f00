package config

// SettingsFile mirrors the structure of the featlock.yaml settings file.
type SettingsFile struct {
	Concurrency  int                    `yaml:"concurrency"`
	FetchTimeout string                 `yaml:"fetchTimeout"`
	TagListTTL   string                 `yaml:"tagListTTL"`
	Debug        bool                   `yaml:"debug"`
	Registries   map[string]RegistryDTO `yaml:"registries"`
}

// RegistryDTO is one per-registry override block, keyed by registry host.
type RegistryDTO struct {
	Token     string `yaml:"token"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	PlainHTTP bool   `yaml:"plainHTTP"`
}
