package config

// ─── Job Configuration ───

// JobConfig describes one archiver invocation: the operation to run,
// which storages it touches, its entry filters, delta sources and
// codec options, plus the operation selector the CLI subcommand
// implies.
type JobConfig struct {
	Operation    string               `mapstructure:"operation"` // create|test|compare|restore|convert
	Storages     []string             `mapstructure:"storages"`
	Sources      []string             `mapstructure:"sources"` // filesystem roots to walk for create
	Include      EntryListConfig      `mapstructure:"include"`
	Exclude      []string             `mapstructure:"exclude"`
	DeltaSources []DeltaSourceConfig  `mapstructure:"delta_sources"`
	Options      JobOptionsConfig     `mapstructure:"options"`
	Compress     CompressConfig       `mapstructure:"compress"`
	Crypt        CryptConfig          `mapstructure:"crypt"`
}

// EntryListConfig tags include patterns by the entry kind they apply
// to.
type EntryListConfig struct {
	Files       []string `mapstructure:"files"`
	Images      []string `mapstructure:"images"`
	Directories []string `mapstructure:"directories"`
}

// DeltaSourceConfig names one delta-source candidate storage, tried in
// declared order.
type DeltaSourceConfig struct {
	Storage string `mapstructure:"storage"`
}

// JobOptionsConfig maps the JobOptions knobs.
type JobOptionsConfig struct {
	MaxThreads     int    `mapstructure:"max_threads"`
	StripCount     int    `mapstructure:"strip_count"`
	DestinationDir string `mapstructure:"destination_dir"`
	OverwriteFiles bool   `mapstructure:"overwrite_files"`
	FragmentSize   uint64 `mapstructure:"fragment_size"`
	IgnoreCase     bool   `mapstructure:"ignore_case"`
	BlockSize      uint64 `mapstructure:"block_size"`

	DryRun                bool   `mapstructure:"dry_run"`
	SkipUnreadable        bool   `mapstructure:"skip_unreadable"`
	StopOnError           bool   `mapstructure:"stop_on_error"`
	NoStopOnError         bool   `mapstructure:"no_stop_on_error"`
	SkipVerifySignatures  bool   `mapstructure:"skip_verify_signatures"`
	NoFragmentsCheck      bool   `mapstructure:"no_fragments_check"`
	RawImages             bool   `mapstructure:"raw_images"`
	PatternType           string `mapstructure:"pattern_type"` // glob|regex|extended_regex
	OwnerUID              *uint32 `mapstructure:"owner_uid"`
	OwnerGID              *uint32 `mapstructure:"owner_gid"`
}

// CompressConfig selects the byte-compression algorithm and level
// (internal/codec's registry names).
type CompressConfig struct {
	Algorithm string `mapstructure:"algorithm"`
	Level     int    `mapstructure:"level"`
}

// CryptConfig selects whether entries are encrypted and how the
// password is sourced.
type CryptConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	PasswordSource string `mapstructure:"password_source"` // "env:VAR" | "prompt" | "literal:..."
}

func defaultJobConfig() *JobConfig {
	return &JobConfig{
		Options: JobOptionsConfig{
			FragmentSize: 64 * 1024,
			BlockSize:    512,
		},
		Compress: CompressConfig{Algorithm: "none", Level: 6},
	}
}
