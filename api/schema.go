package api

// Config is the root of a resmerge.hcl file.
//
//	store {
//	  driver = "sqlite"
//	  dsn    = "content.db"
//	}
//
//	search_paths = ["/apps", "/libs"]
//	virtual_root = "/virtual"
//
//	directives {
//	  prefix = "sling:"
//	}
//
//	mount "/mnt/overlay" {
//	  base_paths = ["/apps/overlay", "/libs/overlay"]
//	}
type Config struct {
	Store *StoreConfig `hcl:"store,block"`
	// SearchPaths overrides the search paths the store reports, highest
	// priority first.
	SearchPaths []string `hcl:"search_paths,optional"`
	// VirtualRoot mounts the search-path overlay. Empty disables it.
	VirtualRoot string            `hcl:"virtual_root,optional"`
	Directives  *DirectivesConfig `hcl:"directives,block"`
	Mounts      []*MountConfig    `hcl:"mount,block"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `hcl:"log_level,optional"`
}

// StoreConfig selects the physical content store.
type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres, dir, s3.
	Driver string `hcl:"driver"`
	// DSN is the database file (sqlite), connection string (postgres),
	// root directory (dir), JSON content file to preload (memory) or
	// s3://bucket/key of a content document (s3).
	DSN string    `hcl:"dsn,optional"`
	S3  *S3Config `hcl:"s3,block"`
}

// S3Config locates the object store for the s3 driver. Credentials are
// usually left to RESMERGE_S3_ACCESS_KEY and RESMERGE_S3_SECRET_KEY.
type S3Config struct {
	Endpoint  string `hcl:"endpoint"`
	Region    string `hcl:"region,optional"`
	AccessKey string `hcl:"access_key,optional"`
	SecretKey string `hcl:"secret_key,optional"`
	UseSSL    bool   `hcl:"use_ssl,optional"`
}

// DirectivesConfig renames the directive properties.
type DirectivesConfig struct {
	Prefix string `hcl:"prefix,optional"`
}

// MountConfig is one merged view.
type MountConfig struct {
	Root string `hcl:"root,label"`
	// BasePaths are merged at Root, highest priority first.
	BasePaths []string `hcl:"base_paths,optional"`
	// UseSearchPaths takes the base paths from the store instead.
	UseSearchPaths bool `hcl:"use_search_paths,optional"`
}
