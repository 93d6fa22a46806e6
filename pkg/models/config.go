package models

// Config is the root configuration for the deployment toolkit
type Config struct {
	Snowflake    Snowflake     `yaml:"snowflake"`
	Environments []Environment `yaml:"environments"`
	Repository   Repository    `yaml:"repository"`
	Deployment   Deployment    `yaml:"deployment"`
	Datasets     Datasets      `yaml:"datasets"`
}

// Snowflake holds connection settings
type Snowflake struct {
	Account   string `yaml:"account"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Role      string `yaml:"role"`
	Warehouse string `yaml:"warehouse"`
	Database  string `yaml:"database"`
	Schema    string `yaml:"schema"`
}

// Environment describes a deployment target (dev, test, prod)
type Environment struct {
	Name         string    `yaml:"name"`
	Database     string    `yaml:"database"`
	SchemaSuffix string    `yaml:"schema_suffix"`
	Warehouse    Warehouse `yaml:"warehouse"`
	Roles        []string  `yaml:"roles"`
}

// Warehouse describes the compute warehouse provisioned for an environment
type Warehouse struct {
	Name        string `yaml:"name"`
	Size        string `yaml:"size"`
	AutoSuspend int    `yaml:"auto_suspend"`
	AutoResume  bool   `yaml:"auto_resume"`
}

// Repository points at the git repository holding DDL sources
type Repository struct {
	GitURL  string `yaml:"git_url"`
	Branch  string `yaml:"branch"`
	DDLRoot string `yaml:"ddl_root"` // path of ddl/ inside the checkout
	Path    string `yaml:"path"`     // local checkout path; set after sync
}

// Deployment contains deployment-specific configuration
type Deployment struct {
	Timeout         string `yaml:"timeout"` // e.g. "30m"
	MaxRetries      int    `yaml:"max_retries"`
	ContinueOnError bool   `yaml:"continue_on_error"` // keep executing after a failed statement
	Validate        bool   `yaml:"validate"`          // validate after deployment
	DryRun          bool   `yaml:"dry_run"`
}

// Datasets configures the CSV staging loader
type Datasets struct {
	Directory string `yaml:"directory"` // directory holding the CSV files
	Stage     string `yaml:"stage"`     // named stage used for PUT/COPY
	OnError   string `yaml:"on_error"`  // COPY INTO ON_ERROR policy
}

// EnvironmentByName returns the environment with the given name
func (c *Config) EnvironmentByName(name string) (Environment, bool) {
	for _, env := range c.Environments {
		if env.Name == name {
			return env, true
		}
	}
	return Environment{}, false
}
