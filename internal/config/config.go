package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		Mode        string   `yaml:"mode"`
		CORSOrigins []string `yaml:"cors_origins"`
		ResumePath  string   `yaml:"resume_path"`
	} `yaml:"server"`
	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`
	Mail    Mail    `yaml:"mail"`
	Admin   Admin   `yaml:"admin"`
	Logging Logging `yaml:"logging"`
}

// Mail holds the SMTP identity and the operator address notifications go to.
type Mail struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	User          string        `yaml:"user"`
	Pass          string        `yaml:"pass"`
	From          string        `yaml:"from"`
	To            string        `yaml:"to"`
	SubjectPrefix string        `yaml:"subject_prefix"`
	Timeout       time.Duration `yaml:"timeout"`
	SkipTLSVerify bool          `yaml:"skip_tls_verify"`
}

// Configured reports whether notifications can be sent at all.
func (m Mail) Configured() bool {
	return m.Host != "" && m.User != "" && m.Pass != "" && m.Recipient() != ""
}

// Recipient is the operator address, falling back to the SMTP account itself.
func (m Mail) Recipient() string {
	if m.To != "" {
		return m.To
	}
	return m.User
}

// Sender is the From address; defaults to the SMTP account.
func (m Mail) Sender() string {
	if m.From != "" {
		return m.From
	}
	return m.User
}

type Admin struct {
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	JWTSecret string `yaml:"jwt_secret"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console|json
	File   string `yaml:"file"`
}

// Default returns the configuration used when neither file nor environment say otherwise.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Server.ResumePath = "AI_Resume.pdf"
	cfg.Storage.Driver = DriverFile
	cfg.Storage.Path = "data/submissions.json"
	cfg.Mail.Host = "smtp.gmail.com"
	cfg.Mail.Port = 587
	cfg.Mail.SubjectPrefix = "Portfolio Contact: "
	cfg.Mail.Timeout = 10 * time.Second
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "console"
	return cfg
}

// Load builds the configuration from defaults, an optional YAML file and the environment, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read config file %s - %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unable to parse config file %s - %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Server.Port, "PORT")
	setString(&cfg.Server.Mode, "GIN_MODE")
	setString(&cfg.Server.ResumePath, "RESUME_PATH")
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitList(v)
	}

	setString(&cfg.Storage.Driver, "STORE_DRIVER")
	setString(&cfg.Storage.Path, "SUBMISSIONS_PATH")

	setString(&cfg.Mail.Host, "SMTP_HOST")
	// EMAIL_USER/EMAIL_PASS are the names older deployments used.
	setString(&cfg.Mail.User, "EMAIL_USER")
	setString(&cfg.Mail.Pass, "EMAIL_PASS")
	setString(&cfg.Mail.User, "SMTP_USER")
	setString(&cfg.Mail.Pass, "SMTP_PASS")
	setString(&cfg.Mail.From, "SMTP_FROM")
	setString(&cfg.Mail.To, "TO_EMAIL")
	setString(&cfg.Mail.SubjectPrefix, "MAIL_SUBJECT_PREFIX")
	if v := os.Getenv("SMTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SMTP_PORT %q - %w", v, err)
		}
		cfg.Mail.Port = p
	}
	if v := os.Getenv("MAIL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid MAIL_TIMEOUT %q - %w", v, err)
		}
		cfg.Mail.Timeout = d
	}
	if os.Getenv("SMTP_SKIP_TLS_VERIFY") == "1" {
		cfg.Mail.SkipTLSVerify = true
	}

	setString(&cfg.Admin.Username, "ADMIN_USERNAME")
	setString(&cfg.Admin.Password, "ADMIN_PASSWORD")
	setString(&cfg.Admin.JWTSecret, "ADMIN_JWT_SECRET")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
	setString(&cfg.Logging.File, "LOG_FILE")
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage path must not be empty")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid port %q - %w", c.Server.Port, err)
	}
	if c.Mail.Timeout <= 0 {
		return fmt.Errorf("mail timeout must be positive, got %s", c.Mail.Timeout)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
