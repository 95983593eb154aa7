package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Host         string
	Port         int
	AllowOrigins []string
	LogLevel     string
	MaxUploadMB  int
	LogFile      string

	PubChemURL   string
	PubChemRPS   float64
	TranslateURL string // empty disables translation
	TranslateKey string
	NameDict     string // optional .json/.yaml name dictionary, replaces the curated one
	ProfilePath  string // optional YAML harmonization profile
	ReportDir    string // mapping reports are written here when set
}

// Load reads .env (when present) and the environment.
func Load() Config {
	_ = godotenv.Load()

	port, _ := strconv.Atoi(getenv("PORT", "8082"))
	mb, _ := strconv.Atoi(getenv("MAX_UPLOAD_MB", "64"))
	rps, err := strconv.ParseFloat(getenv("PUBCHEM_RPS", "5"), 64)
	if err != nil || rps <= 0 {
		rps = 5
	}
	origins := strings.Split(getenv("ALLOW_ORIGINS", "*"), ",")
	return Config{
		Host:         getenv("HOST", "127.0.0.1"),
		Port:         port,
		AllowOrigins: origins,
		LogLevel:     getenv("LOG_LEVEL", "info"),
		MaxUploadMB:  mb,
		LogFile:      getenv("LOG_FILE", "logs/hydro-harmonizer.log"),
		PubChemURL:   getenv("PUBCHEM_URL", "https://pubchem.ncbi.nlm.nih.gov"),
		PubChemRPS:   rps,
		TranslateURL: getenv("TRANSLATE_URL", ""),
		TranslateKey: getenv("TRANSLATE_API_KEY", ""),
		NameDict:     getenv("NAME_DICT", ""),
		ProfilePath:  getenv("PROFILE", ""),
		ReportDir:    getenv("REPORT_DIR", ""),
	}
}

func (c Config) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// MapperProfile holds the defaults of one mapper.
type MapperProfile struct {
	Methods           []string          `yaml:"methods"`
	Dict              string            `yaml:"dict"`
	Replace           map[string]string `yaml:"replace"`
	Remove            []string          `yaml:"remove"`
	StripParentheses  bool              `yaml:"strip_parentheses"`
	AllowEmptyAliases bool              `yaml:"allow_empty_aliases"`
	MinScores         map[int]float64   `yaml:"min_scores"`
}

// HarmonizeProfile holds the harmonizer defaults.
type HarmonizeProfile struct {
	ConvertUnits  *bool             `yaml:"convert_units"`
	TargetUnits   string            `yaml:"target_units"`
	OverrideUnits map[string]string `yaml:"override_units"`
	Drop          []string          `yaml:"drop"`
	Merge         [][]string        `yaml:"merge"`
	LimitSymbols  []string          `yaml:"limit_symbols"`
	Decimal       string            `yaml:"decimal"`
}

// Profile is the optional YAML file with per-deployment defaults. Request
// parameters override it.
type Profile struct {
	Names     MapperProfile    `yaml:"names"`
	Units     MapperProfile    `yaml:"units"`
	Harmonize HarmonizeProfile `yaml:"harmonize"`
}

// LoadProfile reads path; an empty path or a missing file gives an empty profile.
func LoadProfile(path string) (Profile, error) {
	var p Profile
	if path == "" {
		return p, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(b, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	return p, nil
}
