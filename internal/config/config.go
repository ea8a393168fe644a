package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "PMO"

const regionalNodeFormat = "ctl00_ContentPlaceHolder1_OrganizationTreeView1_tvHierarchy%sNodes"

// DefaultRegionals maps regional letters to their organization tree node.
var DefaultRegionals = map[string]string{
	"A": fmt.Sprintf(regionalNodeFormat, "n22"),
	"B": fmt.Sprintf(regionalNodeFormat, "n43"),
	"C": fmt.Sprintf(regionalNodeFormat, "n61"),
	"D": fmt.Sprintf(regionalNodeFormat, "n84"),
	"E": fmt.Sprintf(regionalNodeFormat, "n107"),
	"F": fmt.Sprintf(regionalNodeFormat, "n128"),
	"G": fmt.Sprintf(regionalNodeFormat, "n156"),
}

type Config struct {
	BaseURL  string `envconfig:"BASE_URL" default:"https://pmo.mykg.id" validate:"required,url"`
	Username string `envconfig:"USERNAME"`
	Password string `envconfig:"PASSWORD"`

	OutputDir string `envconfig:"OUTPUT_DIR" default:"out" validate:"required"`
	DBPath    string `envconfig:"DB_PATH"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFile   string `envconfig:"LOG_FILE"`

	Browser      string        `envconfig:"BROWSER" default:"chromedp" validate:"oneof=chromedp rod"`
	ChromePath   string        `envconfig:"CHROME_PATH"`
	Headless     bool          `envconfig:"HEADLESS" default:"true"`
	WindowWidth  int           `envconfig:"WINDOW_WIDTH" default:"1920" validate:"min=320"`
	WindowHeight int           `envconfig:"WINDOW_HEIGHT" default:"1080" validate:"min=240"`
	PageTimeout  time.Duration `envconfig:"PAGE_TIMEOUT" default:"60s" validate:"gt=0"`
	ElementWait  time.Duration `envconfig:"ELEMENT_WAIT" default:"20s" validate:"gt=0"`

	PollInterval     time.Duration `envconfig:"POLL_INTERVAL" default:"1500ms" validate:"gt=0"`
	StabilityTimeout time.Duration `envconfig:"STABILITY_TIMEOUT" default:"45s" validate:"gt=0"`
	StableReads      int           `envconfig:"STABLE_READS" default:"3" validate:"min=1"`

	SelectAttempts    int           `envconfig:"SELECT_ATTEMPTS" default:"5" validate:"min=1"`
	LocateAttempts    int           `envconfig:"LOCATE_ATTEMPTS" default:"3" validate:"min=1"`
	LocateDelay       time.Duration `envconfig:"LOCATE_DELAY" default:"2s"`
	EnumerateAttempts int           `envconfig:"ENUMERATE_ATTEMPTS" default:"3" validate:"min=1"`
	EnumerateDelay    time.Duration `envconfig:"ENUMERATE_DELAY" default:"2s"`
	ModalAttempts     int           `envconfig:"MODAL_ATTEMPTS" default:"5" validate:"min=1"`
	ModalDelay        time.Duration `envconfig:"MODAL_DELAY" default:"2s"`
	ReadAttempts      int           `envconfig:"READ_ATTEMPTS" default:"3" validate:"min=1"`
	ReadDelay         time.Duration `envconfig:"READ_DELAY" default:"1s"`
	StoreInterval     time.Duration `envconfig:"STORE_INTERVAL" default:"1s"`

	SkipKeywords  []string          `envconfig:"SKIP_KEYWORDS" default:"tutup,renovasi,maintenance,pindah,closed,relokasi,(Tutup),under renovation,relocating"`
	RegionalNodes map[string]string `envconfig:"REGIONAL_NODES"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s_%s", envPrefix, name)
	}
	return nil
}

// Regionals returns the letter to tree node mapping, with REGIONAL_NODES
// entries overriding the defaults.
func (c Config) Regionals() map[string]string {
	out := make(map[string]string, len(DefaultRegionals)+len(c.RegionalNodes))
	for k, v := range DefaultRegionals {
		out[k] = v
	}
	for k, v := range c.RegionalNodes {
		out[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return out
}

func (c Config) RegionalLetters() []string {
	regionals := c.Regionals()
	out := make([]string, 0, len(regionals))
	for k := range regionals {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ResolveRegionals expands a user selection such as "A,C" or "ALL" into
// known regional letters.
func (c Config) ResolveRegionals(selection string) ([]string, error) {
	sel := strings.ToUpper(strings.TrimSpace(selection))
	if sel == "" || sel == "ALL" {
		return c.RegionalLetters(), nil
	}
	regionals := c.Regionals()
	seen := map[string]struct{}{}
	var out []string
	for _, part := range strings.FieldsFunc(sel, func(r rune) bool { return r == ',' || r == ' ' }) {
		if _, ok := regionals[part]; !ok {
			return nil, fmt.Errorf("unknown regional: %s", part)
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no regionals selected")
	}
	return out, nil
}
