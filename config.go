package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Seednode/foosball/internal/teams"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

type Config struct {
	allowedOrigins []string
	bind           string
	noAnimate      bool
	port           int
	prefix         string
	profile        bool
	rosterFile     string
	seed           int64
	sessionTimeout time.Duration
	teamSize       int
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.teamSize < 1 {
		return fmt.Errorf("invalid team size (must be at least 1): %d", c.teamSize)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

// randomSource is seeded when --seed is set, so draws can be replayed.
func (c *Config) randomSource() teams.RandomSource {
	if c.seed != 0 {
		return teams.NewSeededSource(c.seed)
	}
	return teams.NewCryptoSource()
}

type rosterFile struct {
	Players []string `yaml:"players"`
}

func loadRoster(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file: %w", err)
	}

	var rf rosterFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse roster file: %w", err)
	}

	return rf.Players, nil
}

// defaultRoster returns the players a fresh roster starts with. nil means
// the built-in defaults.
func (c *Config) defaultRoster() []string {
	if c.rosterFile == "" {
		return nil
	}

	players, err := loadRoster(c.rosterFile)
	if err != nil {
		log.Warn().Err(err).Str("path", c.rosterFile).Msg("using built-in roster")
		return nil
	}

	return players
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("FOOSBALL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "foosball",
		Short:         "Randomly pairs up players for foosball, with a suspenseful reveal.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			setupLogging(cfg, cmd.ErrOrStderr())
			return cfg.validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return ServePage(cmd.Context(), cfg)
		},
	}

	pfs := cmd.PersistentFlags()
	pfs.StringVar(&cfg.rosterFile, "roster", "", "yaml file with the default players (env: FOOSBALL_ROSTER)")
	pfs.Int64Var(&cfg.seed, "seed", 0, "seed for reproducible draws, 0 for crypto randomness (env: FOOSBALL_SEED)")
	pfs.IntVarP(&cfg.teamSize, "team-size", "k", teams.DefaultTeamSize, "players per team (env: FOOSBALL_TEAM_SIZE)")
	pfs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: FOOSBALL_VERBOSE)")

	fs := cmd.Flags()
	fs.StringSliceVar(&cfg.allowedOrigins, "allowed-origins", nil, "origins allowed by CORS, unset to disable (env: FOOSBALL_ALLOWED_ORIGINS)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: FOOSBALL_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: FOOSBALL_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: FOOSBALL_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: FOOSBALL_PROFILE)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle tables are closed (env: FOOSBALL_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: FOOSBALL_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: FOOSBALL_TLS_KEY)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: FOOSBALL_VERSION)")

	drawCmd := newDrawCmd(cfg)
	cmd.AddCommand(drawCmd)

	bindFlags(v, pfs)
	bindFlags(v, fs)
	bindFlags(v, drawCmd.Flags())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("foosball v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
