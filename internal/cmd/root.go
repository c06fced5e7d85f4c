package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/den-kezlia/torrent/internal/datasource"
	"github.com/den-kezlia/torrent/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is overridden at build time with -ldflags "-X .../internal/cmd.version=..."
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "streets",
	Short: "Import OpenStreetMap streets into a local store",
	Long: `Streets imports the named highways inside an administrative boundary from
OpenStreetMap (via the Overpass API) and reconciles them into a street store.

Ways that share a name become one street with one segment per way, so
re-running an import converges instead of duplicating rows.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("database-driver", store.DriverSQLite, "Store backend (sqlite, postgres)")
	rootCmd.PersistentFlags().String("database-dsn", "", "SQLite file path or Postgres connection string (default: "+store.DefaultSQLitePath+")")
	rootCmd.PersistentFlags().String("overpass-endpoint", datasource.DefaultEndpoint, "Overpass interpreter URL")
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable verbose logging")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"database.driver", "database-driver"},
		{"database.dsn", "database-dsn"},
		{"overpass.endpoint", "overpass-endpoint"},
		{"verbose", "verbose"},
	}
	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, rootCmd.PersistentFlags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}

	setDefaults(viper.GetViper())
}

// setDefaults registers the config keys that have no flag.
func setDefaults(v *viper.Viper) {
	def := datasource.DefaultTransportConfig()
	v.SetDefault("database.max_conns", 0)
	v.SetDefault("overpass.user_agent", def.UserAgent)
	v.SetDefault("overpass.query_timeout", datasource.DefaultQueryTimeout)
	v.SetDefault("overpass.request_timeout", def.RequestTimeout)
	v.SetDefault("overpass.max_attempts", def.MaxAttempts)
	v.SetDefault("overpass.initial_backoff", def.InitialBackoff)
	v.SetDefault("overpass.max_backoff", def.MaxBackoff)
	v.SetDefault("overpass.rate_limit", def.RateLimit)
	v.SetDefault("overpass.rate_burst", def.RateBurst)
	v.SetDefault("overpass.highway_types", datasource.DefaultHighwayTypes)
	v.SetDefault("overpass.area_cache_size", datasource.DefaultAreaCacheSize)
	v.SetDefault("overpass.area_cache_ttl", datasource.DefaultAreaCacheTTL)
	v.SetDefault("tracing.endpoint", "")
}

func initConfig() {
	loadDotEnv(".env.local", ".env")

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("TORRENT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// loadDotEnv loads env files in order. godotenv never overrides a variable
// that is already set, so earlier files win over later ones.
func loadDotEnv(files ...string) {
	for _, f := range files {
		err := godotenv.Load(f)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Ignoring %s: %v\n", f, err)
		}
	}
}
