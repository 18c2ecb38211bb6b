// Command rustored is an interactive browser for backup snapshots in an
// S3-compatible object store, restoring them into PostgreSQL,
// Elasticsearch or Qdrant.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/analogrithems/rustored/internal/config"
	"github.com/analogrithems/rustored/internal/restore"
	"github.com/analogrithems/rustored/internal/ui"
)

var version = "dev"

var logFile string

var rootCmd = &cobra.Command{
	Use:   "rustored",
	Short: "Browse object-store snapshots and restore them into a backend",
	Long: `rustored lists backup snapshots from an S3-compatible bucket and
restores a selected snapshot into PostgreSQL, Elasticsearch or Qdrant.

Every flag can also be set through an environment variable with the
RUSTORED_ prefix (e.g. RUSTORED_BUCKET, RUSTORED_PG_HOST); flags take
precedence. Settings left empty can be filled in interactively.`,
	Example: `  # Browse a bucket on MinIO
  rustored --endpoint http://localhost:9000 --bucket backups --path-style

  # Everything from the environment
  RUSTORED_BUCKET=backups RUSTORED_PG_HOST=db.internal rustored`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, targets, err := settingsFromFlags()
		if err != nil {
			return err
		}
		log, closeLog, err := newLogger()
		if err != nil {
			return err
		}
		defer closeLog()

		orch := restore.New(stagingDir(), log)
		model := newSessionModel(store, targets, orch, log)
		p := tea.NewProgram(model, tea.WithAltScreen())
		_, err = p.Run()
		return err
	},
}

func init() {
	f := rootCmd.PersistentFlags()

	f.String("endpoint", "", "object store endpoint URL (e.g. https://s3.amazonaws.com)")
	f.String("bucket", "", "bucket holding the snapshots")
	f.String("prefix", "", "key prefix to browse")
	f.String("region", "", "object store region")
	f.String("access-key", "", "access key id")
	f.String("secret-key", "", "secret access key")
	f.Bool("path-style", false, "use path-style bucket addressing")

	f.String("pg-host", "", "postgres host")
	f.Int("pg-port", 5432, "postgres port")
	f.String("pg-user", "", "postgres username")
	f.String("pg-password", "", "postgres password")
	f.Bool("pg-ssl", false, "require ssl for postgres")
	f.String("pg-database", "", "database to restore into")

	f.String("es-host", "", "elasticsearch base URL")
	f.String("es-index", "", "index to restore into")

	f.String("qdrant-host", "", "qdrant base URL")
	f.String("qdrant-collection", "", "collection to restore into")
	f.String("qdrant-api-key", "", "qdrant api key")

	f.StringVar(&logFile, "log-file", "", "append structured logs to this file")

	viper.SetEnvPrefix("RUSTORED")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	cobra.CheckErr(viper.BindPFlags(f))

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("rustored {{.Version}}\n")
	rootCmd.AddCommand(listCmd)
}

// settingsFromFlags assembles the startup configuration from flags and
// RUSTORED_* environment variables. Values may be empty; structurally
// impossible ones (port out of range) are rejected here, before the
// event loop starts.
func settingsFromFlags() (config.ObjectStore, config.TargetSet, error) {
	store := config.ObjectStore{
		Endpoint:        viper.GetString("endpoint"),
		Bucket:          viper.GetString("bucket"),
		Prefix:          viper.GetString("prefix"),
		Region:          viper.GetString("region"),
		AccessKeyID:     viper.GetString("access-key"),
		SecretAccessKey: viper.GetString("secret-key"),
		PathStyle:       viper.GetBool("path-style"),
	}

	port := viper.GetInt("pg-port")
	if port < 0 || port > 65535 {
		return config.ObjectStore{}, config.TargetSet{}, fmt.Errorf("pg-port %d is out of range", port)
	}

	targets := config.TargetSet{
		Postgres: &config.Postgres{
			Host:     viper.GetString("pg-host"),
			Port:     port,
			Username: viper.GetString("pg-user"),
			Password: viper.GetString("pg-password"),
			UseSSL:   viper.GetBool("pg-ssl"),
			Database: viper.GetString("pg-database"),
		},
		Elasticsearch: &config.Elasticsearch{
			Host:  viper.GetString("es-host"),
			Index: viper.GetString("es-index"),
		},
		Qdrant: &config.Qdrant{
			Host:       viper.GetString("qdrant-host"),
			Collection: viper.GetString("qdrant-collection"),
			APIKey:     viper.GetString("qdrant-api-key"),
		},
	}
	return store, targets, nil
}

// newLogger opens the log file when configured; otherwise logging is
// disabled entirely so nothing ever writes to the terminal under the TUI.
func newLogger() (zerolog.Logger, func(), error) {
	if logFile == "" {
		return zerolog.Nop(), func() {}, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("cannot open log file: %w", err)
	}
	log := zerolog.New(f).With().Timestamp().Logger()
	return log, func() { f.Close() }, nil
}

func stagingDir() string {
	return filepath.Join(os.TempDir(), "rustored")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}
