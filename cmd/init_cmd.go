package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/senomardetritos/sgbd-sqlserver/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file interactively",
	Long:  `Walk through prompts to create an sgbd configuration file at ~/.sgbd/sgbd.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reader := bufio.NewReader(os.Stdin)

		fmt.Println("sgbd Configuration Setup")
		fmt.Println("========================")
		fmt.Println()

		fmt.Println("Database Server")
		fmt.Println("---------------")
		dialectName := prompt(reader, "Dialect (sqlserver/postgres/oracle)", "sqlserver")
		host := prompt(reader, "Host", "localhost")
		portStr := prompt(reader, "Port", defaultPort(dialectName))
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid port: %s", portStr)
		}
		username := prompt(reader, "Username", defaultUser(dialectName))
		password := prompt(reader, "Password (or ${ENV:VAR} / ${VAULT:path#key})", "")
		database := prompt(reader, "Default database (leave empty for none)", "")
		fmt.Println()

		fmt.Println("Journal")
		fmt.Println("-------")
		sink := prompt(reader, "Journal sink (none/file/mongodb/s3)", "file")
		fmt.Println()

		cfg := &config.Config{
			Version: config.CurrentVersion,
			Catalog: config.CatalogConfig{
				Dialect:  dialectName,
				Host:     host,
				Port:     port,
				Username: username,
				Password: password,
				Database: database,
			},
			Journal: config.JournalConfig{Sink: sink},
		}
		switch sink {
		case "mongodb":
			cfg.Journal.MongoURI = prompt(reader, "MongoDB connection string", "mongodb://localhost:27017")
		case "s3":
			cfg.Journal.S3Bucket = prompt(reader, "S3 bucket", "")
			cfg.Journal.Region = prompt(reader, "AWS region", "us-east-1")
		}

		cfgPath := config.ExpandHome(config.DefaultPath)
		if cfgFile != "" {
			cfgPath = cfgFile
		}

		if err := cfg.Save(cfgPath); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}

		fmt.Printf("Config written to %s\n", cfgPath)
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Println("  sgbd status      Check the connection")
		fmt.Println("  sgbd databases   List the databases on the server")
		fmt.Println("  sgbd serve       Start the HTTP API")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func prompt(reader *bufio.Reader, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("  %s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("  %s: ", label)
	}
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

func defaultPort(dialectName string) string {
	switch dialectName {
	case "oracle":
		return "1521"
	case "postgres":
		return "5432"
	default:
		return "1433"
	}
}

func defaultUser(dialectName string) string {
	if dialectName == "sqlserver" {
		return "sa"
	}
	return ""
}
