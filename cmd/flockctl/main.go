package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"flock/internal/config"
	"flock/internal/database"
	"flock/internal/netsync"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/driver/sqlite"
)

var dbPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "flockctl",
		Short:        "Inspect and manage the local tracker decision store",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (defaults to DB_PATH or data/flock.db)")

	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(domainsCmd())
	rootCmd.AddCommand(ipsCmd())
	rootCmd.AddCommand(cookiesCmd())
	rootCmd.AddCommand(requestsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(whitelistCmd())
	rootCmd.AddCommand(blockCmd())
	rootCmd.AddCommand(blockIPCmd())
	rootCmd.AddCommand(networkCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStore() error {
	_ = godotenv.Load()
	if dbPath != "" {
		os.Setenv("DB_PATH", dbPath)
	}
	path := os.Getenv("DB_PATH")
	if path == "" {
		path = "data/flock.db"
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no decision store at %s (is the proxy running from another directory?)", path)
	}

	_, err := database.SetupDB(
		database.WithDialector(sqlite.Open(path + "?_journal_mode=WAL&_busy_timeout=5000")),
		database.WithAutoMigrate(false),
	)
	return err
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show decision store counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}
			stats, err := database.Statistics(context.Background())
			if err != nil {
				return err
			}

			fmt.Println("=== Blocking Statistics ===")
			fmt.Printf("Blocked domains:  %d\n", stats.BlockedDomains)
			fmt.Printf("Blocked IPs:      %d\n", stats.BlockedIPs)
			fmt.Printf("Blocked cookies:  %d\n", stats.BlockedCookies)
			fmt.Printf("Logged requests:  %d\n", stats.TotalRequests)
			fmt.Printf("Logged cookies:   %d\n", stats.TotalCookies)
			return nil
		},
	}
}

func domainsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "domains",
		Short: "List tracked domains by hit count",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}
			rows, err := database.TopTrackingDomains(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No tracked domains.")
				return nil
			}

			fmt.Printf("%-50s %-15s %8s  %s\n", "DOMAIN", "CATEGORY", "HITS", "BLOCKED")
			for _, row := range rows {
				fmt.Printf("%-50s %-15s %8d  %v\n", row.Domain, row.Category, row.HitCount, row.Blocked)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to show")
	return cmd
}

func ipsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "ips",
		Short: "List tracked IP addresses by hit count",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}
			rows, err := database.TopTrackingIPs(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No tracked IPs.")
				return nil
			}

			fmt.Printf("%-45s %-40s %8s  %s\n", "IP", "ASSOCIATED DOMAIN", "HITS", "BLOCKED")
			for _, row := range rows {
				fmt.Printf("%-45s %-40s %8d  %v\n", row.IPAddress, row.AssociatedDomain, row.HitCount, row.Blocked)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to show")
	return cmd
}

func cookiesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "cookies",
		Short: "Show recent cookie decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}
			rows, err := database.RecentCookieAudits(context.Background(), limit)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Println("No cookie activity logged.")
				return nil
			}

			for _, row := range rows {
				verdict := "allowed"
				if row.Blocked {
					verdict = "BLOCKED"
				}
				fmt.Printf("%s  %-7s  %s=%s (%s)\n",
					row.Timestamp.Format(time.DateTime), verdict, row.CookieName, row.Value, row.Domain)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to show")
	return cmd
}

func requestsCmd() *cobra.Command {
	var limit int
	var blockedOnly bool

	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Show recent request decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}
			rows, err := database.RecentRequestAudits(context.Background(), limit)
			if err != nil {
				return err
			}

			shown := 0
			for _, row := range rows {
				if blockedOnly && !row.Blocked {
					continue
				}
				verdict := "allowed"
				if row.Blocked {
					verdict = fmt.Sprintf("BLOCKED (%s)", row.BlockReason)
				}
				fmt.Printf("%s  %-4s %s  %s\n",
					row.Timestamp.Format(time.DateTime), row.Method, row.URL, verdict)
				shown++
			}
			if shown == 0 {
				fmt.Println("No matching requests logged.")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to show")
	cmd.Flags().BoolVar(&blockedOnly, "blocked", false, "show blocked requests only")
	return cmd
}

func exportCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export the local blocklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}

			ctx := context.Background()
			domains, err := database.BlockedDomains(ctx)
			if err != nil {
				return err
			}
			ips, err := database.BlockedIPs(ctx)
			if err != nil {
				return err
			}
			sort.Strings(domains)
			sort.Strings(ips)

			content, err := renderExport(format, domains, ips)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[0], []byte(content), 0o644); err != nil {
				return err
			}

			fmt.Printf("Exported %d domains and %d IPs to %s\n", len(domains), len(ips), args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "export format: text, hosts or list")
	return cmd
}

func renderExport(format string, domains, ips []string) (string, error) {
	switch format {
	case "text":
		var b strings.Builder
		b.WriteString("# Blocked domains\n")
		for _, d := range domains {
			b.WriteString(d + "\n")
		}
		b.WriteString("\n# Blocked IPs\n")
		for _, ip := range ips {
			b.WriteString(ip + "\n")
		}
		return b.String(), nil
	case "hosts":
		var b strings.Builder
		b.WriteString("# Tracker blocklist, hosts file format\n")
		for _, d := range domains {
			b.WriteString("0.0.0.0 " + d + "\n")
			if !strings.HasPrefix(d, "www.") {
				b.WriteString("0.0.0.0 www." + d + "\n")
			}
		}
		return b.String(), nil
	case "list":
		payload := map[string][]string{"domains": domains, "ips": ips}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return "", err
		}
		return string(data) + "\n", nil
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
}

func whitelistCmd() *cobra.Command {
	var reason string
	var remove bool

	cmd := &cobra.Command{
		Use:   "whitelist [domain]",
		Short: "Show, add to or remove from the whitelist",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}
			ctx := context.Background()

			if len(args) == 0 {
				entries, err := database.WhitelistEntries(ctx)
				if err != nil {
					return err
				}
				if len(entries) == 0 {
					fmt.Println("Whitelist is empty.")
					return nil
				}
				for _, entry := range entries {
					fmt.Printf("%-50s %s\n", entry.Domain, entry.Reason)
				}
				return nil
			}

			domainName := strings.ToLower(args[0])
			if remove {
				if err := database.RemoveFromWhitelist(ctx, domainName); err != nil {
					return err
				}
				fmt.Printf("Removed %s from whitelist\n", domainName)
				return nil
			}

			if err := database.AddToWhitelist(ctx, domainName, reason); err != nil {
				return err
			}
			fmt.Printf("Whitelisted %s\n", domainName)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "manual", "reason recorded with the entry")
	cmd.Flags().BoolVar(&remove, "remove", false, "remove the domain instead of adding it")
	return cmd
}

func blockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "block [domain]",
		Short: "Force-block a domain regardless of hit count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}
			domainName := strings.ToLower(args[0])
			if err := database.ForceBlockDomain(context.Background(), domainName, "manual"); err != nil {
				return err
			}
			fmt.Printf("Blocked %s\n", domainName)
			return nil
		},
	}
}

func networkCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "network",
		Short: "Show shared registry statistics from the aggregator",
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			config.ReadSettings()
			if serverURL == "" {
				serverURL = config.GetConfig().Network.ServerURL
			}

			client := netsync.NewClient(serverURL, true)
			stats, err := client.Stats(context.Background())
			if err != nil {
				return fmt.Errorf("aggregator unreachable at %s: %w", serverURL, err)
			}

			fmt.Println("=== Shared Registry ===")
			fmt.Printf("Known trackers:   %d\n", stats.TotalTrackers)
			fmt.Printf("Total blocks:     %d\n", stats.TotalBlocks)
			fmt.Printf("Active instances: %d\n", stats.ActiveUsers)

			if len(stats.TopOrganizations) > 0 {
				fmt.Println("\nTop organizations:")
				for _, org := range stats.TopOrganizations {
					fmt.Printf("  %-20s %d\n", org.Name, org.Blocks)
				}
			}
			if len(stats.RecentTrackers) > 0 {
				fmt.Println("\nRecently seen:")
				for _, tracker := range stats.RecentTrackers {
					fmt.Printf("  %-50s %-15s %d blocks\n", tracker.Domain, tracker.Organization, tracker.Blocks)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&serverURL, "server", "", "aggregator URL (defaults to settings)")
	return cmd
}

func blockIPCmd() *cobra.Command {
	var associated string

	cmd := &cobra.Command{
		Use:   "block-ip [address]",
		Short: "Force-block an IP address regardless of hit count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := openStore(); err != nil {
				return err
			}
			if err := database.ForceBlockIP(context.Background(), args[0], associated); err != nil {
				return err
			}
			fmt.Printf("Blocked %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&associated, "domain", "", "domain associated with the address")
	return cmd
}
