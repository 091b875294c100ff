package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/palmiyeitadmin/monitorsystem/internal/auth"
	checkspostgres "github.com/palmiyeitadmin/monitorsystem/internal/checks/postgres"
	"github.com/palmiyeitadmin/monitorsystem/internal/config"
	"github.com/palmiyeitadmin/monitorsystem/internal/domain"
	"github.com/palmiyeitadmin/monitorsystem/internal/hosts"
	hostspostgres "github.com/palmiyeitadmin/monitorsystem/internal/hosts/postgres"
	"github.com/palmiyeitadmin/monitorsystem/internal/pkg/postgres"
	"github.com/spf13/cobra"
)

var (
	tokenUser string
	tokenRole string

	orgID      string
	customerID string

	hostName     string
	hostInterval int

	checkName     string
	checkType     string
	checkTarget   string
	checkHostID   string
	checkInterval int
	checkTimeout  int
	checkPort     int
	checkSSL      bool
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage operator API tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a signed operator token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if _, err := uuid.Parse(tokenUser); err != nil {
			return fmt.Errorf("invalid --user: %w", err)
		}
		role := domain.Role(tokenRole)
		if !role.IsValid() {
			return fmt.Errorf("unknown role %q", tokenRole)
		}

		token, err := auth.NewAuthenticator(auth.Config{
			SecretKey: cfg.JWT.SecretKey,
			Issuer:    cfg.JWT.Issuer,
			TokenTTL:  cfg.JWT.TokenTTL,
		}).GenerateToken(tokenUser, role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var hostCmd = &cobra.Command{
	Use:   "host",
	Short: "Manage agent hosts",
}

var hostRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a host and print its agent API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		customer, err := parseTenant()
		if err != nil {
			return err
		}

		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
			host := &domain.Host{
				OrganizationID:       orgID,
				CustomerID:           customer,
				Name:                 hostName,
				APIKey:               hosts.GenerateAPIKey(),
				CheckIntervalSeconds: hostInterval,
				MonitoringEnabled:    true,
				AlertOnDown:          true,
				AlertOnHighCPU:       true,
				AlertOnHighRAM:       true,
				AlertOnHighDisk:      true,
				IsActive:             true,
			}
			if err := hostspostgres.NewRepository(pool).CreateHost(ctx, host); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "host_id: %s\n", host.ID)
			fmt.Fprintf(out, "api_key: %s\n", host.APIKey)
			return nil
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Manage active checks",
}

var checkAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create an active check",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		customer, err := parseTenant()
		if err != nil {
			return err
		}
		check, err := checkFromFlags()
		if err != nil {
			return err
		}
		check.OrganizationID = orgID
		check.CustomerID = customer

		return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool) error {
			if err := checkspostgres.NewRepository(pool).CreateCheck(ctx, check); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "check_id: %s\n", check.ID)
			return nil
		})
	},
}

func init() {
	tokenIssueCmd.Flags().StringVar(&tokenUser, "user", "", "user id stored in the token subject")
	tokenIssueCmd.Flags().StringVar(&tokenRole, "role", string(domain.RoleOperator), "viewer, operator or admin")
	_ = tokenIssueCmd.MarkFlagRequired("user")
	tokenCmd.AddCommand(tokenIssueCmd)

	for _, c := range []*cobra.Command{hostRegisterCmd, checkAddCmd} {
		c.Flags().StringVar(&orgID, "org", "", "organization id")
		c.Flags().StringVar(&customerID, "customer", "", "customer id (optional)")
		_ = c.MarkFlagRequired("org")
	}

	hostRegisterCmd.Flags().StringVar(&hostName, "name", "", "display name")
	hostRegisterCmd.Flags().IntVar(&hostInterval, "interval", 60, "expected heartbeat interval in seconds")
	_ = hostRegisterCmd.MarkFlagRequired("name")
	hostCmd.AddCommand(hostRegisterCmd)

	addCheckFlags(checkAddCmd)
	checkAddCmd.Flags().StringVar(&checkName, "name", "", "display name")
	checkAddCmd.Flags().StringVar(&checkHostID, "host", "", "host id the check belongs to (optional)")
	checkAddCmd.Flags().IntVar(&checkInterval, "interval", 60, "seconds between runs")
	_ = checkAddCmd.MarkFlagRequired("name")
	checkCmd.AddCommand(checkAddCmd)

	rootCmd.AddCommand(tokenCmd, hostCmd, checkCmd)
}

// addCheckFlags registers the probe definition flags shared by check add
// and probe.
func addCheckFlags(c *cobra.Command) {
	c.Flags().StringVar(&checkType, "type", string(domain.CheckTypeHTTP), "http, tcp, ping or dns")
	c.Flags().StringVar(&checkTarget, "target", "", "URL, host or domain to probe")
	c.Flags().IntVar(&checkTimeout, "timeout", 30, "timeout in seconds")
	c.Flags().IntVar(&checkPort, "port", 0, "TCP port")
	c.Flags().BoolVar(&checkSSL, "ssl", false, "report certificate expiry for HTTPS targets")
	_ = c.MarkFlagRequired("target")
}

func checkFromFlags() (*domain.Check, error) {
	t := domain.CheckType(strings.ToLower(checkType))
	if !t.IsValid() {
		return nil, fmt.Errorf("unknown check type %q", checkType)
	}
	if t == domain.CheckTypeTCP && checkPort <= 0 {
		return nil, errors.New("tcp checks require --port")
	}

	check := &domain.Check{
		Name:                 checkName,
		Type:                 t,
		Target:               checkTarget,
		FollowRedirects:      true,
		MonitorSSL:           checkSSL,
		SSLExpiryWarningDays: 14,
		TimeoutSeconds:       checkTimeout,
		IntervalSeconds:      checkInterval,
		MonitoringEnabled:    true,
		IsActive:             true,
	}
	if checkPort > 0 {
		port := checkPort
		check.TCPPort = &port
	}
	if checkHostID != "" {
		id := checkHostID
		check.HostID = &id
	}
	return check, nil
}

func parseTenant() (*string, error) {
	if _, err := uuid.Parse(orgID); err != nil {
		return nil, fmt.Errorf("invalid --org: %w", err)
	}
	if customerID == "" {
		return nil, nil
	}
	if _, err := uuid.Parse(customerID); err != nil {
		return nil, fmt.Errorf("invalid --customer: %w", err)
	}
	id := customerID
	return &id, nil
}

func withPool(ctx context.Context, fn func(context.Context, *pgxpool.Pool) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return fn(ctx, pool)
}

func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	return postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    2,
		ConnectAttempts: 1,
		ConnectTimeout:  cfg.Database.ConnectTimeout,
	})
}
