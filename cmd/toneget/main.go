package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strconv"
	"strings"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/toneget/toneget/internal/auth"
	"github.com/toneget/toneget/internal/config"
	"github.com/toneget/toneget/internal/export"
	"github.com/toneget/toneget/internal/logger"
	"github.com/toneget/toneget/internal/tonal"
)

func main() {
	Execute()
}

// Errors and warnings go to stderr; stdout carries progress and the
// run report.
var errOut = pterm.Error.WithWriter(os.Stderr)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "toneget",
	Short: "Export your Tonal workout history",
	Long: `toneget signs in with your Tonal account, downloads your complete
workout history, custom workouts and strength scores, and writes
everything to one portable JSON export.

Credentials can be supplied through TONAL_EMAIL and TONAL_PASSWORD for
unattended runs; otherwise the tool prompts for them. They are used for
a single login and never stored.`,
	Run: runExport,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Place version check in PreRun to ensure flags are parsed first
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		errOut.Println(err)
		os.Exit(1)
	}
}

func init() {
	config.InitFlags()
	rootCmd.PersistentFlags().AddFlagSet(pflag.CommandLine)
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
}

func runExport(cmd *cobra.Command, args []string) {
	defer func() {
		if r := recover(); r != nil {
			errOut.Printf("\nCaught panic: %v\n", r)
			errOut.Printf("%s\n", debug.Stack())
			os.Exit(2)
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		errOut.Printfln("Invalid configuration: %v", err)
		os.Exit(1)
	}
	if err := logger.InitLogger(&cfg.Logging); err != nil {
		errOut.Printfln("Failed to initialize logger: %v", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printBanner(cfg)

	creds, err := resolveCredentials()
	if err != nil {
		errOut.Println(err)
		os.Exit(1)
	}

	pterm.Info.Println("Authenticating with Tonal...")
	token, err := auth.NewClient(auth.DefaultConfig(cfg.Timeout)).Login(ctx, creds)
	creds = auth.Credentials{} // the token is all later stages see
	if err != nil {
		exitOnError(ctx, err)
	}
	pterm.Success.Println("Authentication successful")

	client := tonal.NewClient(ctx, auth.BearerToken(token), tonal.Config{Timeout: cfg.Timeout})

	var bar *pterm.ProgressbarPrinter
	exporter := export.NewExporter(client, export.Hooks{
		LoggedIn: func(user map[string]interface{}) {
			pterm.Info.Printfln("Logged in as %v %v", user["firstName"], user["lastName"])
		},
		WorkoutProgress: func(done, total int) {
			if bar == nil {
				bar, _ = pterm.DefaultProgressbar.WithTotal(total).WithTitle("Downloading workouts").Start()
			}
			if bar != nil {
				bar.Add(done - bar.Current)
			}
		},
	})

	doc, stats, err := exporter.Run(ctx)
	if bar != nil {
		_, _ = bar.Stop()
	}
	if err != nil {
		exitOnError(ctx, err)
	}

	written, err := export.Write(export.Trim(doc, cfg.Mode), cfg.OutputDir, cfg.Gzip)
	if err != nil {
		exitOnError(ctx, err)
	}

	printSummary(stats)
	printFileReport(written, cfg.Gzip)
	pterm.Success.Println("Export complete. This is your data - do with it what you will.")
}

func printBanner(cfg *config.Config) {
	pterm.DefaultSection.Printfln("TONEGET %s", config.Version())
	pterm.Info.Println("Export your Tonal workout data")
	if cfg.Mode == config.ExportModeFull {
		pterm.Info.Println("Mode: full (every raw vendor field, larger file)")
	} else {
		pterm.Info.Println("Mode: standard (trimmed to the documented schema)")
	}
	pterm.Warning.Println("Unofficial tool, not affiliated with Tonal")
}

// resolveCredentials prefers TONAL_EMAIL / TONAL_PASSWORD and prompts
// for whatever is missing. The password prompt is masked. The result is
// handed straight to Login and dropped.
func resolveCredentials() (auth.Credentials, error) {
	creds := auth.Credentials{
		Email:    strings.TrimSpace(viper.GetString("email")),
		Password: viper.GetString("password"),
	}

	if creds.Email == "" {
		email, err := pterm.DefaultInteractiveTextInput.Show("Tonal email")
		if err != nil {
			return auth.Credentials{}, fmt.Errorf("failed to read email: %w", err)
		}
		creds.Email = strings.TrimSpace(email)
	}
	if creds.Email == "" {
		return auth.Credentials{}, errors.New("email is required")
	}

	if creds.Password == "" {
		password, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Tonal password")
		if err != nil {
			return auth.Credentials{}, fmt.Errorf("failed to read password: %w", err)
		}
		creds.Password = password
	}
	if creds.Password == "" {
		return auth.Credentials{}, errors.New("password is required")
	}

	return creds, nil
}

// exitOnError distinguishes a user interrupt from a real failure: ^C
// ends the run quietly with status 0, anything else reports and fails.
func exitOnError(ctx context.Context, err error) {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		pterm.Warning.Println("Cancelled by user")
		os.Exit(0)
	}
	errOut.Println(err)
	os.Exit(1)
}

func printSummary(stats export.Stats) {
	pterm.DefaultSection.Println("Your data")
	pterm.Info.Printfln("Workouts:        %d", stats.Workouts)
	if stats.CustomWorkouts > 0 {
		pterm.Info.Printfln("Custom workouts: %d", stats.CustomWorkouts)
	}
	pterm.Info.Printfln("Total volume:    %.0f lbs", stats.TotalVolume)
	pterm.Info.Printfln("Total reps:      %.0f", stats.TotalReps)
	if stats.FirstWorkout != "" {
		pterm.Info.Printfln("Date range:      %s to %s", stats.FirstWorkout, stats.LastWorkout)
	}
	if latest := stats.LatestStrength; latest != nil {
		pterm.Info.Printfln("Strength score:  %s (upper %s | lower %s | core %s)",
			scoreString(latest, "overall"),
			scoreString(latest, "upper"),
			scoreString(latest, "lower"),
			scoreString(latest, "core"))
	}
}

func scoreString(entry map[string]interface{}, key string) string {
	if v, ok := entry[key].(float64); ok {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return "N/A"
}

func printFileReport(written export.WrittenFile, gzipped bool) {
	pterm.DefaultSection.Println("Export written")
	pterm.Success.Println(written.Path)
	pterm.Info.Printfln("Size: %s", formatSize(written.Size))
	if gzipped && written.RawSize > 0 {
		ratio := (1 - float64(written.Size)/float64(written.RawSize)) * 100
		pterm.Info.Printfln("Compression: %.0f%% smaller than the raw JSON (%s)", ratio, formatSize(written.RawSize))
	}
}

func formatSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
