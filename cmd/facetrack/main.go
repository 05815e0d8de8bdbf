package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/MrCodeEU/facetrack/pkg/camera"
	"github.com/MrCodeEU/facetrack/pkg/config"
	"github.com/MrCodeEU/facetrack/pkg/liveness"
	"github.com/MrCodeEU/facetrack/pkg/logging"
	"github.com/MrCodeEU/facetrack/pkg/recognition"
	"github.com/MrCodeEU/facetrack/pkg/storage"
)

const version = "0.1.0"

// Command represents a CLI command.
type Command struct {
	Name        string
	Description string
	Usage       string
	Run         func(args []string) error
}

var (
	cfg      *config.Config
	commands map[string]*Command
)

var commandOrder = []string{"live", "identify", "enroll", "list", "name", "cameras", "models", "config", "version", "help"}

func init() {
	commands = map[string]*Command{
		"live": {
			Name:        "live",
			Description: "Track faces from the camera and write annotated snapshots",
			Usage:       "facetrack live [snapshot.png]",
			Run:         cmdLive,
		},
		"identify": {
			Name:        "identify",
			Description: "Identify the face in a still image",
			Usage:       "facetrack identify <image>",
			Run:         cmdIdentify,
		},
		"enroll": {
			Name:        "enroll",
			Description: "Create a named identity from still images",
			Usage:       "facetrack enroll <name> <image> [image...]",
			Run:         cmdEnroll,
		},
		"list": {
			Name:        "list",
			Description: "List known identities",
			Usage:       "facetrack list",
			Run:         cmdList,
		},
		"name": {
			Name:        "name",
			Description: "Name an identity, or forget it with an empty name",
			Usage:       "facetrack name <id> [name]",
			Run:         cmdName,
		},
		"cameras": {
			Name:        "cameras",
			Description: "List cameras and their video formats",
			Usage:       "facetrack cameras",
			Run:         cmdCameras,
		},
		"models": {
			Name:        "models",
			Description: "Download the dlib recognition models",
			Usage:       "facetrack models [dir]",
			Run:         cmdDownloadModels,
		},
		"config": {
			Name:        "config",
			Description: "Show current configuration",
			Usage:       "facetrack config",
			Run:         cmdConfig,
		},
		"version": {
			Name:        "version",
			Description: "Show version information",
			Usage:       "facetrack version",
			Run:         cmdVersion,
		},
		"help": {
			Name:        "help",
			Description: "Show help information",
			Usage:       "facetrack help [command]",
			Run:         cmdHelp,
		},
	}
}

func main() {
	// Parse global flags
	configFile := flag.String("config", "", "Path to configuration file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	args := flag.Args()

	// Load configuration
	var err error
	if *configFile != "" {
		cfg, err = config.Load(*configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.DefaultConfig()
	}
	if err := cfg.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	cfg.ExpandPaths()

	// Initialize logging
	logLevel := cfg.Logging.Level
	if *debug {
		logLevel = "debug"
	}
	if err := logging.Init(logLevel, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}

	logging.Debugf("facetrack v%s starting", version)
	logging.Debugf("Config loaded, storage dir: %s", cfg.Storage.DataDir)

	if len(args) < 1 {
		printUsage()
		os.Exit(0)
	}

	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmdName)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.Run(args[1:]); err != nil {
		logging.WithError(err).Errorf("Command '%s' failed", cmdName)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("facetrack - Live face tracking and identification")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Usage: facetrack [options] <command> [arguments]")
	fmt.Println("\nOptions:")
	fmt.Println("  -config <file>   Path to configuration file")
	fmt.Println("  -debug           Enable debug logging")
	fmt.Println("\nCommands:")
	for _, name := range commandOrder {
		cmd := commands[name]
		fmt.Printf("  %-12s %s\n", cmd.Name, cmd.Description)
	}
	fmt.Println("\nExamples:")
	fmt.Println("  facetrack models                 # Fetch the models once")
	fmt.Println("  facetrack live                   # Start tracking")
	fmt.Println("  facetrack identify photo.jpg     # Who is in this photo?")
	fmt.Println("\nRun 'facetrack help <command>' for more information on a command.")
}

// newEngine creates and activates the recognition engine from the config.
func newEngine() (*recognition.DlibEngine, error) {
	opts := recognition.DefaultOptions(cfg.Engine.ModelPath)
	opts.Tolerance = cfg.Engine.Tolerance
	if cfg.Liveness.Enabled {
		opts.Liveness = liveness.ConfigFromLevel(liveness.Level(cfg.Liveness.Level))
		if cfg.Liveness.MinFaceSize > 0 {
			opts.Liveness.MinFaceSize = cfg.Liveness.MinFaceSize
		}
	} else {
		opts.Liveness = liveness.Config{}
	}

	engine := recognition.NewDlibEngine(opts)
	if err := engine.Activate(cfg.Engine.LicenseKey); err != nil {
		return nil, fmt.Errorf("%w\nRun 'facetrack models' to download the models", err)
	}
	return engine, nil
}

// openStore loads the identity store the same way a live session does.
func openStore(engine recognition.Engine) (*storage.IdentityStore, error) {
	var sealer *storage.Sealer
	if cfg.Storage.EncryptionEnabled {
		var err error
		if sealer, err = storage.NewSealer(); err != nil {
			return nil, err
		}
	}
	return storage.Load(engine, cfg.MemoryPath(), sealer)
}

func newCameraSource() *camera.GocvSource {
	return camera.NewGocvSource(
		time.Duration(cfg.Camera.FrameTimeoutMs)*time.Millisecond,
		time.Duration(cfg.Camera.PollIntervalMs)*time.Millisecond,
	)
}

func cmdConfig(args []string) error {
	logging.Debug("Showing configuration")

	fmt.Println("Current Configuration:")
	fmt.Println("======================")
	fmt.Println()
	fmt.Println("[Camera]")
	fmt.Printf("  Device:          %s\n", orDefault(cfg.Camera.Device, "(first camera)"))
	fmt.Printf("  Resolution:      %s\n", resolution())
	fmt.Printf("  Frame Timeout:   %d ms\n", cfg.Camera.FrameTimeoutMs)
	fmt.Println()
	fmt.Println("[Engine]")
	fmt.Printf("  Model Path:      %s\n", cfg.Engine.ModelPath)
	fmt.Printf("  License Key:     %t\n", cfg.Engine.LicenseKey != "")
	fmt.Printf("  Tolerance:       %.2f\n", cfg.Engine.Tolerance)
	fmt.Printf("  Match Threshold: %.2f\n", cfg.Engine.MatchThreshold)
	fmt.Printf("  Parameters:      %s\n", cfg.Engine.TrackerParameters)
	fmt.Println()
	fmt.Println("[Liveness Detection]")
	fmt.Printf("  Enabled:         %t\n", cfg.Liveness.Enabled)
	fmt.Printf("  Level:           %s\n", cfg.Liveness.Level)
	fmt.Printf("  Min Face Size:   %d px\n", cfg.Liveness.MinFaceSize)
	fmt.Println()
	fmt.Println("[Storage]")
	fmt.Printf("  Data Dir:        %s\n", cfg.Storage.DataDir)
	fmt.Printf("  Memory File:     %s\n", cfg.MemoryPath())
	fmt.Printf("  Encryption:      %t\n", cfg.Storage.EncryptionEnabled)
	fmt.Println()
	fmt.Println("[Display]")
	fmt.Printf("  Size:            %dx%d\n", cfg.Display.Width, cfg.Display.Height)
	fmt.Printf("  Snapshot:        %s\n", cfg.Display.SnapshotPath)
	fmt.Println()
	fmt.Println("[Logging]")
	fmt.Printf("  Level:           %s\n", cfg.Logging.Level)
	fmt.Printf("  File:            %s\n", cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		fmt.Printf("\nConfiguration is invalid: %v\n", err)
	}
	return nil
}

func resolution() string {
	if cfg.Camera.Width > 0 && cfg.Camera.Height > 0 {
		return fmt.Sprintf("%dx%d", cfg.Camera.Width, cfg.Camera.Height)
	}
	if cfg.Camera.PreferLargestFormat {
		return "largest available"
	}
	return "driver default"
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func cmdVersion(args []string) error {
	fmt.Printf("facetrack v%s\n", version)
	fmt.Println("Live face tracking and identification")
	fmt.Println()
	fmt.Println("Build Information:")
	fmt.Printf("  Go version: %s\n", runtime.Version())
	fmt.Printf("  Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return nil
}

func cmdHelp(args []string) error {
	if len(args) == 0 {
		printUsage()
		return nil
	}

	cmdName := args[0]
	cmd, ok := commands[cmdName]
	if !ok {
		return fmt.Errorf("unknown command: %s", cmdName)
	}

	fmt.Printf("Command: %s\n", cmd.Name)
	fmt.Printf("Description: %s\n", cmd.Description)
	fmt.Printf("Usage: %s\n", cmd.Usage)

	switch cmdName {
	case "live":
		fmt.Println("\nInput (one command per line on stdin):")
		fmt.Println("  move <x> <y>   Pointer position in display coordinates")
		fmt.Println("  leave          Pointer left the display")
		fmt.Println("  size <w> <h>   Display was resized")
		fmt.Println("  click          Name the face under the pointer")
		fmt.Println("  quit           Save identities and exit")
		fmt.Println("\nThe annotated frame is rewritten to the snapshot file continuously.")
	case "identify":
		fmt.Println("\nSupported formats: JPEG, PNG, BMP, WebP")
		fmt.Println("Candidates below the match threshold are not shown.")
	case "config":
		fmt.Println("\nConfiguration Locations:")
		fmt.Println("  System: /etc/facetrack/facetrack.yaml")
		fmt.Println("  User:   ~/.config/facetrack/facetrack.yaml")
		fmt.Printf("\n%s in the environment or .env overrides engine.license_key.\n", config.LicenseKeyEnv)
		fmt.Println("Use -config flag to specify a custom config file.")
	}

	return nil
}
