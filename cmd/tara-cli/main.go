// tara-cli runs one image through detection, summarization and synthesis locally.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"
	"github.com/book-expert/tara-service/internal/bootstrap"
	"github.com/book-expert/tara-service/internal/config"
	"github.com/book-expert/tara-service/internal/pipeline"
)

// Flag names.
const (
	flagImage  = "image"
	flagVoice  = "voice"
	flagConfig = "config"
	flagOutput = "output"
	flagLogDir = "log-dir"
	flagDetect = "detect-only"
)

// Flag descriptions.
const (
	flagImageDesc  = "Image file (PNG or JPEG) to read"
	flagVoiceDesc  = "Speaker to synthesize with (defaults to the first configured voice)"
	flagConfigDesc = "Path to a TOML config file (defaults to the central configurator)"
	flagOutputDesc = "Copy the generated .wav here"
	flagLogDirDesc = "Directory for the client log file"
	flagDetectDesc = "Stop after text detection"
)

const logFileName = "tara-cli.log"

var (
	errImageRequired = errors.New("--image must be provided")
	errOutputNotWAV  = errors.New("--output must end in .wav")
	errNoText        = errors.New(pipeline.MsgNoTextDetected)
)

// appFlags holds the parsed command-line flag values.
type appFlags struct {
	image      string
	voice      string
	config     string
	output     string
	logDir     string
	detectOnly bool
}

func main() {
	err := run(os.Args[1:], os.Stdout)
	if err != nil {
		// A logger might not be initialized yet, so use the standard log package.
		log.Fatalf("Error: %v", err)
	}
}

func run(args []string, out io.Writer) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	clientLog, err := logger.New(flags.logDir, logFileName)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer clientLog.Close()

	cfg, err := loadConfig(flags.config, clientLog)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(flags.image)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}

	adapters, err := bootstrap.NewAdapters(cfg, clientLog)
	if err != nil {
		return err
	}

	orchestrator := bootstrap.NewOrchestrator(cfg, adapters, clientLog)

	if flags.voice != "" {
		err = orchestrator.SelectVoice(flags.voice)
		if err != nil {
			return err
		}
	}

	return execute(context.Background(), orchestrator, data, flags, out)
}

// parseFlags defines and parses command-line flags, returning them in a struct.
func parseFlags(args []string) (appFlags, error) {
	var flags appFlags

	flagSet := flag.NewFlagSet("tara-cli", flag.ContinueOnError)
	flagSet.StringVar(&flags.image, flagImage, "", flagImageDesc)
	flagSet.StringVar(&flags.voice, flagVoice, "", flagVoiceDesc)
	flagSet.StringVar(&flags.config, flagConfig, "", flagConfigDesc)
	flagSet.StringVar(&flags.output, flagOutput, "", flagOutputDesc)
	flagSet.StringVar(&flags.logDir, flagLogDir, os.TempDir(), flagLogDirDesc)
	flagSet.BoolVar(&flags.detectOnly, flagDetect, false, flagDetectDesc)

	err := flagSet.Parse(args)
	if err != nil {
		return appFlags{}, fmt.Errorf("failed to parse flags: %w", err)
	}

	if flags.image == "" {
		return appFlags{}, errImageRequired
	}

	if flags.output != "" && filepath.Ext(flags.output) != ".wav" {
		return appFlags{}, fmt.Errorf("%w: got %q", errOutputNotWAV, flags.output)
	}

	return flags, nil
}

func loadConfig(path string, clientLog *logger.Logger) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}

	return config.Load(clientLog)
}

// sessionRunner is the part of the orchestrator the client drives.
type sessionRunner interface {
	LoadImage(ctx context.Context, data []byte) pipeline.Outcome
	Summarize(ctx context.Context) pipeline.Outcome
	Snapshot() pipeline.Session
}

func execute(ctx context.Context, runner sessionRunner, data []byte, flags appFlags, out io.Writer) error {
	outcome := runner.LoadImage(ctx, data)
	if outcome.Failed() {
		return fmt.Errorf("%s: %w", outcome.Message, outcome.Err)
	}

	session := runner.Snapshot()
	if session.State == pipeline.StateTextDetectedEmpty {
		return errNoText
	}

	fmt.Fprintf(out, "Detected Text from Image:\n%s\n\n", session.Text)

	if flags.detectOnly {
		return nil
	}

	outcome = runner.Summarize(ctx)
	session = runner.Snapshot()

	if session.Summary != "" {
		fmt.Fprintf(out, "Summarized Text:\n%s\n\n", session.Summary)
	}

	if outcome.Diagnostics != "" {
		fmt.Fprintf(out, "Standard Error:\n%s\n\n", outcome.Diagnostics)
	}

	if outcome.Failed() {
		return fmt.Errorf("%s: %w", outcome.Message, outcome.Err)
	}

	audioPath := session.Artifact.Path

	if flags.output != "" {
		err := copyFile(audioPath, flags.output)
		if err != nil {
			return err
		}

		audioPath = flags.output
	}

	fmt.Fprintf(out, "%s\nGenerated: %s\n", outcome.Message, audioPath)

	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	defer in.Close()

	outFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	_, err = io.Copy(outFile, in)
	closeErr := outFile.Close()

	if err != nil {
		return fmt.Errorf("failed to copy artifact: %w", err)
	}

	if closeErr != nil {
		return fmt.Errorf("failed to close output file: %w", closeErr)
	}

	return nil
}
