package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/shopdesk/workorder-cli/internal/pipeline"
)

var (
	intakeAudio    []string
	intakeVIN      string
	intakeOdometer string
	intakePlate    string
	intakeDir      string

	intakeCustomerID    string
	intakeCustomerName  string
	intakeCustomerPhone string
	intakeCustomerEmail string
	intakeVehicleID     string
)

var intakeCmd = &cobra.Command{
	Use:   "intake",
	Short: "Submit work orders from media files on disk",
	Long: `Submit a single work order from media files given as flags, or batch-submit
one work order per subdirectory of --dir. In batch mode each subdirectory may
contain audio clips (.mp3/.wav/.m4a/.ogg/.webm), photos named vin.*,
odometer.* and plate.*, and an optional customer.yaml with customer hints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if intakeDir != "" {
			return runBatchIntake(ctx, env, intakeDir)
		}

		sub, err := buildFlagSubmission()
		if err != nil {
			return err
		}

		id, err := env.Coordinator.Process(ctx, sub)
		if err != nil {
			return err
		}

		wo, err := env.Store.GetWorkOrder(ctx, id)
		if err != nil {
			return eris.Wrap(err, "load processed work order")
		}

		zap.L().Info("work order processed",
			zap.String("order_id", wo.ID),
			zap.String("status", string(wo.Status)),
			zap.Strings("notes", wo.ProcessingNotes),
		)
		cmd.Println(wo.ID)
		return nil
	},
}

func init() {
	intakeCmd.Flags().StringArrayVar(&intakeAudio, "audio", nil, "audio clip file (repeatable, chronological order)")
	intakeCmd.Flags().StringVar(&intakeVIN, "vin-image", "", "VIN placard photo")
	intakeCmd.Flags().StringVar(&intakeOdometer, "odometer-image", "", "odometer photo")
	intakeCmd.Flags().StringVar(&intakePlate, "plate-image", "", "license plate photo")
	intakeCmd.Flags().StringVar(&intakeDir, "dir", "", "batch mode: one work order per subdirectory")
	intakeCmd.Flags().StringVar(&intakeCustomerID, "customer-id", "", "existing customer id")
	intakeCmd.Flags().StringVar(&intakeCustomerName, "customer-name", "", "customer name hint")
	intakeCmd.Flags().StringVar(&intakeCustomerPhone, "customer-phone", "", "customer phone hint")
	intakeCmd.Flags().StringVar(&intakeCustomerEmail, "customer-email", "", "customer email hint")
	intakeCmd.Flags().StringVar(&intakeVehicleID, "vehicle-id", "", "existing vehicle id")
	rootCmd.AddCommand(intakeCmd)
}

func buildFlagSubmission() (pipeline.Submission, error) {
	sub := pipeline.Submission{
		CustomerID:    intakeCustomerID,
		CustomerName:  intakeCustomerName,
		CustomerPhone: intakeCustomerPhone,
		CustomerEmail: intakeCustomerEmail,
		VehicleID:     intakeVehicleID,
	}

	for _, path := range intakeAudio {
		clip, err := readAudioFile(path)
		if err != nil {
			return sub, err
		}
		sub.Audio = append(sub.Audio, clip)
	}

	var err error
	if sub.VINImage, err = readImageFile(intakeVIN); err != nil {
		return sub, err
	}
	if sub.OdometerImage, err = readImageFile(intakeOdometer); err != nil {
		return sub, err
	}
	if sub.PlateImage, err = readImageFile(intakePlate); err != nil {
		return sub, err
	}

	if len(sub.Audio) == 0 && sub.VINImage.Data == nil && sub.OdometerImage.Data == nil && sub.PlateImage.Data == nil {
		return sub, eris.New("no media supplied: pass --audio, --vin-image, --odometer-image or --plate-image (or --dir)")
	}
	return sub, nil
}

func runBatchIntake(ctx context.Context, env *pipelineEnv, dir string) error {
	subs, err := collectSubmissions(dir)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		zap.L().Info("no submission directories found", zap.String("dir", dir))
		return nil
	}

	zap.L().Info("processing batch",
		zap.Int("submissions", len(subs)),
		zap.Int("concurrency", cfg.Intake.MaxConcurrent),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Intake.MaxConcurrent)

	var succeeded, failed atomic.Int64

	for _, ds := range subs {
		g.Go(func() error {
			log := zap.L().With(zap.String("dir", ds.Dir))

			id, err := env.Coordinator.Process(gctx, ds.Submission)
			if err != nil {
				failed.Add(1)
				log.Error("intake failed", zap.Error(err))
				return nil // don't abort the batch on individual failure
			}

			wo, err := env.Store.GetWorkOrder(gctx, id)
			if err != nil {
				failed.Add(1)
				log.Error("load processed work order failed", zap.Error(err))
				return nil
			}

			succeeded.Add(1)
			log.Info("work order processed",
				zap.String("order_id", wo.ID),
				zap.String("status", string(wo.Status)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch intake")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

// dirSubmission pairs a built submission with its source directory for logs.
type dirSubmission struct {
	Dir        string
	Submission pipeline.Submission
}

// submissionMeta is the customer.yaml shape inside a batch subdirectory.
type submissionMeta struct {
	CustomerID string `yaml:"customer_id"`
	Name       string `yaml:"name"`
	Phone      string `yaml:"phone"`
	Email      string `yaml:"email"`
	VehicleID  string `yaml:"vehicle_id"`
}

// collectSubmissions walks the immediate subdirectories of dir and builds
// one submission per subdirectory that contains any media. ReadDir returns
// entries sorted by name, so batch order and clip order are reproducible.
func collectSubmissions(dir string) ([]dirSubmission, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read batch dir %s", dir)
	}

	var subs []dirSubmission
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub, err := buildDirSubmission(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		if len(sub.Audio) == 0 && sub.VINImage.Data == nil && sub.OdometerImage.Data == nil && sub.PlateImage.Data == nil {
			zap.L().Warn("skipping directory with no media", zap.String("dir", entry.Name()))
			continue
		}
		subs = append(subs, dirSubmission{Dir: entry.Name(), Submission: sub})
	}
	return subs, nil
}

func buildDirSubmission(dir string) (pipeline.Submission, error) {
	var sub pipeline.Submission

	entries, err := os.ReadDir(dir)
	if err != nil {
		return sub, eris.Wrapf(err, "read submission dir %s", dir)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(dir, name)
		base := strings.TrimSuffix(name, filepath.Ext(name))

		switch {
		case name == "customer.yaml" || name == "customer.yml":
			meta, err := readSubmissionMeta(path)
			if err != nil {
				return sub, err
			}
			sub.CustomerID = meta.CustomerID
			sub.CustomerName = meta.Name
			sub.CustomerPhone = meta.Phone
			sub.CustomerEmail = meta.Email
			sub.VehicleID = meta.VehicleID

		case isAudioFile(name):
			clip, err := readAudioFile(path)
			if err != nil {
				return sub, err
			}
			sub.Audio = append(sub.Audio, clip)

		case base == "vin":
			if sub.VINImage, err = readImageFile(path); err != nil {
				return sub, err
			}
		case base == "odometer":
			if sub.OdometerImage, err = readImageFile(path); err != nil {
				return sub, err
			}
		case base == "plate":
			if sub.PlateImage, err = readImageFile(path); err != nil {
				return sub, err
			}
		}
	}

	return sub, nil
}

func readSubmissionMeta(path string) (submissionMeta, error) {
	var meta submissionMeta

	data, err := os.ReadFile(path)
	if err != nil {
		return meta, eris.Wrapf(err, "read %s", path)
	}
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return meta, eris.Wrapf(err, "parse %s", path)
	}
	return meta, nil
}

func isAudioFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3", ".wav", ".m4a", ".ogg", ".webm":
		return true
	}
	return false
}

// readImageFile loads an optional photo. An empty path returns a zero Image.
func readImageFile(path string) (pipeline.Image, error) {
	if path == "" {
		return pipeline.Image{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Image{}, eris.Wrapf(err, "read image %s", path)
	}
	return pipeline.Image{Data: data, MediaType: imageMediaType(path)}, nil
}

func readAudioFile(path string) (pipeline.AudioClip, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.AudioClip{}, eris.Wrapf(err, "read audio %s", path)
	}
	return pipeline.AudioClip{Data: data, Filename: filepath.Base(path)}, nil
}

func imageMediaType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
