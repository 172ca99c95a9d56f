package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shopdesk/workorder-cli/internal/model"
	"github.com/shopdesk/workorder-cli/internal/store"
)

// Submission is the synchronous intake payload: media bytes plus optional
// identifying fields. Byte slices must be fully materialized before Submit
// returns; the background run keeps its own references.
type Submission struct {
	Audio         []AudioClip
	VINImage      Image
	OdometerImage Image
	PlateImage    Image

	CustomerID    string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	VehicleID     string
}

// Coordinator is the synchronous intake entry point. It persists the stub
// work order and schedules the orchestrator as a fire-and-forget run; the
// caller gets the new id immediately and polls the record for results.
type Coordinator struct {
	store        store.Store
	orchestrator *Orchestrator
	runner       *Runner
}

// NewCoordinator wires a Coordinator.
func NewCoordinator(st store.Store, orch *Orchestrator, runner *Runner) *Coordinator {
	return &Coordinator{store: st, orchestrator: orch, runner: runner}
}

// Submit validates supplied references, persists the initial pending record,
// and dispatches the background run. Supplied customer/vehicle ids that fail
// verification are hard failures here, unlike inside the run: the submitter
// is still around to correct them.
func (c *Coordinator) Submit(ctx context.Context, sub Submission) (string, error) {
	id, _, err := c.submit(ctx, sub)
	return id, err
}

// Process submits like Submit but blocks until the background run reaches a
// terminal status. Batch intake uses it so a worker pool bounds the number
// of concurrent runs.
func (c *Coordinator) Process(ctx context.Context, sub Submission) (string, error) {
	id, h, err := c.submit(ctx, sub)
	if err != nil {
		return "", err
	}
	<-h.Done()
	return id, nil
}

func (c *Coordinator) submit(ctx context.Context, sub Submission) (string, *Handle, error) {
	wo := &model.WorkOrder{
		Status:          model.StatusPending,
		VehicleInfo:     map[string]string{},
		WorkSummary:     "Processing audio...",
		LineItems:       []model.LineItem{},
		ProcessingNotes: []string{"Work order created, processing media files..."},
	}

	if sub.CustomerID != "" {
		if _, err := c.store.GetCustomer(ctx, sub.CustomerID); err != nil {
			return "", nil, eris.Wrapf(err, "intake: verify customer %s", sub.CustomerID)
		}
		wo.CustomerID = sub.CustomerID
	}
	if sub.VehicleID != "" {
		if _, err := c.store.GetVehicle(ctx, sub.VehicleID); err != nil {
			return "", nil, eris.Wrapf(err, "intake: verify vehicle %s", sub.VehicleID)
		}
		wo.VehicleID = sub.VehicleID
	}

	if err := c.store.CreateWorkOrder(ctx, wo); err != nil {
		return "", nil, eris.Wrap(err, "intake: create work order")
	}

	job := Job{
		OrderID:       wo.ID,
		Audio:         sub.Audio,
		VINImage:      sub.VINImage,
		OdometerImage: sub.OdometerImage,
		PlateImage:    sub.PlateImage,
		Customer: CustomerHints{
			ID:    sub.CustomerID,
			Name:  sub.CustomerName,
			Phone: sub.CustomerPhone,
			Email: sub.CustomerEmail,
		},
		VehicleID: sub.VehicleID,
	}

	h := c.runner.Go(ctx, func(ctx context.Context) {
		c.orchestrator.Run(ctx, job)
	})

	zap.L().Info("intake: work order submitted",
		zap.String("order_id", wo.ID),
		zap.Int("audio_clips", len(sub.Audio)))
	return wo.ID, h, nil
}

// Wait blocks until all dispatched runs have finished.
func (c *Coordinator) Wait() {
	c.runner.Wait()
}
