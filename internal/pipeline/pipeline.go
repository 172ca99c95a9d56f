// Package pipeline implements the background work-order intake pipeline:
// vision extraction over submitted photos, VIN registry decode, audio
// transcription, summary synthesis, customer/vehicle resolution, and the
// final status reconciliation. Stages run sequentially and fail soft; the
// work order always reaches a terminal, inspectable state with a processing
// note trail describing what happened.
package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/shopdesk/workorder-cli/internal/model"
	"github.com/shopdesk/workorder-cli/internal/store"
)

// Image is one uploaded photo, snapshotted into memory at intake.
type Image struct {
	Data      []byte
	MediaType string
}

// Job is everything one pipeline run needs. Payload bytes are copies; the
// originating request's transport is long gone by the time the run executes.
type Job struct {
	OrderID       string
	Audio         []AudioClip
	VINImage      Image
	OdometerImage Image
	PlateImage    Image
	Customer      CustomerHints
	VehicleID     string // supplied and verified at intake
}

// Orchestrator sequences the pipeline stages for one work order. Exactly one
// run owns a given order id; nothing else writes to that order concurrently.
type Orchestrator struct {
	store       store.Store
	extractor   *Extractor
	decoder     *Decoder
	transcriber *Transcriber
	summarizer  *Summarizer
	resolver    *Resolver
}

// NewOrchestrator wires the pipeline stages.
func NewOrchestrator(st store.Store, ex *Extractor, dec *Decoder, tr *Transcriber, sum *Summarizer) *Orchestrator {
	return &Orchestrator{
		store:       st,
		extractor:   ex,
		decoder:     dec,
		transcriber: tr,
		summarizer:  sum,
		resolver:    NewResolver(st),
	}
}

// Run executes the whole pipeline for job. It never returns an error: any
// failure that escapes the per-stage handling is caught here and parks the
// order in needs_review with an explanatory note.
func (o *Orchestrator) Run(ctx context.Context, job Job) {
	log := zap.L().With(zap.String("order_id", job.OrderID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: run panicked", zap.Any("panic", r))
			o.parkForReview(ctx, job.OrderID, fmt.Sprintf("Processing error: %v", r))
		}
	}()

	wo, err := o.store.GetWorkOrder(ctx, job.OrderID)
	if err != nil {
		log.Error("pipeline: work order not found, dropping run", zap.Error(err))
		return
	}

	notes := append([]string{}, wo.ProcessingNotes...)
	notes = append(notes, "Processing started")
	status := model.StatusProcessing
	if _, err := o.store.UpdateWorkOrder(ctx, job.OrderID, model.WorkOrderUpdate{
		Status:          &status,
		ProcessingNotes: notes,
	}); err != nil {
		log.Warn("pipeline: failed to mark processing", zap.Error(err))
	}

	vehicleInfo := map[string]string{}
	for k, v := range wo.VehicleInfo {
		vehicleInfo[k] = v
	}

	// Vision extraction, each photo independent.
	notes = o.processVINImage(ctx, job, vehicleInfo, notes)
	notes = o.processOdometerImage(ctx, job, vehicleInfo, notes)
	notes = o.processPlateImage(ctx, job, vehicleInfo, notes)

	if len(vehicleInfo) > 0 {
		notes = append(notes, "Saved partial vehicle info")
		if _, err := o.store.UpdateWorkOrder(ctx, job.OrderID, model.WorkOrderUpdate{
			VehicleInfo:     vehicleInfo,
			ProcessingNotes: notes,
		}); err != nil {
			log.Warn("pipeline: intermediate update failed", zap.Error(err))
		}
	}

	// Entity resolution.
	customerID := wo.CustomerID
	if customerID == "" {
		var resolveNotes []string
		customerID, resolveNotes = o.resolver.ResolveCustomer(ctx, job.Customer)
		notes = append(notes, resolveNotes...)
	}

	vehicleID := wo.VehicleID
	if vehicleID == "" && job.VehicleID != "" {
		vehicleID = job.VehicleID
	}
	if vehicleID == "" {
		var resolveNotes []string
		vehicleID, resolveNotes = o.resolver.ResolveVehicle(ctx, customerID, vehicleInfo)
		notes = append(notes, resolveNotes...)
	}

	if customerID != "" || vehicleID != "" {
		upd := model.WorkOrderUpdate{ProcessingNotes: notes}
		if customerID != "" {
			upd.CustomerID = &customerID
		}
		if vehicleID != "" {
			upd.VehicleID = &vehicleID
		}
		notes = append(notes, "Updated work order references")
		upd.ProcessingNotes = notes
		if _, err := o.store.UpdateWorkOrder(ctx, job.OrderID, upd); err != nil {
			log.Warn("pipeline: reference update failed", zap.Error(err))
		}
	}

	// Transcription and synthesis.
	transcript, transcriptNotes := o.transcriber.TranscribeAll(ctx, job.Audio)
	notes = append(notes, transcriptNotes...)

	final := model.WorkOrderUpdate{VehicleInfo: vehicleInfo}
	if transcript != "" {
		summary, summaryNotes := o.summarizer.Summarize(ctx, transcript, vehicleInfo)
		notes = append(notes, summaryNotes...)
		final.WorkSummary = &summary.WorkSummary
		final.LineItems = summary.LineItems
		final.TotalParts = &summary.TotalParts
		final.TotalLabor = &summary.TotalLabor
		final.Total = &summary.Total
		if final.LineItems == nil {
			final.LineItems = []model.LineItem{}
		}
	}

	terminal := reconcileStatus(runOutcome{
		vinResolved: vehicleInfo[model.InfoVIN] != "",
		vehicleID:   vehicleID,
	})
	final.Status = &terminal
	final.ProcessingNotes = notes

	if _, err := o.store.UpdateWorkOrder(ctx, job.OrderID, final); err != nil {
		log.Error("pipeline: final update failed", zap.Error(err))
		return
	}
	log.Info("pipeline: run complete", zap.String("status", string(terminal)))
}

func (o *Orchestrator) processVINImage(ctx context.Context, job Job, vehicleInfo map[string]string, notes []string) []string {
	if len(job.VINImage.Data) == 0 {
		return notes
	}

	outcome := o.extractor.ExtractVIN(ctx, job.VINImage.Data, job.VINImage.MediaType)
	notes = append(notes, "VIN image processed")

	switch {
	case outcome.Failed():
		notes = append(notes, "VIN error: "+truncateNote(outcome.Err.Error()))
	case outcome.Value == "":
		notes = append(notes, "VIN extraction failed - manual entry required")
	default:
		vehicleInfo[model.InfoVIN] = outcome.Value
		if attrs := o.decoder.Decode(ctx, outcome.Value); attrs != nil && !attrs.Empty() {
			if attrs.Year != "" {
				vehicleInfo[model.InfoYear] = attrs.Year
			}
			if attrs.Make != "" {
				vehicleInfo[model.InfoMake] = attrs.Make
			}
			if attrs.Model != "" {
				vehicleInfo[model.InfoModel] = attrs.Model
			}
			notes = append(notes, "VIN decoded successfully")
		}
	}
	return notes
}

func (o *Orchestrator) processOdometerImage(ctx context.Context, job Job, vehicleInfo map[string]string, notes []string) []string {
	if len(job.OdometerImage.Data) == 0 {
		return notes
	}

	outcome := o.extractor.ReadOdometer(ctx, job.OdometerImage.Data, job.OdometerImage.MediaType)
	notes = append(notes, "Odometer image processed")

	switch {
	case outcome.Failed():
		notes = append(notes, "Odometer error: "+truncateNote(outcome.Err.Error()))
	case outcome.Value == "":
		notes = append(notes, "Odometer extraction failed - manual entry required")
	default:
		vehicleInfo[model.InfoMileage] = outcome.Value
	}
	return notes
}

func (o *Orchestrator) processPlateImage(ctx context.Context, job Job, vehicleInfo map[string]string, notes []string) []string {
	if len(job.PlateImage.Data) == 0 {
		return notes
	}

	outcome := o.extractor.ExtractPlate(ctx, job.PlateImage.Data, job.PlateImage.MediaType)
	notes = append(notes, "Plate image processed")

	switch {
	case outcome.Failed():
		notes = append(notes, "Plate error: "+truncateNote(outcome.Err.Error()))
	case outcome.Value != "":
		vehicleInfo[model.InfoPlate] = outcome.Value
		notes = append(notes, "Plate decoded successfully")
	}
	return notes
}

// parkForReview is the last-resort terminal write after a run-level failure.
// Status still comes from reconcileStatus so the precedence rules live in
// one place.
func (o *Orchestrator) parkForReview(ctx context.Context, orderID, note string) {
	status := reconcileStatus(runOutcome{runErr: eris.New(note)})
	wo, err := o.store.GetWorkOrder(ctx, orderID)
	if err != nil {
		zap.L().Error("pipeline: cannot park work order",
			zap.String("order_id", orderID), zap.Error(eris.Wrap(err, "pipeline: park for review")))
		return
	}
	notes := append(append([]string{}, wo.ProcessingNotes...), truncateNote(note))
	if _, err := o.store.UpdateWorkOrder(ctx, orderID, model.WorkOrderUpdate{
		Status:          &status,
		ProcessingNotes: notes,
	}); err != nil {
		zap.L().Error("pipeline: park update failed",
			zap.String("order_id", orderID), zap.Error(err))
	}
}
