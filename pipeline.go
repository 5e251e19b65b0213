package wbpilot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/avashchuk/wbpilot/actuator"
	"github.com/avashchuk/wbpilot/config"
	"github.com/avashchuk/wbpilot/document"
	"github.com/avashchuk/wbpilot/journal"
	"github.com/avashchuk/wbpilot/marketplace"
	"github.com/avashchuk/wbpilot/printing"
)

// OrderAPI is the remote marketplace surface the pipeline drives. The
// concrete client lives in the marketplace package; tests substitute a fake.
type OrderAPI interface {
	FetchNewOrders(ctx context.Context) ([]marketplace.Order, error)
	CreateShipment(ctx context.Context, name string) (string, error)
	AssignOrders(ctx context.Context, shipmentID string, orderIDs []int64) error
	MarkDelivered(ctx context.Context, shipmentID string) error
}

// progressSink receives live progress counters during a run.
type progressSink interface {
	AddOrdersDone(n int)
	AddArtifactsSent(n int)
}

var (
	errGateTimedOut = errors.New("operator confirmation timed out")
	errRunCancelled = errors.New("run cancelled")
)

// Pipeline owns one full fulfillment pass: fetch the working set, walk it
// order by order through shipment creation, sticker capture and delivery,
// then aggregate and dispatch the artifacts. A Pipeline is long-lived; each
// Run builds its own per-run state and journal.
type Pipeline struct {
	API       OrderAPI
	Screen    actuator.Actuator
	Messenger Messenger
	Gate      *ConfirmationGate
	Ledger    *OrderLedger
	Retry     RetryPolicy
	Store     *document.Store
	Composer  document.Composer
	Printer   printing.Service
	Config    *config.Store
	Policy    Policy
	Progress  progressSink
	Logger    *slog.Logger

	// NewJournal overrides per-run journal creation. Tests point it at a
	// temp directory.
	NewJournal func(runID string) *journal.Journal

	// Sleep overrides every pause in the run. Tests use it to run without
	// real delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return slog.Default()
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

func (p *Pipeline) journalFor(runID string) *journal.Journal {
	if p.NewJournal != nil {
		return p.NewJournal(runID)
	}
	return journal.New(runID)
}

func (p *Pipeline) addOrdersDone(n int) {
	if p.Progress != nil {
		p.Progress.AddOrdersDone(n)
	}
}

func (p *Pipeline) addArtifactsSent(n int) {
	if p.Progress != nil {
		p.Progress.AddArtifactsSent(n)
	}
}

// Run executes one fulfillment pass. It always posts a final report to the
// chat, whatever the exit path, and returns the same report for callers that
// want it.
func (p *Pipeline) Run(ctx context.Context, mode Mode) RunReport {
	runID := uuid.New().String()
	logger := p.logger().With("run_id", runID, "mode", mode)
	jour := p.journalFor(runID)
	defer jour.Close()

	report := RunReport{Mode: mode, Started: time.Now(), TokenDaysLeft: -1}
	defer func() {
		report.Finished = time.Now()
		if days, err := p.Config.Get().TokenDaysLeft(time.Now()); err == nil {
			report.TokenDaysLeft = days
		} else {
			// Unknown issue date reads as healthy, not expired.
			report.TokenDaysLeft = 999
		}
		jour.Append(journal.Record{Step: "run", Status: "report", Detail: fmt.Sprintf("done=%d sent=%d", report.OrdersDone, report.ArtifactsSent)})
		if err := p.Messenger.Send(context.WithoutCancel(ctx), report.Render()); err != nil {
			logger.Error("failed to post final report", "error", err)
		}
	}()

	logger.Info("run started")
	jour.Append(journal.Record{Step: "run", Status: "ok", Detail: "started mode=" + string(mode)})
	if err := p.Messenger.Send(ctx, fmt.Sprintf("🚀 <b>Run started</b> in %s mode", mode)); err != nil {
		logger.Error("failed to announce run", "error", err)
	}

	p.Store.CleanStale()

	drv := &screenDriver{
		screen: p.Screen,
		store:  p.Store,
		policy: p.Policy,
		logger: logger,
		sleep:  p.sleep,
	}

	if err := drv.enterWorkspace(ctx); err != nil {
		if ctx.Err() != nil {
			report.Cancelled = true
			jour.Append(journal.Record{Step: "workspace", Status: "cancelled"})
			return report
		}
		report.Err = fmt.Errorf("workspace unavailable: %w", err)
		jour.Append(journal.Record{Step: "workspace", Status: "fatal", Detail: err.Error()})
		return report
	}
	jour.Append(journal.Record{Step: "workspace", Status: "ok"})

	var fetched []marketplace.Order
	err := p.Retry.Do(ctx, "fetch new orders", func(ctx context.Context) error {
		var err error
		fetched, err = p.API.FetchNewOrders(ctx)
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			report.Cancelled = true
			return report
		}
		report.Err = err
		jour.Append(journal.Record{Step: "fetch", Status: "fatal", Detail: err.Error()})
		return report
	}

	var working []Order
	for _, o := range fetched {
		if p.Ledger.Processed(o.ID) {
			report.OrdersSkipped++
			jour.Append(journal.Record{OrderID: o.ID, Step: "fetch", Status: "skipped", Detail: "already processed"})
			continue
		}
		working = append(working, Order{ID: o.ID, Quantity: o.Quantity, Seq: len(working) + 1})
	}
	report.OrdersTotal = len(working)
	jour.Append(journal.Record{Step: "fetch", Status: "ok", Detail: fmt.Sprintf("working=%d skipped=%d", len(working), report.OrdersSkipped)})

	if len(working) == 0 {
		if err := p.Messenger.Send(ctx, "📭 No new orders to process"); err != nil {
			logger.Error("failed to send empty notice", "error", err)
		}
		return report
	}

	var artifacts []Artifact
	for _, order := range working {
		if ctx.Err() != nil {
			report.Cancelled = true
			jour.Append(journal.Record{Step: "run", Status: "cancelled"})
			break
		}

		p.notifyInfo(ctx, mode, fmt.Sprintf("📦 Processing order %d (%d of %d)", order.ID, order.Seq, len(working)))
		got, err := p.processOrder(ctx, drv, jour, mode, order)
		artifacts = append(artifacts, got...)
		if err == nil {
			p.Ledger.MarkProcessed(order.ID)
			report.OrdersDone++
			p.addOrdersDone(1)
			jour.Append(journal.Record{OrderID: order.ID, Step: "order", Status: "ok"})
			continue
		}

		switch {
		case errors.Is(err, context.Canceled) || ctx.Err() != nil:
			report.Cancelled = true
			jour.Append(journal.Record{OrderID: order.ID, Step: "order", Status: "cancelled"})
		case errors.Is(err, errGateTimedOut) || errors.Is(err, errRunCancelled):
			report.Cancelled = true
			jour.Append(journal.Record{OrderID: order.ID, Step: "order", Status: "cancelled", Detail: err.Error()})
		case errors.Is(err, ErrEmptyShipment):
			jour.Append(journal.Record{OrderID: order.ID, Step: "order", Status: "aborted", Detail: err.Error()})
			logger.Warn("order aborted, shipment looks empty", "order", order.ID)
			p.notify(ctx, fmt.Sprintf("⚠️ Order %d skipped: shipment shows no box to create", order.ID))
			continue
		default:
			jour.Append(journal.Record{OrderID: order.ID, Step: "order", Status: "fatal", Detail: err.Error()})
			logger.Error("order failed", "order", order.ID, "error", err)
			p.notify(ctx, fmt.Sprintf("⚠️ Order %d failed: %s", order.ID, err.Error()))
			continue
		}
		break
	}

	p.deliverArtifacts(ctx, jour, mode, artifacts, &report)
	logger.Info("run finished",
		"orders_done", report.OrdersDone,
		"artifacts_sent", report.ArtifactsSent,
		"cancelled", report.Cancelled)
	return report
}

// deliverArtifacts builds and sends the combined document, then dispatches
// the individual files. Cancellation still delivers what was already
// captured; the operator wants the stickers that exist.
func (p *Pipeline) deliverArtifacts(ctx context.Context, jour *journal.Journal, mode Mode, artifacts []Artifact, report *RunReport) {
	if len(artifacts) == 0 {
		return
	}
	// Captured artifacts outlive a cancelled run context.
	sendCtx := context.WithoutCancel(ctx)

	agg := &Aggregator{Store: p.Store, Composer: p.Composer, Logger: p.logger()}
	merged, err := agg.Merge(artifacts)
	if err != nil {
		p.logger().Error("failed to build combined document", "error", err)
		jour.Append(journal.Record{Step: "aggregate", Status: "fatal", Detail: err.Error()})
	}

	if merged != "" && !report.Cancelled {
		outcome := p.Gate.Await(ctx, mode, "send combined document")
		if outcome != GateConfirmed {
			jour.Append(journal.Record{Step: "aggregate", Status: "cancelled", Detail: outcome.String()})
			merged = ""
			if outcome == GateCancelled || outcome == GateTimedOut {
				report.Cancelled = true
			}
		}
	} else if report.Cancelled {
		merged = ""
	}

	if merged != "" {
		if err := p.Messenger.SendFile(sendCtx, merged); err != nil {
			p.logger().Error("failed to send combined document", "error", err)
			jour.Append(journal.Record{Step: "aggregate", Status: "fatal", Detail: err.Error()})
		} else {
			report.ArtifactsSent++
			p.addArtifactsSent(1)
			jour.Append(journal.Record{Step: "aggregate", Status: "ok"})
		}

		cfg := p.Config.Get()
		if cfg.AutoPrint {
			if err := p.Printer.Print(sendCtx, merged, cfg.PrinterName); err != nil {
				p.logger().Error("auto-print failed", "error", err)
				p.notify(sendCtx, "⚠️ Auto-print failed: "+err.Error())
			}
		}
	}

	disp := &BatchDispatcher{
		Messenger: p.Messenger,
		BatchSize: p.Policy.BatchSize,
		Logger:    p.logger(),
		Sleep:     p.sleep,
	}
	res := disp.Send(sendCtx, artifacts)
	report.ArtifactsSent += res.Sent
	report.FailedFiles = res.Failed
	p.addArtifactsSent(res.Sent)
	jour.Append(journal.Record{Step: "dispatch", Status: "ok", Detail: fmt.Sprintf("sent=%d failed=%d", res.Sent, len(res.Failed))})
}

// processOrder runs one order end to end. The returned artifacts are valid
// even when err is non-nil: captured stickers are kept and delivered whatever
// happens to the rest of the order.
func (p *Pipeline) processOrder(ctx context.Context, drv *screenDriver, jour *journal.Journal, mode Mode, order Order) ([]Artifact, error) {
	logger := p.logger().With("order", order.ID, "seq", order.Seq)
	name := fmt.Sprintf("postavka_%d_%d", order.Seq, order.ID)

	var shipmentID string
	err := p.Retry.Do(ctx, "create shipment", func(ctx context.Context) error {
		var err error
		shipmentID, err = p.API.CreateShipment(ctx, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	jour.Append(journal.Record{OrderID: order.ID, Step: "create_shipment", Status: "ok", Detail: shipmentID})

	err = p.Retry.Do(ctx, "assign orders", func(ctx context.Context) error {
		return p.API.AssignOrders(ctx, shipmentID, []int64{order.ID})
	})
	if err != nil {
		return nil, err
	}
	jour.Append(journal.Record{OrderID: order.ID, Step: "assign", Status: "ok"})

	if err := p.await(ctx, mode, fmt.Sprintf("shipment %s ready for order %d", shipmentID, order.ID)); err != nil {
		return nil, err
	}

	if err := drv.openShipmentRow(ctx); err != nil {
		return nil, err
	}
	if err := drv.createBox(ctx); err != nil {
		if errors.Is(err, ErrEmptyShipment) {
			if backErr := drv.backOut(ctx); backErr != nil {
				logger.Warn("back-out after empty shipment failed", "error", backErr)
			}
		}
		return nil, err
	}
	jour.Append(journal.Record{OrderID: order.ID, Step: "create_box", Status: "ok"})

	var artifacts []Artifact

	boxName := Artifact{OrderSeq: order.Seq, SubIndex: 1}.Name()
	boxPath, err := drv.downloadBoxSticker(ctx, boxName, false)
	if err != nil {
		if backErr := drv.backOut(ctx); backErr != nil {
			logger.Warn("back-out after sticker failure failed", "error", backErr)
		}
		return nil, fmt.Errorf("box sticker for order %d: %w", order.ID, err)
	}
	artifacts = append(artifacts, Artifact{Path: boxPath, OrderSeq: order.Seq, SubIndex: 1})
	jour.Append(journal.Record{OrderID: order.ID, Step: "box_sticker", Status: "ok", Detail: boxName})

	if err := drv.findAndClick(ctx, p.Policy.Templates.ListOrders, drv.elementTimeout(false)); err != nil {
		if backErr := drv.backOut(ctx); backErr != nil {
			logger.Warn("back-out after list failure failed", "error", backErr)
		}
		return artifacts, fmt.Errorf("item list for order %d: %w", order.ID, err)
	}

	for item := 0; item < order.Quantity; item++ {
		if ctx.Err() != nil {
			return artifacts, ctx.Err()
		}
		sub := item + 2
		itemName := Artifact{OrderSeq: order.Seq, SubIndex: sub}.Name()
		path, err := drv.downloadItemSticker(ctx, itemName, item == 0)
		if err != nil {
			if item == 0 {
				// Without the first item sticker the order cannot ship; later
				// misses only shorten the set.
				if backErr := drv.backOut(ctx); backErr != nil {
					logger.Warn("back-out after item failure failed", "error", backErr)
				}
				return artifacts, fmt.Errorf("first item sticker for order %d: %w", order.ID, err)
			}
			logger.Warn("item sticker skipped", "item", item+1, "error", err)
			jour.Append(journal.Record{OrderID: order.ID, Step: "item_sticker", Status: "skipped", Attempt: item + 1, Detail: err.Error()})
			continue
		}
		artifacts = append(artifacts, Artifact{Path: path, OrderSeq: order.Seq, SubIndex: sub})
		jour.Append(journal.Record{OrderID: order.ID, Step: "item_sticker", Status: "ok", Detail: itemName})
	}

	if err := p.await(ctx, mode, fmt.Sprintf("deliver shipment %s", shipmentID)); err != nil {
		return artifacts, err
	}

	err = p.Retry.Do(ctx, "mark delivered", func(ctx context.Context) error {
		return p.API.MarkDelivered(ctx, shipmentID)
	})
	if err != nil {
		if ctx.Err() != nil {
			return artifacts, ctx.Err()
		}
		logger.Warn("deliver call failed, falling back to screen", "error", err)
		jour.Append(journal.Record{OrderID: order.ID, Step: "deliver_api", Status: "fatal", Detail: err.Error()})
		if uiErr := drv.deliverOnScreen(ctx); uiErr != nil {
			// Delivery never completed, so the captured stickers must not
			// ship either.
			jour.Append(journal.Record{OrderID: order.ID, Step: "deliver_screen", Status: "fatal", Detail: uiErr.Error()})
			return nil, fmt.Errorf("delivery failed for shipment %s: %w", shipmentID, uiErr)
		}
		jour.Append(journal.Record{OrderID: order.ID, Step: "deliver_screen", Status: "ok"})
	} else {
		jour.Append(journal.Record{OrderID: order.ID, Step: "deliver_api", Status: "ok"})
	}

	if err := drv.backOut(ctx); err != nil {
		logger.Warn("back-out after delivery failed", "error", err)
	}
	return artifacts, nil
}

// await maps a gate outcome onto the pipeline's error vocabulary.
func (p *Pipeline) await(ctx context.Context, mode Mode, description string) error {
	switch p.Gate.Await(ctx, mode, description) {
	case GateConfirmed:
		return nil
	case GateTimedOut:
		return errGateTimedOut
	default:
		return errRunCancelled
	}
}

// notifyInfo sends progress chatter that only matters when an operator is
// watching. Unattended runs keep the channel quiet: failures, the shortfall
// report, and the final report still go through notify unconditionally.
func (p *Pipeline) notifyInfo(ctx context.Context, mode Mode, text string) {
	if mode != ModeSupervised {
		return
	}
	p.notify(ctx, text)
}

func (p *Pipeline) notify(ctx context.Context, text string) {
	if err := p.Messenger.Send(ctx, text); err != nil {
		p.logger().Error("failed to send notice", "error", err)
	}
}
