package wbpilot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/avashchuk/wbpilot/actuator"
	"github.com/avashchuk/wbpilot/document"
)

// screenDriver wraps the actuator with the seller-panel navigation the
// pipeline needs: entering the workspace, hunting for controls with a
// deadline, downloading stickers, and the back-out recovery used when a view
// wedges. One driver exists per run and is never shared between tasks.
type screenDriver struct {
	screen actuator.Actuator
	store  *document.Store
	policy Policy
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

const (
	matchConfidence = 0.8
	pollInterval    = 500 * time.Millisecond
)

// waitFor polls for template until it appears or the deadline passes. A miss
// after the deadline is an error here, unlike a single Locate miss.
func (d *screenDriver) waitFor(ctx context.Context, template string, timeout time.Duration) (*actuator.Point, error) {
	deadline := time.Now().Add(timeout)
	for {
		pt, err := d.screen.Locate(ctx, template, nil, matchConfidence)
		if err != nil {
			return nil, fmt.Errorf("failed to search for %s: %w", template, err)
		}
		if pt != nil {
			return pt, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%s did not appear within %s", template, timeout)
		}
		if err := d.sleep(ctx, pollInterval); err != nil {
			return nil, err
		}
	}
}

func (d *screenDriver) findAndClick(ctx context.Context, template string, timeout time.Duration) error {
	pt, err := d.waitFor(ctx, template, timeout)
	if err != nil {
		return err
	}
	if err := d.screen.MoveTo(ctx, *pt); err != nil {
		return err
	}
	return d.screen.Click(ctx)
}

func (d *screenDriver) clickAt(ctx context.Context, x, y int) error {
	if err := d.screen.MoveTo(ctx, actuator.Point{X: x, Y: y}); err != nil {
		return err
	}
	return d.screen.Click(ctx)
}

func (d *screenDriver) elementTimeout(slow bool) time.Duration {
	if slow {
		return time.Duration(d.policy.SlowElementTimeoutSeconds) * time.Second
	}
	return time.Duration(d.policy.ElementTimeoutSeconds) * time.Second
}

// enterWorkspace brings the seller panel to the packaging view. Failure here
// is run-fatal: nothing downstream can work without the workspace.
func (d *screenDriver) enterWorkspace(ctx context.Context) error {
	t := d.policy.Templates
	timeout := d.elementTimeout(true)

	// Clear the desktop first so the browser icon is actually visible.
	if err := d.screen.Hotkey(ctx, "win", "d"); err != nil {
		return fmt.Errorf("failed to minimize windows: %w", err)
	}
	if err := d.findAndClick(ctx, t.BrowserIcon, timeout); err != nil {
		d.logger.Warn("browser icon not found, using fallback position", "error", err)
		if err := d.clickAt(ctx, d.policy.BrowserFallbackX, d.policy.BrowserFallbackY); err != nil {
			return fmt.Errorf("failed to open browser: %w", err)
		}
	}
	if err := d.findAndClick(ctx, t.MarketTab, timeout); err != nil {
		return fmt.Errorf("failed to focus seller panel tab: %w", err)
	}
	if _, err := d.waitFor(ctx, t.SellerBadge, timeout); err != nil {
		return fmt.Errorf("seller panel not signed in: %w", err)
	}
	if err := d.findAndClick(ctx, t.AssemblyTab, timeout); err != nil {
		return fmt.Errorf("failed to open assembly view: %w", err)
	}
	if _, err := d.waitFor(ctx, t.PackagingView, timeout); err != nil {
		return fmt.Errorf("packaging view did not load: %w", err)
	}
	return nil
}

// openShipmentRow selects the freshly created shipment. The row has no
// stable template so a fixed position is used; the packaging view anchors
// the layout.
func (d *screenDriver) openShipmentRow(ctx context.Context) error {
	if err := d.sleep(ctx, d.policy.GateStabilization()); err != nil {
		return err
	}
	if err := d.clickAt(ctx, d.policy.SupplyRowX, d.policy.SupplyRowY); err != nil {
		return fmt.Errorf("failed to open shipment row: %w", err)
	}
	return nil
}

// createBox hunts for the create-box control within the attempt budget.
// Later attempts switch to the slow timeout and recover by backing out and
// re-entering the shipment, which clears a wedged view. Exhausting the
// budget means the shipment never got its orders and reports
// ErrEmptyShipment.
func (d *screenDriver) createBox(ctx context.Context) error {
	t := d.policy.Templates
	for attempt := 0; attempt < d.policy.EmptyShipmentAttempts; attempt++ {
		slow := attempt >= d.policy.SlowModeAfter
		pt, err := d.waitFor(ctx, t.CreateBox, d.elementTimeout(slow))
		if err == nil {
			if err := d.screen.MoveTo(ctx, *pt); err != nil {
				return err
			}
			return d.screen.Click(ctx)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.logger.Warn("create-box control not found, recovering",
			"attempt", attempt+1,
			"slow_mode", slow)
		if err := d.backOut(ctx); err != nil {
			return err
		}
		if err := d.openShipmentRow(ctx); err != nil {
			return err
		}
	}
	return ErrEmptyShipment
}

// backOut leaves the current shipment view. Template first, fixed position
// as the fallback.
func (d *screenDriver) backOut(ctx context.Context) error {
	pt, err := d.screen.Locate(ctx, d.policy.Templates.BackButton, nil, matchConfidence)
	if err != nil {
		return err
	}
	if pt != nil {
		if err := d.screen.MoveTo(ctx, *pt); err != nil {
			return err
		}
		return d.screen.Click(ctx)
	}
	return d.clickAt(ctx, d.policy.BackFallbackX, d.policy.BackFallbackY)
}

// refresh forces the browser to reload the view, dropping any stale
// download state.
func (d *screenDriver) refresh(ctx context.Context) error {
	if err := d.screen.Hotkey(ctx, "ctrl", "f5"); err != nil {
		return err
	}
	return d.sleep(ctx, d.policy.GateStabilization())
}

// downloadBoxSticker downloads the order-level sticker into the session
// directory as name.
func (d *screenDriver) downloadBoxSticker(ctx context.Context, name string, slow bool) (string, error) {
	t := d.policy.Templates
	if err := d.findAndClick(ctx, t.PrinterIcon, d.elementTimeout(slow)); err != nil {
		return "", fmt.Errorf("failed to open box sticker dialog: %w", err)
	}
	return d.completeDownload(ctx, name, slow)
}

// downloadItemSticker opens the item's row menu and downloads its sticker
// as name.
func (d *screenDriver) downloadItemSticker(ctx context.Context, name string, slow bool) (string, error) {
	t := d.policy.Templates
	if err := d.findAndClick(ctx, t.ItemMenu, d.elementTimeout(slow)); err != nil {
		return "", fmt.Errorf("failed to open item menu: %w", err)
	}
	if err := d.findAndClick(ctx, t.PrintStickerMenu, d.elementTimeout(slow)); err != nil {
		return "", fmt.Errorf("failed to open sticker dialog: %w", err)
	}
	return d.completeDownload(ctx, name, slow)
}

// completeDownload names the file in the save dialog, confirms, and verifies
// the artifact landed. One forced refresh and re-check covers the browser's
// occasional silent download failure.
func (d *screenDriver) completeDownload(ctx context.Context, name string, slow bool) (string, error) {
	t := d.policy.Templates
	timeout := d.elementTimeout(slow)

	if err := d.screen.TypeText(ctx, name); err != nil {
		return "", fmt.Errorf("failed to name download: %w", err)
	}
	if err := d.screen.Hotkey(ctx, "enter"); err != nil {
		return "", fmt.Errorf("failed to confirm download: %w", err)
	}
	if _, err := d.waitFor(ctx, t.DownloadOK, timeout); err != nil {
		d.logger.Warn("download confirmation missing, refreshing", "file", name)
		if err := d.refresh(ctx); err != nil {
			return "", err
		}
	}

	path := d.store.PathFor(name)
	if d.store.Valid(path) {
		return path, nil
	}
	if err := d.sleep(ctx, d.policy.GateStabilization()); err != nil {
		return "", err
	}
	if d.store.Valid(path) {
		return path, nil
	}
	return "", fmt.Errorf("download %s did not produce a valid file", name)
}

// deliverOnScreen is the UI fallback for handing the shipment over when the
// API deliver call fails. A screenshot check confirms the panel actually
// acknowledged it.
func (d *screenDriver) deliverOnScreen(ctx context.Context) error {
	t := d.policy.Templates
	timeout := d.elementTimeout(true)

	if err := d.screen.Scroll(ctx, -5); err != nil {
		return err
	}
	if err := d.findAndClick(ctx, t.DeliverButton, timeout); err != nil {
		return fmt.Errorf("deliver control not found: %w", err)
	}
	if err := d.findAndClick(ctx, t.ConfirmDeliver, timeout); err != nil {
		return fmt.Errorf("deliver confirmation not found: %w", err)
	}
	if err := d.sleep(ctx, d.policy.GateStabilization()); err != nil {
		return err
	}
	ok, err := d.screen.ScreenshotMatches(ctx, t.DeliverOK)
	if err != nil {
		return fmt.Errorf("failed to verify delivery: %w", err)
	}
	if !ok {
		return fmt.Errorf("panel did not acknowledge delivery")
	}
	return nil
}
