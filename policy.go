package wbpilot

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy is the tunable behavior of the pipeline. Everything here started as
// a magic number in the field; keeping them in one serializable record lets
// an installation adjust attempt budgets and screen templates without a
// rebuild.
type Policy struct {
	GateDeadlineSeconds  int     `yaml:"gate_deadline_seconds" json:"gate_deadline_seconds"`
	StabilizationSeconds float64 `yaml:"stabilization_seconds" json:"stabilization_seconds"`

	RemoteMaxAttempts      int `yaml:"remote_max_attempts" json:"remote_max_attempts"`
	RemoteBaseDelaySeconds int `yaml:"remote_base_delay_seconds" json:"remote_base_delay_seconds"`
	RateLimitPauseSeconds  int `yaml:"rate_limit_pause_seconds" json:"rate_limit_pause_seconds"`

	// EmptyShipmentAttempts is the order-abort heuristic: how many times to
	// hunt for the create-box control before declaring the shipment empty.
	// SlowModeAfter is the attempt index at which per-attempt timeouts grow.
	EmptyShipmentAttempts int `yaml:"empty_shipment_attempts" json:"empty_shipment_attempts"`
	SlowModeAfter         int `yaml:"slow_mode_after" json:"slow_mode_after"`

	ElementTimeoutSeconds     int `yaml:"element_timeout_seconds" json:"element_timeout_seconds"`
	SlowElementTimeoutSeconds int `yaml:"slow_element_timeout_seconds" json:"slow_element_timeout_seconds"`

	BatchSize int `yaml:"batch_size" json:"batch_size"`

	Templates Templates `yaml:"templates" json:"templates"`

	// Fixed-coordinate fallbacks for controls image matching cannot find.
	SupplyRowX       int `yaml:"supply_row_x" json:"supply_row_x"`
	SupplyRowY       int `yaml:"supply_row_y" json:"supply_row_y"`
	BackFallbackX    int `yaml:"back_fallback_x" json:"back_fallback_x"`
	BackFallbackY    int `yaml:"back_fallback_y" json:"back_fallback_y"`
	BrowserFallbackX int `yaml:"browser_fallback_x" json:"browser_fallback_x"`
	BrowserFallbackY int `yaml:"browser_fallback_y" json:"browser_fallback_y"`
}

// Templates names the screen images the actuator matches against.
type Templates struct {
	BrowserIcon      string `yaml:"browser_icon" json:"browser_icon"`
	MarketTab        string `yaml:"market_tab" json:"market_tab"`
	SellerBadge      string `yaml:"seller_badge" json:"seller_badge"`
	AssemblyTab      string `yaml:"assembly_tab" json:"assembly_tab"`
	PackagingView    string `yaml:"packaging_view" json:"packaging_view"`
	CreateBox        string `yaml:"create_box" json:"create_box"`
	PrinterIcon      string `yaml:"printer_icon" json:"printer_icon"`
	ListOrders       string `yaml:"list_orders" json:"list_orders"`
	ItemMenu         string `yaml:"item_menu" json:"item_menu"`
	PrintStickerMenu string `yaml:"print_sticker_menu" json:"print_sticker_menu"`
	DownloadOK       string `yaml:"download_ok" json:"download_ok"`
	DeliverButton    string `yaml:"deliver_button" json:"deliver_button"`
	ConfirmDeliver   string `yaml:"confirm_deliver" json:"confirm_deliver"`
	DeliverOK        string `yaml:"deliver_ok" json:"deliver_ok"`
	BackButton       string `yaml:"back_button" json:"back_button"`
	NewOrdersTab     string `yaml:"new_orders_tab" json:"new_orders_tab"`
}

// DefaultPolicy returns the production defaults.
func DefaultPolicy() Policy {
	return Policy{
		GateDeadlineSeconds:       300,
		StabilizationSeconds:      1.5,
		RemoteMaxAttempts:         3,
		RemoteBaseDelaySeconds:    10,
		RateLimitPauseSeconds:     30,
		EmptyShipmentAttempts:     5,
		SlowModeAfter:             3,
		ElementTimeoutSeconds:     8,
		SlowElementTimeoutSeconds: 12,
		BatchSize:                 5,
		SupplyRowX:                539,
		SupplyRowY:                649,
		BackFallbackX:             501,
		BackFallbackY:             26,
		BrowserFallbackX:          100,
		BrowserFallbackY:          1050,
		Templates: Templates{
			BrowserIcon:      "chrome_icon.png",
			MarketTab:        "wb_tab_in_chrome.png",
			SellerBadge:      "seller_badge.png",
			AssemblyTab:      "on_assembly_tab.png",
			PackagingView:    "packaging_for_pvz.png",
			CreateBox:        "create_box_button.png",
			PrinterIcon:      "printer_icon.png",
			ListOrders:       "list_orders_button.png",
			ItemMenu:         "three_dots_vertical.png",
			PrintStickerMenu: "print_sticker_menu.png",
			DownloadOK:       "success_download_message.png",
			DeliverButton:    "deliver_button.png",
			ConfirmDeliver:   "confirm_deliver_button.png",
			DeliverOK:        "success_delivery_message.png",
			BackButton:       "back_button.png",
			NewOrdersTab:     "new_orders_tab.png",
		},
	}
}

// Retry returns the remote-call retry policy these budgets describe.
func (p Policy) Retry() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    p.RemoteMaxAttempts,
		BaseDelay:      time.Duration(p.RemoteBaseDelaySeconds) * time.Second,
		RateLimitPause: time.Duration(p.RateLimitPauseSeconds) * time.Second,
	}
}

// GateDeadline returns the supervised confirmation deadline.
func (p Policy) GateDeadline() time.Duration {
	return time.Duration(p.GateDeadlineSeconds) * time.Second
}

// GateStabilization returns the unattended-mode pause before a gated step
// proceeds.
func (p Policy) GateStabilization() time.Duration {
	return time.Duration(p.StabilizationSeconds * float64(time.Second))
}

// LoadPolicy reads a YAML policy file over the defaults and validates basic
// constraints, warning and falling back per field rather than failing the
// whole load.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return p, fmt.Errorf("failed to read policy file: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return DefaultPolicy(), fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}

	return p.validated(), nil
}

func (p Policy) validated() Policy {
	def := DefaultPolicy()
	if p.RemoteMaxAttempts <= 0 {
		slog.Warn("policy has non-positive remote_max_attempts, using default",
			"value", p.RemoteMaxAttempts, "default", def.RemoteMaxAttempts)
		p.RemoteMaxAttempts = def.RemoteMaxAttempts
	}
	if p.EmptyShipmentAttempts <= 0 {
		slog.Warn("policy has non-positive empty_shipment_attempts, using default",
			"value", p.EmptyShipmentAttempts, "default", def.EmptyShipmentAttempts)
		p.EmptyShipmentAttempts = def.EmptyShipmentAttempts
	}
	if p.SlowModeAfter < 0 || p.SlowModeAfter >= p.EmptyShipmentAttempts {
		slog.Warn("policy slow_mode_after outside attempt budget, using default",
			"value", p.SlowModeAfter, "default", def.SlowModeAfter)
		p.SlowModeAfter = def.SlowModeAfter
	}
	if p.BatchSize <= 0 {
		slog.Warn("policy has non-positive batch_size, using default",
			"value", p.BatchSize, "default", def.BatchSize)
		p.BatchSize = def.BatchSize
	}
	if p.GateDeadlineSeconds <= 0 {
		p.GateDeadlineSeconds = def.GateDeadlineSeconds
	}
	if p.ElementTimeoutSeconds <= 0 {
		p.ElementTimeoutSeconds = def.ElementTimeoutSeconds
	}
	if p.SlowElementTimeoutSeconds < p.ElementTimeoutSeconds {
		p.SlowElementTimeoutSeconds = def.SlowElementTimeoutSeconds
	}
	return p
}
