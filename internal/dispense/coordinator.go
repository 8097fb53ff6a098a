package dispense

import (
	"context"
	"log/slog"
	"time"

	"github.com/seorin-dev/syruplink-core/internal/dispenser"
)

// DeviceController is the slice of the connection manager the
// coordinator needs: read the connected set and request status
// transitions. The manager keeps ownership of the records.
type DeviceController interface {
	Connected() []dispenser.Connected
	SetStatus(identity string, status dispenser.Status) error
	CompareAndSetStatus(identity string, from, to dispenser.Status) bool
}

// Events receives dispense progress notifications for the display
// layer. Implementations must not block.
type Events interface {
	DispenseLog(requestID, message string)
	LineResolved(requestID string, result LineResult)
	RequestComplete(summary Summary)
}

// NopEvents discards all events.
type NopEvents struct{}

func (NopEvents) DispenseLog(string, string)      {}
func (NopEvents) LineResolved(string, LineResult) {}
func (NopEvents) RequestComplete(Summary)         {}

// Config holds the coordinator tunables from the dispense section of
// config.yaml.
type Config struct {
	// MaxAttempts is the send budget per drug line.
	MaxAttempts int

	// RetryDelay is the pause between attempts. No pause follows the
	// final attempt.
	RetryDelay time.Duration

	// RestoreDelay is how long after a successful send the device is
	// held in dispensing before being handed back, modelling the
	// physical pour time.
	RestoreDelay time.Duration

	// MaxVolumeML rejects lines above the dispenser's physical limit
	// before any network traffic.
	MaxVolumeML int
}

// Coordinator runs dispense requests against connected devices, one
// line at a time in prescription order.
type Coordinator struct {
	devices DeviceController
	sender  Sender
	history *History
	events  Events
	logger  *slog.Logger

	maxAttempts  int
	retryDelay   time.Duration
	restoreDelay time.Duration
	maxVolume    int
}

// NewCoordinator creates a Coordinator. history may be nil when
// auditing is disabled.
func NewCoordinator(devices DeviceController, sender Sender, history *History, cfg Config, events Events, logger *slog.Logger) *Coordinator {
	if events == nil {
		events = NopEvents{}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 3 * time.Second
	}
	restoreDelay := cfg.RestoreDelay
	if restoreDelay <= 0 {
		restoreDelay = 30 * time.Second
	}
	maxVolume := cfg.MaxVolumeML
	if maxVolume <= 0 {
		maxVolume = 200
	}
	return &Coordinator{
		devices:      devices,
		sender:       sender,
		history:      history,
		events:       events,
		logger:       logger,
		maxAttempts:  maxAttempts,
		retryDelay:   retryDelay,
		restoreDelay: restoreDelay,
		maxVolume:    maxVolume,
	}
}

// Run executes every line of the request in order and returns the
// rollup. Lines never run concurrently within one request; a failed or
// unmatched line records its result and the run moves on. The summary
// is complete only if every line succeeded.
func (c *Coordinator) Run(ctx context.Context, req Request) Summary {
	c.logger.Info("dispense request started",
		"request_id", req.ID,
		"patient_id", req.PatientID,
		"lines", len(req.Lines))
	c.events.DispenseLog(req.ID, "dispense started")

	summary := Summary{
		RequestID: req.ID,
		PatientID: req.PatientID,
		Complete:  true,
		Results:   make([]LineResult, 0, len(req.Lines)),
	}

	for _, line := range req.Lines {
		result := c.runLine(ctx, req, line)
		if !result.Outcome.Success() {
			summary.Complete = false
		}
		summary.Results = append(summary.Results, result)
		c.events.LineResolved(req.ID, result)
	}

	if c.history != nil {
		if err := c.history.Record(ctx, req, summary); err != nil {
			c.logger.Error("recording dispense history failed",
				"request_id", req.ID,
				"error", err)
		}
	}

	c.logger.Info("dispense request finished",
		"request_id", req.ID,
		"complete", summary.Complete)
	c.events.RequestComplete(summary)
	return summary
}

func (c *Coordinator) runLine(ctx context.Context, req Request, line Line) LineResult {
	result := LineResult{Line: line, Outcome: OutcomeFailed}

	if line.VolumeML > c.maxVolume {
		result.Reason = ReasonOverLimit
		c.logger.Warn("drug line over volume limit",
			"request_id", req.ID,
			"drug_code", line.DrugCode,
			"volume_ml", line.VolumeML,
			"limit_ml", c.maxVolume)
		return result
	}

	device, ok := c.match(line.DrugCode)
	if !ok {
		result.Reason = ReasonNoDevice
		c.events.DispenseLog(req.ID, "no dispenser for "+line.DrugCode)
		return result
	}
	result.Identity = device.Identity
	result.Address = device.Address
	result.Nickname = device.Nickname

	if err := c.devices.SetStatus(device.Identity, dispenser.StatusDispensing); err != nil {
		result.Reason = ReasonNoDevice
		return result
	}
	c.events.DispenseLog(req.ID, device.Nickname+" dispensing "+line.DrugName)

	job := Job{PatientName: req.PatientName, TotalVolume: line.VolumeML}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		result.Attempts = attempt

		outcome, reason, err := c.sender.Send(ctx, device.Address, job)
		if err != nil {
			reason = err.Error()
		}
		if outcome.Success() {
			result.Outcome = outcome
			result.Reason = ""
			c.logger.Info("dispense accepted",
				"request_id", req.ID,
				"identity", device.Identity,
				"drug_code", line.DrugCode,
				"outcome", string(outcome),
				"attempt", attempt)
			c.scheduleRestore(device.Identity)
			return result
		}

		result.Reason = reason
		c.logger.Warn("dispense attempt failed",
			"request_id", req.ID,
			"identity", device.Identity,
			"attempt", attempt,
			"reason", reason)

		if attempt < c.maxAttempts {
			select {
			case <-ctx.Done():
				result.Reason = ctx.Err().Error()
				c.restoreNow(device.Identity)
				return result
			case <-time.After(c.retryDelay):
			}
		}
	}

	// Budget exhausted: hand the device back immediately.
	result.Reason = ReasonExhausted
	c.restoreNow(device.Identity)
	return result
}

// match finds a connected device loaded with the drug. Devices that are
// demoted or already dispensing don't qualify.
func (c *Coordinator) match(drugCode string) (dispenser.Connected, bool) {
	for _, device := range c.devices.Connected() {
		if device.DrugCode == drugCode && device.Status == dispenser.StatusConnected {
			return device, true
		}
	}
	return dispenser.Connected{}, false
}

// scheduleRestore hands the device back after the pour window. The
// timer fires fire-and-forget; if the device was disconnected or moved
// out of dispensing in the meantime the restore is a no-op instead of
// resurrecting a stale record.
func (c *Coordinator) scheduleRestore(identity string) {
	time.AfterFunc(c.restoreDelay, func() {
		if c.devices.CompareAndSetStatus(identity, dispenser.StatusDispensing, dispenser.StatusConnected) {
			c.logger.Debug("device restored after dispense", "identity", identity)
		}
	})
}

func (c *Coordinator) restoreNow(identity string) {
	c.devices.CompareAndSetStatus(identity, dispenser.StatusDispensing, dispenser.StatusConnected)
}
