package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/seorin-dev/syruplink-core/internal/dispenser"
)

// probeBodyLimit caps how much of an identification response we read.
// Dispenser firmware replies are a few dozen bytes.
const probeBodyLimit = 4 * 1024

// statusReady is the value a dispenser reports when it can accept work.
const statusReady = "ready"

// identifyResponse is the JSON body a dispenser returns from GET /.
type identifyResponse struct {
	Status string `json:"status"`
	MAC    string `json:"mac"`
}

// Prober performs single-address identification probes over HTTP.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// NewProber creates a Prober with the given per-probe timeout.
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Prober{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Probe sends GET http://<address>/ and reports the dispenser that
// answered. A device counts as present only when it returns HTTP 200
// with a JSON body carrying status "ready" and a MAC address.
func (p *Prober) Probe(ctx context.Context, address string) (dispenser.Reachable, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+address+"/", nil)
	if err != nil {
		return dispenser.Reachable{}, fmt.Errorf("building probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return dispenser.Reachable{}, fmt.Errorf("probing %s: %w", address, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only response body

	if resp.StatusCode != http.StatusOK {
		return dispenser.Reachable{}, fmt.Errorf("%w: %s returned %d", ErrProbeStatus, address, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, probeBodyLimit))
	if err != nil {
		return dispenser.Reachable{}, fmt.Errorf("reading probe response from %s: %w", address, err)
	}

	var ident identifyResponse
	if err := json.Unmarshal(body, &ident); err != nil {
		return dispenser.Reachable{}, fmt.Errorf("%w: %s sent malformed identification", ErrProbeNotReady, address)
	}
	if ident.Status != statusReady || ident.MAC == "" {
		return dispenser.Reachable{}, fmt.Errorf("%w: %s status=%q", ErrProbeNotReady, address, ident.Status)
	}

	return dispenser.Reachable{
		Identity: dispenser.NormalizeIdentity(ident.MAC),
		Address:  address,
		Ready:    true,
	}, nil
}
