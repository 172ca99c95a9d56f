package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shopdesk/workorder-cli/pkg/vpic"
)

// Decoder resolves a VIN to year/make/model through the vehicle registry.
// Missing fields stay unset; the registry result is never fabricated.
type Decoder struct {
	client      vpic.Client
	callTimeout time.Duration
}

// NewDecoder creates a Decoder over the given registry client.
func NewDecoder(client vpic.Client) *Decoder {
	return &Decoder{client: client, callTimeout: defaultCallTimeout}
}

// Decode returns the registry attributes for vin, or nil on any failure.
// Failures are soft: the caller proceeds with whatever it already has.
func (d *Decoder) Decode(ctx context.Context, vin string) *vpic.VehicleAttributes {
	if vin == "" {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, d.callTimeout)
	defer cancel()

	attrs, err := d.client.DecodeVIN(callCtx, vin)
	if err != nil {
		zap.L().Warn("pipeline: vin decode failed", zap.String("vin", vin), zap.Error(err))
		return nil
	}
	return attrs
}
