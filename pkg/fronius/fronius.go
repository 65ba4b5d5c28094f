// Package fronius reads realtime power flow data from a Fronius inverter's
// Solar API.
package fronius

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/levenlabs/go-lflag"
	"github.com/solarflow/solarflow/pkg/common"
	"github.com/solarflow/solarflow/pkg/types"
)

const powerFlowPath = "/solar_api/v1/GetPowerFlowRealtimeData.fcgi"

// Inverter polls a Fronius inverter for power flow snapshots.
type Inverter struct {
	baseURL string
	client  *http.Client
}

// Configured sets up the Fronius inverter client.
// It registers flags for configuration.
func Configured() *Inverter {
	addr := lflag.String("fronius-addr", "http://fronius.local", "Base URL of the Fronius inverter")
	timeout := lflag.Duration("fronius-timeout", 5*time.Second, "Timeout for inverter requests")

	i := &Inverter{}

	lflag.Do(func() {
		i.baseURL = *addr
		i.client = common.HTTPClient(*timeout)
	})

	return i
}

// New creates an Inverter for the given base URL. Primarily used for testing;
// production wiring goes through Configured.
func New(baseURL string, client *http.Client) *Inverter {
	if client == nil {
		client = common.HTTPClient(5 * time.Second)
	}
	return &Inverter{baseURL: baseURL, client: client}
}

// Validate checks if the client is properly configured.
func (i *Inverter) Validate() error {
	if i.baseURL == "" {
		return fmt.Errorf("fronius address cannot be empty")
	}
	return nil
}

// powerFlowResponse mirrors the GetPowerFlowRealtimeData.fcgi response. The
// Site block carries nulls at night when nothing is flowing, hence the
// pointer fields.
type powerFlowResponse struct {
	Body struct {
		Data struct {
			Site struct {
				PPV   *float64 `json:"P_PV"`
				PLoad *float64 `json:"P_Load"`
				PGrid *float64 `json:"P_Grid"`
				PAkku *float64 `json:"P_Akku"`
			} `json:"Site"`
			Inverters map[string]struct {
				SOC *float64 `json:"SOC"`
			} `json:"Inverters"`
		} `json:"Data"`
	} `json:"Body"`
}

// GetPowerSnapshot fetches the current power flow from the inverter.
func (i *Inverter) GetPowerSnapshot(ctx context.Context) (types.PowerSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, i.baseURL+powerFlowPath, nil)
	if err != nil {
		return types.PowerSnapshot{}, fmt.Errorf("failed to build power flow request: %w", err)
	}

	resp, err := i.client.Do(req)
	if err != nil {
		return types.PowerSnapshot{}, fmt.Errorf("power flow request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.PowerSnapshot{}, fmt.Errorf("power flow request returned %d", resp.StatusCode)
	}

	var pf powerFlowResponse
	if err := json.NewDecoder(resp.Body).Decode(&pf); err != nil {
		return types.PowerSnapshot{}, fmt.Errorf("failed to decode power flow response: %w", err)
	}

	site := pf.Body.Data.Site
	snapshot := types.PowerSnapshot{
		Timestamp: time.Now(),
		PVPower:   deref(site.PPV),
		// the inverter reports load as a negative flow away from the site
		LoadPower:    math.Abs(deref(site.PLoad)),
		GridPower:    deref(site.PGrid),
		BatteryPower: deref(site.PAkku),
	}

	// SOC lives on whichever inverter has the battery attached
	for _, inv := range pf.Body.Data.Inverters {
		if inv.SOC != nil {
			soc := *inv.SOC
			snapshot.BatterySOC = &soc
			break
		}
	}

	return snapshot, nil
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
