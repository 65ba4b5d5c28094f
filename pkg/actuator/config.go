package actuator

import (
	"context"
	"fmt"

	"github.com/levenlabs/go-lflag"
	"github.com/solarflow/solarflow/pkg/types"
)

// Configured sets up the actuation bridge based on flags.
func Configured() Bridge {
	provider := lflag.String("actuator-provider", "mqtt", "Actuation bridge to use (available: mqtt, none)")

	var p struct{ Bridge }

	mq := configuredMQTT()

	lflag.Do(func() {
		switch *provider {
		case "mqtt":
			if err := mq.Validate(); err != nil {
				panic(fmt.Sprintf("mqtt validation failed: %v", err))
			}
			p.Bridge = mq
			if err := mq.Init(context.Background()); err != nil {
				panic(fmt.Sprintf("mqtt init failed: %v", err))
			}
		case "none":
			p.Bridge = noopBridge{}
		default:
			panic(fmt.Sprintf("unknown actuator provider: %s", *provider))
		}
	})

	return &p
}

// noopBridge swallows commands. Useful when no relay transport exists yet and
// the registry state alone is the integration point.
type noopBridge struct{}

func (noopBridge) Switch(ctx context.Context, cmd types.SwitchCommand) error { return nil }
func (noopBridge) Close() error                                              { return nil }
