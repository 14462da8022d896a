package radio

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/mdns"
)

// GatewayService is the mDNS service type radio gateways advertise.
const GatewayService = "_emonode-rf._tcp"

// DiscoveredGateway describes a radio gateway found on the local
// network.
type DiscoveredGateway struct {
	ServiceName string
	Address     string
	Port        int
	TXTRecords  []string
}

// URL returns the WebSocket endpoint of the gateway.
func (g *DiscoveredGateway) URL() string {
	return fmt.Sprintf("ws://%s:%d/radio", g.Address, g.Port)
}

// DiscoverGateway finds the first radio gateway advertised over mDNS.
func DiscoverGateway(timeout time.Duration) (*DiscoveredGateway, error) {
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	entriesCh := make(chan *mdns.ServiceEntry, 4)

	go func() {
		defer close(entriesCh)
		mdns.Lookup(GatewayService, entriesCh)
	}()

	select {
	case entry := <-entriesCh:
		if entry == nil {
			return nil, fmt.Errorf("no %s service found", GatewayService)
		}

		var address string
		if entry.AddrV4 != nil {
			address = entry.AddrV4.String()
		} else if entry.AddrV6 != nil {
			address = fmt.Sprintf("[%s]", entry.AddrV6.String())
		} else {
			return nil, fmt.Errorf("no valid address found for gateway")
		}

		gateway := &DiscoveredGateway{
			ServiceName: entry.Name,
			Address:     address,
			Port:        entry.Port,
			TXTRecords:  entry.InfoFields,
		}

		slog.Info("Discovered radio gateway",
			"service_name", gateway.ServiceName,
			"address", gateway.Address,
			"port", gateway.Port,
		)
		return gateway, nil

	case <-time.After(timeout):
		return nil, fmt.Errorf("mDNS discovery timeout for %s", GatewayService)
	}
}
