package orderapi

import (
	"fmt"

	"github.com/deviceclinic/bookingbackend/lib/myerrors"
	"github.com/deviceclinic/bookingbackend/services/bookingapi"
)

const (
	repairOrdersResource    = "repair-orders"
	deviceOrdersResource    = "device-orders"
	accessoryOrdersResource = "accessory-orders"
)

// ResourceFamily maps a booking domain onto its backend resource family.
// An unrecognized domain is a configuration error: fail fast and never
// guess a route.
func ResourceFamily(domain bookingapi.Domain) (string, error) {
	switch domain {
	case bookingapi.DomainRepair:
		return repairOrdersResource, nil
	case bookingapi.DomainDeviceSale:
		return deviceOrdersResource, nil
	case bookingapi.DomainAccessory:
		return accessoryOrdersResource, nil
	default:
		return "", myerrors.NewInternalError(fmt.Errorf("no backend route configured for booking domain %q", domain))
	}
}
