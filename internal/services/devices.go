package services

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"github.com/openrail/provision-agent/internal/models"
	"github.com/openrail/provision-agent/internal/store"
)

// PortInfo is the raw view of one serial port as the host reports it.
type PortInfo struct {
	Port      string
	VendorID  string
	ProductID string
	IsUSB     bool
}

// PortLister enumerates serial ports. The production implementation
// talks to the OS; tests substitute a fixed list.
type PortLister interface {
	List() ([]PortInfo, error)
}

// SerialPortLister enumerates real serial ports with their USB
// identifiers.
type SerialPortLister struct{}

func (SerialPortLister) List() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	infos := make([]PortInfo, 0, len(ports))
	for _, p := range ports {
		infos = append(infos, PortInfo{
			Port:      p.Name,
			VendorID:  strings.ToUpper(p.VID),
			ProductID: strings.ToUpper(p.PID),
			IsUSB:     p.IsUSB,
		})
	}
	return infos, nil
}

// DeviceRegistry matches attached serial devices against the known
// board signatures.
type DeviceRegistry struct {
	lister     PortLister
	signatures *store.SignatureStore
}

func NewDeviceRegistry(lister PortLister, signatures *store.SignatureStore) *DeviceRegistry {
	return &DeviceRegistry{lister: lister, signatures: signatures}
}

// Enumerate lists attached serial devices. Devices whose USB signature
// is not in the catalog come back with Board set to UnknownBoard and no
// FQBN; the user picks the board manually for those.
func (r *DeviceRegistry) Enumerate(ctx context.Context) ([]models.Device, error) {
	infos, err := r.lister.List()
	if err != nil {
		return nil, models.NewTaskError(models.ErrKindDeviceUnavailable, "enumerate serial ports", err)
	}

	devices := make([]models.Device, 0, len(infos))
	for _, info := range infos {
		if !info.IsUSB {
			continue
		}
		device := models.Device{
			Port:      info.Port,
			VendorID:  info.VendorID,
			ProductID: info.ProductID,
			Board:     models.UnknownBoard,
		}
		sig, err := r.signatures.Lookup(ctx, info.VendorID, info.ProductID)
		switch {
		case err == nil:
			device.Board = sig.Board
			device.FQBN = sig.FQBN
		case errors.Is(err, store.ErrNotFound):
			// Unknown hardware stays listed so the user can still
			// target it by choosing an FQBN explicitly.
		default:
			return nil, err
		}
		devices = append(devices, device)
	}

	sort.Slice(devices, func(i, j int) bool { return devices[i].Port < devices[j].Port })
	zap.S().Debugw("enumerated devices", "count", len(devices))
	return devices, nil
}

// Present reports whether the device on port is still attached.
func (r *DeviceRegistry) Present(ctx context.Context, port string) (bool, error) {
	devices, err := r.Enumerate(ctx)
	if err != nil {
		return false, err
	}
	for _, d := range devices {
		if d.Port == port {
			return true, nil
		}
	}
	return false, nil
}
