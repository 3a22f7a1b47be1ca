package hal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// ProbeKind categorises debug probe families.
type ProbeKind string

const (
	ProbeKindSTLink   ProbeKind = "st-link"
	ProbeKindCMSISDAP ProbeKind = "cmsis-dap"
	ProbeKindSim      ProbeKind = "simulator"
)

// ProbeInfo describes a debug probe that can reach a board.
type ProbeInfo struct {
	Kind        ProbeKind
	Description string
	VendorID    uint16
	ProductID   uint16
	Bus         int
	Address     int
}

// Label returns a user-friendly description for the probe.
func (p ProbeInfo) Label() string {
	if p.Kind == ProbeKindSim {
		return p.Description
	}
	if p.Description != "" {
		return fmt.Sprintf("%s (%04X:%04X, bus %d addr %d)", p.Description, p.VendorID, p.ProductID, p.Bus, p.Address)
	}
	return fmt.Sprintf("%s (%04X:%04X)", p.Kind, p.VendorID, p.ProductID)
}

// DiscoverProbes enumerates USB debug probes with known VID/PID pairs. The
// simulator is always listed last so tooling works without hardware.
func DiscoverProbes(ctx context.Context) ([]ProbeInfo, error) {
	var results []ProbeInfo
	usb := gousb.NewContext()
	defer usb.Close()

	_, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if info, ok := ClassifyProbe(uint16(desc.Vendor), uint16(desc.Product)); ok {
			info.Bus = desc.Bus
			info.Address = desc.Address
			results = append(results, info)
		}
		return false
	})
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	results = append(results, ProbeInfo{
		Kind:        ProbeKindSim,
		Description: "Simulator (no hardware)",
	})
	return results, nil
}

// ClassifyProbe matches a USB VID/PID against known debug probes.
func ClassifyProbe(vid, pid uint16) (ProbeInfo, bool) {
	for _, known := range knownProbes {
		if vid == known.VendorID && pid == known.ProductID {
			return ProbeInfo{
				Kind:        known.Kind,
				Description: known.Description,
				VendorID:    known.VendorID,
				ProductID:   known.ProductID,
			}, true
		}
	}
	return ProbeInfo{}, false
}

type knownProbe struct {
	Kind        ProbeKind
	VendorID    uint16
	ProductID   uint16
	Description string
}

const vendorIDST = 0x0483

var knownProbes = []knownProbe{
	{Kind: ProbeKindSTLink, VendorID: vendorIDST, ProductID: 0x3748, Description: "ST-LINK/V2"},
	{Kind: ProbeKindSTLink, VendorID: vendorIDST, ProductID: 0x374B, Description: "ST-LINK/V2-1 (NUCLEO)"},
	{Kind: ProbeKindSTLink, VendorID: vendorIDST, ProductID: 0x3752, Description: "ST-LINK/V2-1"},
	{Kind: ProbeKindSTLink, VendorID: vendorIDST, ProductID: 0x374E, Description: "STLINK-V3"},
	{Kind: ProbeKindSTLink, VendorID: vendorIDST, ProductID: 0x374F, Description: "STLINK-V3"},
	{Kind: ProbeKindSTLink, VendorID: vendorIDST, ProductID: 0x3753, Description: "STLINK-V3"},
	{Kind: ProbeKindCMSISDAP, VendorID: 0x0d28, ProductID: 0x0204, Description: "DAPLink CMSIS-DAP"},
	{Kind: ProbeKindCMSISDAP, VendorID: 0x2e8a, ProductID: 0x000c, Description: "Raspberry Pi Debug Probe"},
}
