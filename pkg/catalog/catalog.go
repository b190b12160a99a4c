// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Henrik Olsson

package catalog

import (
	"embed"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"sort"
	"strconv"
	"strings"
)

//go:embed data/devices.json data/pinmaps.json
var baseData embed.FS

// Options controls catalog construction. Override paths are optional; a
// missing file is simply skipped, a malformed one fails the load.
type Options struct {
	// DeviceOverridePath points to a user database file whose entries patch
	// or extend the bundled device database.
	DeviceOverridePath string
	// PinMapOverridePath points to a user pin-map file merged over the
	// bundled pin maps.
	PinMapOverridePath string
}

// Catalog is the immutable device and pin-map index for one invocation.
// Build it once with Load and pass it by reference; there is no package
// level instance.
type Catalog struct {
	devices []*DeviceDescriptor          // sorted by manufacturer, then name
	byName  map[string]*DeviceDescriptor // lowercased name, first match wins
	pinMaps map[int]map[int]*PinMap
}

type deviceFile map[string][]*deviceRecord

type pinMapFile map[string]map[string]*pinMapRecord

// Load builds the catalog from the embedded base data plus any override
// files. Every entry is validated here so malformed data fails fast.
func Load(opts Options) (*Catalog, error) {
	db, err := readDeviceFile()
	if err != nil {
		return nil, err
	}
	pins, err := readPinMapFile()
	if err != nil {
		return nil, err
	}

	if opts.DeviceOverridePath != "" {
		overrides, err := readUserFile[deviceFile](opts.DeviceOverridePath)
		if err != nil {
			return nil, err
		}
		if overrides != nil {
			mergeDevices(db, overrides)
		}
	}
	if opts.PinMapOverridePath != "" {
		overrides, err := readUserFile[pinMapFile](opts.PinMapOverridePath)
		if err != nil {
			return nil, err
		}
		if overrides != nil {
			mergePinMaps(pins, overrides)
		}
	}

	return build(db, pins)
}

func readDeviceFile() (deviceFile, error) {
	raw, err := baseData.ReadFile("data/devices.json")
	if err != nil {
		return nil, fmt.Errorf("read bundled device database: %w", err)
	}
	var db deviceFile
	if err := json.Unmarshal(raw, &db); err != nil {
		return nil, fmt.Errorf("parse bundled device database: %w", err)
	}
	return db, nil
}

func readPinMapFile() (pinMapFile, error) {
	raw, err := baseData.ReadFile("data/pinmaps.json")
	if err != nil {
		return nil, fmt.Errorf("read bundled pin maps: %w", err)
	}
	var pins pinMapFile
	if err := json.Unmarshal(raw, &pins); err != nil {
		return nil, fmt.Errorf("parse bundled pin maps: %w", err)
	}
	return pins, nil
}

func readUserFile[T any](path string) (T, error) {
	var zero T
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("read override file %s: %w", path, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("parse override file %s: %w", path, err)
	}
	return out, nil
}

// mergeDevices overlays override entries onto the base database. Entries are
// located by (manufacturer, name); a present entry is patched field by
// field, an absent one inserted whole.
func mergeDevices(base, overrides deviceFile) {
	for manufacturer, records := range overrides {
		existing, ok := base[manufacturer]
		if !ok {
			base[manufacturer] = records
			continue
		}
		byName := make(map[string]*deviceRecord, len(existing))
		for _, r := range existing {
			byName[strings.ToLower(r.Name)] = r
		}
		for _, o := range records {
			if r, ok := byName[strings.ToLower(o.Name)]; ok {
				r.patch(o)
			} else {
				base[manufacturer] = append(base[manufacturer], o)
			}
		}
	}
}

// mergePinMaps replaces or adds whole pin-map entries per (pin count, id).
func mergePinMaps(base, overrides pinMapFile) {
	for pinCount, sub := range overrides {
		if _, ok := base[pinCount]; !ok {
			base[pinCount] = sub
			continue
		}
		for id, record := range sub {
			base[pinCount][id] = record
		}
	}
}

func build(db deviceFile, pins pinMapFile) (*Catalog, error) {
	c := &Catalog{
		byName:  make(map[string]*DeviceDescriptor),
		pinMaps: make(map[int]map[int]*PinMap),
	}

	for pinCountKey, sub := range pins {
		pinCount, err := strconv.Atoi(pinCountKey)
		if err != nil {
			return nil, fmt.Errorf("pin map key %q is not a pin count", pinCountKey)
		}
		c.pinMaps[pinCount] = make(map[int]*PinMap, len(sub))
		for idKey, record := range sub {
			id, err := strconv.Atoi(idKey)
			if err != nil {
				return nil, fmt.Errorf("pin map id %q under %d pins is not numeric", idKey, pinCount)
			}
			c.pinMaps[pinCount][id] = record.toPinMap(pinCount, id)
		}
	}

	manufacturers := make([]string, 0, len(db))
	for m := range db {
		manufacturers = append(manufacturers, m)
	}
	sort.Strings(manufacturers)

	for _, manufacturer := range manufacturers {
		records := db[manufacturer]
		sort.SliceStable(records, func(i, j int) bool {
			return strings.ToLower(records[i].Name) < strings.ToLower(records[j].Name)
		})
		for _, r := range records {
			d, err := r.toDescriptor(manufacturer)
			if err != nil {
				return nil, err
			}
			if err := c.checkPinMap(d); err != nil {
				return nil, err
			}
			c.devices = append(c.devices, d)
			key := strings.ToLower(d.Name)
			if _, exists := c.byName[key]; !exists {
				c.byName[key] = d
			}
		}
	}

	return c, nil
}

// checkPinMap enforces the descriptor↔pin-map invariants at load time: the
// pin map must resolve for the descriptor's pin count and, for non-holder
// maps, must carry at least as many address lines as the device needs.
func (c *Catalog) checkPinMap(d *DeviceDescriptor) error {
	m, err := c.ResolvePinMap(d.PinCount, d.PinMapID)
	if err != nil {
		return fmt.Errorf("device %s/%s: %w", d.Manufacturer, d.Name, err)
	}
	if !m.Holder && len(m.AddressPins) < d.AddressBits() {
		return fmt.Errorf("device %s/%s: pin map %d has %d address pins, need %d",
			d.Manufacturer, d.Name, d.PinMapID, len(m.AddressPins), d.AddressBits())
	}
	return nil
}

// Resolve finds a device by name, case-insensitive across all
// manufacturers. A miss returns NotFoundError.
func (c *Catalog) Resolve(name string) (*DeviceDescriptor, error) {
	d, ok := c.byName[strings.ToLower(name)]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return d, nil
}

// ResolvePinMap finds the pin map for a (pin count, id) pair.
func (c *Catalog) ResolvePinMap(pinCount, id int) (*PinMap, error) {
	sub, ok := c.pinMaps[pinCount]
	if !ok {
		return nil, &PinMapNotFoundError{PinCount: pinCount, ID: id}
	}
	m, ok := sub[id]
	if !ok {
		return nil, &PinMapNotFoundError{PinCount: pinCount, ID: id}
	}
	return m, nil
}

// Search yields devices whose name contains the substring,
// case-insensitive, ordered by manufacturer then name. The sequence is lazy
// and restartable.
func (c *Catalog) Search(substring string) iter.Seq[*DeviceDescriptor] {
	needle := strings.ToLower(substring)
	return func(yield func(*DeviceDescriptor) bool) {
		for _, d := range c.devices {
			if strings.Contains(strings.ToLower(d.Name), needle) {
				if !yield(d) {
					return
				}
			}
		}
	}
}

// List yields all devices, optionally only verified ones, ordered by
// manufacturer then name.
func (c *Catalog) List(verifiedOnly bool) iter.Seq[*DeviceDescriptor] {
	return func(yield func(*DeviceDescriptor) bool) {
		for _, d := range c.devices {
			if verifiedOnly && !d.Verified {
				continue
			}
			if !yield(d) {
				return
			}
		}
	}
}

// SearchByChipID yields devices whose expected identification word matches,
// used to suggest candidates after a chip-id mismatch.
func (c *Catalog) SearchByChipID(chipID uint16) iter.Seq[*DeviceDescriptor] {
	return func(yield func(*DeviceDescriptor) bool) {
		for _, d := range c.devices {
			if d.HasChipID && d.ChipID == chipID {
				if !yield(d) {
					return
				}
			}
		}
	}
}

// Len returns the number of devices in the catalog.
func (c *Catalog) Len() int {
	return len(c.devices)
}
