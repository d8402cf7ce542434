// ABOUTME: Days-off directory backing the HR endpoints
// ABOUTME: Looks up remaining days off by username from configured balances

package hr

import (
	"errors"
	"maps"
	"slices"
	"sync"
)

// OfficeManagementRole may read other people's balances.
const OfficeManagementRole = "office_management"

// ErrUnknownPerson is returned for names not in the directory.
var ErrUnknownPerson = errors.New("person not found")

// Directory maps usernames to remaining days off.
type Directory struct {
	mu      sync.RWMutex
	daysOff map[string]int
}

// NewDirectory copies balances into a new directory.
func NewDirectory(balances map[string]int) *Directory {
	d := &Directory{daysOff: make(map[string]int, len(balances))}
	maps.Copy(d.daysOff, balances)
	return d
}

// DaysOff returns the remaining days off for name.
func (d *Directory) DaysOff(name string) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	days, ok := d.daysOff[name]
	if !ok {
		return 0, ErrUnknownPerson
	}
	return days, nil
}

// Set records a balance for name.
func (d *Directory) Set(name string, days int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.daysOff[name] = days
}

// Names returns the people in the directory, sorted.
func (d *Directory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.daysOff))
}
