package domain

import (
	"errors"
	"regexp"
	"time"
)

// ErrDocketNotFound is returned by docket stores when no record exists for an id.
var ErrDocketNotFound = errors.New("domain: docket not found")

type DocketStatus string

const (
	DocketPending   DocketStatus = "Pending"
	DocketDelivered DocketStatus = "Delivered"
)

var docketIDPattern = regexp.MustCompile(`^DKT-\d+$`)

// ValidDocketID reports whether id has the canonical DKT-<digits> form.
func ValidDocketID(id string) bool {
	return docketIDPattern.MatchString(id)
}

// Docket is a single delivery record.
type Docket struct {
	ID           string
	CustomerName string
	Address      string
	Status       DocketStatus
	PODVerified  bool
	UpdatedAt    time.Time
}

// DocketRef carries the reference fields a verifier compares a POD image against.
type DocketRef struct {
	ID           string
	CustomerName string
	Address      string
}

func (d Docket) Ref() DocketRef {
	return DocketRef{ID: d.ID, CustomerName: d.CustomerName, Address: d.Address}
}

// SeedDockets returns the sample records loaded on first run.
func SeedDockets() []Docket {
	return []Docket{
		{ID: "DKT-1001", CustomerName: "John Doe", Address: "123 Maple St, Springfield", Status: DocketPending},
		{ID: "DKT-1002", CustomerName: "Jane Smith", Address: "456 Oak Ave, Metropolis", Status: DocketPending},
		{ID: "DKT-1003", CustomerName: "Acme Corp", Address: "789 Industrial Way, Gotham", Status: DocketPending},
	}
}

// SeedDocketIDs returns the ids of SeedDockets in order.
func SeedDocketIDs() []string {
	seed := SeedDockets()
	ids := make([]string, 0, len(seed))
	for _, d := range seed {
		ids = append(ids, d.ID)
	}
	return ids
}
